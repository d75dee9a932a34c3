package rtmp

// Assembler reads whole messages that the peer split into chunks of at most the inbound chunk size.
// The first chunk of a message carries up to chunkSize payload bytes, the rest follow in type 3 chunks
// on the same chunk stream ID, possibly interleaved with chunks of other chunk streams.
type Assembler struct {
	reader    *ChunkReader
	demux     *Demultiplexer
	chunkSize uint32
}

func NewAssembler(reader *ChunkReader, demux *Demultiplexer) *Assembler {
	return &Assembler{
		reader:    reader,
		demux:     demux,
		chunkSize: DefaultChunkSize,
	}
}

// SetChunkSize changes the maximum payload size of inbound chunks, as announced by the peer with a
// SetChunkSize message. A size of 0 is ignored.
func (a *Assembler) SetChunkSize(size uint32) {
	if size == 0 {
		return
	}
	a.chunkSize = size
}

func (a *Assembler) ChunkSize() uint32 {
	return a.chunkSize
}

// Abort discards the partially received message on a chunk stream, as requested by an AbortMessage.
func (a *Assembler) Abort(chunkStreamID uint32) {
	a.demux.discard(chunkStreamID)
}

// ReadMessage reads chunks until one message is complete and returns it.
func (a *Assembler) ReadMessage() (*Message, error) {
	for {
		chunk, err := a.reader.ReadChunkHeader()
		if err != nil {
			return nil, err
		}
		csid := chunk.ChunkStreamID()

		// Chunk type 3 can be used in two different ways:
		// 1) to specify the continuation of a message.
		// 2) to specify the beginning of a new message whose header can be derived from the existing state data.
		continuation := false
		if a.demux.inProgress(csid) {
			if chunk.Format() == ChunkType3 {
				continuation = true
			} else {
				// A new header before the previous message was complete: the partial message is lost.
				a.demux.discard(csid)
			}
		}

		if chunk.Format() == ChunkType3 && a.demux.repeatsExtendedTimestamp(csid) {
			// Type 3 chunks repeat the extended timestamp of the header they inherit from.
			if _, err := a.reader.ReadExtendedTimestamp(); err != nil {
				return nil, err
			}
		}

		state, err := a.demux.apply(chunk, continuation)
		if err != nil {
			return nil, err
		}
		if !continuation {
			state.payload = make([]byte, 0, state.messageLength)
			state.bytesLeft = state.messageLength
		}

		n := state.bytesLeft
		if n > a.chunkSize {
			n = a.chunkSize
		}
		data, err := a.reader.ReadPayload(n)
		if err != nil {
			return nil, err
		}
		state.payload = append(state.payload, data...)
		state.bytesLeft -= n

		if state.bytesLeft == 0 {
			msg := state.message(csid, state.payload)
			state.payload = nil
			return msg, nil
		}
	}
}
