package rtmp

// chunkStreamState is what a connection remembers about one chunk stream ID. Type 1, 2 and 3 chunks omit
// fields from the wire and take them from here.
type chunkStreamState struct {
	messageType     MessageType
	messageStreamID uint32
	messageLength   uint32
	timestamp       uint32
	timestampDelta  uint32
	// extended is true when the last type 0, 1 or 2 header on this chunk stream used an extended
	// timestamp, which type 3 chunks of the same message repeat on the wire.
	extended bool

	// Reassembly progress, only used by the Assembler.
	payload   []byte
	bytesLeft uint32
}

func (s *chunkStreamState) message(chunkStreamID uint32, payload []byte) *Message {
	return &Message{
		Type:            s.messageType,
		ChunkStreamID:   chunkStreamID,
		MessageStreamID: s.messageStreamID,
		Timestamp:       s.timestamp,
		Length:          s.messageLength,
		Payload:         payload,
	}
}

// Demultiplexer tracks per chunk stream state for one connection so that compressed headers can be
// resolved. It is owned by a single session and is not safe for concurrent use.
type Demultiplexer struct {
	// The key is the chunk stream ID.
	streams map[uint32]*chunkStreamState
}

func NewDemultiplexer() *Demultiplexer {
	return &Demultiplexer{streams: make(map[uint32]*chunkStreamState)}
}

// Resolve turns a chunk into a message, taking the fields its header omits from the previous chunk on
// the same chunk stream ID. Type 0 and 1 chunks carry their own message type; type 2 and 3 chunks
// inherit it and fail with a *ProtocolError if nothing was received on that chunk stream before.
// On success the chunk stream's state is updated, whatever the chunk type.
func (d *Demultiplexer) Resolve(chunk *Chunk) (*Message, error) {
	state, err := d.apply(chunk, false)
	if err != nil {
		return nil, err
	}
	return state.message(chunk.ChunkStreamID(), chunk.Payload), nil
}

// LastMessageType returns the message type most recently resolved on a chunk stream.
func (d *Demultiplexer) LastMessageType(chunkStreamID uint32) (MessageType, bool) {
	state, ok := d.streams[chunkStreamID]
	if !ok {
		return 0, false
	}
	return state.messageType, true
}

// Len returns the number of chunk streams seen so far.
func (d *Demultiplexer) Len() int {
	return len(d.streams)
}

// apply merges the chunk's header into the state of its chunk stream. continuation is true when the
// chunk is a type 3 chunk carrying the next part of a message that is being reassembled, in which case
// the timestamp doesn't move.
func (d *Demultiplexer) apply(chunk *Chunk, continuation bool) (*chunkStreamState, error) {
	csid := chunk.ChunkStreamID()
	chunkType := chunk.Format()
	state, exists := d.streams[csid]
	if !exists {
		if chunkType == ChunkType2 || chunkType == ChunkType3 {
			return nil, &ProtocolError{ChunkStreamID: csid, Format: chunkType, Err: ErrNoPreviousChunk}
		}
		state = &chunkStreamState{}
	}

	header := chunk.MessageHeader
	timestamp, _ := chunk.timestampField()
	switch chunkType {
	case ChunkType0:
		state.messageType, _ = header.MessageTypeID()
		state.messageLength, _ = header.MessageLength()
		state.messageStreamID, _ = header.MessageStreamID()
		state.timestamp = timestamp
		// If a type 3 chunk follows a type 0 chunk, its delta is the absolute timestamp of the type 0 chunk.
		state.timestampDelta = timestamp
		state.extended = header.HasExtendedTimestamp()
	case ChunkType1:
		state.messageType, _ = header.MessageTypeID()
		state.messageLength, _ = header.MessageLength()
		// Handling overflows is unnecessary because Go automatically wraps around
		state.timestamp += timestamp
		state.timestampDelta = timestamp
		state.extended = header.HasExtendedTimestamp()
	case ChunkType2:
		state.timestamp += timestamp
		state.timestampDelta = timestamp
		state.extended = header.HasExtendedTimestamp()
	case ChunkType3:
		if !continuation {
			state.timestamp += state.timestampDelta
		}
	}

	d.streams[csid] = state
	return state, nil
}

// inProgress reports whether a message on the chunk stream is partially reassembled.
func (d *Demultiplexer) inProgress(chunkStreamID uint32) bool {
	state, ok := d.streams[chunkStreamID]
	return ok && state.bytesLeft > 0
}

// repeatsExtendedTimestamp reports whether a type 3 chunk on the chunk stream is followed by a copy of
// the extended timestamp of the header it inherits from.
func (d *Demultiplexer) repeatsExtendedTimestamp(chunkStreamID uint32) bool {
	state, ok := d.streams[chunkStreamID]
	return ok && state.extended
}

// discard drops a partially reassembled message, keeping the header state of the chunk stream.
func (d *Demultiplexer) discard(chunkStreamID uint32) {
	if state, ok := d.streams[chunkStreamID]; ok {
		state.payload = nil
		state.bytesLeft = 0
	}
}
