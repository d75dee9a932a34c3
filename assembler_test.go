package rtmp

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func newAssemblerOver(b []byte) *Assembler {
	return NewAssembler(chunkReaderOver(b), NewDemultiplexer())
}

func TestAssembler_ReadsWhatChunkWriterWrites(t *testing.T) {
	at := assert.New(t)
	out := &flushBuffer{}
	cw := NewChunkWriter(out)

	first := &Message{Type: VideoMessage, MessageStreamID: 1, Timestamp: 40, Payload: bytes.Repeat([]byte{0xAB}, 1000)}
	second := &Message{Type: AudioMessage, MessageStreamID: 1, Timestamp: 0x01000000, Payload: bytes.Repeat([]byte{0xCD}, 300)}
	at.Nil(cw.WriteMessage(6, first))
	at.Nil(cw.WriteMessage(4, second))

	a := newAssemblerOver(out.Bytes())

	msg, err := a.ReadMessage()
	at.Nil(err)
	at.Equal(VideoMessage, msg.Type)
	at.Equal(uint32(6), msg.ChunkStreamID)
	at.Equal(uint32(40), msg.Timestamp)
	at.Equal(uint32(1000), msg.Length)
	at.Equal(first.Payload, msg.Payload)

	msg, err = a.ReadMessage()
	at.Nil(err)
	at.Equal(AudioMessage, msg.Type)
	at.Equal(uint32(0x01000000), msg.Timestamp)
	at.Equal(second.Payload, msg.Payload)

	_, err = a.ReadMessage()
	at.True(errors.Is(err, io.EOF))
}

func TestAssembler_InterleavedChunkStreams(t *testing.T) {
	at := assert.New(t)
	long := bytes.Repeat([]byte{1}, 200)
	short := []byte{2, 2, 2}
	in := concat(
		encodeChunk(t, 4, NewMessageHeader0(0, 200, VideoMessage, 1), long[:128]),
		encodeChunk(t, 5, NewMessageHeader0(0, 3, AudioMessage, 1), short),
		encodeChunk(t, 4, NewMessageHeader3(), long[128:]),
	)
	a := newAssemblerOver(in)

	msg, err := a.ReadMessage()
	at.Nil(err)
	at.Equal(uint32(5), msg.ChunkStreamID)
	at.Equal(short, msg.Payload)

	msg, err = a.ReadMessage()
	at.Nil(err)
	at.Equal(uint32(4), msg.ChunkStreamID)
	at.Equal(long, msg.Payload)
}

func TestAssembler_NewHeaderDiscardsPartialMessage(t *testing.T) {
	at := assert.New(t)
	in := concat(
		encodeChunk(t, 4, NewMessageHeader0(0, 200, VideoMessage, 1), bytes.Repeat([]byte{1}, 128)),
		encodeChunk(t, 4, NewMessageHeader1(10, 2, AudioMessage), []byte{7, 8}),
	)
	msg, err := newAssemblerOver(in).ReadMessage()
	at.Nil(err)
	at.Equal(AudioMessage, msg.Type)
	at.Equal([]byte{7, 8}, msg.Payload)
	at.Equal(uint32(10), msg.Timestamp)
}

func TestAssembler_Abort(t *testing.T) {
	at := assert.New(t)
	partial := encodeChunk(t, 4, NewMessageHeader0(0, 200, VideoMessage, 1), bytes.Repeat([]byte{1}, 128))
	control := encodeChunk(t, 2, NewMessageHeader0(0, 4, AbortMessage, 0), []byte{0, 0, 0, 4})
	// After the abort, a type 3 chunk on csid 4 starts a new message of the same length
	restart := encodeChunk(t, 4, NewMessageHeader3(), bytes.Repeat([]byte{9}, 128))

	a := newAssemblerOver(concat(partial, control, restart))
	msg, err := a.ReadMessage()
	at.Nil(err)
	at.Equal(AbortMessage, msg.Type)

	csid, err := DecodeAbortMessage(msg.Payload)
	at.Nil(err)
	a.Abort(csid)

	_, err = a.ReadMessage()
	// Only 128 of the 200 bytes of the restarted message are available
	at.True(errors.Is(err, io.EOF))
}

func TestAssembler_SetChunkSize(t *testing.T) {
	at := assert.New(t)
	payload := bytes.Repeat([]byte{3}, 1000)
	in := encodeChunk(t, 6, NewMessageHeader0(0, 1000, VideoMessage, 1), payload)

	a := newAssemblerOver(in)
	a.SetChunkSize(0)
	at.Equal(uint32(DefaultChunkSize), a.ChunkSize())
	a.SetChunkSize(4096)

	msg, err := a.ReadMessage()
	at.Nil(err)
	at.Equal(payload, msg.Payload)
}

func TestAssembler_Type3WithoutState(t *testing.T) {
	at := assert.New(t)
	_, err := newAssemblerOver(encodeChunk(t, 4, NewMessageHeader3(), nil)).ReadMessage()
	at.True(errors.Is(err, ErrNoPreviousChunk))
}
