package rtmp

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// encodeChunk returns the wire bytes of a single chunk.
func encodeChunk(t *testing.T, csid uint32, h MessageHeader, payload []byte) []byte {
	basic, err := EncodeBasicHeader(h.Format(), csid)
	if err != nil {
		t.Fatal(err)
	}
	return concat(basic, h.Encode(), payload)
}

func TestChunkReader_ReadChunkType0(t *testing.T) {
	at := assert.New(t)
	payload := []byte("hello")
	cr := chunkReaderOver(encodeChunk(t, 3, NewMessageHeader0(10, 5, CommandMessageAMF0, 0), payload))

	chunk, err := cr.ReadChunk()
	at.Nil(err)
	at.Equal(ChunkType0, chunk.Format())
	at.Equal(uint32(3), chunk.ChunkStreamID())
	at.Equal(payload, chunk.Payload)

	_, err = cr.ReadChunk()
	at.True(errors.Is(err, io.EOF))
}

func TestChunkReader_TypesWithoutLengthCarryNoPayload(t *testing.T) {
	at := assert.New(t)
	in := concat(
		encodeChunk(t, 4, NewMessageHeader2(20), nil),
		encodeChunk(t, 4, NewMessageHeader3(), nil),
		encodeChunk(t, 4, NewMessageHeader1(0, 0, AudioMessage), nil),
	)
	cr := chunkReaderOver(in)

	for _, want := range []ChunkType{ChunkType2, ChunkType3, ChunkType1} {
		chunk, err := cr.ReadChunk()
		at.Nil(err)
		at.Equal(want, chunk.Format())
		at.Empty(chunk.Payload)
	}
}

func TestChunkReader_ExtendedTimestamp(t *testing.T) {
	at := assert.New(t)
	in := concat(
		encodeChunk(t, 5, NewMessageHeader0(0x01020304, 1, AudioMessage, 1), nil),
		[]byte{0x01, 0x02, 0x03, 0x04},
		[]byte{0xAF},
	)
	chunk, err := chunkReaderOver(in).ReadChunk()
	at.Nil(err)
	at.True(chunk.MessageHeader.HasExtendedTimestamp())
	at.Equal(uint32(0x01020304), chunk.ExtendedTimestamp)
	at.Equal([]byte{0xAF}, chunk.Payload)

	ts, ok := chunk.timestampField()
	at.True(ok)
	at.Equal(uint32(0x01020304), ts)
}

func TestChunkReader_ShortPayload(t *testing.T) {
	at := assert.New(t)
	in := encodeChunk(t, 3, NewMessageHeader0(0, 10, VideoMessage, 1), []byte{1, 2, 3})

	chunk, err := chunkReaderOver(in).ReadChunk()
	at.Nil(chunk)
	var ioErr *IOError
	at.True(errors.As(err, &ioErr))
	at.Equal("read chunk payload", ioErr.Op)
	at.Equal(io.ErrUnexpectedEOF, ioErr.Err)
}

func TestChunkReader_TruncatedHeader(t *testing.T) {
	at := assert.New(t)
	_, err := chunkReaderOver([]byte{0x03, 0x00, 0x00}).ReadChunk()
	at.True(errors.Is(err, io.ErrUnexpectedEOF))
	at.False(errors.Is(err, io.EOF))
}
