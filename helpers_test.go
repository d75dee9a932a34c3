package rtmp

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// flushBuffer is a WriteFlusher that records everything written to it and how many times it was flushed.
type flushBuffer struct {
	bytes.Buffer
	flushes int
}

func (b *flushBuffer) Flush() error {
	b.flushes++
	return nil
}

type handshakerMock struct {
	err error
}

var errDuringHandshake = errors.New("error during handshake")

func (h *handshakerMock) Handshake(io.Reader, WriteFlusher) error {
	return h.err
}

// chunkReaderOver returns a ChunkReader over the given bytes.
func chunkReaderOver(b []byte) *ChunkReader {
	return NewChunkReader(bufio.NewReader(bytes.NewReader(b)))
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
