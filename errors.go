package rtmp

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrNilWriter = errors.New("expected a non-nil writer, but got a nil value")
var ErrNilReader = errors.New("expected a non-nil reader, but got a nil value")

var ErrInvalidChunkStreamID = errors.New("chunk stream id out of range")
var ErrInvalidChunkType = errors.New("unknown chunk type")
var ErrNoPreviousChunk = errors.New("received chunk type that depends on a previous chunk, but no previous chunk was found")
var ErrUnsupportedRTMPVersion = errors.New("the version of RTMP is not supported")
var ErrShortPayload = errors.New("payload is shorter than the message requires")

// IOError is returned when a read, write or flush on the connection fails in the middle of
// decoding or encoding. It is always fatal to the session that produced it.
type IOError struct {
	// Op names the step that failed, e.g. "read basic header" or "write S1".
	Op  string
	Err error
}

func newIOError(op string, err error) *IOError {
	return &IOError{Op: op, Err: err}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("rtmp: %s: %v", e.Op, e.Err)
}

// Cause lets errors.Cause from github.com/pkg/errors reach the underlying io error.
func (e *IOError) Cause() error { return e.Err }

func (e *IOError) Unwrap() error { return e.Err }

// ProtocolError reports a peer that violated the chunk stream protocol, e.g. a compressed
// header on a chunk stream that was never initialized. It terminates the session, never the process.
type ProtocolError struct {
	ChunkStreamID uint32
	Format        ChunkType
	Err           error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("rtmp: protocol error on chunk stream %d (fmt %d): %v", e.ChunkStreamID, e.Format, e.Err)
}

func (e *ProtocolError) Cause() error { return e.Err }

func (e *ProtocolError) Unwrap() error { return e.Err }
