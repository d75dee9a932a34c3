package rtmp

import (
	"bufio"
	"io"
)

type Flusher interface {
	Flush() error
}

type WriteFlusher interface {
	io.Writer
	Flusher
}

// Writer buffers outgoing bytes. Nothing reaches the connection until Flush is called.
type Writer struct {
	writer *bufio.Writer
	n      uint64
}

func NewWriter(writer *bufio.Writer) (*Writer, error) {
	if writer == nil {
		return nil, ErrNilWriter
	}
	return &Writer{writer: writer}, nil
}

// Write writes the contents of p into the underlying bufio.Writer.
// If n < len(p), it also returns an error explaining why the write is short.
func (w *Writer) Write(p []byte) (n int, err error) {
	n, err = w.writer.Write(p)
	w.n += uint64(n)
	return n, err
}

// Flush writes any buffered data to the underlying connection.
func (w *Writer) Flush() error {
	return w.writer.Flush()
}

// BytesWritten returns the number of bytes accepted by Write since the Writer was created.
func (w *Writer) BytesWritten() uint64 {
	return w.n
}
