package rtmp

import (
	"bufio"
	"io"
)

type Reader struct {
	reader *bufio.Reader
	n      uint64
}

type ByteCounter interface {
	BytesRead() uint64
}

// ReadByteReaderCounter is the interface that groups io.Reader, io.ByteReader, and ByteCounter.
// Chunk decoding needs byte-at-a-time reads for the basic header and exact reads for everything else.
type ReadByteReaderCounter interface {
	io.Reader
	io.ByteReader
	ByteCounter
}

func NewReader(reader *bufio.Reader) (*Reader, error) {
	if reader == nil {
		return nil, ErrNilReader
	}
	return &Reader{reader: reader}, nil
}

// Read reads exactly len(p) bytes from the underlying bufio.Reader into p.
// The error is EOF only if no bytes were read. If an EOF happens after reading some but not all the
// bytes, Read returns io.ErrUnexpectedEOF.
// On return, n == len(p) if and only if err == nil.
func (r *Reader) Read(p []byte) (n int, err error) {
	n, err = io.ReadFull(r.reader, p)
	r.n += uint64(n)
	return n, err
}

// ReadByte reads and returns a single byte from the underlying bufio.Reader.
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.reader.ReadByte()
	if err == nil {
		r.n++
	}
	return b, err
}

// BytesRead returns the number of bytes read since the Reader was created.
func (r *Reader) BytesRead() uint64 {
	return r.n
}
