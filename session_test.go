package rtmp

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/torresjeff/rtmp-chunkstream/config"
	"go.uber.org/zap"
)

// bufferConn feeds a session canned input and records what it writes.
type bufferConn struct {
	in  io.Reader
	out bytes.Buffer
}

func (c *bufferConn) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *bufferConn) Write(p []byte) (int, error) { return c.out.Write(p) }

type recordingHandler struct {
	messages []*Message
	err      error
}

func (h *recordingHandler) HandleMessage(msg *Message, w MessageWriter) error {
	h.messages = append(h.messages, msg)
	return h.err
}

func newTestSession(t *testing.T, in []byte, handler Handler, opts ...SessionOption) (*Session, *bufferConn) {
	conn := &bufferConn{in: bytes.NewReader(in)}
	opts = append([]SessionOption{WithHandshaker(&handshakerMock{})}, opts...)
	session, err := NewSession(zap.NewNop(), conn, bufio.NewReader(conn), bufio.NewWriter(conn), handler, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return session, conn
}

func TestNewSession_NilBuffers(t *testing.T) {
	at := assert.New(t)
	conn := &bufferConn{in: bytes.NewReader(nil)}

	_, err := NewSession(nil, conn, nil, bufio.NewWriter(conn), nil)
	at.Equal(ErrNilReader, err)
	_, err = NewSession(nil, conn, bufio.NewReader(conn), nil, nil)
	at.Equal(ErrNilWriter, err)
}

func TestSession_HandshakeFailure(t *testing.T) {
	at := assert.New(t)
	handler := &recordingHandler{}
	session, _ := newTestSession(t, nil, handler, WithHandshaker(&handshakerMock{errDuringHandshake}))

	err := session.Start()
	at.Equal(errDuringHandshake, errors.Cause(err))
	at.Empty(handler.messages)
}

func TestSession_DispatchesUntilEOF(t *testing.T) {
	at := assert.New(t)
	in := concat(
		encodeChunk(t, 3, NewMessageHeader0(10, 5, CommandMessageAMF0, 0), []byte("hello")),
		encodeChunk(t, 3, NewMessageHeader3(), nil),
		encodeChunk(t, 4, NewMessageHeader0(0, 2, AudioMessage, 1), []byte{0xAF, 0x01}),
	)
	handler := &recordingHandler{}
	session, _ := newTestSession(t, in, handler)

	at.Nil(session.Start())
	at.Len(handler.messages, 3)
	at.Equal(CommandMessageAMF0, handler.messages[0].Type)
	at.Equal([]byte("hello"), handler.messages[0].Payload)
	at.Equal(uint32(10), handler.messages[0].Timestamp)
	// Type 3 chunk on the same chunk stream inherits the type and adds the delta
	at.Equal(CommandMessageAMF0, handler.messages[1].Type)
	at.Equal(uint32(20), handler.messages[1].Timestamp)
	at.Equal(AudioMessage, handler.messages[2].Type)
	at.Equal(uint64(len(in)), session.BytesRead())
}

func TestSession_ProtocolError(t *testing.T) {
	at := assert.New(t)
	in := encodeChunk(t, 3, NewMessageHeader3(), nil)
	handler := &recordingHandler{}
	session, _ := newTestSession(t, in, handler)

	err := session.Start()
	var protocolErr *ProtocolError
	at.True(errors.As(err, &protocolErr))
	at.True(errors.Is(err, ErrNoPreviousChunk))
	at.Empty(handler.messages)
}

func TestSession_TruncatedChunk(t *testing.T) {
	at := assert.New(t)
	in := encodeChunk(t, 3, NewMessageHeader0(0, 10, CommandMessageAMF0, 0), []byte{1, 2})
	session, _ := newTestSession(t, in, &recordingHandler{})

	err := session.Start()
	at.True(errors.Is(err, io.ErrUnexpectedEOF))
}

func TestSession_DropsUnknownMessageTypes(t *testing.T) {
	at := assert.New(t)
	in := concat(
		encodeChunk(t, 3, NewMessageHeader0(0, 1, MessageType(99), 0), []byte{1}),
		encodeChunk(t, 4, NewMessageHeader0(0, 1, VideoMessage, 1), []byte{0x17}),
	)
	handler := &recordingHandler{}
	session, _ := newTestSession(t, in, handler)

	at.Nil(session.Start())
	at.Len(handler.messages, 1)
	at.Equal(VideoMessage, handler.messages[0].Type)
}

func TestSession_HandlerErrorEndsSession(t *testing.T) {
	at := assert.New(t)
	errHandler := errors.New("handler failed")
	in := concat(
		encodeChunk(t, 4, NewMessageHeader0(0, 1, VideoMessage, 1), []byte{0x17}),
		encodeChunk(t, 4, NewMessageHeader0(0, 1, VideoMessage, 1), []byte{0x27}),
	)
	handler := &recordingHandler{err: errHandler}
	session, _ := newTestSession(t, in, handler)

	at.Equal(errHandler, session.Start())
	at.Len(handler.messages, 1)
}

func TestSession_Reassemble(t *testing.T) {
	at := assert.New(t)
	out := &flushBuffer{}
	cw := NewChunkWriter(out)
	payload := bytes.Repeat([]byte{0x42}, 1000)
	at.Nil(cw.WriteMessage(6, &Message{Type: VideoMessage, MessageStreamID: 1, Payload: payload}))
	// The peer raises its chunk size, the next message arrives in one chunk
	at.Nil(cw.WriteMessage(ProtocolChannel, NewSetChunkSizeMessage(4096)))
	cw.SetChunkSize(4096)
	at.Nil(cw.WriteMessage(6, &Message{Type: VideoMessage, MessageStreamID: 1, Payload: payload}))

	cfg := config.Default()
	cfg.Reassemble = true
	handler := &recordingHandler{}
	session, _ := newTestSession(t, out.Bytes(), handler, WithSessionConfig(cfg))

	at.Nil(session.Start())
	at.Len(handler.messages, 3)
	at.Equal(payload, handler.messages[0].Payload)
	at.Equal(SetChunkSize, handler.messages[1].Type)
	at.Equal(payload, handler.messages[2].Payload)
}

func TestSession_SendsAcknowledgements(t *testing.T) {
	at := assert.New(t)
	in := concat(
		encodeChunk(t, 2, NewMessageHeader0(0, 4, WindowAcknowledgementSize, 0), []byte{0, 0, 0, 20}),
		encodeChunk(t, 4, NewMessageHeader0(0, 10, AudioMessage, 1), make([]byte, 10)),
	)
	session, conn := newTestSession(t, in, &recordingHandler{})

	at.Nil(session.Start())

	expected := &flushBuffer{}
	at.Nil(NewChunkWriter(expected).WriteMessage(ProtocolChannel, NewAcknowledgementMessage(uint32(len(in)))))
	at.Equal(expected.Bytes(), conn.out.Bytes())
}

func TestSession_HandlerRepliesOnConnection(t *testing.T) {
	at := assert.New(t)
	in := encodeChunk(t, 3, NewMessageHeader0(0, 1, CommandMessageAMF0, 0), []byte{0})
	handler := HandlerFunc(func(msg *Message, w MessageWriter) error {
		return w.WriteMessage(ProtocolChannel, NewWindowAckSizeMessage(5000000))
	})
	session, conn := newTestSession(t, in, handler)

	at.Nil(session.Start())
	at.Equal(16, conn.out.Len())
	at.Equal(uint64(16), session.BytesWritten())
}

func TestSession_OverPipe(t *testing.T) {
	at := assert.New(t)
	client, server := net.Pipe()
	defer client.Close()

	cfg := config.Default()
	cfg.HandshakeTimeout = 5 * time.Second
	cfg.ReadTimeout = 5 * time.Second
	cfg.WriteTimeout = 5 * time.Second

	handler := &recordingHandler{}
	session, err := NewSession(zap.NewNop(), server, bufio.NewReader(server), bufio.NewWriter(server), handler, WithSessionConfig(cfg))
	at.Nil(err)
	at.NotEmpty(session.GetID())

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer server.Close()
		at.Nil(session.Start())
	}()

	hello, _ := clientHello(RtmpVersion3)
	go client.Write(hello)
	s0s1s2 := make([]byte, 1+2*handshakeMessageLength)
	_, err = io.ReadFull(client, s0s1s2)
	at.Nil(err)
	_, err = client.Write(s0s1s2[1 : 1+handshakeMessageLength])
	at.Nil(err)

	_, err = client.Write(encodeChunk(t, 3, NewMessageHeader0(0, 3, CommandMessageAMF0, 0), []byte{1, 2, 3}))
	at.Nil(err)
	client.Close()
	wg.Wait()

	at.Len(handler.messages, 1)
	at.Equal([]byte{1, 2, 3}, handler.messages[0].Payload)
}

func TestSession_Type3RepeatsExtendedTimestamp(t *testing.T) {
	at := assert.New(t)
	extended := []byte{0x01, 0x00, 0x00, 0x00}
	in := concat(
		encodeChunk(t, 4, NewMessageHeader0(0x01000000, 2, VideoMessage, 1), nil), extended, []byte{0x17, 0x01},
		encodeChunk(t, 4, NewMessageHeader3(), nil), extended,
		encodeChunk(t, 5, NewMessageHeader0(0, 1, AudioMessage, 1), []byte{0xAF}),
	)
	handler := &recordingHandler{}
	session, _ := newTestSession(t, in, handler)

	at.Nil(session.Start())
	at.Len(handler.messages, 3)
	at.Equal(uint32(0x01000000), handler.messages[0].Timestamp)
	at.Equal([]byte{0x17, 0x01}, handler.messages[0].Payload)
	at.Equal(VideoMessage, handler.messages[1].Type)
	at.Equal(uint32(0x02000000), handler.messages[1].Timestamp)
	at.Equal(AudioMessage, handler.messages[2].Type)
	at.Equal(uint64(len(in)), session.BytesRead())
}

// deadlineConn is a bufferConn with deadlines, failing when the deadline is cleared.
type deadlineConn struct {
	*bufferConn
	clearErr error
}

func (c *deadlineConn) SetDeadline(t time.Time) error {
	if t.IsZero() {
		return c.clearErr
	}
	return nil
}
func (c *deadlineConn) SetReadDeadline(time.Time) error  { return nil }
func (c *deadlineConn) SetWriteDeadline(time.Time) error { return nil }

func TestSession_ClearingHandshakeDeadlineFails(t *testing.T) {
	at := assert.New(t)
	errClear := errors.New("use of closed network connection")
	conn := &deadlineConn{bufferConn: &bufferConn{in: bytes.NewReader(nil)}, clearErr: errClear}
	handler := &recordingHandler{}
	session, err := NewSession(zap.NewNop(), conn, bufio.NewReader(conn), bufio.NewWriter(conn), handler,
		WithHandshaker(&handshakerMock{}))
	at.Nil(err)

	err = session.Start()
	at.Equal(errClear, errors.Cause(err))
	at.Empty(handler.messages)

	// The handshake's own error wins over the one clearing the deadline
	conn = &deadlineConn{bufferConn: &bufferConn{in: bytes.NewReader(nil)}, clearErr: errClear}
	session, err = NewSession(zap.NewNop(), conn, bufio.NewReader(conn), bufio.NewWriter(conn), handler,
		WithHandshaker(&handshakerMock{errDuringHandshake}))
	at.Nil(err)
	at.Equal(errDuringHandshake, errors.Cause(session.Start()))
}
