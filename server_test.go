package rtmp

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// clientHandshake performs the client side of the handshake on conn.
func clientHandshake(t *testing.T, conn net.Conn) {
	hello, _ := clientHello(RtmpVersion3)
	if _, err := conn.Write(hello); err != nil {
		t.Fatal(err)
	}
	s0s1s2 := make([]byte, 1+2*handshakeMessageLength)
	if _, err := io.ReadFull(conn, s0s1s2); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Write(s0s1s2[1 : 1+handshakeMessageLength]); err != nil {
		t.Fatal(err)
	}
}

func TestServer_ServeAndClose(t *testing.T) {
	at := assert.New(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	at.Nil(err)

	received := make(chan *Message, 1)
	server := &Server{
		Logger: zap.NewNop(),
		Handler: HandlerFunc(func(msg *Message, w MessageWriter) error {
			received <- msg
			return nil
		}),
	}
	served := make(chan error, 1)
	go func() {
		served <- server.Serve(listener)
	}()

	conn, err := net.Dial("tcp", listener.Addr().String())
	at.Nil(err)
	defer conn.Close()
	clientHandshake(t, conn)

	_, err = conn.Write(encodeChunk(t, 3, NewMessageHeader0(0, 2, CommandMessageAMF0, 0), []byte{5, 5}))
	at.Nil(err)

	select {
	case msg := <-received:
		at.Equal(CommandMessageAMF0, msg.Type)
		at.Equal([]byte{5, 5}, msg.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("message was not dispatched")
	}
	at.Equal(int64(1), server.ActiveSessions())

	at.Nil(server.Close())
	at.Equal(ErrServerClosed, <-served)
	at.Equal(int64(0), server.ActiveSessions())

	// The session's connection was closed by the server
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err = conn.Read(make([]byte, 1))
	at.NotNil(err)

	// Closing twice is harmless
	at.Nil(server.Close())
}

func TestServer_ServeAfterClose(t *testing.T) {
	at := assert.New(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	at.Nil(err)

	server := &Server{}
	at.Nil(server.Close())
	at.Equal(ErrServerClosed, server.Serve(listener))
}

// failingListener fails every Accept until it is closed.
type failingListener struct {
	accepts atomic.Int64
	closed  chan struct{}
}

func (l *failingListener) Accept() (net.Conn, error) {
	l.accepts.Inc()
	select {
	case <-l.closed:
		return nil, net.ErrClosed
	default:
		return nil, errors.New("too many open files")
	}
}

func (l *failingListener) Close() error {
	close(l.closed)
	return nil
}

func (l *failingListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1935}
}

func TestServer_AcceptErrorsBackOff(t *testing.T) {
	at := assert.New(t)
	listener := &failingListener{closed: make(chan struct{})}
	server := &Server{Logger: zap.NewNop()}
	served := make(chan error, 1)
	go func() {
		served <- server.Serve(listener)
	}()

	time.Sleep(50 * time.Millisecond)
	// 5ms, 10ms, 20ms... without the delay this would be in the millions
	at.Less(listener.accepts.Load(), int64(10))

	at.Nil(server.Close())
	select {
	case err := <-served:
		at.Equal(ErrServerClosed, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve didn't return after Close")
	}
}
