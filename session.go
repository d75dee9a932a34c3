package rtmp

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmp-chunkstream/config"
	"github.com/torresjeff/rtmp-chunkstream/metrics"
	"github.com/torresjeff/rtmp-chunkstream/rand"
	"go.uber.org/zap"
)

// deadliner is implemented by net.Conn. Connections that don't implement it run without timeouts.
type deadliner interface {
	SetDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

type SessionOption func(*Session)

// WithSessionConfig sets the timeouts and the framing mode of the session.
func WithSessionConfig(cfg *config.Config) SessionOption {
	return func(s *Session) { s.config = cfg }
}

// WithHandshaker replaces the default ServerHandshaker.
func WithHandshaker(h Handshaker) SessionOption {
	return func(s *Session) { s.handshaker = h }
}

func WithMetrics(c *metrics.Collector) SessionOption {
	return func(s *Session) { s.metrics = c }
}

// Session represents a connection made with the RTMP server where messages are exchanged between
// client and server. It runs the handshake and then reads chunks until the connection ends, handing
// every message of a known type to its Handler.
type Session struct {
	logger     *zap.Logger
	sessionID  string
	conn       io.ReadWriter
	reader     *Reader
	writer     *Writer
	handshaker Handshaker
	handler    Handler
	metrics    *metrics.Collector
	config     *config.Config

	chunkReader *ChunkReader
	demux       *Demultiplexer
	// assembler is nil unless messages are reassembled from multiple chunks.
	assembler   *Assembler
	chunkWriter *ChunkWriter

	// windowAckSize is the acknowledgement window announced by the peer, 0 until it sends one.
	windowAckSize uint32
	// lastAck is the byte count reported in the last Acknowledgement we sent.
	lastAck uint64
}

// NewSession creates a session over conn. socketr and socketw must wrap conn. A nil handler drops every
// message after logging it.
func NewSession(logger *zap.Logger, conn io.ReadWriter, socketr *bufio.Reader, socketw *bufio.Writer, handler Handler, opts ...SessionOption) (*Session, error) {
	reader, err := NewReader(socketr)
	if err != nil {
		return nil, err
	}
	writer, err := NewWriter(socketw)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	session := &Session{
		sessionID: rand.GenerateUuid(),
		conn:      conn,
		reader:    reader,
		writer:    writer,
		handler:   handler,
	}
	for _, opt := range opts {
		opt(session)
	}
	if session.config == nil {
		session.config = config.Default()
	}
	session.logger = logger.With(zap.String("session", session.sessionID))
	if session.handshaker == nil {
		session.handshaker = NewServerHandshaker(
			WithStrictVersion(session.config.StrictVersion),
			WithHandshakeLogger(session.logger),
		)
	}

	session.chunkReader = NewChunkReader(reader)
	session.demux = NewDemultiplexer()
	if session.config.Reassemble {
		session.assembler = NewAssembler(session.chunkReader, session.demux)
	}
	session.chunkWriter = NewChunkWriter(writer)
	if d, ok := conn.(deadliner); ok && session.config.WriteTimeout > 0 {
		timeout := session.config.WriteTimeout
		session.chunkWriter.beforeWrite = func() error {
			return d.SetWriteDeadline(time.Now().Add(timeout))
		}
	}
	return session, nil
}

func (session *Session) GetID() string {
	return session.sessionID
}

// BytesRead returns the number of bytes read from the connection, handshake included.
func (session *Session) BytesRead() uint64 {
	return session.reader.BytesRead()
}

func (session *Session) BytesWritten() uint64 {
	return session.writer.BytesWritten()
}

// Start performs the handshake and then reads and dispatches messages until the peer disconnects or an
// error occurs. A disconnect between two chunks returns nil. Any other read failure, a protocol violation
// or a handler error ends the session with that error. Start never closes the connection.
func (session *Session) Start() error {
	session.metrics.SessionStarted()
	defer func() {
		session.metrics.SessionEnded()
		session.metrics.AddBytes(session.reader.BytesRead(), session.writer.BytesWritten())
	}()

	if err := session.handshake(); err != nil {
		session.metrics.HandshakeFailed()
		return errors.Wrap(err, "handshake")
	}
	session.logger.Debug("[session] handshake completed successfully")

	// After handshake, start reading chunks
	for {
		msg, err := session.nextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				session.logger.Debug("[session] peer closed the connection")
				return nil
			}
			var protocolErr *ProtocolError
			if errors.As(err, &protocolErr) {
				session.metrics.ProtocolError()
			}
			return err
		}
		if err := session.dispatch(msg); err != nil {
			return err
		}
		if err := session.acknowledge(); err != nil {
			return err
		}
	}
}

func (session *Session) handshake() (err error) {
	d, ok := session.conn.(deadliner)
	if ok && session.config.HandshakeTimeout > 0 {
		if err := d.SetDeadline(time.Now().Add(session.config.HandshakeTimeout)); err != nil {
			return err
		}
		// Clear the deadline once the handshake is over, the read and write timeouts take it from here.
		defer func() {
			if resetErr := d.SetDeadline(time.Time{}); resetErr != nil && err == nil {
				err = errors.Wrap(resetErr, "clear handshake deadline")
			}
		}()
	}
	return session.handshaker.Handshake(session.reader, session.writer)
}

// nextMessage reads the next message. Without reassembly every chunk is one message; with it, chunks
// are collected until a message is complete.
func (session *Session) nextMessage() (*Message, error) {
	if d, ok := session.conn.(deadliner); ok && session.config.ReadTimeout > 0 {
		if err := d.SetReadDeadline(time.Now().Add(session.config.ReadTimeout)); err != nil {
			return nil, err
		}
	}

	if session.assembler != nil {
		return session.assembler.ReadMessage()
	}

	chunk, err := session.readChunk()
	if err != nil {
		return nil, err
	}
	session.metrics.ChunkRead(uint8(chunk.Format()))
	return session.demux.Resolve(chunk)
}

// readChunk is ChunkReader.ReadChunk plus the extended timestamp that a type 3 chunk repeats after a
// header that carried one. Only the Demultiplexer knows about that header.
func (session *Session) readChunk() (*Chunk, error) {
	chunk, err := session.chunkReader.ReadChunkHeader()
	if err != nil {
		return nil, err
	}
	if chunk.Format() == ChunkType3 && session.demux.repeatsExtendedTimestamp(chunk.ChunkStreamID()) {
		if _, err := session.chunkReader.ReadExtendedTimestamp(); err != nil {
			return nil, err
		}
	}
	if length, ok := chunk.MessageHeader.MessageLength(); ok {
		if chunk.Payload, err = session.chunkReader.ReadPayload(length); err != nil {
			return nil, err
		}
	}
	return chunk, nil
}

func (session *Session) dispatch(msg *Message) error {
	if !msg.Type.Known() {
		session.logger.Warn(fmt.Sprint("[session] unhandled message type ", uint8(msg.Type), ", dropping it"),
			zap.Uint32("csid", msg.ChunkStreamID),
			zap.Int("length", len(msg.Payload)),
		)
		session.metrics.MessageDropped(msg.Type.String())
		return nil
	}
	session.metrics.MessageReceived(msg.Type.String())
	session.logger.Debug("[session] received message",
		zap.Stringer("type", msg.Type),
		zap.Uint32("csid", msg.ChunkStreamID),
		zap.Uint32("timestamp", msg.Timestamp),
		zap.Int("length", len(msg.Payload)),
	)

	session.applyControl(msg)
	if session.handler == nil {
		return nil
	}
	return session.handler.HandleMessage(msg, session.chunkWriter)
}

// applyControl applies the protocol control messages that change how this session reads: the peer's
// acknowledgement window and, when reassembling, its chunk size and aborted messages.
func (session *Session) applyControl(msg *Message) {
	switch msg.Type {
	case WindowAcknowledgementSize:
		size, err := DecodeWindowAckSize(msg.Payload)
		if err != nil {
			session.logger.Warn("[session] malformed WindowAcknowledgementSize", zap.Error(err))
			return
		}
		session.windowAckSize = size
	case SetChunkSize:
		if session.assembler == nil {
			return
		}
		size, err := DecodeSetChunkSize(msg.Payload)
		if err != nil {
			session.logger.Warn("[session] malformed SetChunkSize", zap.Error(err))
			return
		}
		session.assembler.SetChunkSize(size)
		session.logger.Debug(fmt.Sprint("[session] inbound chunk size set to ", size))
	case AbortMessage:
		if session.assembler == nil {
			return
		}
		csid, err := DecodeAbortMessage(msg.Payload)
		if err != nil {
			session.logger.Warn("[session] malformed AbortMessage", zap.Error(err))
			return
		}
		session.assembler.Abort(csid)
	}
}

// acknowledge sends an Acknowledgement each time another window of bytes has been received.
func (session *Session) acknowledge() error {
	if session.windowAckSize == 0 {
		return nil
	}
	received := session.reader.BytesRead()
	if received-session.lastAck < uint64(session.windowAckSize) {
		return nil
	}
	session.lastAck = received
	// The sequence number is the number of bytes received so far; it wraps at 32 bits.
	return session.chunkWriter.WriteMessage(ProtocolChannel, NewAcknowledgementMessage(uint32(received)))
}
