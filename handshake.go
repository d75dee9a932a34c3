package rtmp

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/torresjeff/rtmp-chunkstream/rand"
	"go.uber.org/zap"
)

const RtmpVersion3 = 3

const (
	handshakeTimeLength    = 4
	handshakeRandomLength  = 1528
	handshakeMessageLength = 2*handshakeTimeLength + handshakeRandomLength
)

// HandshakeStage is the position of a ServerHandshaker in the handshake sequence.
type HandshakeStage uint8

const (
	AwaitC0 HandshakeStage = iota
	SendS0
	SendS1
	AwaitC1
	SendS2
	AwaitC2
	HandshakeDone
)

func (s HandshakeStage) String() string {
	switch s {
	case AwaitC0:
		return "AwaitC0"
	case SendS0:
		return "SendS0"
	case SendS1:
		return "SendS1"
	case AwaitC1:
		return "AwaitC1"
	case SendS2:
		return "SendS2"
	case AwaitC2:
		return "AwaitC2"
	case HandshakeDone:
		return "Done"
	default:
		return "HandshakeStage(unknown)"
	}
}

// Handshaker performs the handshake that must complete before any chunk is exchanged.
type Handshaker interface {
	Handshake(reader io.Reader, writer WriteFlusher) error
}

// HandshakeChunk0 is C0 or S0: the RTMP version requested by the client or chosen by the server.
type HandshakeChunk0 struct {
	Version byte
}

// HandshakeChunk1 is C1 or S1.
type HandshakeChunk1 struct {
	// Time is the sender's epoch for all future chunks, in milliseconds.
	Time   uint32
	Zero   uint32
	Random [handshakeRandomLength]byte
}

func (c *HandshakeChunk1) marshal() []byte {
	buf := make([]byte, handshakeMessageLength)
	binary.BigEndian.PutUint32(buf[0:4], c.Time)
	binary.BigEndian.PutUint32(buf[4:8], c.Zero)
	copy(buf[8:], c.Random[:])
	return buf
}

func (c *HandshakeChunk1) unmarshal(buf []byte) {
	c.Time = binary.BigEndian.Uint32(buf[0:4])
	c.Zero = binary.BigEndian.Uint32(buf[4:8])
	copy(c.Random[:], buf[8:])
}

// HandshakeChunk2 is C2 or S2, the echo of the peer's C1 or S1.
type HandshakeChunk2 struct {
	// Time is the timestamp of the echoed C1/S1.
	Time uint32
	// Time2 is the time at which the echoed C1/S1 was read.
	Time2      uint32
	RandomEcho [handshakeRandomLength]byte
}

func (c *HandshakeChunk2) marshal() []byte {
	buf := make([]byte, handshakeMessageLength)
	binary.BigEndian.PutUint32(buf[0:4], c.Time)
	binary.BigEndian.PutUint32(buf[4:8], c.Time2)
	copy(buf[8:], c.RandomEcho[:])
	return buf
}

func (c *HandshakeChunk2) unmarshal(buf []byte) {
	c.Time = binary.BigEndian.Uint32(buf[0:4])
	c.Time2 = binary.BigEndian.Uint32(buf[4:8])
	copy(c.RandomEcho[:], buf[8:])
}

// HandshakeState holds every message exchanged during one handshake.
type HandshakeState struct {
	C0 HandshakeChunk0
	C1 HandshakeChunk1
	C2 HandshakeChunk2
	S0 HandshakeChunk0
	S1 HandshakeChunk1
	S2 HandshakeChunk2
}

type HandshakeOption func(*ServerHandshaker)

// WithClock replaces time.Now as the source of the S1 timestamp.
func WithClock(clock func() time.Time) HandshakeOption {
	return func(h *ServerHandshaker) { h.clock = clock }
}

// WithRandomSource replaces crypto/rand as the source of the S1 random block.
func WithRandomSource(random func([]byte) error) HandshakeOption {
	return func(h *ServerHandshaker) { h.random = random }
}

// WithStrictVersion makes the handshake fail when C0 asks for a version other than 3.
func WithStrictVersion(strict bool) HandshakeOption {
	return func(h *ServerHandshaker) { h.strictVersion = strict }
}

func WithHandshakeLogger(logger *zap.Logger) HandshakeOption {
	return func(h *ServerHandshaker) { h.logger = logger.Sugar() }
}

// ServerHandshaker performs the server side of the simple (non-digest) handshake:
//
//	AwaitC0 -> SendS0 -> SendS1 -> AwaitC1 -> SendS2 -> AwaitC2 -> Done
//
// A ServerHandshaker is used for a single connection. Any read or write failure aborts the handshake and
// leaves Stage at the step that failed.
type ServerHandshaker struct {
	logger        *zap.SugaredLogger
	clock         func() time.Time
	random        func([]byte) error
	strictVersion bool

	stage HandshakeStage
	state HandshakeState
}

func NewServerHandshaker(opts ...HandshakeOption) *ServerHandshaker {
	h := &ServerHandshaker{
		logger: zap.NewNop().Sugar(),
		clock:  time.Now,
		random: rand.GenerateCryptoSafeRandomData,
		stage:  AwaitC0,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ServerHandshaker) Stage() HandshakeStage {
	return h.stage
}

// State returns the messages exchanged so far.
func (h *ServerHandshaker) State() *HandshakeState {
	return &h.state
}

// Handshake runs the remaining stages. The client version in C0 is accepted as is unless strict version
// checking was requested; S0 always announces version 3.
func (h *ServerHandshaker) Handshake(reader io.Reader, writer WriteFlusher) error {
	for h.stage != HandshakeDone {
		if err := h.step(reader, writer); err != nil {
			h.logger.Debugf("[handshake] failed at stage %s: %v", h.stage, err)
			return err
		}
	}
	h.logger.Debug("[handshake] completed")
	return nil
}

func (h *ServerHandshaker) step(reader io.Reader, writer WriteFlusher) error {
	switch h.stage {
	case AwaitC0:
		var c0 [1]byte
		if _, err := io.ReadFull(reader, c0[:]); err != nil {
			return newIOError("read C0", err)
		}
		h.state.C0.Version = c0[0]
		if h.strictVersion && c0[0] != RtmpVersion3 {
			return &ProtocolError{Err: ErrUnsupportedRTMPVersion}
		}
		h.stage = SendS0
	case SendS0:
		h.state.S0.Version = RtmpVersion3
		if _, err := writer.Write([]byte{h.state.S0.Version}); err != nil {
			return newIOError("write S0", err)
		}
		h.stage = SendS1
	case SendS1:
		h.state.S1.Time = uint32(h.clock().UnixMilli())
		h.state.S1.Zero = 0
		if err := h.random(h.state.S1.Random[:]); err != nil {
			return err
		}
		if err := send(writer, h.state.S1.marshal()); err != nil {
			return newIOError("write S1", err)
		}
		h.stage = AwaitC1
	case AwaitC1:
		var c1 [handshakeMessageLength]byte
		if _, err := io.ReadFull(reader, c1[:]); err != nil {
			return newIOError("read C1", unexpectedEOF(err))
		}
		h.state.C1.unmarshal(c1[:])
		h.stage = SendS2
	case SendS2:
		// S2 is an echo of C1: its time, a zero time2 and the exact random block.
		h.state.S2.Time = h.state.C1.Time
		h.state.S2.Time2 = 0
		h.state.S2.RandomEcho = h.state.C1.Random
		if err := send(writer, h.state.S2.marshal()); err != nil {
			return newIOError("write S2", err)
		}
		h.stage = AwaitC2
	case AwaitC2:
		var c2 [handshakeMessageLength]byte
		if _, err := io.ReadFull(reader, c2[:]); err != nil {
			return newIOError("read C2", unexpectedEOF(err))
		}
		// C2 content is not validated.
		h.state.C2.unmarshal(c2[:])
		h.stage = HandshakeDone
	}
	return nil
}

func send(writer WriteFlusher, bytes []byte) error {
	if _, err := writer.Write(bytes); err != nil {
		return err
	}
	return writer.Flush()
}
