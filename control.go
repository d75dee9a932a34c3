package rtmp

import (
	"encoding/binary"
)

// LimitType is the limit type of a SetPeerBandwidth message.
type LimitType uint8

const (
	// LimitHard: the peer SHOULD limit its output bandwidth to the indicated window size.
	LimitHard LimitType = 0
	// LimitSoft: the peer SHOULD limit its output bandwidth to the window indicated in this message or the
	// limit already in effect, whichever is smaller.
	LimitSoft LimitType = 1
	// LimitDynamic: if the previous limit type was hard, treat this message as though it was marked hard,
	// otherwise ignore it.
	LimitDynamic LimitType = 2
)

// User control message event types.
const (
	EventStreamBegin      uint16 = 0
	EventStreamEOF        uint16 = 1
	EventStreamDry        uint16 = 2
	EventSetBufferLength  uint16 = 3
	EventStreamIsRecorded uint16 = 4
	EventPingRequest      uint16 = 6
	EventPingResponse     uint16 = 7
)

// Protocol control messages always use message stream ID 0 and are sent on ProtocolChannel.
func newControlMessage(messageType MessageType, payload []byte) *Message {
	return &Message{
		Type:          messageType,
		ChunkStreamID: ProtocolChannel,
		Length:        uint32(len(payload)),
		Payload:       payload,
	}
}

func uint32Payload(v uint32) []byte {
	return binary.BigEndian.AppendUint32(make([]byte, 0, 4), v)
}

// NewSetChunkSizeMessage announces the maximum payload size of the chunks we send from now on.
// Bit 31 must be zero.
func NewSetChunkSizeMessage(size uint32) *Message {
	return newControlMessage(SetChunkSize, uint32Payload(size&0x7FFFFFFF))
}

// NewAbortMessage asks the peer to discard the partially received message on a chunk stream.
func NewAbortMessage(chunkStreamID uint32) *Message {
	return newControlMessage(AbortMessage, uint32Payload(chunkStreamID))
}

// NewAcknowledgementMessage reports the number of bytes received so far.
func NewAcknowledgementMessage(sequenceNumber uint32) *Message {
	return newControlMessage(Acknowledgement, uint32Payload(sequenceNumber))
}

func NewWindowAckSizeMessage(size uint32) *Message {
	return newControlMessage(WindowAcknowledgementSize, uint32Payload(size))
}

func NewSetPeerBandwidthMessage(size uint32, limit LimitType) *Message {
	return newControlMessage(SetPeerBandwidth, append(uint32Payload(size), byte(limit)))
}

// NewStreamBeginMessage is the user control message telling the client a stream is ready.
func NewStreamBeginMessage(streamID uint32) *Message {
	payload := binary.BigEndian.AppendUint16(make([]byte, 0, 6), EventStreamBegin)
	payload = binary.BigEndian.AppendUint32(payload, streamID)
	return newControlMessage(UserControlMessage, payload)
}

func decodeUint32(payload []byte) (uint32, error) {
	if len(payload) < 4 {
		return 0, ErrShortPayload
	}
	return binary.BigEndian.Uint32(payload[:4]), nil
}

// DecodeSetChunkSize returns the new chunk size carried by a SetChunkSize message.
func DecodeSetChunkSize(payload []byte) (uint32, error) {
	size, err := decodeUint32(payload)
	if err != nil {
		return 0, err
	}
	// The first bit must be zero
	return size & 0x7FFFFFFF, nil
}

// DecodeAbortMessage returns the chunk stream ID whose current message is to be discarded.
func DecodeAbortMessage(payload []byte) (uint32, error) {
	return decodeUint32(payload)
}

// DecodeAcknowledgement returns the sequence number (number of bytes received so far).
func DecodeAcknowledgement(payload []byte) (uint32, error) {
	return decodeUint32(payload)
}

func DecodeWindowAckSize(payload []byte) (uint32, error) {
	return decodeUint32(payload)
}

func DecodeSetPeerBandwidth(payload []byte) (uint32, LimitType, error) {
	if len(payload) < 5 {
		return 0, 0, ErrShortPayload
	}
	return binary.BigEndian.Uint32(payload[:4]), LimitType(payload[4]), nil
}

// DecodeUserControl splits a user control message into its event type and event data.
func DecodeUserControl(payload []byte) (uint16, []byte, error) {
	if len(payload) < 2 {
		return 0, nil, ErrShortPayload
	}
	return binary.BigEndian.Uint16(payload[:2]), payload[2:], nil
}
