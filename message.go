package rtmp

import "strconv"

// MessageType is the 1 byte message type ID carried by type 0 and 1 message headers.
type MessageType uint8

const (
	// Protocol control messages. They MUST have message stream ID 0 and be sent on chunk stream ID 2.
	SetChunkSize MessageType = 1 + iota
	AbortMessage
	Acknowledgement
	UserControlMessage
	WindowAcknowledgementSize
	SetPeerBandwidth
)

const (
	AudioMessage MessageType = 8
	VideoMessage MessageType = 9

	DataMessageAMF3         MessageType = 15
	SharedObjectMessageAMF3 MessageType = 16
	CommandMessageAMF3      MessageType = 17

	DataMessageAMF0         MessageType = 18
	SharedObjectMessageAMF0 MessageType = 19
	CommandMessageAMF0      MessageType = 20

	AggregateMessage MessageType = 22
)

var messageTypeNames = map[MessageType]string{
	SetChunkSize:              "SetChunkSize",
	AbortMessage:              "AbortMessage",
	Acknowledgement:           "Acknowledgement",
	UserControlMessage:        "UserControlMessage",
	WindowAcknowledgementSize: "WindowAcknowledgementSize",
	SetPeerBandwidth:          "SetPeerBandwidth",
	AudioMessage:              "AudioMessage",
	VideoMessage:              "VideoMessage",
	DataMessageAMF3:           "DataMessageAMF3",
	SharedObjectMessageAMF3:   "SharedObjectMessageAMF3",
	CommandMessageAMF3:        "CommandMessageAMF3",
	DataMessageAMF0:           "DataMessageAMF0",
	SharedObjectMessageAMF0:   "SharedObjectMessageAMF0",
	CommandMessageAMF0:        "CommandMessageAMF0",
	AggregateMessage:          "AggregateMessage",
}

// Known reports whether t is one of the message types defined by RTMP.
func (t MessageType) Known() bool {
	_, ok := messageTypeNames[t]
	return ok
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "MessageType(" + strconv.Itoa(int(t)) + ")"
}

// Message is a fully framed message handed to a Handler. Fields that the chunk header didn't carry have
// already been filled in from the chunk stream's previous chunk.
type Message struct {
	Type            MessageType
	ChunkStreamID   uint32
	MessageStreamID uint32
	// Timestamp is the absolute timestamp: type 0 values as sent, later chunk types accumulate their deltas.
	Timestamp uint32
	// Length is the message length announced by the header (or inherited). It can differ from
	// len(Payload) for type 2 and 3 chunks when messages are not reassembled.
	Length  uint32
	Payload []byte
}
