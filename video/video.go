// Package video parses the tag header that prefixes the payload of RTMP video messages.
package video

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// As defined in the FLV spec: https://www.adobe.com/content/dam/acom/en/devnet/flv/video_file_format_spec_v10_1.pdf

type FrameType uint8

const (
	KeyFrame             FrameType = 1
	InterFrame           FrameType = 2
	DisposableInterFrame FrameType = 3
	GeneratedKeyFrame    FrameType = 4
	// Video info/command frame
	CommandFrame FrameType = 5
)

func (f FrameType) String() string {
	switch f {
	case KeyFrame:
		return "KeyFrame"
	case InterFrame:
		return "InterFrame"
	case DisposableInterFrame:
		return "DisposableInterFrame"
	case GeneratedKeyFrame:
		return "GeneratedKeyFrame"
	case CommandFrame:
		return "CommandFrame"
	default:
		return "FrameType(reserved)"
	}
}

type Codec uint8

const (
	SorensonH263    Codec = 2
	ScreenVideo     Codec = 3
	VP6             Codec = 4
	VP6AlphaChannel Codec = 5
	ScreenVideoV2   Codec = 6
	H264            Codec = 7
)

func (c Codec) String() string {
	switch c {
	case SorensonH263:
		return "SorensonH263"
	case ScreenVideo:
		return "ScreenVideo"
	case VP6:
		return "VP6"
	case VP6AlphaChannel:
		return "VP6AlphaChannel"
	case ScreenVideoV2:
		return "ScreenVideoV2"
	case H264:
		return "H264"
	default:
		return "Codec(reserved)"
	}
}

type AVCPacketType uint8

const (
	AVCSequenceHeader AVCPacketType = 0
	AVCNALU           AVCPacketType = 1
	AVCEndOfSequence  AVCPacketType = 2
)

var ErrEmptyPayload = errors.New("video: empty payload")

// Header is the first byte of a video message, plus the AVC packet type and composition time when the
// codec is H264.
type Header struct {
	FrameType FrameType
	Codec     Codec
	// AVCPacketType and CompositionTime are only meaningful when Codec is H264.
	AVCPacketType   AVCPacketType
	CompositionTime int32
}

// ParseHeader decodes the video tag header and returns it with the number of bytes it spans.
func ParseHeader(payload []byte) (Header, int, error) {
	if len(payload) == 0 {
		return Header{}, 0, ErrEmptyPayload
	}
	videoHeader := payload[0]
	h := Header{
		FrameType: FrameType((videoHeader >> 4) & 0x0F),
		Codec:     Codec(videoHeader & 0x0F),
	}
	if h.Codec != H264 {
		return h, 1, nil
	}
	if len(payload) < 5 {
		return Header{}, 0, errors.New("video: AVC payload shorter than its 5 byte header")
	}
	h.AVCPacketType = AVCPacketType(payload[1])
	// Composition time is a signed 24 bit integer
	cts := binary.BigEndian.Uint32(append([]byte{0}, payload[2:5]...))
	if cts&0x800000 != 0 {
		cts |= 0xFF000000
	}
	h.CompositionTime = int32(cts)
	return h, 5, nil
}

func (h Header) IsKeyFrame() bool {
	return h.FrameType == KeyFrame
}

// IsSequenceHeader reports whether the message carries the AVC decoder configuration record.
func (h Header) IsSequenceHeader() bool {
	return h.Codec == H264 && h.AVCPacketType == AVCSequenceHeader
}
