// Package audio parses the tag header that prefixes the payload of RTMP audio messages.
package audio

import "github.com/pkg/errors"

// As defined in the FLV spec: https://www.adobe.com/content/dam/acom/en/devnet/flv/video_file_format_spec_v10_1.pdf

type Format uint8

const (
	LinearPCMPlatformEndian Format = 0
	ADPCM                   Format = 1
	MP3                     Format = 2
	LinearPCMLittleEndian   Format = 3
	Nellymoser16KHzMono     Format = 4
	Nellymoser8KHzMono      Format = 5
	Nellymoser              Format = 6
	G711AlawLogPCM          Format = 7
	G711MulawLogPCM         Format = 8
	AAC                     Format = 10
	Speex                   Format = 11
	MP38KHz                 Format = 14
	DeviceSpecificSound     Format = 15
)

var formatNames = map[Format]string{
	LinearPCMPlatformEndian: "LinearPCMPlatformEndian",
	ADPCM:                   "ADPCM",
	MP3:                     "MP3",
	LinearPCMLittleEndian:   "LinearPCMLittleEndian",
	Nellymoser16KHzMono:     "Nellymoser16KHzMono",
	Nellymoser8KHzMono:      "Nellymoser8KHzMono",
	Nellymoser:              "Nellymoser",
	G711AlawLogPCM:          "G711AlawLogPCM",
	G711MulawLogPCM:         "G711MulawLogPCM",
	AAC:                     "AAC",
	Speex:                   "Speex",
	MP38KHz:                 "MP38KHz",
	DeviceSpecificSound:     "DeviceSpecificSound",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "Format(reserved)"
}

type SampleRate uint8

const (
	Rate5p5KHz SampleRate = 0
	Rate11KHz  SampleRate = 1
	Rate22KHz  SampleRate = 2
	Rate44KHz  SampleRate = 3
)

// Hz returns the sample rate in hertz.
func (r SampleRate) Hz() int {
	return [...]int{5512, 11025, 22050, 44100}[r&0x03]
}

type SampleSize uint8

const (
	Size8Bit  SampleSize = 0
	Size16Bit SampleSize = 1
)

type Channel uint8

const (
	Mono   Channel = 0
	Stereo Channel = 1
)

type AACPacketType uint8

const (
	AACSequenceHeader AACPacketType = 0
	AACRaw            AACPacketType = 1
)

var ErrEmptyPayload = errors.New("audio: empty payload")

// Header is the first byte of an audio message, plus the AAC packet type when the format is AAC.
type Header struct {
	Format     Format
	SampleRate SampleRate
	SampleSize SampleSize
	Channels   Channel
	// AACPacketType is only meaningful when Format is AAC.
	AACPacketType AACPacketType
}

// ParseHeader decodes the audio tag header and returns it with the number of bytes it spans.
func ParseHeader(payload []byte) (Header, int, error) {
	if len(payload) == 0 {
		return Header{}, 0, ErrEmptyPayload
	}
	audioHeader := payload[0]
	h := Header{
		Format:     Format((audioHeader >> 4) & 0x0F),
		SampleRate: SampleRate((audioHeader >> 2) & 0x03),
		SampleSize: SampleSize((audioHeader >> 1) & 1),
		Channels:   Channel(audioHeader & 1),
	}
	if h.Format != AAC {
		return h, 1, nil
	}
	if len(payload) < 2 {
		return Header{}, 0, errors.New("audio: AAC payload without packet type")
	}
	h.AACPacketType = AACPacketType(payload[1])
	return h, 2, nil
}

// IsSequenceHeader reports whether the message carries the AAC decoder configuration.
func (h Header) IsSequenceHeader() bool {
	return h.Format == AAC && h.AACPacketType == AACSequenceHeader
}
