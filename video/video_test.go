package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		header  Header
		n       int
	}{
		{"avcSequenceHeader", []byte{0x17, 0x00, 0x00, 0x00, 0x00, 0x01}, Header{KeyFrame, H264, AVCSequenceHeader, 0}, 5},
		{"avcNALU", []byte{0x27, 0x01, 0x00, 0x00, 0x50, 0xAA}, Header{InterFrame, H264, AVCNALU, 80}, 5},
		{"negativeCompositionTime", []byte{0x27, 0x01, 0xFF, 0xFF, 0xFE}, Header{InterFrame, H264, AVCNALU, -2}, 5},
		{"sorenson", []byte{0x22, 0x00}, Header{FrameType: InterFrame, Codec: SorensonH263}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := assert.New(t)
			h, n, err := ParseHeader(tt.payload)
			at.Nil(err)
			at.Equal(tt.header, h)
			at.Equal(tt.n, n)
		})
	}
}

func TestParseHeader_Errors(t *testing.T) {
	at := assert.New(t)
	_, _, err := ParseHeader(nil)
	at.Equal(ErrEmptyPayload, err)
	_, _, err = ParseHeader([]byte{0x17, 0x00})
	at.NotNil(err)
}

func TestHeader(t *testing.T) {
	at := assert.New(t)
	h := Header{FrameType: KeyFrame, Codec: H264, AVCPacketType: AVCSequenceHeader}
	at.True(h.IsKeyFrame())
	at.True(h.IsSequenceHeader())
	at.Equal("H264", H264.String())
	at.Equal("KeyFrame", KeyFrame.String())
}
