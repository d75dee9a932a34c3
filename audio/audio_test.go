package audio

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
		{"aacSequenceHeader", []byte{0xAF, 0x00, 0x12, 0x10}, Header{AAC, Rate44KHz, Size16Bit, Stereo, AACSequenceHeader}, 2},
		{"aacRaw", []byte{0xAF, 0x01, 0x21}, Header{AAC, Rate44KHz, Size16Bit, Stereo, AACRaw}, 2},
		{"mp3Mono", []byte{0x2A, 0xFF}, Header{Format: MP3, SampleRate: Rate22KHz, SampleSize: Size16Bit, Channels: Mono}, 1},
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
	_, _, err = ParseHeader([]byte{0xAF})
	at.NotNil(err)
}

func TestHeader(t *testing.T) {
	at := assert.New(t)
	at.True(Header{Format: AAC, AACPacketType: AACSequenceHeader}.IsSequenceHeader())
	at.False(Header{Format: MP3}.IsSequenceHeader())
	at.Equal(44100, Rate44KHz.Hz())
	at.Equal("AAC", AAC.String())
	at.Equal("Format(reserved)", Format(9).String())
}
