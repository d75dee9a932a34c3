package handler

import (
	"sort"

	rtmp "github.com/torresjeff/rtmp-chunkstream"
	"github.com/torresjeff/rtmp-chunkstream/amf"
	"github.com/torresjeff/rtmp-chunkstream/amf/amf0"
	"github.com/torresjeff/rtmp-chunkstream/audio"
	"github.com/torresjeff/rtmp-chunkstream/video"
)

// data logs the stream metadata sent with @setDataFrame or onMetaData. Other data messages are ignored.
func (h *handler) data(msg *rtmp.Message, _ rtmp.MessageWriter) error {
	values, err := amf.Decode(msg.Payload, amfVersion(msg.Type))
	if err != nil {
		h.logger.Warnf("[handler] malformed data message: %v", err)
		return nil
	}
	// @setDataFrame message includes a string with value "onMetaData" before the metadata itself.
	if len(values) > 0 && values[0] == "@setDataFrame" {
		values = values[1:]
	}
	if len(values) < 2 || values[0] != "onMetaData" {
		h.logger.Debugf("[handler] ignoring data message %v", values)
		return nil
	}

	metadata := metadataOf(values[1])
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h.logger.Infow("[handler] received stream metadata", "keys", keys, "width", metadata["width"], "height", metadata["height"])
	return nil
}

// Metadata is sent as an ECMAArray by most encoders but some send an object.
func metadataOf(v interface{}) map[string]interface{} {
	switch m := v.(type) {
	case amf0.ECMAArray:
		return m
	case map[string]interface{}:
		return m
	default:
		return nil
	}
}

func (h *handler) audio(msg *rtmp.Message, _ rtmp.MessageWriter) error {
	header, _, err := audio.ParseHeader(msg.Payload)
	if err != nil {
		h.logger.Warnf("[handler] malformed audio message: %v", err)
		return nil
	}
	h.logger.Debugw("[handler] audio",
		"format", header.Format,
		"sampleRate", header.SampleRate.Hz(),
		"sequenceHeader", header.IsSequenceHeader(),
		"timestamp", msg.Timestamp,
		"length", len(msg.Payload),
	)
	return nil
}

func (h *handler) video(msg *rtmp.Message, _ rtmp.MessageWriter) error {
	header, _, err := video.ParseHeader(msg.Payload)
	if err != nil {
		h.logger.Warnf("[handler] malformed video message: %v", err)
		return nil
	}
	h.logger.Debugw("[handler] video",
		"frameType", header.FrameType,
		"codec", header.Codec,
		"sequenceHeader", header.IsSequenceHeader(),
		"timestamp", msg.Timestamp,
		"length", len(msg.Payload),
	)
	return nil
}
