// Package handler holds the message handlers the server runs for every session: protocol control
// bookkeeping, the connect/createStream/publish command exchange, metadata and media header logging.
package handler

import (
	rtmp "github.com/torresjeff/rtmp-chunkstream"
	"github.com/torresjeff/rtmp-chunkstream/config"
	"go.uber.org/zap"
)

// Replies to commands go out on this chunk stream, like the connect request they answer.
const commandChannel uint32 = 3

type handler struct {
	logger *zap.SugaredLogger
	config *config.Config
}

// New returns a router with a handler for every message type the server knows. The router is
// stateless and can be shared by all sessions.
func New(logger *zap.Logger, cfg *config.Config) *rtmp.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	h := &handler{logger: logger.Sugar(), config: cfg}

	r := rtmp.NewRouter(logger)
	for _, t := range []rtmp.MessageType{
		rtmp.SetChunkSize,
		rtmp.AbortMessage,
		rtmp.Acknowledgement,
		rtmp.WindowAcknowledgementSize,
		rtmp.SetPeerBandwidth,
	} {
		r.HandleFunc(t, h.control)
	}
	r.HandleFunc(rtmp.UserControlMessage, h.userControl)
	r.HandleFunc(rtmp.CommandMessageAMF0, h.command)
	r.HandleFunc(rtmp.CommandMessageAMF3, h.command)
	r.HandleFunc(rtmp.DataMessageAMF0, h.data)
	r.HandleFunc(rtmp.DataMessageAMF3, h.data)
	r.HandleFunc(rtmp.AudioMessage, h.audio)
	r.HandleFunc(rtmp.VideoMessage, h.video)
	for _, t := range []rtmp.MessageType{
		rtmp.SharedObjectMessageAMF0,
		rtmp.SharedObjectMessageAMF3,
		rtmp.AggregateMessage,
	} {
		r.HandleFunc(t, h.logOnly)
	}
	return r
}

// control logs the protocol control messages. Framing changes are applied by the session itself.
func (h *handler) control(msg *rtmp.Message, _ rtmp.MessageWriter) error {
	switch msg.Type {
	case rtmp.SetChunkSize:
		size, err := rtmp.DecodeSetChunkSize(msg.Payload)
		if err != nil {
			h.logger.Warnf("[handler] malformed SetChunkSize: %v", err)
			return nil
		}
		h.logger.Infof("[handler] peer set chunk size to %d", size)
	case rtmp.AbortMessage:
		csid, err := rtmp.DecodeAbortMessage(msg.Payload)
		if err != nil {
			h.logger.Warnf("[handler] malformed AbortMessage: %v", err)
			return nil
		}
		h.logger.Debugf("[handler] peer aborted message on chunk stream %d", csid)
	case rtmp.Acknowledgement:
		sequenceNumber, err := rtmp.DecodeAcknowledgement(msg.Payload)
		if err != nil {
			h.logger.Warnf("[handler] malformed Acknowledgement: %v", err)
			return nil
		}
		h.logger.Debugf("[handler] peer acknowledged %d bytes", sequenceNumber)
	case rtmp.WindowAcknowledgementSize:
		size, err := rtmp.DecodeWindowAckSize(msg.Payload)
		if err != nil {
			h.logger.Warnf("[handler] malformed WindowAcknowledgementSize: %v", err)
			return nil
		}
		h.logger.Debugf("[handler] peer window acknowledgement size is %d", size)
	case rtmp.SetPeerBandwidth:
		size, limit, err := rtmp.DecodeSetPeerBandwidth(msg.Payload)
		if err != nil {
			h.logger.Warnf("[handler] malformed SetPeerBandwidth: %v", err)
			return nil
		}
		h.logger.Debugf("[handler] peer bandwidth %d, limit type %d", size, limit)
	}
	return nil
}

func (h *handler) userControl(msg *rtmp.Message, _ rtmp.MessageWriter) error {
	event, data, err := rtmp.DecodeUserControl(msg.Payload)
	if err != nil {
		h.logger.Warnf("[handler] malformed user control message: %v", err)
		return nil
	}
	h.logger.Debugf("[handler] user control event %d with %d bytes of data", event, len(data))
	return nil
}

func (h *handler) logOnly(msg *rtmp.Message, _ rtmp.MessageWriter) error {
	h.logger.Debugf("[handler] received %s on chunk stream %d (%d bytes), not processed", msg.Type, msg.ChunkStreamID, len(msg.Payload))
	return nil
}
