package handler

import (
	"github.com/pkg/errors"
	rtmp "github.com/torresjeff/rtmp-chunkstream"
	"github.com/torresjeff/rtmp-chunkstream/amf"
	"github.com/torresjeff/rtmp-chunkstream/config"
)

const NetConnectionSuccess = "NetConnection.Connect.Success"
const NetStreamPublishStart = "NetStream.Publish.Start"

var ErrMalformedCommand = errors.New("command message does not start with a name and a transaction ID")

// amfVersion returns the AMF version of a command or data message.
func amfVersion(t rtmp.MessageType) uint8 {
	if t == rtmp.CommandMessageAMF3 || t == rtmp.DataMessageAMF3 {
		return amf.AMFVersion3
	}
	return amf.AMFVersion0
}

// command decodes the command name, transaction ID and command object, and answers the commands needed
// to get a publisher connected. Commands that can't be decoded are logged and skipped; only a failed reply
// ends the session.
func (h *handler) command(msg *rtmp.Message, w rtmp.MessageWriter) error {
	values, err := amf.Decode(msg.Payload, amfVersion(msg.Type))
	if err != nil {
		h.logger.Warnf("[handler] couldn't decode command on chunk stream %d: %v", msg.ChunkStreamID, err)
		return nil
	}
	name, transactionID, err := commandName(values)
	if err != nil {
		h.logger.Warnf("[handler] ignoring command on chunk stream %d (%d bytes): %v", msg.ChunkStreamID, len(msg.Payload), err)
		return nil
	}
	args := values[2:]
	h.logger.Debugf("[handler] received command %s (transaction %v)", name, transactionID)

	switch name {
	case "connect":
		var commandObject map[string]interface{}
		if len(args) > 0 {
			commandObject, _ = args[0].(map[string]interface{})
		}
		return h.onConnect(msg, w, transactionID, commandObject)
	case "createStream":
		return h.reply(msg, w, "_result", transactionID, nil, config.DefaultStreamID)
	case "publish":
		return h.onPublish(msg, w, args)
	case "releaseStream", "FCPublish", "FCUnpublish", "deleteStream", "closeStream":
		h.logger.Infof("[handler] received command %s", name)
		return nil
	default:
		h.logger.Infof("[handler] received command %s, but couldn't handle it because no implementation is defined", name)
		return nil
	}
}

// commandName returns the name and transaction ID every command starts with.
func commandName(values []interface{}) (string, float64, error) {
	if len(values) < 2 {
		return "", 0, ErrMalformedCommand
	}
	name, ok := values[0].(string)
	if !ok {
		return "", 0, ErrMalformedCommand
	}
	transactionID, ok := values[1].(float64)
	if !ok {
		return "", 0, ErrMalformedCommand
	}
	return name, transactionID, nil
}

// onConnect sends the window acknowledgement size, the peer bandwidth and the outbound chunk size, then
// accepts the connection.
func (h *handler) onConnect(msg *rtmp.Message, w rtmp.MessageWriter, transactionID float64, commandObject map[string]interface{}) error {
	h.logger.Infof("[handler] connect to app %v from %v", commandObject["app"], commandObject["flashVer"])

	if err := w.WriteMessage(rtmp.ProtocolChannel, rtmp.NewWindowAckSizeMessage(h.config.WindowAckSize)); err != nil {
		return err
	}
	if err := w.WriteMessage(rtmp.ProtocolChannel, rtmp.NewSetPeerBandwidthMessage(h.config.PeerBandwidth, rtmp.LimitDynamic)); err != nil {
		return err
	}
	if err := w.WriteMessage(rtmp.ProtocolChannel, rtmp.NewSetChunkSizeMessage(h.config.ChunkSize)); err != nil {
		return err
	}
	w.SetChunkSize(h.config.ChunkSize)

	properties := map[string]interface{}{
		"fmsVer":       config.FlashMediaServerVersion,
		"capabilities": config.Capabilities,
		"mode":         config.Mode,
	}
	information := map[string]interface{}{
		"code":           NetConnectionSuccess,
		"level":          "status",
		"description":    "Connection accepted.",
		"objectEncoding": int(amfVersion(msg.Type)),
	}
	return h.reply(msg, w, "_result", transactionID, properties, information)
}

func (h *handler) onPublish(msg *rtmp.Message, w rtmp.MessageWriter, args []interface{}) error {
	// args: command object (null), publishing name, publishing type
	var streamKey, publishingType string
	if len(args) > 1 {
		streamKey, _ = args[1].(string)
	}
	if len(args) > 2 {
		publishingType, _ = args[2].(string)
	}
	h.logger.Infof("[handler] publish %q (%s) on message stream %d", streamKey, publishingType, msg.MessageStreamID)

	if err := w.WriteMessage(rtmp.ProtocolChannel, rtmp.NewStreamBeginMessage(msg.MessageStreamID)); err != nil {
		return err
	}
	status := map[string]interface{}{
		"level":       "status",
		"code":        NetStreamPublishStart,
		"description": "Start publishing " + streamKey,
	}
	return h.reply(msg, w, "onStatus", 0, nil, status)
}

// reply answers a command on the command channel and message stream it arrived on, with the same AMF
// version.
func (h *handler) reply(msg *rtmp.Message, w rtmp.MessageWriter, name string, transactionID float64, values ...interface{}) error {
	payload, err := amf.Encode(amfVersion(msg.Type), append([]interface{}{name, transactionID}, values...)...)
	if err != nil {
		return err
	}
	return w.WriteMessage(commandChannel, &rtmp.Message{
		Type:            msg.Type,
		ChunkStreamID:   commandChannel,
		MessageStreamID: msg.MessageStreamID,
		Length:          uint32(len(payload)),
		Payload:         payload,
	})
}
