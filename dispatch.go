package rtmp

import (
	"go.uber.org/zap"
)

// Handler processes fully framed messages. Handlers may answer through w, which writes to the same
// connection. A non-nil error ends the session.
type Handler interface {
	HandleMessage(msg *Message, w MessageWriter) error
}

// The HandlerFunc type is an adapter to allow the use of ordinary functions as handlers.
type HandlerFunc func(msg *Message, w MessageWriter) error

func (f HandlerFunc) HandleMessage(msg *Message, w MessageWriter) error {
	return f(msg, w)
}

// Router dispatches messages to the handler registered for their message type. Messages without a
// handler are logged and dropped.
type Router struct {
	logger   *zap.Logger
	handlers map[MessageType]Handler
}

func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		logger:   logger,
		handlers: make(map[MessageType]Handler),
	}
}

// Handle registers h for a message type, replacing any handler registered before.
func (r *Router) Handle(messageType MessageType, h Handler) {
	r.handlers[messageType] = h
}

func (r *Router) HandleFunc(messageType MessageType, f func(msg *Message, w MessageWriter) error) {
	r.Handle(messageType, HandlerFunc(f))
}

func (r *Router) HandleMessage(msg *Message, w MessageWriter) error {
	h, ok := r.handlers[msg.Type]
	if !ok {
		r.logger.Debug("[router] no handler registered, dropping message",
			zap.Stringer("type", msg.Type),
			zap.Uint32("csid", msg.ChunkStreamID),
			zap.Int("length", len(msg.Payload)),
		)
		return nil
	}
	return h.HandleMessage(msg, w)
}
