package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	at := assert.New(t)
	registry := prometheus.NewRegistry()
	c := New(WithRegistry(registry), WithNamespace("test"))

	c.SessionStarted()
	c.SessionStarted()
	c.SessionEnded()
	c.HandshakeFailed()
	c.ChunkRead(0)
	c.ChunkRead(3)
	c.ChunkRead(3)
	c.MessageReceived("AudioMessage")
	c.MessageDropped("MessageType(99)")
	c.ProtocolError()
	c.AddBytes(100, 50)

	at.Equal(2.0, testutil.ToFloat64(c.sessionsTotal))
	at.Equal(1.0, testutil.ToFloat64(c.activeSessions))
	at.Equal(1.0, testutil.ToFloat64(c.handshakeFailures))
	at.Equal(2.0, testutil.ToFloat64(c.chunksTotal.WithLabelValues("3")))
	at.Equal(1.0, testutil.ToFloat64(c.messagesTotal.WithLabelValues("AudioMessage")))
	at.Equal(1.0, testutil.ToFloat64(c.droppedMessages.WithLabelValues("MessageType(99)")))
	at.Equal(1.0, testutil.ToFloat64(c.protocolErrors))
	at.Equal(100.0, testutil.ToFloat64(c.bytesRead))
	at.Equal(50.0, testutil.ToFloat64(c.bytesWritten))

	families, err := registry.Gather()
	at.Nil(err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	at.Contains(names, "test_sessions_total")
	at.Contains(names, "test_chunks_total")
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.SessionStarted()
		c.SessionEnded()
		c.HandshakeFailed()
		c.ChunkRead(1)
		c.MessageReceived("x")
		c.MessageDropped("x")
		c.ProtocolError()
		c.AddBytes(1, 1)
	})
}
