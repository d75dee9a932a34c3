package config

import (
	"bytes"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultPort = "1935"

const BuffioSize = 1024 * 64

// Values sent in reply to a connect command.
const DefaultWindowAckSize uint32 = 5000000
const DefaultPeerBandwidth uint32 = 5000000

// DefaultChunkSize is the outbound chunk size announced to clients after they connect.
const DefaultChunkSize uint32 = 4096

const FlashMediaServerVersion string = "FMS/3,5,7,7009"

const Capabilities int = 31

const Mode int = 1

const DefaultStreamID int = 1

// Largest chunk size a SetChunkSize message can carry.
const maxChunkSize uint32 = 0x7FFFFFFF

// Config holds the server configuration. Every field has a default, so an empty file is valid.
type Config struct {
	Addr        string `yaml:"addr"`         // RTMP listen address
	MetricsAddr string `yaml:"metrics_addr"` // HTTP address for /metrics and /healthz, empty disables it
	Debug       bool   `yaml:"debug"`        // development logger with debug level

	BufferSize       int           `yaml:"buffer_size"`       // bufio reader/writer size per connection
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"` // deadline for the whole handshake
	ReadTimeout      time.Duration `yaml:"read_timeout"`      // idle timeout per read once the handshake is done, 0 disables it
	WriteTimeout     time.Duration `yaml:"write_timeout"`     // per message write timeout, 0 disables it

	StrictVersion bool `yaml:"strict_version"` // reject clients that don't ask for RTMP version 3
	Reassemble    bool `yaml:"reassemble"`     // rebuild messages split across chunks

	ChunkSize     uint32 `yaml:"chunk_size"`
	WindowAckSize uint32 `yaml:"window_ack_size"`
	PeerBandwidth uint32 `yaml:"peer_bandwidth"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads the configuration from a YAML file. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	// An empty document decodes to io.EOF, which just means "all defaults".
	if err := decoder.Decode(&cfg); err != nil && len(bytes.TrimSpace(data)) > 0 {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":" + DefaultPort
	}
	if c.BufferSize == 0 {
		c.BufferSize = BuffioSize
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.WindowAckSize == 0 {
		c.WindowAckSize = DefaultWindowAckSize
	}
	if c.PeerBandwidth == 0 {
		c.PeerBandwidth = DefaultPeerBandwidth
	}
}

// Validate returns an error describing the first invalid value.
func (c *Config) Validate() error {
	if c.BufferSize < 16 {
		return errors.Errorf("buffer_size must be at least 16, got %d", c.BufferSize)
	}
	if c.HandshakeTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.ChunkSize > maxChunkSize {
		return errors.Errorf("chunk_size must be at most %d, got %d", maxChunkSize, c.ChunkSize)
	}
	if c.MetricsAddr != "" && c.MetricsAddr == c.Addr {
		return errors.Errorf("metrics_addr and addr must be different, both are %s", c.Addr)
	}
	return nil
}
