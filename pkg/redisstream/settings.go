package redisstream

import "strings"

// DefaultStream is the Redis stream session events are published to.
const DefaultStream = "damay.session.events"

// Settings holds the Redis Streams transport configuration for session events.
type Settings struct {
	Enabled  bool   `mapstructure:"redis-enabled" yaml:"redis-enabled"`
	Addr     string `mapstructure:"redis-addr" yaml:"redis-addr,omitempty"`
	Group    string `mapstructure:"redis-group" yaml:"redis-group,omitempty"`
	Consumer string `mapstructure:"redis-consumer" yaml:"redis-consumer,omitempty"`
	Stream   string `mapstructure:"stream" yaml:"stream,omitempty"`
}

// WithDefaults fills unset fields.
func (s Settings) WithDefaults() Settings {
	if strings.TrimSpace(s.Addr) == "" {
		s.Addr = "localhost:6379"
	}
	if strings.TrimSpace(s.Group) == "" {
		s.Group = "damay-tail"
	}
	if strings.TrimSpace(s.Consumer) == "" {
		s.Consumer = "tail-1"
	}
	if strings.TrimSpace(s.Stream) == "" {
		s.Stream = DefaultStream
	}
	return s
}
