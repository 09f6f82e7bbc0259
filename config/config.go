// Package config loads the player and server settings from YAML.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zijiren233/flvplay/codec"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Player  PlayerConfig  `yaml:"player"`
	Audio   AudioConfig   `yaml:"audio"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

type PlayerConfig struct {
	BufferTime     time.Duration `yaml:"buffer_time"`
	AudioQueueCap  int           `yaml:"audio_queue_cap"`
	ParseChunkTags int           `yaml:"parse_chunk_tags"`
	// TickRate is the number of Advance calls per second.
	TickRate int    `yaml:"tick_rate"`
	Backend  string `yaml:"backend"`
}

type AudioConfig struct {
	SampleRate int           `yaml:"sample_rate"`
	Channels   int           `yaml:"channels"`
	Period     time.Duration `yaml:"period"`
	// Output is a file receiving raw s16le PCM. Empty discards audio.
	Output string `yaml:"output"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
	Cors   bool   `yaml:"cors"`
	// IngestLimit caps the bytes kept per pushed stream, 0 for no cap.
	IngestLimit int64 `yaml:"ingest_limit"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Player: PlayerConfig{
			BufferTime:     100 * time.Millisecond,
			AudioQueueCap:  20,
			ParseChunkTags: 10,
			TickRate:       25,
			Backend:        "soft",
		},
		Audio: AudioConfig{
			SampleRate: codec.CanonicalAudio.SampleRate,
			Channels:   codec.CanonicalAudio.Channels,
			Period:     20 * time.Millisecond,
		},
		Server: ServerConfig{
			Listen:      "127.0.0.1:8935",
			Cors:        true,
			IngestLimit: 512 << 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Player.BufferTime < 0 {
		return fmt.Errorf("invalid buffer_time: %v (must be non-negative)", c.Player.BufferTime)
	}
	if c.Player.AudioQueueCap <= 0 {
		return fmt.Errorf("invalid audio_queue_cap: %d (must be positive)", c.Player.AudioQueueCap)
	}
	if c.Player.ParseChunkTags <= 0 {
		return fmt.Errorf("invalid parse_chunk_tags: %d (must be positive)", c.Player.ParseChunkTags)
	}
	if c.Player.TickRate <= 0 || c.Player.TickRate > 1000 {
		return fmt.Errorf("invalid tick_rate: %d (must be between 1-1000)", c.Player.TickRate)
	}
	if _, err := codec.Lookup(c.Player.Backend); err != nil {
		return fmt.Errorf("invalid backend %q: %w", c.Player.Backend, err)
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return fmt.Errorf("invalid sample_rate: %d (must be between 8000-192000)", c.Audio.SampleRate)
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("invalid channels: %d (must be 1 or 2)", c.Audio.Channels)
	}
	if c.Audio.Period < time.Millisecond {
		return fmt.Errorf("invalid period: %v (must be at least 1ms)", c.Audio.Period)
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("server listen address required")
	}
	if c.Server.IngestLimit < 0 {
		return fmt.Errorf("invalid ingest limit: %d", c.Server.IngestLimit)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// TickInterval returns the time between two Advance calls.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Player.TickRate)
}

func (c *Config) AudioFormat() codec.AudioFormat {
	return codec.AudioFormat{SampleRate: c.Audio.SampleRate, Channels: c.Audio.Channels}
}

func (c *Config) LogLevel() logrus.Level {
	l, err := logrus.ParseLevel(strings.ToLower(c.Logging.Level))
	if err != nil {
		return logrus.InfoLevel
	}
	return l
}
