// Package config loads, validates, and hot-reloads the engine's single
// structured configuration document.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/jinzhu/copier"
)

// StreamEntry is one configured camera source.
type StreamEntry struct {
	Name                    string `yaml:"name" mapstructure:"name" json:"name"`
	SourceURL               string `yaml:"source_url" mapstructure:"source_url" json:"source_url"`
	StreamingEnabled        bool   `yaml:"streaming_enabled" mapstructure:"streaming_enabled" json:"streaming_enabled"`
	DetectionBasedRecording bool   `yaml:"detection_based_recording" mapstructure:"detection_based_recording" json:"detection_based_recording"`
}

// MQTTConfig controls the optional MQTT publisher.
type MQTTConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Port    int  `yaml:"port" mapstructure:"port" json:"port"`
}

// Go2RTCConfig controls the embedded go2rtc WebRTC/restreaming helper.
type Go2RTCConfig struct {
	Enabled       bool `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	APIPort       int  `yaml:"api_port" mapstructure:"api_port" json:"api_port"`
	WebRTCEnabled bool `yaml:"webrtc_enabled" mapstructure:"webrtc_enabled" json:"webrtc_enabled"`
	STUNEnabled   bool `yaml:"stun_enabled" mapstructure:"stun_enabled" json:"stun_enabled"`
}

// LogConfig configures slog output and lumberjack rotation.
type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file" json:"file,omitempty"`
	Level      string `yaml:"level" mapstructure:"level" json:"level,omitempty"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size" json:"max_size,omitempty"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age" json:"max_age,omitempty"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups" json:"max_backups,omitempty"`
	Compress   bool   `yaml:"compress" mapstructure:"compress" json:"compress,omitempty"`
	Syslog     bool   `yaml:"syslog_enabled" mapstructure:"syslog_enabled" json:"syslog_enabled"`
}

// DatabaseConfig locates the catalog store.
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path" json:"path"`
}

// AuthConfig controls the auth subsystem.
type AuthConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Username     string `yaml:"username" mapstructure:"username" json:"username"`
	TimeoutHours int    `yaml:"timeout_hours" mapstructure:"timeout_hours" json:"timeout_hours"`
	JWTSecret    string `yaml:"jwt_secret" mapstructure:"jwt_secret" json:"-"`
}

// Config is the complete application configuration.
type Config struct {
	WebPort               int            `yaml:"web_port" mapstructure:"web_port" json:"web_port"`
	WebRoot               string         `yaml:"web_root" mapstructure:"web_root" json:"web_root"`
	WebCompressionEnabled bool           `yaml:"web_compression_enabled" mapstructure:"web_compression_enabled" json:"web_compression_enabled"`
	Auth                  AuthConfig     `yaml:"auth" mapstructure:"auth" json:"auth"`
	RetentionDays         int            `yaml:"retention_days" mapstructure:"retention_days" json:"retention_days"`
	RetentionSchedule     string         `yaml:"retention_schedule" mapstructure:"retention_schedule" json:"retention_schedule,omitempty"`
	BufferSize            int            `yaml:"buffer_size" mapstructure:"buffer_size" json:"buffer_size"`
	StoragePath           string         `yaml:"storage_path" mapstructure:"storage_path" json:"storage_path"`
	ModelsPath            string         `yaml:"models_path" mapstructure:"models_path" json:"models_path"`
	MP4SegmentSeconds     int            `yaml:"mp4_segment_duration_seconds" mapstructure:"mp4_segment_duration_seconds" json:"mp4_segment_duration_seconds"`
	UseSwap               bool           `yaml:"use_swap" mapstructure:"use_swap" json:"use_swap"`
	SwapSize              int            `yaml:"swap_size" mapstructure:"swap_size" json:"swap_size"`
	Streams               []StreamEntry  `yaml:"streams" mapstructure:"streams" json:"streams"`
	TurnEnabled           bool           `yaml:"turn_enabled" mapstructure:"turn_enabled" json:"turn_enabled"`
	MQTT                  MQTTConfig     `yaml:"mqtt" mapstructure:"mqtt" json:"mqtt"`
	Go2RTC                Go2RTCConfig   `yaml:"go2rtc" mapstructure:"go2rtc" json:"go2rtc"`
	DemoMode              bool           `yaml:"demo_mode" mapstructure:"demo_mode" json:"demo_mode"`
	Database              DatabaseConfig `yaml:"database" mapstructure:"database" json:"database"`
	Log                   LogConfig      `yaml:"log" mapstructure:"log" json:"log,omitempty"`
}

// DefaultConfig returns the documented defaults from the external
// interfaces contract.
func DefaultConfig() *Config {
	return &Config{
		WebPort:               8080,
		WebRoot:               "./web",
		WebCompressionEnabled: true,
		Auth: AuthConfig{
			Enabled:      true,
			Username:     "admin",
			TimeoutHours: 24,
		},
		RetentionDays:     30,
		BufferSize:        32 * 1024 * 1024,
		StoragePath:       "./recordings",
		ModelsPath:        "./models",
		MP4SegmentSeconds: 900,
		UseSwap:           false,
		SwapSize:          0,
		Streams:           []StreamEntry{},
		TurnEnabled:       false,
		MQTT:              MQTTConfig{Enabled: false, Port: 1883},
		Go2RTC:            Go2RTCConfig{Enabled: true, APIPort: 1984, WebRTCEnabled: true, STUNEnabled: true},
		DemoMode:          false,
		Database:          DatabaseConfig{Path: "./nvr.db"},
		Log: LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 10,
			Compress:   true,
		},
	}
}

// Validate rejects null input, an empty web_root, storage_path, db_path or
// models_path, a web port outside [1,65535], buffer_size=0, and swap_size=0
// with use_swap=true. It also rejects an out-of-range MQTT or go2rtc port
// when that service is enabled, a stream with an empty name, a storage_path
// that is neither absolute nor dot-relative when streams are configured,
// and a log.level other than debug, info, warn or error.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	if c.WebPort < 1 || c.WebPort > 65535 {
		return fmt.Errorf("config: web_port must be between 1 and 65535")
	}
	if c.WebRoot == "" {
		return fmt.Errorf("config: web_root must not be empty")
	}
	if c.StoragePath == "" {
		return fmt.Errorf("config: storage_path must not be empty")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("config: db_path must not be empty")
	}
	if c.ModelsPath == "" {
		return fmt.Errorf("config: models_path must not be empty")
	}
	if c.BufferSize == 0 {
		return fmt.Errorf("config: buffer_size must not be 0")
	}
	if c.UseSwap && c.SwapSize == 0 {
		return fmt.Errorf("config: swap_size must be > 0 when use_swap is true")
	}
	if c.MQTT.Enabled && (c.MQTT.Port < 1 || c.MQTT.Port > 65535) {
		return fmt.Errorf("config: mqtt.port must be between 1 and 65535")
	}
	if c.Go2RTC.Enabled && (c.Go2RTC.APIPort < 1 || c.Go2RTC.APIPort > 65535) {
		return fmt.Errorf("config: go2rtc.api_port must be between 1 and 65535")
	}
	for i, s := range c.Streams {
		if s.Name == "" {
			return fmt.Errorf("config: streams[%d].name must not be empty", i)
		}
		if !filepath.IsAbs(c.StoragePath) && c.StoragePath != "." && c.StoragePath[0] != '.' {
			return fmt.Errorf("config: storage_path must be absolute or relative-dotted")
		}
	}
	if c.Log.Level != "" {
		switch c.Log.Level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("config: log.level must be one of debug, info, warn, error")
		}
	}
	return nil
}

// DeepCopy returns an independent copy of c, including slice fields.
func (c *Config) DeepCopy() *Config {
	if c == nil {
		return nil
	}
	out := &Config{}
	if err := copier.CopyWithOption(out, c, copier.Option{DeepCopy: true}); err != nil {
		shallow := *c
		return &shallow
	}
	return out
}
