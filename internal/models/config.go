package models

import "time"

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

type ServerConfig struct {
	Port                 int `json:"port"`
	ReadTimeoutSec       int `json:"readTimeoutSec"`
	WriteTimeoutSec      int `json:"writeTimeoutSec"`
	IdleTimeoutSec       int `json:"idleTimeoutSec"`
	CleanupIntervalHours int `json:"cleanupIntervalHours"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type MediaSizeLimits struct {
	ImageMB    int `json:"imageMB"`
	VideoMB    int `json:"videoMB"`
	AudioMB    int `json:"audioMB"`
	DocumentMB int `json:"documentMB"`
}

type MediaConfig struct {
	StorageDir     string          `json:"storageDir"`
	ThumbnailWidth int             `json:"thumbnailWidth"`
	MaxSizeMB      MediaSizeLimits `json:"maxSizeMB"`
}

type DedupConfig struct {
	TTLSec           int `json:"ttlSec"`
	SweepIntervalSec int `json:"sweepIntervalSec"`
}

type RetryConfig struct {
	BaseDelaySec   int     `json:"baseDelaySec"`
	Multiplier     float64 `json:"multiplier"`
	MaxAttempts    int     `json:"maxAttempts"`
	PollIntervalMs int     `json:"pollIntervalMs"`
}

// BaseDelay returns the configured base delay as a duration.
func (c RetryConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelaySec) * time.Second
}

type GatewayConfig struct {
	BaseURL    string `json:"baseUrl"`
	TimeoutSec int    `json:"timeoutSec"`
}

type NotifyConfig struct {
	Mode string `json:"mode"` // "websocket" or "log"
}

type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}

// Config is the single configuration object handed to the ingestion
// engine and its collaborators at construction. All tunables live
// here; nothing reads the environment from business logic.
type Config struct {
	LogLevel      string         `json:"logLevel"`
	RetentionDays int            `json:"retentionDays"`
	Server        ServerConfig   `json:"server"`
	Database      DatabaseConfig `json:"database"`
	Media         MediaConfig    `json:"media"`
	Dedup         DedupConfig    `json:"dedup"`
	Retry         RetryConfig    `json:"retry"`
	Gateway       GatewayConfig  `json:"gateway"`
	Notify        NotifyConfig   `json:"notify"`
	Tracing       TracingConfig  `json:"tracing"`
}
