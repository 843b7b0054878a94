package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"chatsink/internal/constants"
	"chatsink/internal/models"
	"chatsink/internal/security"
)

// Load reads the JSON configuration file, applies defaults for
// omitted tunables and environment overrides for deployment-specific
// values, then validates the result.
func Load(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, models.ConfigError{Message: fmt.Sprintf("invalid config path: %v", err)}
	}

	data, err := os.ReadFile(path) // #nosec G304 - path validated above
	if err != nil {
		return nil, models.ConfigError{Message: fmt.Sprintf("failed to read config file: %v", err)}
	}

	var cfg models.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, models.ConfigError{Message: fmt.Sprintf("failed to parse config file: %v", err)}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *models.Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = constants.DefaultRetentionDays
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = constants.DefaultServerPort
	}
	if cfg.Server.ReadTimeoutSec <= 0 {
		cfg.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if cfg.Server.WriteTimeoutSec <= 0 {
		cfg.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if cfg.Server.IdleTimeoutSec <= 0 {
		cfg.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if cfg.Server.CleanupIntervalHours <= 0 {
		cfg.Server.CleanupIntervalHours = constants.DefaultCleanupIntervalHr
	}

	if cfg.Media.ThumbnailWidth <= 0 {
		cfg.Media.ThumbnailWidth = constants.DefaultThumbnailWidth
	}
	if cfg.Media.MaxSizeMB.ImageMB <= 0 {
		cfg.Media.MaxSizeMB.ImageMB = constants.DefaultMaxImageSizeMB
	}
	if cfg.Media.MaxSizeMB.VideoMB <= 0 {
		cfg.Media.MaxSizeMB.VideoMB = constants.DefaultMaxVideoSizeMB
	}
	if cfg.Media.MaxSizeMB.AudioMB <= 0 {
		cfg.Media.MaxSizeMB.AudioMB = constants.DefaultMaxAudioSizeMB
	}
	if cfg.Media.MaxSizeMB.DocumentMB <= 0 {
		cfg.Media.MaxSizeMB.DocumentMB = constants.DefaultMaxDocumentSizeMB
	}

	if cfg.Dedup.TTLSec <= 0 {
		cfg.Dedup.TTLSec = constants.DefaultDedupTTLSec
	}
	if cfg.Dedup.SweepIntervalSec <= 0 {
		cfg.Dedup.SweepIntervalSec = constants.DefaultDedupSweepSec
	}

	if cfg.Retry.BaseDelaySec <= 0 {
		cfg.Retry.BaseDelaySec = constants.DefaultRetryBaseDelaySec
	}
	if cfg.Retry.Multiplier <= 0 {
		cfg.Retry.Multiplier = constants.DefaultRetryMultiplier
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = constants.DefaultRetryMaxAttempts
	}
	if cfg.Retry.PollIntervalMs <= 0 {
		cfg.Retry.PollIntervalMs = constants.DefaultRetryPollMs
	}

	if cfg.Gateway.TimeoutSec <= 0 {
		cfg.Gateway.TimeoutSec = constants.DefaultGatewayTimeoutSec
	}
	if cfg.Notify.Mode == "" {
		cfg.Notify.Mode = "log"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "chatsink"
	}
}

func applyEnvOverrides(cfg *models.Config) {
	if v := os.Getenv("CHATSINK_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CHATSINK_MEDIA_DIR"); v != "" {
		cfg.Media.StorageDir = v
	}
	if v := os.Getenv("CHATSINK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CHATSINK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port < 65536 {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CHATSINK_GATEWAY_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}
}

func validate(cfg *models.Config) error {
	if cfg.Database.Path == "" {
		return models.ConfigError{Message: "database.path is required"}
	}
	if cfg.Media.StorageDir == "" {
		return models.ConfigError{Message: "media.storageDir is required"}
	}
	if cfg.Notify.Mode != "log" && cfg.Notify.Mode != "websocket" {
		return models.ConfigError{Message: fmt.Sprintf("unknown notify mode: %s", cfg.Notify.Mode)}
	}
	return nil
}
