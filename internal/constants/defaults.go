package constants

// Ingestion and dedup defaults
const (
	DefaultDedupTTLSec       = 3600
	DefaultDedupSweepSec     = 60
	DefaultRetentionDays     = 30
	DefaultServerPort        = 8082
	ServerErrorChannelSize   = 1
	DefaultCleanupIntervalHr = 24
)

// Retry scheduler defaults: 5s, 15s, 45s, then drop.
const (
	DefaultRetryBaseDelaySec  = 5
	DefaultRetryMultiplier    = 3.0
	DefaultRetryMaxAttempts   = 3
	DefaultRetryPollMs        = 250
	DefaultDatabaseRetryAttempts = 3
	DefaultDBRetryBackoffMs   = 1000
	DefaultDBMaxBackoffMs     = 60000
)

// Media defaults
const (
	DefaultMaxImageSizeMB    = 5
	DefaultMaxVideoSizeMB    = 100
	DefaultMaxAudioSizeMB    = 16
	DefaultMaxDocumentSizeMB = 100
	DefaultThumbnailWidth    = 320
)

// Server timeout defaults
const (
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	DefaultGatewayTimeoutSec     = 30
)

// Validation bounds
const (
	MaxParticipantIDLength = 128
	MaxTransportIDLength   = 256
	MaxContentLength       = 65536
	MinGroupParticipants   = 2
)

// Privacy settings
const (
	DefaultIdentityMaskLength = 4
)
