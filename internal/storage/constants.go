package db

import "time"

// Table names
const (
	TableLibraryBooks    = "library_books"
	TableServiceInfo     = "service_info"
	TableTrustedChannels = "trusted_channels"
)

// Database connection constants
const (
	// ConnectionRetrySleep is the sleep duration between connection retries
	ConnectionRetrySleep = 2 * time.Second
	// maxConnectionRetries is the number of retries for initial connection
	maxConnectionRetries = 10

	sslModeVerifyCA = "verify-ca"
)

// Database pool default constants
const (
	defaultMaxConns          int32         = 4
	defaultMinConns          int32         = 1
	defaultMaxConnIdleTime   time.Duration = 30 * time.Minute
	defaultMaxConnLifetime   time.Duration = time.Hour
	defaultHealthCheckPeriod time.Duration = time.Minute
)

// Advisory lock keys
const (
	migrationLockID = 1000

	// channelLockNamespace keeps channel locks apart from other advisory locks.
	channelLockNamespace int32 = 7301
)
