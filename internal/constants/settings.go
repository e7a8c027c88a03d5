package constants

import "time"

const (
	// DefaultLockTimeout bounds how long a commit waits for the per-option lock
	DefaultLockTimeout = 2 * time.Second

	// DefaultIntentTTL is how long a first click stays armed before it must be repeated
	DefaultIntentTTL = 10 * time.Minute

	// DefaultLockTTL is the expiry placed on distributed locks so a crashed holder cannot wedge an option
	DefaultLockTTL = 10 * time.Second

	// DefaultLockRetryDelay is the pause between distributed lock attempts
	DefaultLockRetryDelay = 25 * time.Millisecond

	// DefaultActRatePerSecond throttles act calls per user on the HTTP API
	DefaultActRatePerSecond = 5
	DefaultActBurst         = 2

	DefaultHTTPAddr = ":8080"

	// Environment variable names
	EnvDBConnection = "SEATWISE_DB"
	EnvTestPostgres = "SEATWISE_TEST_POSTGRES"
	EnvTestRedis    = "SEATWISE_TEST_REDIS"
)
