package config

import "time"

// Centralized default values for configuration

const (
	DefaultMaxAttempts    = 10
	DefaultMinBackoff     = 250 * time.Millisecond
	DefaultMaxBackoff     = 8 * time.Second
	DefaultRequestTimeout = 2 * time.Minute
	DefaultGrpcDeadline   = 10 * time.Second
	DefaultSecurePort     = 50212
	DefaultUserAgent      = "ledger-sdk-go"
	DefaultLogLevel       = "info"
	DefaultKeyType        = "ed25519"

	// EnvPrefix prefixes environment overrides, e.g. LEDGER_OPERATOR_ACCOUNT_ID.
	EnvPrefix = "LEDGER"
)
