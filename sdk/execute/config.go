package execute

import "time"

const (
	DefaultMaxAttempts    = 10
	DefaultRequestTimeout = 2 * time.Minute
	DefaultGrpcDeadline   = 10 * time.Second
)

// Config bounds one execution.
type Config struct {
	// MaxAttempts is the total number of sends across all nodes.
	MaxAttempts int
	// MaxNodesPerRequest further limits the candidate set; 0 leaves only
	// the network's fan-out cap.
	MaxNodesPerRequest int
	// RequestTimeout bounds the whole execution including backoff sleeps.
	RequestTimeout time.Duration
	// GrpcDeadline bounds each single call.
	GrpcDeadline time.Duration
}

// DefaultConfig returns the default execution limits.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    DefaultMaxAttempts,
		RequestTimeout: DefaultRequestTimeout,
		GrpcDeadline:   DefaultGrpcDeadline,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.GrpcDeadline <= 0 {
		c.GrpcDeadline = DefaultGrpcDeadline
	}
	return c
}
