package exchange

import "time"

// Config holds the exchange settings.
// Designed for environment-based configuration with config.Load.
type Config struct {
	// WaitTimeout bounds how long a sender waits for its response.
	WaitTimeout time.Duration `env:"EXCHANGE_WAIT_TIMEOUT" envDefault:"30s"`
	// OperationalPoolSize is the minimum number of workers executing commands.
	// The pool never has fewer workers than CPUs.
	OperationalPoolSize int `env:"EXCHANGE_OPERATIONAL_POOL_SIZE" envDefault:"8"`
	// QueueSize is the buffer size of the default memory queues.
	QueueSize int `env:"EXCHANGE_QUEUE_SIZE" envDefault:"100"`
	// ShutdownTimeout bounds how long Shutdown waits for the processing loops
	// when the caller's context has no deadline.
	ShutdownTimeout time.Duration `env:"EXCHANGE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		WaitTimeout:         30 * time.Second,
		OperationalPoolSize: 8,
		QueueSize:           DefaultQueueSize,
		ShutdownTimeout:     30 * time.Second,
	}
}
