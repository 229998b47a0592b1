// Package redis provides Redis client initialization, health checking and a
// Redis-list backed exchange queue.
//
// This package wraps the go-redis client with connection validation and retry
// logic. Queue lets the requests and responses of an exchange travel through
// Redis lists, so producers and workers can live in different processes.
//
// # Key Features
//
//   - Connect: Creates a Redis client with retry logic and connection verification
//   - Healthcheck: Returns a health check function for monitoring Redis connectivity
//   - NewQueue: Creates an exchange.Queue over a Redis list (RPUSH / BLPOP)
//
// # Configuration
//
// All configuration is handled through the Config struct with environment variable mapping:
//
//	type Config struct {
//		ConnectionURL  string        `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"`
//		RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
//		RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
//		ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
//	}
//
// The configuration supports both redis:// and rediss:// (TLS) URL schemes.
//
// # Usage Example
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal("Failed to connect to Redis:", err)
//	}
//	defer client.Close()
//
//	reg := command.NewRegistry()
//	reg.MustRegister(createStudent, deleteStudent)
//
//	ex := exchange.New(
//		exchange.WithRequests(redis.NewQueue(client, "orchestra:requests", redis.WithRegistry(reg))),
//		exchange.WithResponses(redis.NewQueue(client, "orchestra:responses", redis.WithRegistry(reg))),
//	)
//
// Every command whose contexts cross the queue must be registered, and the
// types of its inputs and results registered with command.RegisterType.
//
// # Error Handling
//
// The package defines domain-specific errors that can be checked using errors.Is():
//
//   - ErrFailedToParseRedisConnString: Returned when the Redis connection URL is malformed
//   - ErrRedisNotReady: Returned when Redis doesn't become ready within the retry budget
//   - ErrEmptyConnectionURL: Returned when no connection URL is provided
//   - ErrHealthcheckFailed: Returned when health check ping fails
//
// Queue returns exchange.ErrQueueClosed after Close. Messages that fail to
// decode are dropped and their error is returned from Take.
package redis
