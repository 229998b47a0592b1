// Package pg provides PostgreSQL connection management, transactional command
// execution and a command journal.
//
// This package wraps the pgx PostgreSQL driver with retry logic on connect,
// goose migrations for its own schema and small context helpers that carry a
// transaction through the layers of an application.
//
// # Key Features
//
//   - Connect: Creates a connection pool with retry logic and connection verification
//   - Migrate: Applies the journal schema using goose with pgx integration
//   - Healthcheck: Returns a health check function for monitoring connectivity
//   - TxRunner: Implements command.TxRunner on top of pgx transactions
//   - Journal: Stores context snapshots in their JSON wire form
//   - Error classification functions for common PostgreSQL error patterns
//
// # Configuration
//
//	type Config struct {
//		ConnectionString  string        `env:"PG_CONN_URL,required"`
//		MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
//		MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
//		HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
//		MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
//		MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`
//		RetryAttempts     int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
//		RetryInterval     time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"`
//		MigrationsTable   string        `env:"PG_MIGRATIONS_TABLE" envDefault:"schema_migrations"`
//	}
//
// # Usage Example
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal("Failed to connect to PostgreSQL:", err)
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, logger); err != nil {
//		log.Fatal("Migration failed:", err)
//	}
//
//	journal := pg.NewJournal(pool)
//	createStudent := command.Decorate(createStudentCmd,
//		command.WithTransaction(pg.NewTxRunner(pool)),
//		journal.Decorator(),
//	)
//
// # Transaction Management
//
// TxRunner stores the transaction in the context with WithTx. Repositories
// used by commands pick it up with TxFromContext so the whole command runs in
// one transaction:
//
//	func (s *Storage) DeleteStudent(ctx context.Context, id int64) error {
//		const q = `DELETE FROM students WHERE id = $1`
//		if tx, ok := pg.TxFromContext(ctx); ok {
//			_, err := tx.Exec(ctx, q, id)
//			return err
//		}
//		_, err := s.pool.Exec(ctx, q, id)
//		return err
//	}
//
// A unit of work started while the context already carries a transaction
// runs in a savepoint of it. Journal writes join the carried transaction too,
// so a rolled back command leaves no journal entry.
package pg
