package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/orchestra/core/command"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// JournalEntry is one recorded context snapshot.
type JournalEntry struct {
	ID            uuid.UUID
	CorrelationID string
	CommandID     string
	State         command.State
	RecordedAt    time.Time
	Document      []byte
}

// Journal stores context snapshots in their wire form. Writes join the
// transaction carried by the context, if any.
type Journal struct {
	db DBTX
}

// NewJournal creates a journal over db. Run Migrate first.
func NewJournal(db DBTX) *Journal {
	return &Journal{db: db}
}

func (j *Journal) conn(ctx context.Context) DBTX {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return j.db
}

// Record stores a snapshot of c tagged with the correlation id found in ctx.
func (j *Journal) Record(ctx context.Context, c *command.Context) (uuid.UUID, error) {
	doc, err := command.MarshalContext(c)
	if err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	const q = `INSERT INTO command_journal (id, correlation_id, command_id, state, document)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := j.conn(ctx).Exec(ctx, q, id, command.CorrelationID(ctx), c.Command().ID(), c.State().String(), doc); err != nil {
		return uuid.Nil, fmt.Errorf("failed to record %s: %w", c.Command().ID(), err)
	}
	return id, nil
}

// Load restores the context recorded under id, bound to its command through reg.
func (j *Journal) Load(ctx context.Context, id uuid.UUID, reg *command.Registry) (*command.Context, error) {
	var doc []byte
	err := j.conn(ctx).QueryRow(ctx, `SELECT document FROM command_journal WHERE id = $1`, id).Scan(&doc)
	if IsNotFoundError(err) {
		return nil, fmt.Errorf("%w: %s", ErrJournalEntryNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return command.UnmarshalContext(doc, reg)
}

// ByCorrelation lists the entries recorded for a correlation id, oldest first.
func (j *Journal) ByCorrelation(ctx context.Context, correlationID string) ([]JournalEntry, error) {
	const q = `SELECT id, correlation_id, command_id, state, recorded_at, document
		FROM command_journal WHERE correlation_id = $1 ORDER BY recorded_at, id`
	rows, err := j.conn(ctx).Query(ctx, q, correlationID)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (JournalEntry, error) {
		var e JournalEntry
		var state string
		if err := row.Scan(&e.ID, &e.CorrelationID, &e.CommandID, &state, &e.RecordedAt, &e.Document); err != nil {
			return e, err
		}
		if err := e.State.UnmarshalText([]byte(state)); err != nil {
			return e, err
		}
		return e, nil
	})
}

// Decorator records a snapshot after every Do and Undo of the decorated
// command. A failed write fails the operation.
func (j *Journal) Decorator() command.Decorator {
	return func(cmd command.Command) command.Command {
		record := func(ctx context.Context, c *command.Context, next command.ExecFunc) error {
			if err := next(ctx, c); err != nil {
				return err
			}
			_, err := j.Record(ctx, c)
			return err
		}
		return command.Wrap(cmd, record, record)
	}
}
