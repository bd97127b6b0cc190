package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/arkantrust/idempotent-payments/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS payments (
	id         TEXT PRIMARY KEY,
	amount     INTEGER NOT NULL,
	currency   TEXT NOT NULL,
	status     TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS idempotency_records (
	idem_key     TEXT PRIMARY KEY,
	request_hash TEXT NOT NULL,
	payment_id   TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	status       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS payment_events (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id        TEXT NOT NULL UNIQUE,
	event_type      TEXT NOT NULL,
	aggregate_type  TEXT NOT NULL,
	payment_id      TEXT NOT NULL,
	occurred_at     INTEGER NOT NULL,
	idempotency_key TEXT NOT NULL DEFAULT '',
	amount          INTEGER NOT NULL DEFAULT 0,
	currency        TEXT NOT NULL DEFAULT '',
	reason          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_payment_events_payment ON payment_events(payment_id, seq);
`

// SQLite is a Backend on top of a SQLite database file.
//
// Timestamps are stored as Unix nanoseconds. Atomicity comes from single
// statements: INSERT ... ON CONFLICT DO NOTHING for insert-if-absent and
// UPDATE ... WHERE status = ? for compare-and-set.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// PutPayment inserts p. A conflicting id yields ErrDuplicate.
func (s *SQLite) PutPayment(ctx context.Context, p *models.Payment) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (id, amount, currency, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		p.ID, p.Amount, p.Currency, string(p.Status), p.CreatedAt.UnixNano(), p.UpdatedAt.UnixNano())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

// GetPayment selects a payment by id. Returns ErrNotFound if absent.
func (s *SQLite) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	var (
		p                    models.Payment
		status               string
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, amount, currency, status, created_at, updated_at FROM payments WHERE id = ?`, id).
		Scan(&p.ID, &p.Amount, &p.Currency, &status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatus(status)
	p.CreatedAt = fromUnixNano(createdAt)
	p.UpdatedAt = fromUnixNano(updatedAt)
	return &p, nil
}

// TransitionPayment runs a conditional UPDATE. When no row changes it reads
// the payment to tell ErrNotFound from ErrStatusMismatch.
func (s *SQLite) TransitionPayment(ctx context.Context, id string, from, to models.PaymentStatus, at time.Time) (*models.Payment, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), at.UnixNano(), id, string(from))
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, err := s.GetPayment(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStatusMismatch
	}
	return s.GetPayment(ctx, id)
}

// InsertIfAbsent inserts rec with ON CONFLICT DO NOTHING and reports whether
// the row was written.
func (s *SQLite) InsertIfAbsent(ctx context.Context, rec *models.IdempotencyRecord) (InsertResult, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO idempotency_records (idem_key, request_hash, payment_id, created_at, status)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT(idem_key) DO NOTHING`,
		rec.Key, rec.RequestHash, rec.PaymentID, rec.CreatedAt.UnixNano(), string(rec.Status))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return AlreadyExists, nil
	}
	return Inserted, nil
}

// GetRecord selects the record for key. Returns ErrNotFound if absent.
func (s *SQLite) GetRecord(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	var (
		rec       models.IdempotencyRecord
		status    string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT idem_key, request_hash, payment_id, created_at, status FROM idempotency_records WHERE idem_key = ?`, key).
		Scan(&rec.Key, &rec.RequestHash, &rec.PaymentID, &createdAt, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Status = models.RecordStatus(status)
	rec.CreatedAt = fromUnixNano(createdAt)
	return &rec, nil
}

// TransitionRecord runs a conditional UPDATE on the record status.
func (s *SQLite) TransitionRecord(ctx context.Context, key string, from, to models.RecordStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE idempotency_records SET status = ? WHERE idem_key = ? AND status = ?`,
		string(to), key, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetRecord(ctx, key); err != nil {
			return err
		}
		return ErrStatusMismatch
	}
	return nil
}

// AppendEvent inserts e. Rows are ordered by an autoincrement sequence.
func (s *SQLite) AppendEvent(ctx context.Context, e models.PaymentEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_events
		 (event_id, event_type, aggregate_type, payment_id, occurred_at, idempotency_key, amount, currency, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.AggregateType, e.AggregateID, e.OccurredAt.UnixNano(),
		e.IdempotencyKey, e.Amount, e.Currency, e.Reason)
	return err
}

// ListEvents returns the payment's events ordered by sequence.
func (s *SQLite) ListEvents(ctx context.Context, paymentID string) ([]models.PaymentEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, event_type, aggregate_type, payment_id, occurred_at, idempotency_key, amount, currency, reason
		 FROM payment_events WHERE payment_id = ? ORDER BY seq`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.PaymentEvent{}
	for rows.Next() {
		var (
			e          models.PaymentEvent
			eventType  string
			occurredAt int64
		)
		if err := rows.Scan(&e.ID, &eventType, &e.AggregateType, &e.AggregateID, &occurredAt,
			&e.IdempotencyKey, &e.Amount, &e.Currency, &e.Reason); err != nil {
			return nil, err
		}
		e.Type = models.EventType(eventType)
		e.OccurredAt = fromUnixNano(occurredAt)
		events = append(events, e)
	}
	return events, rows.Err()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
