package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/arkantrust/idempotent-payments/models"
)

var (
	paymentsBucket = []byte("payments")
	recordsBucket  = []byte("idempotency")
	eventsBucket   = []byte("events")
)

// Bolt is a Backend on top of a BoltDB file.
//
// BoltDB allows a single writer at a time, so every read-check-write below
// runs inside one db.Update transaction and is atomic without extra locking.
type Bolt struct {
	db *bolt.DB
}

// NewBolt opens (or creates) a BoltDB database at the given path and ensures
// the buckets exist.
func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{paymentsBucket, recordsBucket, eventsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Bolt{db: db}, nil
}

// Close releases the database file lock.
func (s *Bolt) Close() error {
	return s.db.Close()
}

// PutPayment writes p to the payments bucket. It returns ErrDuplicate if the
// id is already taken.
func (s *Bolt) PutPayment(_ context.Context, p *models.Payment) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(paymentsBucket)
		if b.Get([]byte(p.ID)) != nil {
			return ErrDuplicate
		}
		return b.Put([]byte(p.ID), data)
	})
}

// GetPayment retrieves a payment by id. Returns ErrNotFound if absent.
func (s *Bolt) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	var p models.Payment

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(paymentsBucket).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &p)
	})
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// TransitionPayment reads the payment, checks its status against from and
// writes the new status inside one write transaction.
func (s *Bolt) TransitionPayment(_ context.Context, id string, from, to models.PaymentStatus, at time.Time) (*models.Payment, error) {
	var result models.Payment

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(paymentsBucket)

		v := b.Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(v, &result); err != nil {
			return err
		}
		if result.Status != from {
			return ErrStatusMismatch
		}

		result.Status = to
		result.UpdatedAt = at

		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// InsertIfAbsent writes rec only when no record exists under its key. The
// check and the write share a write transaction, which bolt serializes.
func (s *Bolt) InsertIfAbsent(_ context.Context, rec *models.IdempotencyRecord) (InsertResult, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, err
	}

	result := AlreadyExists
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		if b.Get([]byte(rec.Key)) != nil {
			return nil
		}
		result = Inserted
		return b.Put([]byte(rec.Key), data)
	})
	if err != nil {
		return 0, err
	}

	return result, nil
}

// GetRecord retrieves an idempotency record by key. Returns ErrNotFound if
// absent.
func (s *Bolt) GetRecord(_ context.Context, key string) (*models.IdempotencyRecord, error) {
	var rec models.IdempotencyRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(recordsBucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// TransitionRecord updates the record status inside one write transaction
// when the stored status equals from.
func (s *Bolt) TransitionRecord(_ context.Context, key string, from, to models.RecordStatus) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)

		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}

		var rec models.IdempotencyRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		if rec.Status != from {
			return ErrStatusMismatch
		}
		rec.Status = to

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// AppendEvent stores e in a per-payment sub-bucket keyed by a big-endian
// sequence number, so a cursor walks events in append order.
func (s *Bolt) AppendEvent(_ context.Context, e models.PaymentEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(eventsBucket).CreateBucketIfNotExists([]byte(e.AggregateID))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	})
}

// ListEvents walks the payment's event sub-bucket in sequence order.
func (s *Bolt) ListEvents(_ context.Context, paymentID string) ([]models.PaymentEvent, error) {
	events := []models.PaymentEvent{}

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucket).Bucket([]byte(paymentID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var e models.PaymentEvent
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			events = append(events, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return events, nil
}
