package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

const DefaultBoltFile = "voicedna.bolt"

var enrollmentsBucket = []byte("enrollments")

// BoltClient persists enrollments in a bbolt file, keyed by user ID.
type BoltClient struct {
	db *bolt.DB
}

type boltEnrollment struct {
	Seq       uint64    `json:"seq"`
	Vector    []float64 `json:"vector"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewBoltClient(path string) (*BoltClient, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(enrollmentsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}
	return &BoltClient{db: db}, nil
}

func (c *BoltClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveEnrollment inserts or replaces the vector for userID, keeping the
// sequence number of an existing entry.
func (c *BoltClient) SaveEnrollment(userID string, vector []float64) error {
	if c == nil || c.db == nil {
		return errors.New(errDBClientNil)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(enrollmentsBucket)
		now := time.Now().UTC()

		rec := boltEnrollment{CreatedAt: now}
		if raw := b.Get([]byte(userID)); raw != nil {
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("decoding enrollment %q: %w", userID, err)
			}
		} else {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			rec.Seq = seq
		}
		rec.Vector = vector
		rec.UpdatedAt = now

		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding enrollment %q: %w", userID, err)
		}
		return b.Put([]byte(userID), raw)
	})
}

// ListEnrollments returns all entries ordered by first enrollment.
func (c *BoltClient) ListEnrollments() ([]Record, error) {
	if c == nil || c.db == nil {
		return nil, errors.New(errDBClientNil)
	}

	type seqRecord struct {
		seq uint64
		rec Record
	}
	var rows []seqRecord
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(enrollmentsBucket).ForEach(func(k, v []byte) error {
			var e boltEnrollment
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decoding enrollment %q: %w", k, err)
			}
			rows = append(rows, seqRecord{seq: e.Seq, rec: Record{
				UserID:    string(k),
				Vector:    e.Vector,
				CreatedAt: e.CreatedAt,
				UpdatedAt: e.UpdatedAt,
			}})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r.rec
	}
	return out, nil
}

func (c *BoltClient) CountEnrollments() (int, error) {
	if c == nil || c.db == nil {
		return 0, errors.New(errDBClientNil)
	}
	var n int
	err := c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(enrollmentsBucket).Stats().KeyN
		return nil
	})
	return n, err
}
