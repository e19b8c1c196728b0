package voiceprint

import (
	"fmt"

	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/storage"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/store"
)

// enrollmentDB is the method set shared by the storage clients.
type enrollmentDB interface {
	SaveEnrollment(userID string, vector []float64) error
	ListEnrollments() ([]storage.Record, error)
	CountEnrollments() (int, error)
	Close() error
}

// storageAdapter adapts a storage client to store.Backend.
type storageAdapter struct {
	db enrollmentDB
}

// NewSQLiteBackend opens (or creates) a SQLite enrollment database.
func NewSQLiteBackend(dbPath string) (store.Backend, error) {
	if dbPath == "" {
		dbPath = storage.DefaultDBFile
	}
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

// NewBoltBackend opens (or creates) a bbolt enrollment file.
func NewBoltBackend(path string) (store.Backend, error) {
	if path == "" {
		path = storage.DefaultBoltFile
	}
	db, err := storage.NewBoltClient(path)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func newBackend(kind, path string) (store.Backend, error) {
	switch kind {
	case "", BackendMemory:
		return nil, nil
	case BackendSQLite:
		return NewSQLiteBackend(path)
	case BackendBolt:
		return NewBoltBackend(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}

func (s *storageAdapter) Save(userID string, vector []float64) error {
	return s.db.SaveEnrollment(userID, vector)
}

func (s *storageAdapter) Load() ([]store.Entry, error) {
	recs, err := s.db.ListEnrollments()
	if err != nil {
		return nil, err
	}
	entries := make([]store.Entry, len(recs))
	for i, r := range recs {
		entries[i] = store.Entry{UserID: r.UserID, Vector: r.Vector}
	}
	return entries, nil
}

func (s *storageAdapter) Count() (int, error) {
	return s.db.CountEnrollments()
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}
