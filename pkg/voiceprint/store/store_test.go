package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	saved   []Entry
	saveErr error
	closed  bool
}

func (m *memBackend) Save(userID string, vector []float64) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, Entry{UserID: userID, Vector: vector})
	return nil
}

func (m *memBackend) Load() ([]Entry, error) { return m.saved, nil }
func (m *memBackend) Close() error           { m.closed = true; return nil }

type countingBackend struct {
	memBackend
	count    int
	countErr error
}

func (c *countingBackend) Count() (int, error) { return c.count, c.countErr }

func TestPutOverwrites(t *testing.T) {
	s := New()
	require.NoError(t, s.Put("alice", []float64{1, 0}))
	require.NoError(t, s.Put("bob", []float64{0, 1}))
	require.NoError(t, s.Put("alice", []float64{0.6, 0.8}))

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].UserID)
	assert.Equal(t, []float64{0.6, 0.8}, entries[0].Vector)
	assert.Equal(t, []string{"alice", "bob"}, s.UserIDs())
	assert.Equal(t, 2, s.Len())
}

func TestPutCopiesVector(t *testing.T) {
	s := New()
	v := []float64{1, 2}
	require.NoError(t, s.Put("alice", v))
	v[0] = 99

	got, ok := s.Get("alice")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, got)

	_, ok = s.Get("nobody")
	assert.False(t, ok)
}

func TestSnapshotIsolation(t *testing.T) {
	s := New()
	require.NoError(t, s.Put("alice", []float64{1, 0}))
	snap := s.Entries()

	require.NoError(t, s.Put("alice", []float64{0, 1}))
	require.NoError(t, s.Put("bob", []float64{1, 1}))

	require.Len(t, snap, 1)
	assert.Equal(t, []float64{1, 0}, snap[0].Vector)
}

func TestPutRejectsEmptyVector(t *testing.T) {
	assert.ErrorIs(t, New().Put("alice", nil), ErrEmptyVector)
}

func TestConcurrentPuts(t *testing.T) {
	for round := 0; round < 50; round++ {
		s := New()
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); _ = s.Put("alice", []float64{1, 0, 0}) }()
		go func() { defer wg.Done(); _ = s.Put("bob", []float64{0, 1, 0}) }()
		wg.Wait()

		got := map[string][]float64{}
		for _, e := range s.Entries() {
			got[e.UserID] = e.Vector
		}
		require.Len(t, got, 2)
		assert.Equal(t, []float64{1, 0, 0}, got["alice"])
		assert.Equal(t, []float64{0, 1, 0}, got["bob"])
	}
}

func TestConcurrentReadersSeeWholeVectors(t *testing.T) {
	s := New()
	const dim = 64
	fill := func(x float64) []float64 {
		v := make([]float64, dim)
		for i := range v {
			v[i] = x
		}
		return v
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = s.Put(fmt.Sprintf("user-%d", i%8), fill(float64(w*1000+i)))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				for _, e := range s.Entries() {
					for _, x := range e.Vector {
						if x != e.Vector[0] {
							t.Errorf("torn vector for %s", e.UserID)
							return
						}
					}
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, s.Len())
}

func TestOpenLoadsAndWritesThrough(t *testing.T) {
	b := &memBackend{saved: []Entry{{UserID: "carol", Vector: []float64{1}}}}
	s, err := Open(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, s.UserIDs())

	require.NoError(t, s.Put("dave", []float64{0.5}))
	require.Len(t, b.saved, 2)
	assert.Equal(t, "dave", b.saved[1].UserID)

	require.NoError(t, s.Close())
	assert.True(t, b.closed)
}

func TestFailedWriteLeavesStoreUntouched(t *testing.T) {
	b := &memBackend{}
	s, err := Open(b)
	require.NoError(t, err)

	b.saveErr = errors.New("disk full")
	err = s.Put("alice", []float64{1})
	assert.ErrorIs(t, err, b.saveErr)
	assert.Equal(t, 0, s.Len())
}

func TestPersisted(t *testing.T) {
	s := New()
	require.NoError(t, s.Put("alice", []float64{1}))
	n, err := s.Persisted()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "memory-only store counts its entries")

	s, err = Open(&memBackend{})
	require.NoError(t, err)
	require.NoError(t, s.Put("bob", []float64{1}))
	n, err = s.Persisted()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "backend without Count falls back to Len")

	cb := &countingBackend{count: 7}
	s, err = Open(cb)
	require.NoError(t, err)
	n, err = s.Persisted()
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	cb.countErr = errors.New("database is locked")
	_, err = s.Persisted()
	assert.ErrorContains(t, err, "locked")
}
