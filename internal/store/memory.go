package store

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/manlikestiffler/smart-granary-system-v1/internal/models"
)

// ErrNonMonotonicReading is returned when a reading's ID does not exceed the latest stored ID
var ErrNonMonotonicReading = errors.New("reading id is not greater than the latest stored id")

// Retention bounds how much history the store keeps. Zero values mean unbounded.
type Retention struct {
	Capacity int
	Window   time.Duration
}

// EvictFunc observes a reading dropped by retention
type EvictFunc func(models.Reading)

// MemoryStore is an append-only, ID-ordered log of readings held in memory
type MemoryStore struct {
	mu        sync.RWMutex
	buffer    []models.Reading
	retention Retention
	onEvict   EvictFunc
}

// NewMemoryStore creates a new MemoryStore instance
func NewMemoryStore(retention Retention) *MemoryStore {
	capHint := retention.Capacity
	if capHint <= 0 || capHint > 4096 {
		capHint = 256
	}
	return &MemoryStore{
		buffer:    make([]models.Reading, 0, capHint),
		retention: retention,
	}
}

// OnEvict registers a callback invoked for every evicted reading, oldest first
func (s *MemoryStore) OnEvict(fn EvictFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = fn
}

// Append adds a reading to the end of the log and applies retention
func (s *MemoryStore) Append(r models.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.buffer); n > 0 && r.ID <= s.buffer[n-1].ID {
		return fmt.Errorf("%w: got %d, latest %d", ErrNonMonotonicReading, r.ID, s.buffer[n-1].ID)
	}
	s.buffer = append(s.buffer, r)
	s.evict()
	return nil
}

// evict drops readings from the front while over capacity or outside the window.
// Caller holds the write lock.
func (s *MemoryStore) evict() {
	drop := 0
	if c := s.retention.Capacity; c > 0 && len(s.buffer) > c {
		drop = len(s.buffer) - c
	}
	if w := s.retention.Window; w > 0 {
		cutoff := s.buffer[len(s.buffer)-1].Timestamp.Add(-w)
		for drop < len(s.buffer)-1 && s.buffer[drop].Timestamp.Before(cutoff) {
			drop++
		}
	}
	if drop == 0 {
		return
	}

	if s.onEvict != nil {
		for _, r := range s.buffer[:drop] {
			s.onEvict(r)
		}
	}
	s.buffer = slices.Delete(s.buffer, 0, drop)
}

// Range yields readings with fromID <= ID <= toID in ascending order.
// Bounds are resolved when iteration starts, so the sequence can be replayed.
func (s *MemoryStore) Range(fromID, toID int64) iter.Seq[models.Reading] {
	return s.seq(func(buf []models.Reading) []models.Reading {
		if fromID > toID {
			return nil
		}
		lo := sort.Search(len(buf), func(i int) bool { return buf[i].ID >= fromID })
		hi := sort.Search(len(buf), func(i int) bool { return buf[i].ID > toID })
		return buf[lo:hi]
	})
}

// Between yields readings whose timestamp lies in [from, to]. A zero bound is open.
func (s *MemoryStore) Between(from, to time.Time) iter.Seq[models.Reading] {
	return s.seq(func(buf []models.Reading) []models.Reading {
		out := make([]models.Reading, 0, len(buf))
		for _, r := range buf {
			if !from.IsZero() && r.Timestamp.Before(from) {
				continue
			}
			if !to.IsZero() && r.Timestamp.After(to) {
				continue
			}
			out = append(out, r)
		}
		return out
	})
}

// All yields every retained reading in ascending ID order
func (s *MemoryStore) All() iter.Seq[models.Reading] {
	return s.seq(func(buf []models.Reading) []models.Reading { return buf })
}

// seq copies the selected window under the read lock and yields without holding it,
// so a consumer may append while iterating.
func (s *MemoryStore) seq(selectFn func([]models.Reading) []models.Reading) iter.Seq[models.Reading] {
	return func(yield func(models.Reading) bool) {
		s.mu.RLock()
		window := slices.Clone(selectFn(s.buffer))
		s.mu.RUnlock()

		for _, r := range window {
			if !yield(r) {
				return
			}
		}
	}
}

// Latest returns the reading with the highest ID
func (s *MemoryStore) Latest() (models.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.buffer) == 0 {
		return models.Reading{}, false
	}
	return s.buffer[len(s.buffer)-1], true
}

// Get returns the reading with the given ID if it is still retained
func (s *MemoryStore) Get(id int64) (models.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, found := slices.BinarySearchFunc(s.buffer, id, func(r models.Reading, id int64) int {
		switch {
		case r.ID < id:
			return -1
		case r.ID > id:
			return 1
		}
		return 0
	})
	if !found {
		return models.Reading{}, false
	}
	return s.buffer[i], true
}

// Len returns the number of retained readings
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buffer)
}
