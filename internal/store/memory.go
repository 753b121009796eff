// internal/store/memory.go
//
// Game history ledger. Each finished session (completed, abandoned or cut
// off) is recorded as a Result. Boards themselves are never stored; a
// restarted server always deals fresh games.
//
// This file holds the Store interface and the in-memory implementation:
//   - Results kept in insertion order, newest returned first.
//   - Concurrency-safe via RWMutex (sessions finish on their own goroutines).
//   - Bounded; the oldest rows are dropped past the capacity.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sync"
	"time"
)

// Result summarises one connection's game.
type Result struct {
	GameID    string    `json:"gameId"`
	Remote    string    `json:"remote"`
	Transport string    `json:"transport"` // "tcp" | "websocket"
	Dimension int       `json:"dimension"`
	Reveals   int       `json:"reveals"`   // successful REVEAL commands
	Matches   int       `json:"matches"`   // matched cards at the end
	Completed bool      `json:"completed"` // GAME_OVER was sent
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

// Store defines the persistence interface for game results.
// Implementations may be backed by memory (this file) or SQLite.
type Store interface {
	// Save records a finished session.
	Save(ctx context.Context, r Result) error

	// Recent returns up to limit results, newest first.
	Recent(ctx context.Context, limit int) ([]Result, error)

	// Close releases any underlying resources.
	Close() error
}

const defaultCapacity = 1000

// memory is an in-memory slice-based Store implementation.
type memory struct {
	mu       sync.RWMutex // guards results
	results  []Result     // oldest first
	capacity int
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{capacity: defaultCapacity}
}

// Save appends r, evicting the oldest result when full.
func (m *memory) Save(ctx context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	if over := len(m.results) - m.capacity; over > 0 {
		m.results = append([]Result(nil), m.results[over:]...)
	}
	return nil
}

// Recent copies out the newest results.
func (m *memory) Recent(ctx context.Context, limit int) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.results) {
		limit = len(m.results)
	}
	out := make([]Result, 0, limit)
	for i := len(m.results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.results[i])
	}
	return out, nil
}

func (m *memory) Close() error { return nil }
