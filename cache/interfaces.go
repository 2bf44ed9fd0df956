// Package cache provides the in-process price cache used by the resolver,
// with TTL-based staleness checked at read time.
package cache

import "time"

// Entry represents a cached price with the time it was fetched.
// Entries are stored and returned by value; a refresh replaces the whole entry.
type Entry struct {
	Price     string    `json:"price"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Reader defines the interface for reading cache entries
type Reader interface {
	// Get returns the entry stored under key, fresh or not.
	Get(key string) (Entry, bool)
}

// Writer defines the interface for writing cache entries
type Writer interface {
	// Put stores entry under key, replacing any previous entry.
	Put(key string, entry Entry)
}

// Store combines both cache operations
type Store interface {
	Reader
	Writer
}

// IsFresh reports whether entry is younger than ttl at time now.
func IsFresh(entry Entry, now time.Time, ttl time.Duration) bool {
	return now.Sub(entry.FetchedAt) < ttl
}
