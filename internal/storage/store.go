// Package storage persists catalogued captures so that an index can be rebuilt
// across process restarts.
package storage

import (
	"context"
	"errors"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/docsis-pnm/internal/index"
)

// ErrNotFound is returned when no capture is stored under a transaction id.
var ErrNotFound = errors.New("capture not found")

// Store provides an interface for persisting catalogued captures.
// Every write operation is atomic.
type Store interface {
	// SaveEntries stores catalogued captures, replacing any capture already
	// stored under the same transaction id. All entries are written in a single
	// transaction.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - entries: Captures to store, including their raw bytes
	//
	// Returns:
	//   - error: If storage fails or context is cancelled
	SaveEntries(ctx context.Context, entries ...index.Entry) error

	// Entry retrieves a single capture by its transaction id.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - txID: Transaction id the capture was catalogued under
	//
	// Returns:
	//   - entry: The stored capture
	//   - error: ErrNotFound if nothing is stored under txID, or if retrieval fails
	Entry(ctx context.Context, txID string) (entry index.Entry, err error)

	// DeleteEntry removes a capture.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - txID: Transaction id the capture was catalogued under
	//
	// Returns:
	//   - deleted: Whether a capture was stored under txID
	//   - error: If deletion fails or context is cancelled
	DeleteEntry(ctx context.Context, txID string) (deleted bool, err error)

	// ReadEntries creates a reader over stored captures ordered by capture time,
	// optionally filtered by device MAC, channel, file type and time range.
	//
	// The returned reader must be closed after use to release database resources.
	//
	// Returns error if the filters are inconsistent or the query fails.
	ReadEntries(ctx context.Context, opts ...ReaderOption) (EntryReader, error)

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	//
	// Returns:
	//   - error: If closing fails or some resources cannot be released
	Close() error
}

// EntryReader iterates over stored captures.
type EntryReader interface {
	// Next advances the iterator and returns true if there is another capture
	// to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the capture the last call to Next advanced to.
	Current() index.Entry

	// Error returns any error that occurred during iteration.
	Error() error

	// Close releases any resources associated with the reader.
	Close() error
}

// LoadInto inserts every stored capture into ix and returns how many were loaded.
func LoadInto(ctx context.Context, s Store, ix *index.Index) (n int, err error) {
	r, err := s.ReadEntries(ctx)
	if err != nil {
		return 0, err
	}
	defer closeWithError(r, &err)

	for r.Next(ctx) {
		if err = ix.Insert(r.Current()); err != nil {
			return n, err
		}
		n++
	}
	return n, r.Error()
}
