// Package store provides the namespaced key→value persistence contract the
// core builds on. Values are an entity's full current state, read in full and
// written in full; there are no partial updates.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key has never been written
	// (or was evicted by a bounded backend).
	ErrNotFound = errors.New("store: key not found")

	// ErrCapacityExceeded is returned by Set when the backend cannot
	// durably hold the value. Callers must treat it as "state not saved".
	ErrCapacityExceeded = errors.New("store: capacity exceeded")
)

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}
