package ports

import "context"

// Port: string-level durable storage with setItem/getItem semantics.
type KeyValueStore interface {
	// Overwrite the value stored under key.
	SetItem(ctx context.Context, key string, value string) error
	// Return the value under key; ok is false when nothing is stored.
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
}
