package session

import "github.com/pkg/errors"

// ErrKeyNotFound is returned by a Store when no value exists for a key.
var ErrKeyNotFound = errors.New("session key not found")

// Store is durable key-value storage for session state. It is the Go
// counterpart of the browser's origin-scoped storage: a handful of
// fixed string keys, no enumeration, no TTLs.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}
