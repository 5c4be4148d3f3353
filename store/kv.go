package store

import (
	"os"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a key has no stored value yet. Callers treat
// it as an empty state, not a failure.
var ErrNotFound = errors.New("key not found")

// KV is the persisted key-value state that survives restarts: the favorites
// id list and the media replacement cache live here. Implementations must be
// safe for use from a single writer, serialization of writes is handled by
// the stores layered on top.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// FromEnv picks the KV backend: redis when REDIS_HOST is configured, a local
// state directory otherwise.
func FromEnv() KV {
	if os.Getenv("REDIS_HOST") != "" {
		return NewRedisKV()
	}
	dir := os.Getenv("ARCHIVEMUX_STATE_DIR")
	if dir == "" {
		dir = ".state"
	}
	return NewFileKV(dir)
}
