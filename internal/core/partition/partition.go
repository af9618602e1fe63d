package partition

import "hash/fnv"

// LockKey returns the advisory lock key for a named group.
// Stable and deterministic: the same group always maps to the same key.
// Uses FNV-64a (stdlib, fast, well-distributed).
func LockKey(group string) int64 {
	h := fnv.New64a()
	h.Write([]byte(group))
	return int64(h.Sum64())
}
