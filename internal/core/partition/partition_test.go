package partition

import (
	"strconv"
	"testing"
)

func TestLockKey_Determinism(t *testing.T) {
	// Same input must always produce the same key.
	key := LockKey("gapfill")
	for i := 0; i < 100; i++ {
		if got := LockKey("gapfill"); got != key {
			t.Fatalf("LockKey(\"gapfill\") = %d on iteration %d, want %d", got, i, key)
		}
	}
}

func TestLockKey_Distinct(t *testing.T) {
	// 1 000 groups should not collide.
	seen := make(map[int64]string)
	for i := 0; i < 1000; i++ {
		g := "group-" + strconv.Itoa(i)
		k := LockKey(g)
		if prev, ok := seen[k]; ok {
			t.Fatalf("LockKey(%q) collides with LockKey(%q)", g, prev)
		}
		seen[k] = g
	}
}
