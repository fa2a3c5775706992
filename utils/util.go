package utils

import (
	"sync/atomic"
	"time"
)

func StringInSlice(a string, list []string) bool {
	for _, b := range list {
		if b == a {
			return true
		}
	}
	return false
}

// AtomicTime is a wall-clock instant readable without a lock. The zero value
// holds the zero time.
type AtomicTime struct {
	v atomic.Int64
}

func (t *AtomicTime) Store(v time.Time) {
	if v.IsZero() {
		t.v.Store(0)
	} else {
		t.v.Store(v.UnixNano())
	}
}

func (t *AtomicTime) Load() time.Time {
	n := t.v.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
