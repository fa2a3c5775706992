package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStringInSlice(t *testing.T) {
	list := []string{"OPTIONS", "DESCRIBE"}
	assert.True(t, StringInSlice("DESCRIBE", list))
	assert.False(t, StringInSlice("describe", list))
}

func TestAtomicTime(t *testing.T) {
	var at AtomicTime
	assert.True(t, at.Load().IsZero())

	now := time.Now()
	at.Store(now)
	assert.True(t, now.Equal(at.Load()))

	at.Store(time.Time{})
	assert.True(t, at.Load().IsZero())
}
