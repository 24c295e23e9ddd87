package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePair(t *testing.T) {
	a, b := NormalizePair("beta", "alpha")
	assert.Equal(t, "alpha", a)
	assert.Equal(t, "beta", b)

	a, b = NormalizePair("alpha", "beta")
	assert.Equal(t, "alpha", a)
	assert.Equal(t, "beta", b)
}

func TestPairKeyIsOrderIndependent(t *testing.T) {
	forward := Conflict{ScheduleAID: "a", ScheduleBID: "b", ConflictType: ConflictTypeRoom}
	backward := Conflict{ScheduleAID: "b", ScheduleBID: "a", ConflictType: ConflictTypeRoom}
	assert.Equal(t, forward.PairKey(), backward.PairKey())

	otherType := Conflict{ScheduleAID: "a", ScheduleBID: "b", ConflictType: ConflictTypeInstructor}
	assert.NotEqual(t, forward.PairKey(), otherType.PairKey())
}

func TestIsWeekday(t *testing.T) {
	for _, day := range Weekdays {
		assert.True(t, IsWeekday(day), day)
	}
	assert.False(t, IsWeekday("Saturday"))
	assert.False(t, IsWeekday("monday"))
	assert.False(t, IsWeekday(""))
}
