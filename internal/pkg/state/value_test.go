package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueSetNotifiesOnChange(t *testing.T) {
	v := NewValue[uint64](0)
	var seen [][2]uint64
	unsubscribe := v.Subscribe(func(old, cur uint64) {
		seen = append(seen, [2]uint64{old, cur})
	})

	assert.True(t, v.Set(7))
	assert.False(t, v.Set(7))
	assert.True(t, v.Set(9))
	assert.Equal(t, uint64(9), v.Get())
	assert.Equal(t, [][2]uint64{{0, 7}, {7, 9}}, seen)

	unsubscribe()
	v.Set(1)
	assert.Len(t, seen, 2)
}

func TestValueCallbackMayReadValue(t *testing.T) {
	v := NewValue("a")
	var got string
	v.Subscribe(func(_, _ string) {
		got = v.Get()
	})
	v.Set("b")
	assert.Equal(t, "b", got)
}
