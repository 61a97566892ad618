package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimplePolicyKicksAfterConsecutiveDrops(t *testing.T) {
	p := NewSimplePolicy(2)
	d := NewDirectory()
	m := session(d, "alice")

	assert.Equal(t, DropFrame, p.OnBackPressure(nil, m))
	assert.Equal(t, DropFrame, p.OnBackPressure(nil, m))
	p.OnDelivered(m)

	assert.Equal(t, DropFrame, p.OnBackPressure(nil, m))
	assert.Equal(t, DropFrame, p.OnBackPressure(nil, m))
	assert.Equal(t, KickMember, p.OnBackPressure(nil, m))
	assert.Equal(t, DropFrame, p.OnBackPressure(nil, m), "counter restarts after a kick")
}
