package seqnum_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/packetloom/tcpcore/seqnum"
)

func TestLessThanWraparound(t *testing.T) {
	a := seqnum.Value(math.MaxUint32 - 10)
	b := seqnum.Value(5)

	// b is numerically smaller than a, but modularly a comes first: the
	// sequence wrapped around zero between a and b
	assert.True(t, a.LessThan(b))
	assert.False(t, b.LessThan(a))
}

func TestInRangeAndInWindow(t *testing.T) {
	v := seqnum.Value(100)
	assert.True(t, v.InRange(100, 200))
	assert.False(t, v.InRange(101, 200))
	assert.True(t, v.InWindow(50, 100))
	assert.False(t, v.InWindow(50, 50))
}

func TestAddAndSize(t *testing.T) {
	v := seqnum.Value(math.MaxUint32 - 2)
	w := v.Add(5)
	assert.Equal(t, seqnum.Value(2), w)
	assert.Equal(t, seqnum.Size(5), v.Size(w))
}

func TestWindowSizeClampsNegative(t *testing.T) {
	assert.Equal(t, seqnum.Size(0), seqnum.WindowSize(200, 100))
	assert.Equal(t, seqnum.Size(100), seqnum.WindowSize(100, 200))
}
