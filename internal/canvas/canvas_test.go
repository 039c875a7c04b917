package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScaleRoundTrip(t *testing.T) {
	s := ScaleFor(720, 405)
	assert.Equal(t, Scale{X: 0.5, Y: 0.5}, s)

	dx, dy := s.ToUnits(10, -20)
	assert.Equal(t, 20.0, dx)
	assert.Equal(t, -40.0, dy)

	px, py := s.ToPixels(dx, dy)
	assert.Equal(t, 10.0, px)
	assert.Equal(t, -20.0, py)
}

func TestScaleForDegenerateSize(t *testing.T) {
	assert.Equal(t, Identity, ScaleFor(0, 810))
	assert.Equal(t, Identity, ScaleFor(1440, -1))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains(0, 0))
	assert.True(t, Contains(Width, Height))
	assert.False(t, Contains(-1, 10))
	assert.False(t, Contains(10, Height+1))
}
