package algo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestBodiesOverlapAligned(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	// Nose to tail on the same heading: overlap until the centres are a
	// full car length apart.
	assert.True(t, bodiesOverlap(cfg, orb.Point{0, 0}, 0, orb.Point{cfg.CarLength - 0.1, 0}, 0))
	assert.False(t, bodiesOverlap(cfg, orb.Point{0, 0}, 0, orb.Point{cfg.CarLength + 0.1, 0}, 0))

	// Side by side: the lateral clearance is one car width.
	assert.True(t, bodiesOverlap(cfg, orb.Point{0, 0}, 0, orb.Point{0, cfg.CarWidth - 0.1}, 0))
	assert.False(t, bodiesOverlap(cfg, orb.Point{0, 0}, 0, orb.Point{0, cfg.CarWidth + 0.1}, 0))
}

func TestBodiesOverlapPerpendicular(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	perp := math.Pi / 2

	// Crossing bodies touch diagonally well before an aligned pair would.
	assert.True(t, bodiesOverlap(cfg, orb.Point{0, 0}, 0, orb.Point{1.75, 1.75}, perp))

	// A crossing body sitting beyond half a length plus half a width is
	// clear on the lateral axis.
	off := cfg.CarLength/2 + cfg.CarWidth/2 + 0.1
	assert.False(t, bodiesOverlap(cfg, orb.Point{0, 0}, 0, orb.Point{0, off}, perp))
}

func TestBodiesOverlapRotationInvariance(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	// Rotating both bodies together must not change the verdict.
	for _, rot := range []float64{0.3, 1.1, 2.7} {
		sin, cos := math.Sincos(rot)
		turn := func(p orb.Point) orb.Point {
			return orb.Point{p.X()*cos - p.Y()*sin, p.X()*sin + p.Y()*cos}
		}
		near := orb.Point{cfg.CarLength - 0.1, 0}
		far := orb.Point{cfg.CarLength + 0.1, 0}
		assert.True(t, bodiesOverlap(cfg, turn(orb.Point{0, 0}), rot, turn(near), rot))
		assert.False(t, bodiesOverlap(cfg, turn(orb.Point{0, 0}), rot, turn(far), rot))
	}
}
