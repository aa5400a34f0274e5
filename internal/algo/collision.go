package algo

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/config"
)

// bodiesOverlap reports whether two car bodies (oriented rectangles of
// CarLength x CarWidth) intersect. Separating-axis test over the four
// candidate axes of the two rectangles.
func bodiesOverlap(cfg *config.Config, p1 orb.Point, a1 float64, p2 orb.Point, a2 float64) bool {
	hl := cfg.CarLength / 2
	hw := cfg.CarWidth / 2

	corners := func(p orb.Point, a float64) [4]orb.Point {
		sin, cos := math.Sincos(a)
		var out [4]orb.Point
		for i, c := range [4][2]float64{{hl, hw}, {hl, -hw}, {-hl, -hw}, {-hl, hw}} {
			out[i] = orb.Point{
				p.X() + c[0]*cos - c[1]*sin,
				p.Y() + c[0]*sin + c[1]*cos,
			}
		}
		return out
	}
	c1 := corners(p1, a1)
	c2 := corners(p2, a2)

	var axes [4][2]float64
	for i, a := range [2]float64{a1, a2} {
		sin, cos := math.Sincos(a)
		axes[2*i] = [2]float64{cos, sin}
		axes[2*i+1] = [2]float64{-sin, cos}
	}

	project := func(cs [4]orb.Point, axis [2]float64) (float64, float64) {
		lo := math.Inf(1)
		hi := math.Inf(-1)
		for _, c := range cs {
			v := c.X()*axis[0] + c.Y()*axis[1]
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		return lo, hi
	}

	for _, axis := range axes {
		lo1, hi1 := project(c1, axis)
		lo2, hi2 := project(c2, axis)
		if hi1 < lo2 || hi2 < lo1 {
			return false
		}
	}
	return true
}
