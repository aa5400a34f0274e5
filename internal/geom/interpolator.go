package geom

import (
	"math"
)

// Interpolator pre-bakes one Dubins curve into a fixed-step polyline so
// that sampling during planning is a constant-time array index. Built once
// per roadmap edge and shared read-only afterwards.
type Interpolator struct {
	start, end State
	radius     float64
	distance   float64
	curve      []State
	straight   bool
}

// NewInterpolator discretises the shortest Dubins curve from start to end
// at the given turning radius, with one sample every step meters.
//
// The computed arc length is validated against the straight-line distance:
// anything shorter than straight-line (beyond a 0.1 m tolerance) or longer
// than straight-line plus a full turn falls back to linear interpolation.
func NewInterpolator(start, end State, radius, step float64) *Interpolator {
	ip := &Interpolator{start: start, end: end, radius: radius}

	absDist := math.Hypot(end.X-start.X, end.Y-start.Y)

	path, err := Dubins{Radius: radius}.Shortest(start, end)
	switch {
	case err != nil:
		// Degenerate pair: treat as a zero-length edge.
		ip.distance = absDist
		ip.straight = true
	case path.TotalLen > absDist+2*math.Pi*radius,
		path.TotalLen+0.1 < absDist:
		ip.distance = absDist
		ip.straight = true
	default:
		ip.distance = path.TotalLen
	}

	ip.curve = append(ip.curve, start)
	if ip.distance > 0 {
		dx := step / ip.distance
		for x := dx; x < 1; x += dx {
			if ip.straight {
				ip.curve = append(ip.curve, State{
					X:     start.X + (end.X-start.X)*x,
					Y:     start.Y + (end.Y-start.Y)*x,
					Theta: end.Theta,
				})
			} else {
				ip.curve = append(ip.curve, path.At(start, x))
			}
		}
	}
	ip.curve = append(ip.curve, end)
	return ip
}

// Distance returns the arc length of the baked curve in meters.
func (ip *Interpolator) Distance() float64 { return ip.distance }

// Start returns the first state of the curve.
func (ip *Interpolator) Start() State { return ip.start }

// End returns the last state of the curve.
func (ip *Interpolator) End() State { return ip.end }

// At samples the curve at fractional arc length frac in [0, 1].
func (ip *Interpolator) At(frac float64) State {
	n := len(ip.curve)
	idx := int(math.Round(float64(n-1) * frac))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return ip.curve[idx]
}

// Duration returns the traversal time of the curve when speed ramps
// linearly from v0 to v1.
func (ip *Interpolator) Duration(v0, v1 float64) float64 {
	if v0+v1 == 0 {
		return 0
	}
	return 2 * ip.distance / (v0 + v1)
}

// AtTime samples the curve at wall-clock time t of a traversal whose speed
// ramps linearly from v0 at t=0 to v1 at the end of the edge.
func (ip *Interpolator) AtTime(t, v0, v1 float64) State {
	if ip.distance == 0 {
		return ip.end
	}
	acc := (v1*v1 - v0*v0) / (2 * ip.distance)
	frac := (0.5*acc*t*t + v0*t) / ip.distance
	return ip.At(frac)
}
