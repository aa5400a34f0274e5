// Package geom implements the Dubins geometry kernel: shortest
// bounded-curvature paths between oriented states and pre-baked
// constant-time interpolators over them.
package geom

import (
	"math"

	"github.com/pkg/errors"
)

// ErrGeometryDegenerate flags a start/end pair with identical positions but
// different headings. Callers treat the edge as zero-length.
var ErrGeometryDegenerate = errors.New("degenerate dubins endpoints")

// State is an oriented planar state (x, y in meters, theta in radians).
type State struct {
	X, Y, Theta float64
}

// SegmentType is one motion primitive of a Dubins word.
type SegmentType int

const (
	// SegLeft turns left at maximum curvature.
	SegLeft SegmentType = iota
	// SegStraight drives straight.
	SegStraight
	// SegRight turns right at maximum curvature.
	SegRight
)

// Word identifies one of the six Dubins path classes.
type Word int

const (
	WordLSL Word = iota
	WordRSR
	WordLSR
	WordRSL
	WordRLR
	WordLRL
)

var wordSegments = [6][3]SegmentType{
	{SegLeft, SegStraight, SegLeft},
	{SegRight, SegStraight, SegRight},
	{SegLeft, SegStraight, SegRight},
	{SegRight, SegStraight, SegLeft},
	{SegRight, SegLeft, SegRight},
	{SegLeft, SegRight, SegLeft},
}

// Path is one admissible Dubins path. Segment lengths are normalised to the
// turning radius; TotalLen is in meters.
type Path struct {
	Word     Word
	Segments [3]float64
	Radius   float64
	TotalLen float64
}

// Dubins computes shortest paths with a fixed minimum turning radius.
type Dubins struct {
	Radius float64
}

func mod2pi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// Shortest returns the minimum-length Dubins path from a to b.
// Identical states yield a zero path; identical positions with different
// headings yield ErrGeometryDegenerate.
func (d Dubins) Shortest(a, b State) (Path, error) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dist := math.Hypot(dx, dy)

	if dist == 0 {
		if mod2pi(a.Theta) == mod2pi(b.Theta) {
			return Path{Radius: d.Radius}, nil
		}
		return Path{}, errors.Wrapf(ErrGeometryDegenerate,
			"coincident positions with headings %f and %f", a.Theta, b.Theta)
	}

	phi := math.Atan2(dy, dx)
	alpha := mod2pi(a.Theta - phi)
	beta := mod2pi(b.Theta - phi)
	dn := dist / d.Radius

	best := Path{TotalLen: math.Inf(1)}
	for w := WordLSL; w <= WordLRL; w++ {
		segs, ok := solveWord(w, dn, alpha, beta)
		if !ok {
			continue
		}
		total := (segs[0] + segs[1] + segs[2]) * d.Radius
		if total < best.TotalLen {
			best = Path{Word: w, Segments: segs, Radius: d.Radius, TotalLen: total}
		}
	}
	if math.IsInf(best.TotalLen, 1) {
		return Path{}, errors.Wrap(ErrGeometryDegenerate, "no admissible dubins word")
	}
	return best, nil
}

func solveWord(w Word, d, alpha, beta float64) ([3]float64, bool) {
	sa, ca := math.Sincos(alpha)
	sb, cb := math.Sincos(beta)
	cab := math.Cos(alpha - beta)

	switch w {
	case WordLSL:
		p2 := 2 + d*d - 2*cab + 2*d*(sa-sb)
		if p2 < 0 {
			return [3]float64{}, false
		}
		tmp := math.Atan2(cb-ca, d+sa-sb)
		return [3]float64{mod2pi(-alpha + tmp), math.Sqrt(p2), mod2pi(beta - tmp)}, true
	case WordRSR:
		p2 := 2 + d*d - 2*cab + 2*d*(sb-sa)
		if p2 < 0 {
			return [3]float64{}, false
		}
		tmp := math.Atan2(ca-cb, d-sa+sb)
		return [3]float64{mod2pi(alpha - tmp), math.Sqrt(p2), mod2pi(-beta + tmp)}, true
	case WordLSR:
		p2 := -2 + d*d + 2*cab + 2*d*(sa+sb)
		if p2 < 0 {
			return [3]float64{}, false
		}
		p := math.Sqrt(p2)
		tmp := math.Atan2(-ca-cb, d+sa+sb) - math.Atan2(-2, p)
		return [3]float64{mod2pi(-alpha + tmp), p, mod2pi(-mod2pi(beta) + tmp)}, true
	case WordRSL:
		p2 := -2 + d*d + 2*cab - 2*d*(sa+sb)
		if p2 < 0 {
			return [3]float64{}, false
		}
		p := math.Sqrt(p2)
		tmp := math.Atan2(ca+cb, d-sa-sb) - math.Atan2(2, p)
		return [3]float64{mod2pi(alpha - tmp), p, mod2pi(beta - tmp)}, true
	case WordRLR:
		tmp := (6 - d*d + 2*cab + 2*d*(sa-sb)) / 8
		if math.Abs(tmp) > 1 {
			return [3]float64{}, false
		}
		p := mod2pi(2*math.Pi - math.Acos(tmp))
		t := mod2pi(alpha - math.Atan2(ca-cb, d-sa+sb) + mod2pi(p/2))
		return [3]float64{t, p, mod2pi(alpha - beta - t + mod2pi(p))}, true
	case WordLRL:
		tmp := (6 - d*d + 2*cab + 2*d*(sb-sa)) / 8
		if math.Abs(tmp) > 1 {
			return [3]float64{}, false
		}
		p := mod2pi(2*math.Pi - math.Acos(tmp))
		t := mod2pi(-alpha - math.Atan2(ca-cb, d+sa-sb) + mod2pi(p/2))
		return [3]float64{t, p, mod2pi(mod2pi(beta) - alpha - t + mod2pi(p))}, true
	}
	return [3]float64{}, false
}

// Distance returns the arc length of the shortest path from a to b, or the
// straight-line distance when the pair is degenerate.
func (d Dubins) Distance(a, b State) float64 {
	p, err := d.Shortest(a, b)
	if err != nil {
		return math.Hypot(b.X-a.X, b.Y-a.Y)
	}
	return p.TotalLen
}

// TurnAngles returns the summed left-turn and right-turn angles (radians)
// of the shortest path from a to b. Used by the roadmap builder to prune
// edges that require more steering than the turn budget allows.
func (d Dubins) TurnAngles(a, b State) (left, right float64, err error) {
	p, err := d.Shortest(a, b)
	if err != nil {
		return 0, 0, err
	}
	for i, seg := range wordSegments[p.Word] {
		switch seg {
		case SegLeft:
			left += p.Segments[i]
		case SegRight:
			right += p.Segments[i]
		}
	}
	return left, right, nil
}

// advance moves s along one primitive for a normalised length t.
func advance(s State, seg SegmentType, t float64, radius float64) State {
	switch seg {
	case SegLeft:
		return State{
			X:     s.X + radius*(math.Sin(s.Theta+t)-math.Sin(s.Theta)),
			Y:     s.Y - radius*(math.Cos(s.Theta+t)-math.Cos(s.Theta)),
			Theta: s.Theta + t,
		}
	case SegRight:
		return State{
			X:     s.X - radius*(math.Sin(s.Theta-t)-math.Sin(s.Theta)),
			Y:     s.Y + radius*(math.Cos(s.Theta-t)-math.Cos(s.Theta)),
			Theta: s.Theta - t,
		}
	default:
		return State{
			X:     s.X + radius*t*math.Cos(s.Theta),
			Y:     s.Y + radius*t*math.Sin(s.Theta),
			Theta: s.Theta,
		}
	}
}

// At samples the path at fractional arc length frac in [0, 1], starting
// from state a.
func (p Path) At(a State, frac float64) State {
	if frac <= 0 || p.TotalLen == 0 {
		return a
	}
	if frac > 1 {
		frac = 1
	}
	remaining := frac * (p.Segments[0] + p.Segments[1] + p.Segments[2])
	s := a
	for i := 0; i < 3; i++ {
		seg := wordSegments[p.Word][i]
		l := p.Segments[i]
		if remaining <= l {
			return advance(s, seg, remaining, p.Radius)
		}
		s = advance(s, seg, l, p.Radius)
		remaining -= l
	}
	return s
}

// Interpolate returns the state at fractional arc length frac of the
// shortest path from a to b. Degenerate pairs interpolate linearly.
func (d Dubins) Interpolate(a, b State, frac float64) State {
	p, err := d.Shortest(a, b)
	if err != nil {
		return State{
			X:     a.X + (b.X-a.X)*frac,
			Y:     a.Y + (b.Y-a.Y)*frac,
			Theta: b.Theta,
		}
	}
	return p.At(a, frac)
}
