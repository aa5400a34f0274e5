package core

import (
	"math"

	"github.com/paulmach/orb"
)

// NoEdge marks a path node that was not reached via a roadmap edge (the
// start of a path).
const NoEdge = EdgeID(-1)

// PathNode is one step of a planned path: a roadmap pose reached at a
// given speed via an incoming edge.
type PathNode struct {
	Pose  PoseID
	Speed float64
	Via   EdgeID
}

// Agent is one car: a start and a goal pose, the node path the planner
// produced, the pointwise path interpolated from it (one position per
// simulation tick) and the current tick.
type Agent struct {
	ID    int
	Start Pose
	Goal  Pose

	Nodes []PathNode
	Path  []orb.Point
	Tick  int
}

// InterpolatePath expands a planned node path into the pointwise per-tick
// path by walking each edge's pre-baked Dubins curve under the linear
// speed ramp between consecutive node speeds.
func InterpolatePath(rm *Roadmap, nodes []PathNode) []orb.Point {
	var path []orb.Point
	step := rm.cfg.SimStepTime
	t := 0.0
	prevTime := 0.0
	for i := 1; i < len(nodes); i++ {
		prev, cur := nodes[i-1], nodes[i]
		if cur.Via == NoEdge {
			continue
		}
		ip := rm.Interpolator(cur.Via)
		duration := ip.Duration(prev.Speed, cur.Speed)
		for t < prevTime+duration {
			s := ip.AtTime(t-prevTime, prev.Speed, cur.Speed)
			path = append(path, orb.Point{s.X, s.Y})
			t += step
		}
		prevTime += duration
	}
	if len(path) == 0 && len(nodes) > 0 {
		path = append(path, rm.Pose(nodes[0].Pose).Position)
	}
	return path
}

// AssignNodes installs a planned node path and its interpolation.
func (a *Agent) AssignNodes(rm *Roadmap, nodes []PathNode) {
	a.Nodes = nodes
	a.Path = InterpolatePath(rm, nodes)
	a.Tick = 0
}

// Step advances the agent by one simulation tick.
func (a *Agent) Step() {
	if a.Tick < len(a.Path) {
		a.Tick++
	}
}

// Done reports whether the agent has consumed its whole path.
func (a *Agent) Done() bool { return a.Tick >= len(a.Path) }

// Position returns the agent's position at the current tick.
func (a *Agent) Position() orb.Point {
	if len(a.Path) == 0 {
		return a.Start.Position
	}
	i := a.Tick
	if i >= len(a.Path) {
		i = len(a.Path) - 1
	}
	return a.Path[i]
}

// Speed returns the current speed from the finite difference of the next
// sampled point.
func (a *Agent) Speed(step float64) float64 {
	if a.Tick >= len(a.Path)-1 {
		return 0
	}
	p, q := a.Path[a.Tick], a.Path[a.Tick+1]
	return math.Hypot(q.X()-p.X(), q.Y()-p.Y()) / step
}

// PathTime returns the total traversal time of the interpolated path.
func (a *Agent) PathTime(step float64) float64 {
	return float64(len(a.Path)) * step
}

// RemainingTime returns the time left on the path from the current tick,
// or from the start when fromStart is set.
func (a *Agent) RemainingTime(step float64, fromStart bool) float64 {
	from := a.Tick
	if fromStart {
		from = 0
	}
	n := len(a.Path) - from
	if n < 0 {
		n = 0
	}
	return float64(n) * step
}

// ElapsedDistance returns the distance covered up to the current tick.
func (a *Agent) ElapsedDistance() float64 {
	d := 0.0
	for i := 0; i < a.Tick && i+1 < len(a.Path); i++ {
		d += math.Hypot(a.Path[i+1].X()-a.Path[i].X(), a.Path[i+1].Y()-a.Path[i].Y())
	}
	return d
}

// RemainingDistance returns the distance left from the current tick.
func (a *Agent) RemainingDistance() float64 {
	d := 0.0
	for i := a.Tick; i+1 < len(a.Path); i++ {
		d += math.Hypot(a.Path[i+1].X()-a.Path[i].X(), a.Path[i+1].Y()-a.Path[i].Y())
	}
	return d
}
