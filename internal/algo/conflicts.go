package algo

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/config"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/core"
)

// Conflict is the earliest tick at which two agents' bodies come closer
// than the safety envelope, with both instantaneous poses.
type Conflict struct {
	AgentI, AgentJ int
	Tick           int
	PosI, PosJ     orb.Point
	AngleI, AngleJ float64
}

// headingAt derives the heading at tick i of a pointwise path from the
// next sampled point, the way the body pose is oriented during playback.
func headingAt(path []orb.Point, i int) float64 {
	if i+1 >= len(path) {
		if len(path) < 2 {
			return 0
		}
		i = len(path) - 2
	}
	p, q := path[i], path[i+1]
	return math.Atan2(q.Y()-p.Y(), q.X()-p.X())
}

// FindFirstConflict scans the agents' interpolated paths tick by tick
// (stride CBSPrecisionFactor) and returns the earliest conflict, ties
// broken by the lowest agent pair. Agents that are out of the padded map
// bounds or past their path end at a tick are skipped.
func FindFirstConflict(cfg *config.Config, rm *core.Roadmap, paths [][]orb.Point) *Conflict {
	maxLen := 0
	for _, p := range paths {
		if len(p) > maxLen {
			maxLen = len(p)
		}
	}

	limit := cfg.CollisionSafetyFactor * cfg.CarLength
	for t := 0; t < maxLen; t += cfg.CBSPrecisionFactor {
		for i := 0; i < len(paths); i++ {
			if t >= len(paths[i]) || !rm.InBounds(paths[i][t]) {
				continue
			}
			for j := i + 1; j < len(paths); j++ {
				if t >= len(paths[j]) || !rm.InBounds(paths[j][t]) {
					continue
				}
				pi, pj := paths[i][t], paths[j][t]
				if math.Hypot(pi.X()-pj.X(), pi.Y()-pj.Y()) < limit {
					return &Conflict{
						AgentI: i, AgentJ: j, Tick: t,
						PosI: pi, PosJ: pj,
						AngleI: headingAt(paths[i], t),
						AngleJ: headingAt(paths[j], t),
					}
				}
			}
		}
	}
	return nil
}
