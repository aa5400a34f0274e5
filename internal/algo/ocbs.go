package algo

import (
	"context"
	"math"
	"time"

	"github.com/edaniels/golog"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/config"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/core"
)

// zoneKey addresses the conflict registry: one bucket per (agent,
// position cell, time bucket). The time bucket width is the planner's
// time resolution.
type zoneKey struct {
	agent  int
	cx, cy int64
	bucket int64
}

// zone is a registered forbidden body pose for one agent.
type zone struct {
	withAgent int
	pos       orb.Point
	angle     float64
	time      float64
}

// OCBS is the priority variant of the engine: a single mutable node and a
// conflict registry. On each conflict only the agent judged more
// responsible is replanned; the one whose cost grew least relative to its
// unconstrained base cost yields first.
type OCBS struct {
	cfg    *config.Config
	rm     *core.Roadmap
	logger golog.Logger

	// MaxRounds bounds the replan loop.
	MaxRounds int
}

// NewOCBS creates the priority-variant solver.
func NewOCBS(cfg *config.Config, rm *core.Roadmap, logger golog.Logger) *OCBS {
	return &OCBS{cfg: cfg, rm: rm, logger: logger, MaxRounds: 1000}
}

// Name returns the algorithm name.
func (o *OCBS) Name() string { return "OCBS" }

func (o *OCBS) key(agent int, pos orb.Point, t float64) zoneKey {
	return zoneKey{
		agent:  agent,
		cx:     int64(math.Round(pos.X() / o.cfg.CellSize)),
		cy:     int64(math.Round(pos.Y() / o.cfg.CellSize)),
		bucket: int64(math.Round(t / o.cfg.TimeResolution)),
	}
}

// Solve runs the single-node priority search.
func (o *OCBS) Solve(ctx context.Context, agents []*core.Agent) (*Solution, error) {
	started := time.Now()
	stats := Stats{}
	zones := make(map[zoneKey][]zone)

	n := len(agents)
	paths := make([][]core.PathNode, n)
	pts := make([][]orb.Point, n)
	costs := make([]float64, n)
	baseCosts := make([]float64, n)
	cost := 0.0

	replan := func(k int) error {
		stats.Replans++
		planner := NewAStar(o.cfg, o.rm)
		planner.extraBlocked = o.blockedFunc(zones, k)
		path, err := planner.Plan(agents[k].Start, agents[k].Goal)
		if err != nil {
			return err
		}
		paths[k] = path
		pts[k] = core.InterpolatePath(o.rm, path)
		oldCost := costs[k]
		costs[k] = pathCost(pts[k], o.cfg.SimStepTime)
		cost += costs[k] - oldCost
		return nil
	}

	for k := range agents {
		if err := replan(k); err != nil {
			return nil, errors.Wrapf(ErrInfeasible, "agent %d: no base path", agents[k].ID)
		}
		baseCosts[k] = costs[k]
	}

	for round := 0; round < o.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(ErrCancelled, err.Error())
		}
		stats.NodesExpanded++

		conflict := FindFirstConflict(o.cfg, o.rm, pts)
		if conflict == nil {
			for i, ag := range agents {
				ag.AssignNodes(o.rm, paths[i])
			}
			sol := &Solution{
				Paths:    paths,
				Costs:    costs,
				Cost:     cost,
				Resolved: true,
				Stats:    stats,
			}
			sol.Stats.PlanTime = time.Since(started)
			o.logger.Infow("ocbs solved",
				"agents", n, "cost", cost, "replans", stats.Replans, "took", sol.Stats.PlanTime)
			return sol, nil
		}
		stats.Splits++

		// The agent whose cost grew less relative to its base cost is the
		// more responsible one and yields.
		yield, other := conflict.AgentI, conflict.AgentJ
		otherPos, yieldPos := conflict.PosJ, conflict.PosI
		otherAngle := conflict.AngleJ
		if costs[conflict.AgentI]/baseCosts[conflict.AgentI] > costs[conflict.AgentJ]/baseCosts[conflict.AgentJ] {
			yield, other = conflict.AgentJ, conflict.AgentI
			otherPos, yieldPos = conflict.PosI, conflict.PosJ
			otherAngle = conflict.AngleI
		}

		t := float64(conflict.Tick) * o.cfg.SimStepTime
		for _, at := range [2]orb.Point{yieldPos, otherPos} {
			k := o.key(yield, at, t)
			zones[k] = append(zones[k], zone{withAgent: other, pos: otherPos, angle: otherAngle, time: t})
		}

		if err := replan(yield); err != nil {
			return nil, errors.Wrapf(ErrUnresolved, "agent %d boxed in after %d rounds", agents[yield].ID, round)
		}
	}

	return nil, errors.Wrap(ErrUnresolved, "round budget exhausted")
}

// blockedFunc is the conflict-zone lookup hooked into the inner A*
// expansion: the candidate traversal is sampled tick by tick and rejected
// when the car body would overlap a registered zone body. Same cheap
// distance pre-filter and overlap predicate as the constraint store.
func (o *OCBS) blockedFunc(zones map[zoneKey][]zone, agent int) func(vU, vW, t float64, eid core.EdgeID) bool {
	return func(vU, vW, t float64, eid core.EdgeID) bool {
		e := o.rm.Edge(eid)
		if e.Distance == 0 {
			return false
		}
		ip := o.rm.Interpolator(eid)
		duration := 2 * e.Distance / (vU + vW)
		for tt := 0.0; tt < duration; tt += o.cfg.SimStepTime {
			s := ip.AtTime(tt, vU, vW)
			at := orb.Point{s.X, s.Y}
			for _, z := range zones[o.key(agent, at, t+tt)] {
				d := math.Hypot(at.X()-z.pos.X(), at.Y()-z.pos.Y())
				if d >= 2*o.cfg.CarLength {
					continue
				}
				if bodiesOverlap(o.cfg, at, s.Theta, z.pos, z.angle) {
					return true
				}
			}
		}
		return false
	}
}
