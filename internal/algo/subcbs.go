package algo

import (
	"context"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/core"
)

// decompose is the sub-CBS fallback: split the agent list in half, solve
// the first half, freeze its interpolated trajectories as global
// constraints, then solve the second half against them. Completeness is
// not preserved and the merged cost may be worse than a full search would
// find, so the result is flagged Decomposed; it is Resolved only when
// both halves resolved.
func (c *CBS) decompose(ctx context.Context, agents []*core.Agent, base *ConstraintStore, stats Stats) (*Solution, error) {
	half := len(agents) / 2
	firstIDs := make([]int, half)
	secondIDs := make([]int, len(agents)-half)
	for i := range firstIDs {
		firstIDs[i] = i
	}
	for i := range secondIDs {
		secondIDs[i] = half + i
	}

	first, err := c.solve(ctx, agents[:half], base.CloneForAgents(firstIDs), true)
	if err != nil {
		return nil, err
	}

	// Freeze the first half: one global constraint per sampled tick of
	// each interpolated trajectory.
	secondStore := base.CloneForAgents(secondIDs)
	for _, path := range first.Paths {
		pts := core.InterpolatePath(c.rm, path)
		for tick, pos := range pts {
			secondStore.Add(Constraint{
				Agent: GlobalAgent,
				Pos:   pos,
				Angle: headingAt(pts, tick),
				Tick:  tick,
			}, true)
		}
	}

	second, err := c.solve(ctx, agents[half:], secondStore, true)
	if err != nil {
		return nil, err
	}

	merged := &Solution{
		Paths:      append(append([][]core.PathNode{}, first.Paths...), second.Paths...),
		Costs:      append(append([]float64{}, first.Costs...), second.Costs...),
		Cost:       first.Cost + second.Cost,
		Resolved:   first.Resolved && second.Resolved,
		Decomposed: true,
		Stats:      stats,
	}
	merged.Stats.NodesExpanded += first.Stats.NodesExpanded + second.Stats.NodesExpanded
	merged.Stats.Splits += first.Stats.Splits + second.Stats.Splits
	merged.Stats.Replans += first.Stats.Replans + second.Stats.Replans
	return merged, nil
}
