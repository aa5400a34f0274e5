// Package algo implements the multi-agent planners: the kinodynamic A*
// inner search, the constraint store, and the CBS family of engines.
package algo

import (
	"context"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/core"
)

// Planner failure kinds. Inner failures are data: CBS consumes NoPath as a
// dead branch and only the run-level outcomes surface to callers.
var (
	// ErrNoPath means the inner A* exhausted its open set or hit the
	// iteration cap.
	ErrNoPath = errors.New("no path")
	// ErrInfeasible means some agent had no conflict-free path even at the
	// CBS root.
	ErrInfeasible = errors.New("instance infeasible")
	// ErrUnresolved means the CBS open set emptied before a conflict-free
	// assignment was found. A reported outcome, not a bug.
	ErrUnresolved = errors.New("conflicts unresolved")
	// ErrCancelled means the caller cancelled the search.
	ErrCancelled = errors.New("search cancelled")
)

// Stats counts the work one solver invocation performed.
type Stats struct {
	NodesExpanded int
	Splits        int
	Replans       int
	PlanTime      time.Duration
}

// Solution is a complete multi-agent plan: one node path per agent, with
// per-agent and total costs in seconds of travel time.
type Solution struct {
	Paths      [][]core.PathNode
	Costs      []float64
	Cost       float64
	Resolved   bool
	Decomposed bool
	Stats      Stats
}

// pathCost is the traversal time of an interpolated path: one tick per
// sampled point after the first. An empty-motion path costs nothing.
func pathCost(pts []orb.Point, step float64) float64 {
	if len(pts) <= 1 {
		return 0
	}
	return float64(len(pts)-1) * step
}

// Solver is the interface every multi-agent planner implements.
type Solver interface {
	// Solve plans all agents. The agents' interpolated paths are assigned
	// on success; ErrInfeasible, ErrUnresolved and ErrCancelled are the
	// run-level outcomes.
	Solve(ctx context.Context, agents []*core.Agent) (*Solution, error)

	// Name returns the algorithm name.
	Name() string
}
