package algo

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/config"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/core"
)

// CBS is the conflict-based search engine: a best-first search over a
// tree of constraint sets, re-planning one agent per child with the timed
// A*. The roadmap is shared read-only; every node owns its cloned
// constraint store and its paths.
type CBS struct {
	cfg    *config.Config
	rm     *core.Roadmap
	logger golog.Logger

	// Workers > 1 expands that many frontier nodes concurrently. The
	// result may then be any of several cost-equal resolved nodes; leave
	// at 1 when determinism matters.
	Workers int
}

// NewCBS creates a CBS solver over a built roadmap.
func NewCBS(cfg *config.Config, rm *core.Roadmap, logger golog.Logger) *CBS {
	return &CBS{cfg: cfg, rm: rm, logger: logger, Workers: 1}
}

// Name returns the algorithm name.
func (c *CBS) Name() string { return "CBS" }

// cbsNode is one constraint-tree node.
type cbsNode struct {
	paths  [][]core.PathNode
	pts    [][]orb.Point
	store  *ConstraintStore
	costs  []float64
	cost   float64
	depth  int
	index  int
}

// cbsHeap orders by total cost ascending, ties by depth ascending.
type cbsHeap []*cbsNode

func (h cbsHeap) Len() int { return len(h) }
func (h cbsHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	return h[i].depth < h[j].depth
}
func (h cbsHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *cbsHeap) Push(x any) {
	n := x.(*cbsNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *cbsHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// Solve plans all agents, assigning each its path on success.
func (c *CBS) Solve(ctx context.Context, agents []*core.Agent) (*Solution, error) {
	started := time.Now()
	sol, err := c.solve(ctx, agents, NewConstraintStore(c.cfg), true)
	if err != nil {
		return nil, err
	}
	sol.Stats.PlanTime = time.Since(started)
	for i, ag := range agents {
		ag.AssignNodes(c.rm, sol.Paths[i])
	}
	c.logger.Infow("cbs solved",
		"agents", len(agents), "cost", sol.Cost,
		"expanded", sol.Stats.NodesExpanded, "splits", sol.Stats.Splits,
		"decomposed", sol.Decomposed, "took", sol.Stats.PlanTime)
	return sol, nil
}

// planRoot plans every agent independently against the base store.
func (c *CBS) planRoot(agents []*core.Agent, base *ConstraintStore) (*cbsNode, error) {
	root := &cbsNode{
		paths: make([][]core.PathNode, len(agents)),
		pts:   make([][]orb.Point, len(agents)),
		costs: make([]float64, len(agents)),
		store: base,
	}
	for i, ag := range agents {
		path, err := NewTimedAStar(c.cfg, c.rm, base, i).Plan(ag.Start, ag.Goal)
		if err != nil {
			return nil, errors.Wrapf(ErrInfeasible, "agent %d: no root path", ag.ID)
		}
		root.paths[i] = path
		root.pts[i] = core.InterpolatePath(c.rm, path)
		root.costs[i] = pathCost(root.pts[i], c.cfg.SimStepTime)
		root.cost += root.costs[i]
	}
	return root, nil
}

// solve runs the constraint-tree search. allowSub enables the recursive
// agent-partition fallback once the wall-clock budget is spent.
func (c *CBS) solve(ctx context.Context, agents []*core.Agent, base *ConstraintStore, allowSub bool) (*Solution, error) {
	started := time.Now()
	stats := Stats{}

	root, err := c.planRoot(agents, base)
	if err != nil {
		return nil, err
	}

	open := &cbsHeap{}
	heap.Init(open)
	heap.Push(open, root)
	var mu sync.Mutex // guards open in parallel mode

	budget := time.Duration(c.cfg.CBSMaxSubTime * float64(time.Second))

	for open.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(ErrCancelled, err.Error())
		}
		if allowSub && len(agents) > 1 && time.Since(started) > budget {
			c.logger.Warnw("cbs budget exceeded, decomposing",
				"agents", len(agents), "expanded", stats.NodesExpanded)
			return c.decompose(ctx, agents, base, stats)
		}

		// Pop a batch: one node sequentially, up to Workers in parallel.
		batch := []*cbsNode{heap.Pop(open).(*cbsNode)}
		for len(batch) < c.Workers && open.Len() > 0 {
			batch = append(batch, heap.Pop(open).(*cbsNode))
		}

		var resolved *cbsNode
		expand := func(node *cbsNode) error {
			conflict := FindFirstConflict(c.cfg, c.rm, node.pts)
			if conflict == nil {
				mu.Lock()
				if resolved == nil || node.cost < resolved.cost {
					resolved = node
				}
				mu.Unlock()
				return nil
			}
			children := c.split(agents, node, conflict, &stats, &mu)
			mu.Lock()
			for _, ch := range children {
				heap.Push(open, ch)
			}
			c.enforceBound(open)
			mu.Unlock()
			return nil
		}

		stats.NodesExpanded += len(batch)
		if len(batch) == 1 {
			if err := expand(batch[0]); err != nil {
				return nil, err
			}
		} else {
			g := errgroup.Group{}
			for _, node := range batch {
				node := node
				g.Go(func() error { return expand(node) })
			}
			if err := g.Wait(); err != nil {
				return nil, err
			}
		}

		if resolved != nil {
			return &Solution{
				Paths:    resolved.paths,
				Costs:    resolved.costs,
				Cost:     resolved.cost,
				Resolved: true,
				Stats:    stats,
			}, nil
		}
	}

	return nil, errors.Wrapf(ErrUnresolved, "open set exhausted after %d expansions", stats.NodesExpanded)
}

// split generates up to two children from a conflict, constraining each
// involved agent against the other's instantaneous body pose.
func (c *CBS) split(agents []*core.Agent, node *cbsNode, conflict *Conflict, stats *Stats, mu *sync.Mutex) []*cbsNode {
	mu.Lock()
	stats.Splits++
	mu.Unlock()

	sides := [2]struct {
		agent int
		pos   orb.Point
		angle float64
	}{
		{conflict.AgentI, conflict.PosJ, conflict.AngleJ},
		{conflict.AgentJ, conflict.PosI, conflict.AngleI},
	}

	var children []*cbsNode
	for _, side := range sides {
		cons := Constraint{
			Agent: side.agent,
			Pos:   side.pos,
			Angle: side.angle,
			Tick:  conflict.Tick,
		}
		// A constraint already present means this branch has been tried;
		// re-adding it would loop the tree.
		if node.store.Has(cons, false) {
			continue
		}

		childStore := node.store.Clone()
		childStore.Add(cons, false)

		mu.Lock()
		stats.Replans++
		mu.Unlock()

		k := side.agent
		path, err := NewTimedAStar(c.cfg, c.rm, childStore, k).Plan(agents[k].Start, agents[k].Goal)
		if err != nil {
			continue // dead branch
		}

		child := &cbsNode{
			paths: append([][]core.PathNode(nil), node.paths...),
			pts:   append([][]orb.Point(nil), node.pts...),
			costs: append([]float64(nil), node.costs...),
			store: childStore,
			depth: node.depth + 1,
		}
		child.paths[k] = path
		child.pts[k] = core.InterpolatePath(c.rm, path)
		child.costs[k] = pathCost(child.pts[k], c.cfg.SimStepTime)
		child.cost = node.cost - node.costs[k] + child.costs[k]
		children = append(children, child)
	}
	return children
}

// enforceBound keeps the open set within CBSMaxOpenSetSize by discarding
// the highest-cost entries. Caller holds the heap lock.
func (c *CBS) enforceBound(open *cbsHeap) {
	for open.Len() > c.cfg.CBSMaxOpenSetSize {
		worst := 0
		for i, n := range *open {
			if n.cost > (*open)[worst].cost {
				worst = i
			}
		}
		heap.Remove(open, worst)
	}
}
