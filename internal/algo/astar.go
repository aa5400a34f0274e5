package algo

import (
	"container/heap"
	"math"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/config"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/core"
)

// stateKey identifies a search state: the quantised product of roadmap
// pose, speed bucket and the edge the state was reached through. The
// incoming edge matters because two arrivals at the same pose and speed
// via different Dubins curves continue at different cost.
type stateKey struct {
	pose  core.PoseID
	speed int64
	via   core.EdgeID
	start bool
}

// searchNode is one open-set entry.
type searchNode struct {
	key    stateKey
	speed  float64
	g, f   float64
	parent *searchNode
	seq    int
	index  int
}

// searchHeap orders by f ascending; equal f-scores pop in insertion order.
type searchHeap []*searchNode

func (h searchHeap) Len() int { return len(h) }
func (h searchHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].seq < h[j].seq
}
func (h searchHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *searchHeap) Push(x any) {
	n := x.(*searchNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *searchHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// AStar is the single-agent kinodynamic shortest-time search over the
// product of roadmap poses and discretised speeds. With a constraint
// store attached it additionally rejects traversals that violate the
// store (the timed variant CBS replans with); with a nil store it plans
// conflict-free.
type AStar struct {
	cfg   *config.Config
	rm    *core.Roadmap
	store *ConstraintStore
	agent int

	// extraBlocked, when set, vetoes candidate traversals beyond the
	// constraint store. OCBS hooks its conflict-zone registry in here.
	extraBlocked func(vU, vW, t float64, eid core.EdgeID) bool
}

// NewAStar returns the conflict-free planner.
func NewAStar(cfg *config.Config, rm *core.Roadmap) *AStar {
	return &AStar{cfg: cfg, rm: rm, agent: GlobalAgent}
}

// NewTimedAStar returns the constraint-aware planner for one agent.
func NewTimedAStar(cfg *config.Config, rm *core.Roadmap, store *ConstraintStore, agent int) *AStar {
	return &AStar{cfg: cfg, rm: rm, store: store, agent: agent}
}

// Plan searches for the shortest-time path between two roadmap poses.
// The start state has speed zero; the goal test is quantised pose
// equality regardless of final speed. Returns ErrNoPath when the open
// set empties or the iteration cap is hit.
func (a *AStar) Plan(start, goal core.Pose) ([]core.PathNode, error) {
	startID, ok := a.rm.Lookup(start)
	if !ok {
		return nil, ErrNoPath
	}
	goalID, ok := a.rm.Lookup(goal)
	if !ok {
		return nil, ErrNoPath
	}
	goalPose := a.rm.Pose(goalID)

	heuristic := func(id core.PoseID) float64 {
		return a.rm.Pose(id).DistanceTo(goalPose) / a.cfg.CarMaxSpeed
	}

	open := &searchHeap{}
	heap.Init(open)
	seq := 0
	push := func(n *searchNode) {
		n.seq = seq
		seq++
		heap.Push(open, n)
	}

	root := &searchNode{
		key: stateKey{pose: startID, speed: core.SpeedBucket(0, a.cfg), via: core.NoEdge, start: true},
		f:   heuristic(startID),
	}
	push(root)

	gScore := map[stateKey]float64{root.key: 0}
	closed := make(map[stateKey]bool)

	for iter := 0; open.Len() > 0 && iter < a.cfg.AStarMaxIterations; iter++ {
		cur := heap.Pop(open).(*searchNode)
		if closed[cur.key] {
			continue
		}
		closed[cur.key] = true

		if cur.key.pose == goalID {
			return reconstruct(cur), nil
		}

		for _, eid := range a.rm.Neighbors(cur.key.pose) {
			e := a.rm.Edge(eid)
			if cur.speed > e.MaxSpeed {
				continue
			}
			if a.cfg.EnableRightHandTraffic && !e.RightWay {
				continue
			}

			if e.Distance == 0 {
				// Heading change in place: free, speed carries over.
				key := stateKey{pose: e.To, speed: cur.key.speed, via: eid}
				if g, seen := gScore[key]; !seen || cur.g < g {
					gScore[key] = cur.g
					push(&searchNode{
						key: key, speed: cur.speed,
						g: cur.g, f: cur.g + heuristic(e.To),
						parent: cur,
					})
				}
				continue
			}

			for _, vW := range a.successorSpeeds(cur.speed, e) {
				if vW == 0 && cur.speed == 0 {
					continue
				}
				dt := 2 * e.Distance / (cur.speed + vW)
				tentative := cur.g + dt

				if a.store != nil && a.store.Check(a.rm, a.agent, cur.speed, vW, cur.g, eid) {
					continue
				}
				if a.extraBlocked != nil && a.extraBlocked(cur.speed, vW, cur.g, eid) {
					continue
				}

				key := stateKey{pose: e.To, speed: core.SpeedBucket(vW, a.cfg), via: eid}
				if g, seen := gScore[key]; seen && tentative >= g {
					continue
				}
				gScore[key] = tentative
				push(&searchNode{
					key: key, speed: vW,
					g: tentative, f: tentative + heuristic(e.To),
					parent: cur,
				})
			}
		}
	}

	return nil, ErrNoPath
}

// successorSpeeds enumerates the candidate arrival speeds for one edge:
// the acceleration-limited ceiling, the deceleration-limited floor,
// evenly spaced intermediates toward each bound, and the current speed.
func (a *AStar) successorSpeeds(vU float64, e core.Edge) []float64 {
	d := e.Distance
	out := []float64{vU}

	sample := func(bound float64) {
		for i := 1; i <= a.cfg.NumSpeedDivisions; i++ {
			s := vU + (bound-vU)*float64(i)/float64(a.cfg.NumSpeedDivisions)
			if s < a.cfg.SpeedResolution {
				continue
			}
			out = append(out, s)
		}
	}

	vAcc := math.Sqrt(vU*vU + 2*a.cfg.CarAcceleration*d)
	if vAcc > e.MaxSpeed {
		if vU < e.MaxSpeed {
			sample(e.MaxSpeed)
		}
	} else {
		sample(vAcc)
	}

	dec := vU*vU - 2*a.cfg.CarDeceleration*d
	if dec < 0 {
		if vU > 0 {
			sample(0)
		}
	} else {
		sample(math.Sqrt(dec))
	}

	// Filter to the admissible range once, here, so the expansion loop
	// stays simple.
	admissible := out[:0]
	for _, v := range out {
		if v < 0 || v > a.cfg.CarMaxSpeed || v > e.MaxSpeed {
			continue
		}
		admissible = append(admissible, v)
	}
	return admissible
}

func reconstruct(n *searchNode) []core.PathNode {
	var rev []core.PathNode
	for cur := n; cur != nil; cur = cur.parent {
		rev = append(rev, core.PathNode{Pose: cur.key.pose, Speed: cur.speed, Via: cur.key.via})
		if cur.key.start {
			break
		}
	}
	path := make([]core.PathNode, len(rev))
	for i, pn := range rev {
		path[len(rev)-1-i] = pn
	}
	return path
}
