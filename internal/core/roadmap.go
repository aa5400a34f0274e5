package core

import (
	"math"
	"math/rand"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/config"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/geom"
)

// PoseID indexes the roadmap's flat pose table.
type PoseID int

// EdgeID indexes the roadmap's flat edge table.
type EdgeID int

// Edge is a directed link between two roadmap poses, annotated with the
// fastest admissible entry speed, the turning radius that speed implies,
// the Dubins arc length and the side-of-road flag.
type Edge struct {
	From, To      PoseID
	MaxSpeed      float64
	TurningRadius float64
	Distance      float64
	RightWay      bool
}

// Roadmap is the directed graph of oriented poses the planners search.
// Built once per run; strictly read-only afterwards, so it is shared by
// any number of planner goroutines without locking.
type Roadmap struct {
	cfg *config.Config

	poses     []Pose
	edges     []Edge
	neighbors [][]EdgeID
	interps   []*geom.Interpolator

	byKey map[PoseKey]PoseID
	tree  *rtreego.Rtree

	Width, Height float64
}

// NewRoadmap creates an empty roadmap covering a width x height map.
func NewRoadmap(cfg *config.Config, width, height float64) *Roadmap {
	return &Roadmap{
		cfg:    cfg,
		byKey:  make(map[PoseKey]PoseID),
		tree:   rtreego.NewTree(2, 25, 50),
		Width:  width,
		Height: height,
	}
}

type poseEntry struct {
	id   PoseID
	rect rtreego.Rect
}

func (e *poseEntry) Bounds() rtreego.Rect { return e.rect }

// AddPose interns a pose, returning the existing id when an equal
// (quantised) pose is already present.
func (r *Roadmap) AddPose(p Pose) PoseID {
	key := p.Key(r.cfg)
	if id, ok := r.byKey[key]; ok {
		return id
	}
	id := PoseID(len(r.poses))
	r.poses = append(r.poses, p)
	r.neighbors = append(r.neighbors, nil)
	r.byKey[key] = id

	rect, err := rtreego.NewRect(
		rtreego.Point{p.Position.X(), p.Position.Y()},
		[]float64{1e-6, 1e-6})
	if err == nil {
		r.tree.Insert(&poseEntry{id: id, rect: rect})
	}
	return id
}

// Lookup resolves a pose to its interned id.
func (r *Roadmap) Lookup(p Pose) (PoseID, bool) {
	id, ok := r.byKey[p.Key(r.cfg)]
	return id, ok
}

// AddEdge appends a directed edge and its pre-baked interpolator.
func (r *Roadmap) AddEdge(e Edge, ip *geom.Interpolator) EdgeID {
	id := EdgeID(len(r.edges))
	r.edges = append(r.edges, e)
	r.interps = append(r.interps, ip)
	r.neighbors[e.From] = append(r.neighbors[e.From], id)
	return id
}

// Pose returns the pose table entry for id.
func (r *Roadmap) Pose(id PoseID) Pose { return r.poses[id] }

// Edge returns the edge table entry for id.
func (r *Roadmap) Edge(id EdgeID) Edge { return r.edges[id] }

// Interpolator returns the pre-baked curve for the edge.
func (r *Roadmap) Interpolator(id EdgeID) *geom.Interpolator { return r.interps[id] }

// Neighbors returns the outgoing edge ids of a pose.
func (r *Roadmap) Neighbors(id PoseID) []EdgeID { return r.neighbors[id] }

// NumPoses returns the pose count.
func (r *Roadmap) NumPoses() int { return len(r.poses) }

// NumEdges returns the edge count.
func (r *Roadmap) NumEdges() int { return len(r.edges) }

// AllPoses returns all pose ids in insertion order.
func (r *Roadmap) AllPoses() []PoseID {
	ids := make([]PoseID, len(r.poses))
	for i := range ids {
		ids[i] = PoseID(i)
	}
	return ids
}

// Nearest returns the roadmap pose closest to a free position. Used by the
// agent collaborator to snap arbitrary start/goal positions onto the graph.
func (r *Roadmap) Nearest(p orb.Point) (PoseID, bool) {
	obj := r.tree.NearestNeighbor(rtreego.Point{p.X(), p.Y()})
	if obj == nil {
		return 0, false
	}
	return obj.(*poseEntry).id, true
}

// RandomPose picks a uniformly random roadmap pose.
func (r *Roadmap) RandomPose(rng *rand.Rand) PoseID {
	return PoseID(rng.Intn(len(r.poses)))
}

// RandomFreePose returns a pose guaranteed to lie outside the map bounds,
// usable as a parking spot for agents that have not spawned yet.
func (r *Roadmap) RandomFreePose(rng *rand.Rand) Pose {
	margin := 2 * r.cfg.CarLength
	return Pose{
		Position: orb.Point{-margin, -margin - rng.Float64()*r.Height},
		Angle:    0,
	}
}

// InBounds reports whether a position lies inside the map, padded by one
// car length on every side.
func (r *Roadmap) InBounds(p orb.Point) bool {
	l := r.cfg.CarLength
	return p.X() >= -l && p.X() <= r.Width+l &&
		p.Y() >= -l && p.Y() <= r.Height+l
}

// StateOf converts a pose table entry to a geometry kernel state.
func (r *Roadmap) StateOf(id PoseID) geom.State {
	p := r.poses[id]
	return geom.State{X: p.Position.X(), Y: p.Position.Y(), Theta: p.Angle}
}

// edgeHeadingAligned reports whether heading travels with the segment
// direction (as opposed to the reversed theta+pi variant).
func edgeHeadingAligned(heading, segAngle float64) bool {
	return math.Cos(heading-segAngle) > 0
}
