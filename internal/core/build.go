package core

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/paulmach/orb"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/config"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/geom"
)

// Builder constructs a Roadmap from a CityMap. Construction is one-shot
// and deterministic: the same map yields the same pose and edge tables.
type Builder struct {
	cfg    *config.Config
	logger golog.Logger
}

// NewBuilder returns a roadmap builder.
func NewBuilder(cfg *config.Config, logger golog.Logger) *Builder {
	return &Builder{cfg: cfg, logger: logger}
}

// buildPoint is a pose candidate before heading expansion, carrying the
// lane layout context needed for the right-way annotation.
type buildPoint struct {
	pos        orb.Point
	segAngle   float64
	laneOffset float64
}

// candidate is one directed edge candidate awaiting prune & annotate.
type candidate struct {
	from, to   buildPoint
	fromH, toH float64
}

// Build lays out lane poses, links them, prunes edges that over-steer and
// annotates the survivors with speed limits and pre-baked interpolators.
func (b *Builder) Build(m *CityMap) (*Roadmap, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var cands []candidate
	link := func(p1, p2 buildPoint) {
		for _, h1 := range [2]float64{NormalizeAngle(p1.segAngle), NormalizeAngle(p1.segAngle + math.Pi)} {
			for _, h2 := range [2]float64{NormalizeAngle(p2.segAngle), NormalizeAngle(p2.segAngle + math.Pi)} {
				cands = append(cands,
					candidate{from: p1, to: p2, fromH: h1, toH: h2},
					candidate{from: p2, to: p1, fromH: h2, toH: h1})
			}
		}
	}

	for _, road := range m.Roads {
		b.layOutRoad(road, link)
	}
	for _, in := range m.Intersections {
		b.linkIntersection(m, in, link)
	}

	rm := NewRoadmap(b.cfg, m.Width, m.Height)
	seen := make(map[[2]PoseID]bool)
	dropped := 0
	for _, c := range cands {
		fromID := rm.AddPose(Pose{Position: c.from.pos, Angle: c.fromH})
		toID := rm.AddPose(Pose{Position: c.to.pos, Angle: c.toH})
		key := [2]PoseID{fromID, toID}
		if fromID == toID || seen[key] {
			continue
		}
		seen[key] = true

		edge, ip, ok := b.annotate(rm, c, fromID, toID)
		if !ok {
			dropped++
			continue
		}
		rm.AddEdge(edge, ip)
	}

	b.logger.Infow("roadmap built",
		"poses", rm.NumPoses(), "edges", rm.NumEdges(), "dropped", dropped)
	return rm, nil
}

// layOutRoad distributes poses along each lane centre-line and links them:
// consecutive poses within a lane, every pose to its predecessors on the
// other lanes (lane changes), and the seam between consecutive segments.
func (b *Builder) layOutRoad(road Road, link func(p1, p2 buildPoint)) {
	laneOffset := func(lane int) float64 {
		off := (float64(lane) - float64(road.NumLanes)/2) * road.Width / float64(road.NumLanes)
		return off + road.Width/(2*float64(road.NumLanes))
	}
	offsetPoint := func(p orb.Point, angle, off float64) orb.Point {
		return orb.Point{p.X() + off*math.Sin(angle), p.Y() - off*math.Cos(angle)}
	}

	for segIdx, seg := range road.Segments {
		// Seam with the previous segment, per lane.
		if segIdx > 0 {
			prev := road.Segments[segIdx-1]
			for lane := 0; lane < road.NumLanes; lane++ {
				off := laneOffset(lane)
				link(
					buildPoint{pos: offsetPoint(prev.P2Offset, prev.Angle, off), segAngle: prev.Angle, laneOffset: off},
					buildPoint{pos: offsetPoint(seg.P1Offset, seg.Angle, off), segAngle: seg.Angle, laneOffset: off})
			}
		}

		segLen := seg.Length()
		numPoints := int(segLen / b.cfg.GraphPointDistance)
		if numPoints == 0 {
			for lane := 0; lane < road.NumLanes; lane++ {
				off := laneOffset(lane)
				link(
					buildPoint{pos: offsetPoint(seg.P1Offset, seg.Angle, off), segAngle: seg.Angle, laneOffset: off},
					buildPoint{pos: offsetPoint(seg.P2Offset, seg.Angle, off), segAngle: seg.Angle, laneOffset: off})
			}
			continue
		}

		dx := (seg.P2Offset.X() - seg.P1Offset.X()) / float64(numPoints)
		dy := (seg.P2Offset.Y() - seg.P1Offset.Y()) / float64(numPoints)
		at := func(i int, off float64) orb.Point {
			base := orb.Point{seg.P1Offset.X() + float64(i)*dx, seg.P1Offset.Y() + float64(i)*dy}
			return offsetPoint(base, seg.Angle, off)
		}

		for lane := 0; lane < road.NumLanes; lane++ {
			off := laneOffset(lane)
			for i := 1; i <= numPoints; i++ {
				p := buildPoint{pos: at(i, off), segAngle: seg.Angle, laneOffset: off}
				// Predecessor on every lane, so lane changes stay possible
				// at each step.
				for lane2 := 0; lane2 < road.NumLanes; lane2++ {
					off2 := laneOffset(lane2)
					prev := buildPoint{pos: at(i-1, off2), segAngle: seg.Angle, laneOffset: off2}
					link(p, prev)
				}
			}
		}
	}
}

// linkIntersection cross-links the offset endpoints of every incident
// (road, segment) pair, over all lane combinations.
func (b *Builder) linkIntersection(m *CityMap, in Intersection, link func(p1, p2 buildPoint)) {
	closestEnd := func(seg Segment) orb.Point {
		d1 := math.Hypot(seg.P1.X()-in.Center.X(), seg.P1.Y()-in.Center.Y())
		d2 := math.Hypot(seg.P2.X()-in.Center.X(), seg.P2.Y()-in.Center.Y())
		if d1 < d2 {
			return seg.P1Offset
		}
		return seg.P2Offset
	}
	offsetPoint := func(p orb.Point, angle, off float64) orb.Point {
		return orb.Point{p.X() + off*math.Sin(angle), p.Y() - off*math.Cos(angle)}
	}

	for _, ref1 := range in.Incident {
		for _, ref2 := range in.Incident {
			if ref1 == ref2 {
				continue
			}
			road1, road2 := m.Roads[ref1.RoadID], m.Roads[ref2.RoadID]
			seg1, seg2 := road1.Segments[ref1.SegmentID], road2.Segments[ref2.SegmentID]
			end1, end2 := closestEnd(seg1), closestEnd(seg2)

			for l1 := 0; l1 < road1.NumLanes; l1++ {
				off1 := (float64(l1)-float64(road1.NumLanes)/2)*road1.Width/float64(road1.NumLanes) +
					road1.Width/(2*float64(road1.NumLanes))
				for l2 := 0; l2 < road2.NumLanes; l2++ {
					off2 := (float64(l2)-float64(road2.NumLanes)/2)*road2.Width/float64(road2.NumLanes) +
						road2.Width/(2*float64(road2.NumLanes))
					link(
						buildPoint{pos: offsetPoint(end1, seg1.Angle, off1), segAngle: seg1.Angle, laneOffset: off1},
						buildPoint{pos: offsetPoint(end2, seg2.Angle, off2), segAngle: seg2.Angle, laneOffset: off2})
				}
			}
		}
	}
}

// turnBudget is the steering allowance for one edge: paths that turn more
// than this in either direction are not drivable at speed.
const turnBudget = 0.75 * math.Pi

// annotate prunes candidates that over-steer and computes the edge speed
// limit by scanning upward: the largest v whose implied radius v^2/g still
// keeps the Dubins path within the turn budget, minus one step of margin.
func (b *Builder) annotate(rm *Roadmap, c candidate, fromID, toID PoseID) (Edge, *geom.Interpolator, bool) {
	from := geom.State{X: c.from.pos.X(), Y: c.from.pos.Y(), Theta: c.fromH}
	to := geom.State{X: c.to.pos.X(), Y: c.to.pos.Y(), Theta: c.toH}

	rightWay := (c.from.laneOffset > 0) == edgeHeadingAligned(c.fromH, c.from.segAngle)

	withinBudget := func(radius float64) bool {
		left, right, err := geom.Dubins{Radius: radius}.TurnAngles(from, to)
		if err != nil {
			return false
		}
		return left < turnBudget && right < turnBudget
	}

	left, right, err := geom.Dubins{Radius: b.cfg.CarMinTurningRadius}.TurnAngles(from, to)
	if err != nil {
		// Coincident positions with different headings: keep as a
		// zero-length heading-change edge.
		ip := geom.NewInterpolator(from, to, b.cfg.CarMinTurningRadius, b.cfg.DubinsInterpolationStep)
		return Edge{
			From:          fromID,
			To:            toID,
			MaxSpeed:      b.cfg.CarMaxSpeed,
			TurningRadius: b.cfg.CarMinTurningRadius,
			Distance:      0,
			RightWay:      rightWay,
		}, ip, true
	}
	if left >= turnBudget || right >= turnBudget {
		return Edge{}, nil, false
	}

	const speedStep = 0.1
	radiusFor := func(v float64) float64 {
		r := v * v / b.cfg.CarMaxGForce
		if r < b.cfg.CarMinTurningRadius {
			r = b.cfg.CarMinTurningRadius
		}
		return r
	}

	v := speedStep
	for v+speedStep <= b.cfg.CarMaxSpeed && withinBudget(radiusFor(v+speedStep)) {
		v += speedStep
	}
	maxSpeed := v - speedStep
	if maxSpeed < speedStep {
		return Edge{}, nil, false
	}
	radius := radiusFor(v)

	ip := geom.NewInterpolator(from, to, radius, b.cfg.DubinsInterpolationStep)
	return Edge{
		From:          fromID,
		To:            toID,
		MaxSpeed:      maxSpeed,
		TurningRadius: radius,
		Distance:      ip.Distance(),
		RightWay:      rightWay,
	}, ip, true
}
