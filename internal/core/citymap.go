package core

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// ErrMapInvalid is returned when the map collaborator hands us data the
// roadmap builder cannot work with. This is fatal: planning never starts.
var ErrMapInvalid = errors.New("city map invalid")

// Segment is one straight piece of a road centre-line. P1Offset/P2Offset
// are the endpoints pulled back from intersections by the intersection
// radius; the graph is laid out between the offset endpoints.
type Segment struct {
	P1, P2             orb.Point
	P1Offset, P2Offset orb.Point
	Angle              float64
}

// NewSegment builds a segment between two points with the heading derived
// from them and the offset endpoints coincident with the endpoints.
// Intersection pullback, when needed, is applied by the caller.
func NewSegment(p1, p2 orb.Point) Segment {
	return Segment{
		P1: p1, P2: p2,
		P1Offset: p1, P2Offset: p2,
		Angle: math.Atan2(p2.Y()-p1.Y(), p2.X()-p1.X()),
	}
}

// PullBack shortens the offset endpoint nearest to center by r, making
// room for an intersection of that radius.
func (s Segment) PullBack(center orb.Point, r float64) Segment {
	dir := orb.Point{math.Cos(s.Angle), math.Sin(s.Angle)}
	d1 := math.Hypot(s.P1.X()-center.X(), s.P1.Y()-center.Y())
	d2 := math.Hypot(s.P2.X()-center.X(), s.P2.Y()-center.Y())
	if d1 < d2 {
		s.P1Offset = orb.Point{s.P1.X() + r*dir.X(), s.P1.Y() + r*dir.Y()}
	} else {
		s.P2Offset = orb.Point{s.P2.X() - r*dir.X(), s.P2.Y() - r*dir.Y()}
	}
	return s
}

// Length returns the offset-endpoint length of the segment.
func (s Segment) Length() float64 {
	dx := s.P2Offset.X() - s.P1Offset.X()
	dy := s.P2Offset.Y() - s.P1Offset.Y()
	return math.Hypot(dx, dy)
}

// Road is an ordered run of segments with a width and a lane count.
type Road struct {
	ID       int
	Segments []Segment
	Width    float64
	NumLanes int
}

// RoadSegmentRef addresses one segment of one road.
type RoadSegmentRef struct {
	RoadID    int
	SegmentID int
}

// Intersection joins the nearby endpoints of the referenced road segments.
type Intersection struct {
	ID       int
	Center   orb.Point
	Radius   float64
	Incident []RoadSegmentRef
}

// CityMap is the contract with the map collaborator. Origin is the upper
// left corner; all units are meters.
type CityMap struct {
	Roads         []Road
	Intersections []Intersection
	Width, Height float64
}

// Validate checks the map before it is handed to the roadmap builder.
func (m *CityMap) Validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return errors.Wrap(ErrMapInvalid, "non-positive map bounds")
	}
	if len(m.Roads) == 0 {
		return errors.Wrap(ErrMapInvalid, "map has no roads")
	}
	for _, r := range m.Roads {
		if r.NumLanes <= 0 {
			return errors.Wrapf(ErrMapInvalid, "road %d has %d lanes", r.ID, r.NumLanes)
		}
		if r.Width <= 0 {
			return errors.Wrapf(ErrMapInvalid, "road %d has width %f", r.ID, r.Width)
		}
	}
	for _, in := range m.Intersections {
		for _, ref := range in.Incident {
			if ref.RoadID < 0 || ref.RoadID >= len(m.Roads) {
				return errors.Wrapf(ErrMapInvalid, "intersection %d references road %d", in.ID, ref.RoadID)
			}
			if ref.SegmentID < 0 || ref.SegmentID >= len(m.Roads[ref.RoadID].Segments) {
				return errors.Wrapf(ErrMapInvalid, "intersection %d references segment %d of road %d",
					in.ID, ref.SegmentID, ref.RoadID)
			}
		}
	}
	return nil
}
