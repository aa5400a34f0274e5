package sim

import (
	"github.com/paulmach/orb"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/core"
)

// GridSpec describes a synthetic Manhattan-grid city: horizontal roads at
// the given y coordinates and vertical roads at the given x coordinates,
// crossing at every (x, y) pair.
type GridSpec struct {
	Width, Height float64
	Rows, Cols    []float64
	RoadWidth     float64
	NumLanes      int
	Radius        float64
}

// GridMap expands a grid description into a city map: each road
// split into one segment per block, pulled back at every crossing, and
// one intersection per crossing referencing its four adjacent segments.
func GridMap(spec GridSpec) *core.CityMap {
	m := &core.CityMap{Width: spec.Width, Height: spec.Height}

	buildRoad := func(fixed float64, stops []float64, horizontal bool) core.Road {
		road := core.Road{ID: len(m.Roads), Width: spec.RoadWidth, NumLanes: spec.NumLanes}
		at := func(v float64) orb.Point {
			if horizontal {
				return orb.Point{v, fixed}
			}
			return orb.Point{fixed, v}
		}
		bounds := append(append([]float64{0}, stops...), boundFor(spec, horizontal))
		for j := 0; j+1 < len(bounds); j++ {
			seg := core.NewSegment(at(bounds[j]), at(bounds[j+1]))
			if j > 0 {
				seg = seg.PullBack(at(bounds[j]), spec.Radius)
			}
			if j+2 < len(bounds) {
				seg = seg.PullBack(at(bounds[j+1]), spec.Radius)
			}
			road.Segments = append(road.Segments, seg)
		}
		return road
	}

	for _, y := range spec.Rows {
		m.Roads = append(m.Roads, buildRoad(y, spec.Cols, true))
	}
	for _, x := range spec.Cols {
		m.Roads = append(m.Roads, buildRoad(x, spec.Rows, false))
	}

	id := 0
	for ri, y := range spec.Rows {
		for ci, x := range spec.Cols {
			m.Intersections = append(m.Intersections, core.Intersection{
				ID:     id,
				Center: orb.Point{x, y},
				Radius: spec.Radius,
				Incident: []core.RoadSegmentRef{
					{RoadID: ri, SegmentID: ci},
					{RoadID: ri, SegmentID: ci + 1},
					{RoadID: len(spec.Rows) + ci, SegmentID: ri},
					{RoadID: len(spec.Rows) + ci, SegmentID: ri + 1},
				},
			})
			id++
		}
	}
	return m
}

func boundFor(spec GridSpec, horizontal bool) float64 {
	if horizontal {
		return spec.Width
	}
	return spec.Height
}
