package core

import (
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/config"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/geom"
)

// straightRoadMap is a 200 m two-lane horizontal road.
func straightRoadMap() *CityMap {
	return &CityMap{
		Width: 200, Height: 100,
		Roads: []Road{{
			ID: 0, Width: 7, NumLanes: 2,
			Segments: []Segment{NewSegment(orb.Point{0, 50}, orb.Point{200, 50})},
		}},
	}
}

func TestBuildStraightRoad(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	rm, err := NewBuilder(cfg, golog.NewTestLogger(t)).Build(straightRoadMap())
	require.NoError(t, err)

	require.Greater(t, rm.NumPoses(), 0)
	require.Greater(t, rm.NumEdges(), 0)

	// Interning round-trips and every edge endpoint is a valid pose.
	for _, id := range rm.AllPoses() {
		got, ok := rm.Lookup(rm.Pose(id))
		require.True(t, ok)
		assert.Equal(t, id, got)
	}
	for i := 0; i < rm.NumEdges(); i++ {
		e := rm.Edge(EdgeID(i))
		assert.GreaterOrEqual(t, int(e.From), 0)
		assert.Less(t, int(e.From), rm.NumPoses())
		assert.GreaterOrEqual(t, int(e.To), 0)
		assert.Less(t, int(e.To), rm.NumPoses())
		assert.GreaterOrEqual(t, e.Distance, 0.0)
		assert.Equal(t, e.Distance, rm.Interpolator(EdgeID(i)).Distance())
	}
}

func TestBuildEdgeInvariants(t *testing.T) {
	t.Parallel()

	// Every surviving edge stays within the turn budget at its annotated
	// radius and its speed limit respects the lateral acceleration bound.
	cfg := config.Default()
	rm, err := NewBuilder(cfg, golog.NewTestLogger(t)).Build(straightRoadMap())
	require.NoError(t, err)

	const eps = 1e-6
	for i := 0; i < rm.NumEdges(); i++ {
		e := rm.Edge(EdgeID(i))
		if e.Distance == 0 {
			continue
		}
		left, right, err := geom.Dubins{Radius: e.TurningRadius}.TurnAngles(rm.StateOf(e.From), rm.StateOf(e.To))
		require.NoError(t, err)
		assert.Less(t, left, 0.75*math.Pi)
		assert.Less(t, right, 0.75*math.Pi)

		assert.LessOrEqual(t, e.MaxSpeed*e.MaxSpeed/cfg.CarMaxGForce, e.TurningRadius+eps)
		assert.LessOrEqual(t, e.MaxSpeed, cfg.CarMaxSpeed)
	}
}

func TestBuildDeterministic(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	logger := golog.NewTestLogger(t)
	rm1, err := NewBuilder(cfg, logger).Build(straightRoadMap())
	require.NoError(t, err)
	rm2, err := NewBuilder(cfg, logger).Build(straightRoadMap())
	require.NoError(t, err)

	require.Equal(t, rm1.NumPoses(), rm2.NumPoses())
	require.Equal(t, rm1.NumEdges(), rm2.NumEdges())
	for _, id := range rm1.AllPoses() {
		assert.Equal(t, rm1.Pose(id), rm2.Pose(id))
	}
	for i := 0; i < rm1.NumEdges(); i++ {
		assert.Equal(t, rm1.Edge(EdgeID(i)), rm2.Edge(EdgeID(i)))
	}
}

func TestBuildRightWayMix(t *testing.T) {
	t.Parallel()

	// A two-lane road carries traffic both ways: some edges are right-way
	// and some are not.
	cfg := config.Default()
	rm, err := NewBuilder(cfg, golog.NewTestLogger(t)).Build(straightRoadMap())
	require.NoError(t, err)

	rightWay, wrongWay := 0, 0
	for i := 0; i < rm.NumEdges(); i++ {
		if rm.Edge(EdgeID(i)).RightWay {
			rightWay++
		} else {
			wrongWay++
		}
	}
	assert.Greater(t, rightWay, 0)
	assert.Greater(t, wrongWay, 0)
}

func TestBuildInvalidMap(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	_, err := NewBuilder(cfg, golog.NewTestLogger(t)).Build(&CityMap{Width: 10, Height: 10})
	assert.ErrorIs(t, err, ErrMapInvalid)
}

func TestRoadmapNearestAndFreePose(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	rm, err := NewBuilder(cfg, golog.NewTestLogger(t)).Build(straightRoadMap())
	require.NoError(t, err)

	id, ok := rm.Nearest(orb.Point{100, 50})
	require.True(t, ok)
	assert.Less(t, rm.Pose(id).DistanceTo(Pose{Position: orb.Point{100, 50}}), 2*cfg.GraphPointDistance)

	rng := newTestRand()
	free := rm.RandomFreePose(rng)
	assert.False(t, rm.InBounds(free.Position))
}
