package algo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/config"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/core"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/geom"
)

// testConfig keeps the solver deterministic and the sub-CBS fallback out
// of unit tests.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.CBSMaxSubTime = 3600
	return cfg
}

// addEdge links two roadmap poses with a pre-baked interpolator.
func addEdge(rm *core.Roadmap, cfg *config.Config, from, to core.PoseID, maxSpeed float64, rightWay bool) core.EdgeID {
	ip := geom.NewInterpolator(rm.StateOf(from), rm.StateOf(to), cfg.CarMinTurningRadius, cfg.DubinsInterpolationStep)
	return rm.AddEdge(core.Edge{
		From: from, To: to,
		MaxSpeed:      maxSpeed,
		TurningRadius: cfg.CarMinTurningRadius,
		Distance:      ip.Distance(),
		RightWay:      rightWay,
	}, ip)
}

// corridor lays n poses per direction along a straight line: a forward
// chain heading +x and a reverse chain heading -x over the same points.
// Reverse edges carry the given right-way flag.
func corridor(cfg *config.Config, n int, spacing float64, revRightWay bool) (*core.Roadmap, []core.PoseID, []core.PoseID) {
	rm := core.NewRoadmap(cfg, float64(n-1)*spacing+20, 100)
	fwd := make([]core.PoseID, n)
	rev := make([]core.PoseID, n)
	for i := 0; i < n; i++ {
		p := orb.Point{10 + float64(i)*spacing, 50}
		fwd[i] = rm.AddPose(core.Pose{Position: p, Angle: 0})
		rev[i] = rm.AddPose(core.Pose{Position: p, Angle: math.Pi})
	}
	for i := 0; i+1 < n; i++ {
		addEdge(rm, cfg, fwd[i], fwd[i+1], 10, true)
		addEdge(rm, cfg, rev[i+1], rev[i], 10, revRightWay)
	}
	return rm, fwd, rev
}

func TestAStarStraightCorridor(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	rm, fwd, _ := corridor(cfg, 6, 10, true)

	path, err := NewAStar(cfg, rm).Plan(rm.Pose(fwd[0]), rm.Pose(fwd[5]))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(path), 2)

	assert.Equal(t, fwd[0], path[0].Pose)
	assert.Equal(t, core.NoEdge, path[0].Via)
	assert.Zero(t, path[0].Speed)
	assert.Equal(t, fwd[5], path[len(path)-1].Pose)
}

func TestAStarPathKinodynamics(t *testing.T) {
	t.Parallel()

	// Every consecutive pair is joined by a roadmap edge, speeds respect
	// the edge limits, and speed changes respect the longitudinal bounds.
	cfg := testConfig()
	rm, fwd, _ := corridor(cfg, 8, 10, true)

	path, err := NewAStar(cfg, rm).Plan(rm.Pose(fwd[0]), rm.Pose(fwd[7]))
	require.NoError(t, err)

	const eps = 1e-6
	for i := 1; i < len(path); i++ {
		e := rm.Edge(path[i].Via)
		assert.Equal(t, path[i-1].Pose, e.From)
		assert.Equal(t, path[i].Pose, e.To)
		assert.LessOrEqual(t, path[i].Speed, e.MaxSpeed+eps)

		dv2 := math.Abs(path[i].Speed*path[i].Speed - path[i-1].Speed*path[i-1].Speed)
		limit := 2 * math.Max(cfg.CarAcceleration, cfg.CarDeceleration) * e.Distance * (1 + eps)
		assert.LessOrEqual(t, dv2, limit)
	}
}

func TestAStarStartEqualsGoal(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	rm, fwd, _ := corridor(cfg, 4, 10, true)

	// Start and goal differ below the quantisation resolution.
	goal := rm.Pose(fwd[0])
	goal.Position = orb.Point{goal.Position.X() + 0.2, goal.Position.Y()}

	path, err := NewAStar(cfg, rm).Plan(rm.Pose(fwd[0]), goal)
	require.NoError(t, err)
	require.Len(t, path, 1)
	assert.Equal(t, fwd[0], path[0].Pose)
}

func TestAStarRightHandTrafficDeadEnd(t *testing.T) {
	t.Parallel()

	// The reverse chain is not right-way, so with right-hand traffic
	// enforced the goal is unreachable.
	cfg := testConfig()
	cfg.EnableRightHandTraffic = true
	rm, _, rev := corridor(cfg, 5, 10, false)

	_, err := NewAStar(cfg, rm).Plan(rm.Pose(rev[4]), rm.Pose(rev[0]))
	require.ErrorIs(t, err, ErrNoPath)

	// With the convention disabled the same plan succeeds.
	open := testConfig()
	open.EnableRightHandTraffic = false
	rm2, _, rev2 := corridor(open, 5, 10, false)
	_, err = NewAStar(open, rm2).Plan(rm2.Pose(rev2[4]), rm2.Pose(rev2[0]))
	require.NoError(t, err)
}

func TestAStarOffRoadmapPose(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	rm, fwd, _ := corridor(cfg, 4, 10, true)

	off := core.Pose{Position: orb.Point{500, 500}, Angle: 0}
	_, err := NewAStar(cfg, rm).Plan(off, rm.Pose(fwd[0]))
	require.ErrorIs(t, err, ErrNoPath)
}

func TestAStarSpeedExceedsEdgeLimit(t *testing.T) {
	t.Parallel()

	// A slow edge mid-corridor forces the planner to arrive at it no
	// faster than its limit.
	cfg := testConfig()
	rm := core.NewRoadmap(cfg, 200, 100)
	var ids []core.PoseID
	for i := 0; i < 5; i++ {
		ids = append(ids, rm.AddPose(core.Pose{Position: orb.Point{10 + float64(i)*20, 50}, Angle: 0}))
	}
	addEdge(rm, cfg, ids[0], ids[1], 13, true)
	addEdge(rm, cfg, ids[1], ids[2], 13, true)
	slow := addEdge(rm, cfg, ids[2], ids[3], 3, true)
	addEdge(rm, cfg, ids[3], ids[4], 13, true)

	path, err := NewAStar(cfg, rm).Plan(rm.Pose(ids[0]), rm.Pose(ids[4]))
	require.NoError(t, err)

	for i := 1; i < len(path); i++ {
		if path[i].Via == slow {
			assert.LessOrEqual(t, path[i-1].Speed, rm.Edge(slow).MaxSpeed)
			assert.LessOrEqual(t, path[i].Speed, rm.Edge(slow).MaxSpeed)
		}
	}
}

func TestTimedAStarAvoidsConstraint(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	rm, fwd, _ := corridor(cfg, 6, 10, true)

	free, err := NewAStar(cfg, rm).Plan(rm.Pose(fwd[0]), rm.Pose(fwd[5]))
	require.NoError(t, err)
	freePts := core.InterpolatePath(rm, free)

	// Park a blocking body on the unconstrained trajectory at mid-path.
	midTick := len(freePts) / 2
	store := NewConstraintStore(cfg)
	store.Add(Constraint{
		Agent: 0,
		Pos:   freePts[midTick],
		Angle: 0,
		Tick:  midTick,
	}, false)

	constrained, err := NewTimedAStar(cfg, rm, store, 0).Plan(rm.Pose(fwd[0]), rm.Pose(fwd[5]))
	require.NoError(t, err)
	consPts := core.InterpolatePath(rm, constrained)

	// The constrained path must not be at the forbidden spot at the
	// forbidden tick.
	if midTick < len(consPts) {
		d := math.Hypot(
			consPts[midTick].X()-freePts[midTick].X(),
			consPts[midTick].Y()-freePts[midTick].Y())
		assert.Greater(t, d, cfg.CarWidth)
	}

	// Constraints only ever slow an agent down on a corridor.
	assert.GreaterOrEqual(t, len(consPts), len(freePts))
}
