package sim

import (
	"bytes"
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/algo"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/config"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/core"
)

// testMap is two crossing two-lane roads, the same shape the planner
// tests use.
func testMap() *core.CityMap {
	center := orb.Point{100, 100}
	const radius = 10.0

	h1 := core.NewSegment(orb.Point{0, 100}, center).PullBack(center, radius)
	h2 := core.NewSegment(center, orb.Point{200, 100}).PullBack(center, radius)
	v1 := core.NewSegment(orb.Point{100, 0}, center).PullBack(center, radius)
	v2 := core.NewSegment(center, orb.Point{100, 200}).PullBack(center, radius)

	return &core.CityMap{
		Width: 200, Height: 200,
		Roads: []core.Road{
			{ID: 0, Width: 7, NumLanes: 2, Segments: []core.Segment{h1, h2}},
			{ID: 1, Width: 7, NumLanes: 2, Segments: []core.Segment{v1, v2}},
		},
		Intersections: []core.Intersection{{
			ID: 0, Center: center, Radius: radius,
			Incident: []core.RoadSegmentRef{
				{RoadID: 0, SegmentID: 0}, {RoadID: 0, SegmentID: 1},
				{RoadID: 1, SegmentID: 0}, {RoadID: 1, SegmentID: 1},
			},
		}},
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.CBSMaxSubTime = 3600
	return cfg
}

func TestSpawnAgents(t *testing.T) {
	t.Parallel()

	runner, err := NewRunner(testConfig(), testMap(), golog.NewTestLogger(t))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	agents, err := runner.SpawnAgents(2, rng)
	require.NoError(t, err)
	require.Len(t, agents, 2)

	for _, ag := range agents {
		assert.GreaterOrEqual(t, ag.Start.DistanceTo(ag.Goal), minSpawnSeparation)
		assert.GreaterOrEqual(t, len(ag.Nodes), 3)
		assert.NotEmpty(t, ag.Path)
	}
}

func TestRunSingleAgent(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	runner, err := NewRunner(cfg, testMap(), golog.NewTestLogger(t))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	solver := algo.NewCBS(cfg, runner.Roadmap(), golog.NewTestLogger(t))
	res, err := runner.Run(context.Background(), solver, 1, rng)
	require.NoError(t, err)

	assert.True(t, res.Resolved)
	assert.Equal(t, 1, res.NumCars)
	assert.InDelta(t, 1e6*1/(200.0*200.0), res.CarDensity, 1e-9)
	require.Len(t, res.AvgSpeeds, 1)
	assert.Greater(t, res.AvgSpeeds[0], 0.0)
	assert.LessOrEqual(t, res.AvgSpeeds[0], cfg.CarMaxSpeed)
}

func TestRowFormat(t *testing.T) {
	t.Parallel()

	res := &RunResult{
		ID:         uuid.New(),
		NumCars:    3,
		CarDensity: 75,
		AvgSpeeds:  []float64{10.5, 9, 12.25},
	}
	row := Row(res)
	require.Equal(t, []string{"3", "75", "10.5", "9", "12.25"}, row)
}

func TestBatchGenerate(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	runner, err := NewRunner(cfg, testMap(), golog.NewTestLogger(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	batch := &Batch{Runner: runner, NumCars: 1, NumRuns: 2, Parallel: 2}
	require.NoError(t, batch.Generate(context.Background(), &buf, 7))

	out := strings.TrimSpace(buf.String())
	require.NotEmpty(t, out)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(line, ";")
		require.GreaterOrEqual(t, len(fields), 3)
		assert.Equal(t, "1", fields[0])
	}
}
