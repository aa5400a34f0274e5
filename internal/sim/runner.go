// Package sim drives end-to-end planning runs: roadmap construction,
// agent spawning, solving, playback and the batch CSV data generation.
package sim

import (
	"context"
	"math/rand"

	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/algo"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/config"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/core"
)

// minSpawnSeparation is the smallest straight-line start/goal distance a
// spawned agent accepts.
const minSpawnSeparation = 100.0

// spawnAttempts bounds the rejection-sampling loop per agent.
const spawnAttempts = 200

// RunResult is the outcome of one planning run, one CSV row in batch
// mode.
type RunResult struct {
	ID         uuid.UUID
	NumCars    int
	CarDensity float64
	AvgSpeeds  []float64
	Resolved   bool
	Decomposed bool
	Stats      algo.Stats
}

// Runner owns a built roadmap and produces planning runs on it.
type Runner struct {
	cfg    *config.Config
	rm     *core.Roadmap
	logger golog.Logger
}

// NewRunner builds the roadmap for a city map once; runs share it.
func NewRunner(cfg *config.Config, m *core.CityMap, logger golog.Logger) (*Runner, error) {
	rm, err := core.NewBuilder(cfg, logger).Build(m)
	if err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, rm: rm, logger: logger}, nil
}

// Roadmap exposes the shared roadmap.
func (r *Runner) Roadmap() *core.Roadmap { return r.rm }

// SpawnAgents picks numCars random start/goal pairs that are at least
// minSpawnSeparation apart and that the conflict-free planner can
// already connect with a non-trivial path.
func (r *Runner) SpawnAgents(numCars int, rng *rand.Rand) ([]*core.Agent, error) {
	planner := algo.NewAStar(r.cfg, r.rm)
	agents := make([]*core.Agent, 0, numCars)
	for i := 0; i < numCars; i++ {
		var ag *core.Agent
		for attempt := 0; attempt < spawnAttempts; attempt++ {
			start := r.rm.Pose(r.rm.RandomPose(rng))
			goal := r.rm.Pose(r.rm.RandomPose(rng))
			if start.DistanceTo(goal) < minSpawnSeparation {
				continue
			}
			path, err := planner.Plan(start, goal)
			if err != nil || len(path) < 3 {
				continue
			}
			ag = &core.Agent{ID: i, Start: start, Goal: goal}
			ag.AssignNodes(r.rm, path)
			break
		}
		if ag == nil {
			return nil, errors.Wrapf(algo.ErrInfeasible, "could not spawn agent %d", i)
		}
		agents = append(agents, ag)
	}
	return agents, nil
}

// Run spawns agents, solves with the given solver and plays the paths
// back, averaging each agent's speed over its in-bounds ticks.
func (r *Runner) Run(ctx context.Context, solver algo.Solver, numCars int, rng *rand.Rand) (*RunResult, error) {
	agents, err := r.SpawnAgents(numCars, rng)
	if err != nil {
		return nil, err
	}

	sol, err := solver.Solve(ctx, agents)
	if err != nil {
		return nil, err
	}

	res := &RunResult{
		ID:         uuid.New(),
		NumCars:    numCars,
		CarDensity: 1e6 * float64(numCars) / (r.rm.Width * r.rm.Height),
		AvgSpeeds:  make([]float64, len(agents)),
		Resolved:   sol.Resolved,
		Decomposed: sol.Decomposed,
		Stats:      sol.Stats,
	}
	for i, ag := range agents {
		res.AvgSpeeds[i] = r.avgSpeedInBounds(ag)
	}
	return res, nil
}

// avgSpeedInBounds plays one agent's path and averages the finite
// difference speed over the ticks spent inside the map.
func (r *Runner) avgSpeedInBounds(ag *core.Agent) float64 {
	var speeds []float64
	for ag.Tick = 0; ag.Tick < len(ag.Path)-1; ag.Tick++ {
		if !r.rm.InBounds(ag.Position()) {
			continue
		}
		speeds = append(speeds, ag.Speed(r.cfg.SimStepTime))
	}
	ag.Tick = 0
	if len(speeds) == 0 {
		return 0
	}
	return stat.Mean(speeds, nil)
}
