// Command kinoplan plans collision-free kinodynamic trajectories for a
// set of cars on a demo city map and reports the outcome.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/algo"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/config"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/core"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/sim"
)

func main() {
	var (
		numCars  = flag.Int("cars", 4, "number of agents to plan")
		seed     = flag.Int64("seed", 1, "random seed for start/goal selection")
		solverID = flag.String("solver", "cbs", "solver: cbs or ocbs")
		workers  = flag.Int("workers", 1, "parallel CBS frontier workers (1 = deterministic)")
		debug    = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	logger := golog.NewLogger("kinoplan")
	if *debug {
		logger = golog.NewDebugLogger("kinoplan")
	}

	if err := run(*numCars, *seed, *solverID, *workers, logger); err != nil {
		logger.Errorw("run failed", "err", err)
		os.Exit(1)
	}
}

func run(numCars int, seed int64, solverID string, workers int, logger golog.Logger) error {
	cfg := config.Default()
	runner, err := sim.NewRunner(cfg, demoMap(), logger)
	if err != nil {
		return err
	}

	var solver algo.Solver
	switch solverID {
	case "cbs":
		cbs := algo.NewCBS(cfg, runner.Roadmap(), logger)
		cbs.Workers = workers
		solver = cbs
	case "ocbs":
		solver = algo.NewOCBS(cfg, runner.Roadmap(), logger)
	default:
		return errors.Errorf("unknown solver %q", solverID)
	}

	rng := rand.New(rand.NewSource(seed))
	res, err := runner.Run(context.Background(), solver, numCars, rng)
	switch {
	case errors.Is(err, algo.ErrUnresolved):
		fmt.Println("unresolved: no conflict-free assignment found")
		return nil
	case errors.Is(err, algo.ErrInfeasible):
		fmt.Println("infeasible: some agent has no path at all")
		return nil
	case err != nil:
		return err
	}

	fmt.Printf("%s: %d cars, density %.1f cars/km^2\n", solver.Name(), res.NumCars, res.CarDensity)
	for i, s := range res.AvgSpeeds {
		fmt.Printf("  car %d: avg %.1f km/h\n", i, s*3.6)
	}
	fmt.Printf("  expanded=%d splits=%d replans=%d decomposed=%v took=%v\n",
		res.Stats.NodesExpanded, res.Stats.Splits, res.Stats.Replans,
		res.Decomposed, res.Stats.PlanTime)
	return nil
}

// demoMap is a 500x500 m grid of two horizontal and two vertical
// two-lane roads with four intersections.
func demoMap() *core.CityMap {
	return sim.GridMap(sim.GridSpec{
		Width: 500, Height: 500,
		Rows: []float64{150, 350}, Cols: []float64{150, 350},
		RoadWidth: 7, NumLanes: 2, Radius: 10,
	})
}
