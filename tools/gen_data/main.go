// Command gen_data generates batch planner statistics: repeated CBS runs
// on a demo map, appended as CSV rows for downstream analysis.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/edaniels/golog"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/config"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/core"
	"github.com/elektrokombinacija/mapf-kinodyn/internal/sim"
)

func main() {
	var (
		numCars  = flag.Int("cars", 4, "agents per run")
		numRuns  = flag.Int("runs", 10, "number of runs")
		parallel = flag.Int("parallel", 4, "concurrent runs")
		seed     = flag.Int64("seed", 1, "base random seed")
		out      = flag.String("out", "data/runs.csv", "output CSV path (appended)")
	)
	flag.Parse()

	logger := golog.NewLogger("gen_data")

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		logger.Fatalw("cannot create output dir", "err", err)
	}
	f, err := os.OpenFile(*out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Fatalw("cannot open output", "err", err)
	}
	defer f.Close()

	runner, err := sim.NewRunner(config.Default(), gridMap(), logger)
	if err != nil {
		logger.Fatalw("roadmap build failed", "err", err)
	}

	batch := &sim.Batch{
		Runner:   runner,
		NumCars:  *numCars,
		NumRuns:  *numRuns,
		Parallel: *parallel,
	}
	if err := batch.Generate(context.Background(), f, *seed); err != nil {
		logger.Fatalw("batch failed", "err", err)
	}
	logger.Infow("batch complete", "runs", *numRuns, "out", *out)
}

// gridMap is a 1 km Manhattan grid: three roads each way, two lanes.
func gridMap() *core.CityMap {
	lines := []float64{200, 500, 800}
	return sim.GridMap(sim.GridSpec{
		Width: 1000, Height: 1000,
		Rows: lines, Cols: lines,
		RoadWidth: 7, NumLanes: 2, Radius: 10,
	})
}
