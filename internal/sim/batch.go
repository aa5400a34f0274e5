package sim

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/elektrokombinacija/mapf-kinodyn/internal/algo"
)

// Batch generates planner statistics: numRuns independent runs on the
// shared roadmap, one CSV row per successful run. Runs are independent,
// so they execute in parallel.
type Batch struct {
	Runner   *Runner
	NumCars  int
	NumRuns  int
	Parallel int // concurrent runs; 0 or 1 is sequential
}

// Row formats one run as the persisted CSV record:
// numCars;carDensity;avgSpeed_1;avgSpeed_2;...
func Row(res *RunResult) []string {
	row := []string{
		fmt.Sprintf("%d", res.NumCars),
		fmt.Sprintf("%g", res.CarDensity),
	}
	for _, s := range res.AvgSpeeds {
		row = append(row, fmt.Sprintf("%g", s))
	}
	return row
}

// Generate runs the batch, appending one row per resolved run to w.
// Unresolved runs are logged and skipped; hard errors abort.
func (b *Batch) Generate(ctx context.Context, w io.Writer, seed int64) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	defer cw.Flush()

	workers := b.Parallel
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < b.NumRuns; i++ {
		i := i
		g.Go(func() error {
			// Every run gets its own generator so parallel batches stay
			// reproducible from the seed.
			rng := rand.New(rand.NewSource(seed + int64(i)))
			solver := algo.NewCBS(b.Runner.cfg, b.Runner.rm, b.Runner.logger)

			res, err := b.Runner.Run(gctx, solver, b.NumCars, rng)
			switch {
			case errors.Is(err, algo.ErrUnresolved), errors.Is(err, algo.ErrInfeasible):
				b.Runner.logger.Warnw("run skipped", "run", i, "err", err)
				return nil
			case err != nil:
				return err
			}
			if !res.Resolved {
				b.Runner.logger.Warnw("run unresolved", "run", i, "id", res.ID)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			return cw.Write(Row(res))
		})
	}
	return g.Wait()
}
