package dendrite

import (
	"context"
	"fmt"
	"math"
	"sync"

	. "github.com/stevegt/goadapt"
)

// workRequest is a unit of work for a worker.
type workRequest struct {
	work func()
}

// startWorker starts a worker that runs requests from the work
// channel until it is closed.
func startWorker(work chan *workRequest, wg *sync.WaitGroup) {
	go func() {
		for req := range work {
			req.work()
			wg.Done()
		}
	}()
}

// Run is the outcome of one training run started by TrainRestarts.
type Run struct {
	Seed   int64
	Net    *Network
	Losses []float64
	Err    error
}

// Loss returns the mean loss of the run's last epoch, or NaN if the
// run completed no epochs.
func (r *Run) Loss() float64 {
	if len(r.Losses) == 0 {
		return math.NaN()
	}
	return r.Losses[len(r.Losses)-1]
}

// TrainRestarts trains one network per seed on the same dataset,
// using up to workers goroutines, and returns every run in seed order
// along with the index of the run with the lowest final loss.
// newNet must return a fresh uninitialized network for the given
// seed; networks are never shared between runs.  A Reporter in the
// config of those networks is called from worker goroutines.
func TrainRestarts(ctx context.Context, newNet func(seed int64) (*Network, error), xData, yData [][]float64, seeds []int64, workers int) (runs []*Run, best int, err error) {
	if len(seeds) == 0 {
		return nil, -1, fmt.Errorf("%w: no seeds", ErrInvalidConfig)
	}
	if workers < 1 {
		workers = 1
	}
	err = checkDataset(xData, yData)
	if err != nil {
		return nil, -1, err
	}

	work := make(chan *workRequest)
	var wg sync.WaitGroup
	for i := 0; i < workers && i < len(seeds); i++ {
		startWorker(work, &wg)
	}
	runs = make([]*Run, len(seeds))
	for i, seed := range seeds {
		run := &Run{Seed: seed}
		runs[i] = run
		wg.Add(1)
		work <- &workRequest{work: func() {
			run.Net, run.Err = newNet(run.Seed)
			if run.Err != nil {
				return
			}
			run.Err = run.Net.Initialize(xData, yData)
			if run.Err != nil {
				return
			}
			run.Losses, run.Err = run.Net.TrainContext(ctx)
		}}
	}
	close(work)
	wg.Wait()

	best = -1
	for i, run := range runs {
		if run.Err != nil {
			Debug("seed %d: %v\n", run.Seed, run.Err)
			continue
		}
		Assert(len(run.Losses) > 0, "seed %d trained no epochs", run.Seed)
		if best < 0 || run.Loss() < runs[best].Loss() {
			best = i
		}
	}
	if best < 0 {
		return runs, best, fmt.Errorf("every run failed, first error: %w", runs[0].Err)
	}
	return
}
