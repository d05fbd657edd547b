// Command dendrite trains a feed-forward network on a small dataset
// and prints its predictions.
//
//	dendrite -shape '(xor (tanh 4) (sigmoid y))' -table xor -lr 0.5 -epochs 5000
//	dendrite -shape '(iris (sigmoid 10))' -csv iris.csv -targets 3
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/dendrite"
	"github.com/stevegt/dendrite/shape"
)

func main() {
	shapeTxt := flag.String("shape", "(xor (tanh 4) (sigmoid y))", "network shape")
	table := flag.String("table", "xor", "truth table to train on: and, or, xor, nand")
	csvFn := flag.String("csv", "", "train on a CSV file instead of a truth table")
	targets := flag.Int("targets", 1, "number of target columns at the end of each CSV record")
	lossName := flag.String("loss", "mse", "loss function: mse, mae")
	epochs := flag.Int("epochs", dendrite.DefaultEpochs, "maximum training epochs")
	rate := flag.Float64("lr", dendrite.DefaultLearningRate, "learning rate")
	cutoff := flag.Float64("cutoff", 0, "stop once an epoch's mean loss is at or below this")
	seed := flag.Int64("seed", 1, "random seed")
	shuffle := flag.Bool("shuffle", false, "shuffle samples every epoch")
	verbose := flag.Bool("v", false, "log every epoch")
	dotFn := flag.String("dot", "", "write a graphviz rendering of the trained network to this file")
	restarts := flag.Int("restarts", 1, "train this many networks with consecutive seeds and keep the best")
	workers := flag.Int("workers", runtime.NumCPU(), "concurrent training runs")
	flag.Parse()

	err := run(*shapeTxt, *table, *csvFn, *targets, *lossName, *restarts, *workers, dendrite.Config{
		Epochs:       *epochs,
		LearningRate: *rate,
		Cutoff:       *cutoff,
		Seed:         *seed,
		Shuffle:      *shuffle,
		Verbose:      *verbose,
	}, *dotFn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dendrite: %v\n", err)
		os.Exit(1)
	}
}

func run(shapeTxt, table, csvFn string, targets int, lossName string, restarts, workers int, cfg dendrite.Config, dotFn string) (err error) {
	defer Return(&err)

	s, err := shape.Parse(shapeTxt)
	Ck(err)
	cfg.Loss, err = dendrite.LossByName(lossName)
	Ck(err)
	newNet := func(seed int64) (*dendrite.Network, error) {
		c := cfg
		c.Seed = seed
		return s.Build(c)
	}

	var x, y [][]float64
	if csvFn != "" {
		fh, err := os.Open(csvFn)
		Ck(err)
		defer fh.Close()
		x, y, err = dendrite.LoadCSV(fh, targets)
		Ck(err)
	} else {
		x, y, err = dendrite.TruthTable(table)
		Ck(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	var seeds []int64
	for i := 0; i < restarts; i++ {
		seeds = append(seeds, cfg.Seed+int64(i))
	}
	runs, best, err := dendrite.TrainRestarts(ctx, newNet, x, y, seeds, workers)
	Ck(err)
	for _, r := range runs {
		if r.Err == nil {
			Debug("seed %d: %d epochs, loss %f\n", r.Seed, len(r.Losses), r.Loss())
		}
	}
	net := runs[best].Net
	Pf("%s: seed %d, %d epochs, loss %f\n", s, runs[best].Seed, len(runs[best].Losses), runs[best].Loss())

	for i := range x {
		prediction, err := net.Forward(x[i])
		Ck(err)
		Pf("%v -> %.4f (want %v)\n", x[i], prediction, y[i])
	}

	if dotFn != "" {
		out, err := net.Dot()
		Ck(err)
		err = os.WriteFile(dotFn, []byte(out), 0644)
		Ck(err)
	}
	return
}
