// Package main provides the Flint command line interface.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flintml/flint/data"
	"github.com/flintml/flint/nn"
	"github.com/flintml/flint/optim"
	"github.com/flintml/flint/serialization"
	"github.com/flintml/flint/tensor"
)

const version = "v0.1.0-dev"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("Flint %s\n", version)
	case "train":
		if err := runTrain(os.Args[2:]); err != nil {
			log.Fatal().Err(err).Msg("training failed")
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("Flint - tensors and autograd for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  train      Train a demo regression model on synthetic data")
}

// runTrain fits a small MLP to a noisy sine curve and optionally saves
// the parameters.
func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	epochs := fs.Int("epochs", 200, "training epochs")
	lr := fs.Float64("lr", 0.01, "learning rate")
	batchSize := fs.Int("batch", 32, "batch size")
	hidden := fs.Int("hidden", 16, "hidden layer width")
	optName := fs.String("optimizer", "adam", "optimizer: sgd or adam")
	seed := fs.Uint64("seed", 42, "random seed")
	outPath := fs.String("out", "", "path to save trained parameters")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tensor.Seed(*seed)
	nn.Seed(*seed)

	inputs, targets, err := sineDataset(256)
	if err != nil {
		return err
	}
	defer inputs.Release()
	defer targets.Release()

	loader, err := data.NewLoader(inputs, targets, *batchSize)
	if err != nil {
		return err
	}

	l1, err := nn.NewLinear(1, *hidden, tensor.Float64)
	if err != nil {
		return err
	}
	l2, err := nn.NewLinear(*hidden, 1, tensor.Float64)
	if err != nil {
		return err
	}
	model := nn.NewSequential(l1, nn.NewTanh(), l2)

	var opt optim.Optimizer
	switch *optName {
	case "sgd":
		opt = optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: *lr, Momentum: 0.9})
	case "adam":
		opt = optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: *lr})
	default:
		return fmt.Errorf("unknown optimizer %q", *optName)
	}

	log.Info().
		Int("samples", loader.NumSamples()).
		Int("epochs", *epochs).
		Str("optimizer", *optName).
		Float64("lr", *lr).
		Msg("starting training")

	start := time.Now()
	for epoch := 1; epoch <= *epochs; epoch++ {
		loader.Shuffle(*seed + uint64(epoch))

		epochLoss := 0.0
		for i := 0; i < loader.NumBatches(); i++ {
			batch, err := loader.Batch(i)
			if err != nil {
				return err
			}

			if err := model.ZeroGrad(); err != nil {
				return err
			}
			pred, err := model.Forward(batch.Inputs)
			if err != nil {
				return err
			}
			loss, grad, err := nn.MSE(pred, batch.Targets)
			if err != nil {
				return err
			}
			dx, err := model.Backward(grad)
			if err != nil {
				return err
			}
			dx.Release()
			grad.Release()
			pred.Release()
			if err := opt.Step(); err != nil {
				return err
			}

			epochLoss += loss
			batch.Release()
		}

		if epoch%20 == 0 || epoch == *epochs {
			log.Info().
				Int("epoch", epoch).
				Float64("loss", epochLoss/float64(loader.NumBatches())).
				Msg("epoch complete")
		}
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("training finished")

	if *outPath != "" {
		if err := serialization.SaveFile(*outPath, "mlp", model.Parameters()); err != nil {
			return err
		}
		log.Info().Str("path", *outPath).Msg("saved parameters")
	}
	return nil
}

// sineDataset samples y = sin(3x) on [-1, 1] with a little noise.
func sineDataset(n int) (*tensor.Tensor, *tensor.Tensor, error) {
	xs, err := tensor.Rand[float64](tensor.MustShape(n, 1))
	if err != nil {
		return nil, nil, err
	}
	xs.ApplyInPlace(func(v float64) float64 { return 2*v - 1 })

	noise, err := tensor.Randn[float64](tensor.MustShape(n, 1))
	if err != nil {
		xs.Release()
		return nil, nil, err
	}
	defer noise.Release()
	noise.ScaleInPlace(0.02)

	ys, err := xs.Apply(func(v float64) float64 { return math.Sin(3 * v) })
	if err != nil {
		xs.Release()
		return nil, nil, err
	}
	if err := ys.AddInPlace(noise); err != nil {
		xs.Release()
		ys.Release()
		return nil, nil, err
	}
	return xs, ys, nil
}
