package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"

	"github.com/born-ml/dualad/autodiff"
	"github.com/born-ml/dualad/backend/cpu"
	"github.com/born-ml/dualad/nn"
	"github.com/born-ml/dualad/optim"
	"github.com/born-ml/dualad/tensor"
)

const fitSamples = 16

// fit trains a 1-16-1 tanh network on sin(x) over [-2, 2].
func fit(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("fit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	steps := fs.Int("steps", 300, "number of optimizer steps")
	lr := fs.Float64("lr", 0.05, "learning rate")
	optimizer := fs.String("opt", "adam", "optimizer: adam or sgd")
	seed := fs.Int64("seed", 1, "initialization seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps < 1 {
		return fmt.Errorf("steps must be positive, got %d", *steps)
	}

	var opt optim.Optimizer
	switch *optimizer {
	case "adam":
		opt = optim.NewAdam(optim.AdamConfig{LR: *lr})
	case "sgd":
		opt = optim.NewSGD(optim.SGDConfig{LR: *lr, Momentum: 0.9})
	default:
		return fmt.Errorf("unknown optimizer %q", *optimizer)
	}

	backend := cpu.New()
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	engine := autodiff.New(autodiff.WithLogger(logger))

	xs, ys := make([]float64, fitSamples), make([]float64, fitSamples)
	for i := range xs {
		xs[i] = -2 + 4*float64(i)/(fitSamples-1)
		ys[i] = math.Sin(xs[i])
	}
	x := backend.MustFromSlice(xs, tensor.Shape{fitSamples, 1})
	y := backend.MustFromSlice(ys, tensor.Shape{fitSamples, 1})

	rng := rand.New(rand.NewSource(*seed))
	model := nn.NewSequential(
		nn.NewLinear(backend, rng, 1, 16),
		nn.NewTanh(),
		nn.NewLinear(backend, rng, 16, 1),
	)
	loss := func(m *nn.Sequential) autodiff.DTensor {
		return nn.MSELoss(m.Forward(x), y)
	}

	report := max(*steps/5, 1)
	for step := 0; step < *steps; step++ {
		value, grads, err := autodiff.ValueAndReverseDerivativeOf(engine, loss, model)
		if err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
		if step%report == 0 {
			fmt.Fprintf(stdout, "step %4d  loss %.6f\n", step, item(value))
		}
		model = model.Rebuild(opt.Step(model.Tensors(), grads.Tensors()))
	}
	fmt.Fprintf(stdout, "final      loss %.6f\n", item(loss(model)))
	return nil
}

func item(x autodiff.DTensor) float64 {
	dense, _ := cpu.AsDense(x)
	return dense.Item()
}
