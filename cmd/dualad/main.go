// Package main provides the dualad CLI.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/born-ml/dualad/autodiff"
	"github.com/born-ml/dualad/backend/cpu"
)

const version = "v0.1.0-dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return nil
	}

	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "dualad %s\n", version)
		return nil
	case "info":
		info(stdout)
		return nil
	case "demo":
		return demo(args[1:], stdout, stderr)
	case "fit":
		return fit(args[1:], stdout, stderr)
	default:
		usage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "dualad %s - forward and reverse automatic differentiation\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version    Show version")
	fmt.Fprintln(w, "  info       Show backend and CPU features")
	fmt.Fprintln(w, "  demo       Print derivatives of x^3 in every mode (-x value, -v trace)")
	fmt.Fprintln(w, "  fit        Train a small network on sin(x) (-steps, -lr, -opt adam|sgd, -seed)")
}

func info(w io.Writer) {
	backend := cpu.New()
	cfg := backend.Config().Parallel
	fmt.Fprintf(w, "Backend:   %s (%s)\n", backend.Name(), backend.Device())
	fmt.Fprintf(w, "CPU:       %s\n", cpu.DetectFeatures())
	fmt.Fprintf(w, "Go:        %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "Parallel:  enabled=%t workers=%d min-chunk=%d\n", cfg.Enabled, cfg.NumWorkers, cfg.MinChunkSize)
}

func demo(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	x := fs.Float64("x", 5.1, "point at which to differentiate")
	verbose := fs.Bool("v", false, "trace differentiation passes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	backend := cpu.New()
	engine := autodiff.New(autodiff.WithLogger(logger))

	cube := func(x autodiff.DTensor) autodiff.DTensor {
		return autodiff.Times(autodiff.Times(x, x), x)
	}
	nest := func(mode string, f autodiff.Func) autodiff.Func {
		return func(x autodiff.DTensor) autodiff.DTensor {
			if mode == "forward" {
				return autodiff.Must(engine.ForwardDerivative(f, x))
			}
			return autodiff.Must(engine.ReverseDerivative(f, x))
		}
	}

	fmt.Fprintf(stdout, "f(x) = x^3 at x = %g\n", *x)
	for order := 1; order <= 3; order++ {
		for _, mode := range []string{"forward", "reverse", "mixed"} {
			f := autodiff.Func(cube)
			for i := 1; i < order; i++ {
				inner := mode
				if mode == "mixed" {
					// Levels alternate, starting with reverse under the outer forward pass.
					inner = "forward"
					if (order-i)%2 == 1 {
						inner = "reverse"
					}
				}
				f = nest(inner, f)
			}
			var d autodiff.DTensor
			var err error
			if mode != "reverse" {
				d, err = engine.ForwardDerivative(f, backend.Scalar(*x))
			} else {
				d, err = engine.ReverseDerivative(f, backend.Scalar(*x))
			}
			if err != nil {
				return fmt.Errorf("order %d %s: %w", order, mode, err)
			}
			fmt.Fprintf(stdout, "  d%d/dx%d  %-8s %g\n", order, order, mode, item(d))
		}
	}
	return nil
}
