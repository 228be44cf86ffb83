// Command actx loads an HCL scenario, builds its symbolic container and
// freezes it repeatedly against the host backend, reporting results and
// cache effectiveness. Useful for demonstrating that structurally identical
// scenarios compile exactly once.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/xyproto/env/v2"

	"github.com/alexfikl/arraycontext/actx"
	"github.com/alexfikl/arraycontext/backend/hostvm"
	"github.com/alexfikl/arraycontext/device"
	"github.com/alexfikl/arraycontext/internal/ctxlog"
	"github.com/alexfikl/arraycontext/internal/scenario"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// logLevel resolves the log level from ACTX_LOG_LEVEL.
func logLevel() slog.Level {
	switch strings.ToLower(env.Str("ACTX_LOG_LEVEL", "info")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// run encapsulates the main application logic for easier testing.
func run(outW io.Writer, args []string) error {
	fs := flag.NewFlagSet("actx", flag.ContinueOnError)
	repeat := fs.Int("n", 2, "number of times to freeze the scenario")
	fs.SetOutput(outW)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: actx [-n count] <scenario.hcl>")
	}

	ctx := ctxlog.WithLogger(context.Background(), slog.Default())

	ac, err := actx.New(actx.Options{
		Queue:      device.NewQueue(nil),
		Compiler:   hostvm.New(),
		CacheBound: env.Int("ACTX_CACHE_BOUND", 0),
	})
	if err != nil {
		return err
	}

	cfg, err := scenario.Load(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	for i := 0; i < *repeat; i++ {
		cont, err := scenario.Build(ctx, ac, cfg)
		if err != nil {
			return err
		}
		results, err := ac.ToHost(ctx, cont)
		if err != nil {
			return err
		}

		fmt.Fprintf(outW, "run %d:\n", i+1)
		keys := make([]string, 0, len(results))
		for key := range results {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(outW, "  %s = %v\n", key, results[key])
		}
	}

	stats := ac.Stats()
	fmt.Fprintf(outW, "cache: transform %d/%d hits, program %d/%d hits\n",
		stats.TransformHits, stats.TransformHits+stats.TransformMisses,
		stats.ProgramHits, stats.ProgramHits+stats.ProgramMisses)
	return nil
}
