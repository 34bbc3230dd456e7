package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/snow-ghost/synth/pkg/parallel"
	"github.com/snow-ghost/synth/worker"
)

var (
	parallelFlags   searchFlags
	parallelWorkers int
	parallelRounds  int
	parallelServers []string

	parallelCmd = &cobra.Command{
		Use:   "parallel [problem.yaml | problem-name]",
		Short: "Run rounds of concurrent searches and merge their states",
		Long: `Parallel runs one search per worker each round, merges the states the
workers end with and starts the next round from the merged state. With
--servers the workers are remote synthesis servers; otherwise they are
local goroutines.`,
		Args: cobra.ExactArgs(1),
		RunE: runParallel,
	}
)

func init() {
	parallelFlags.register(parallelCmd)
	parallelCmd.Flags().IntVarP(&parallelWorkers, "workers", "w", 0, "Local workers per round (overrides parallel.workers)")
	parallelCmd.Flags().IntVar(&parallelRounds, "rounds", 0, "Maximum rounds (overrides parallel.rounds)")
	parallelCmd.Flags().StringSliceVar(&parallelServers, "servers", nil, "Comma separated server URLs (overrides parallel.servers)")
}

func runParallel(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.close(context.Background())

	cfg := e.cfg.Parallel
	if parallelWorkers > 0 {
		cfg.Workers = parallelWorkers
	}
	if parallelRounds > 0 {
		cfg.Rounds = parallelRounds
	}
	if len(parallelServers) > 0 {
		cfg.Servers = parallelServers
	}
	req, language, err := buildRequest(e, args[0], &parallelFlags)
	if err != nil {
		return err
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var res *worker.Result
	if len(cfg.Servers) > 0 {
		client := parallel.NewClient(parallel.ClientOptions{
			Servers:    cfg.Servers,
			Timeout:    cfg.Timeout,
			Rounds:     cfg.Rounds,
			Protection: cfg.Protection,
			Logger:     e.logger,
			Tracer:     e.obs.Tracer(),
			Metrics:    e.obs.Metrics(),
			Telemetry:  e.obs.Telemetry(),
		})
		res, err = client.Solve(ctx, req, language)
	} else {
		pool := &parallel.Pool{
			Synth:     e.obs.Solver(),
			Workers:   cfg.Workers,
			Rounds:    cfg.Rounds,
			Logger:    e.logger,
			Tracer:    e.obs.Tracer(),
			Metrics:   e.obs.Metrics(),
			Telemetry: e.obs.Telemetry(),
		}
		res, err = pool.Solve(ctx, req)
	}
	if res != nil && (err == nil || errors.Is(err, parallel.ErrRoundsExhausted)) {
		if rerr := report(cmd, res, parallelFlags.outPath); rerr != nil {
			return rerr
		}
	}
	return err
}
