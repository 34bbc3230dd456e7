package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/lang"
	"github.com/snow-ghost/synth/pkg/config"
	"github.com/snow-ghost/synth/testkit"
	"github.com/snow-ghost/synth/worker"
)

// searchFlags are the per-run overrides shared by run and parallel.
type searchFlags struct {
	solver       string
	beamSize     int
	budget       int
	seed         int64
	componentize bool
	statePath    string
	outPath      string
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.solver, "solver", "", "Search strategy: hillclimb, smc or random")
	cmd.Flags().IntVar(&f.beamSize, "beam", 0, "Beam size")
	cmd.Flags().IntVarP(&f.budget, "budget", "n", 0, "Step budget")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Random seed (0 picks one)")
	cmd.Flags().BoolVar(&f.componentize, "componentize", false, "Learn components when the search stalls")
	cmd.Flags().StringVar(&f.statePath, "state", "", "Resume from a saved state or result document")
	cmd.Flags().StringVarP(&f.outPath, "out", "o", "", "Write the result document to this file")
}

var (
	runFlags searchFlags

	runCmd = &cobra.Command{
		Use:   "run [problem.yaml | problem-name]",
		Short: "Synthesize a program for one problem",
		Long: `Run loads a problem from a YAML file, or picks a built-in problem by
name, and searches for a program that fits its examples.`,
		Args: cobra.ExactArgs(1),
		RunE: runProblem,
	}
)

func init() {
	runFlags.register(runCmd)
}

func runProblem(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.close(context.Background())

	req, _, err := buildRequest(e, args[0], &runFlags)
	if err != nil {
		return err
	}
	res, err := e.obs.Solver().Synthesize(ctx, req)
	if err != nil {
		return err
	}
	return report(cmd, res, runFlags.outPath)
}

// loadProblem reads a problem file, falling back to the built-in problem
// of that name.
func loadProblem(arg string) (*config.ProblemFile, error) {
	if _, err := os.Stat(arg); err == nil {
		return config.LoadProblem(arg)
	}
	c, err := testkit.Lookup(arg)
	if err != nil {
		return nil, fmt.Errorf("%s is neither a problem file nor a built-in problem: %w", arg, err)
	}
	return &config.ProblemFile{Language: c.Language, Scorer: c.Scorer, Problem: c.Problem}, nil
}

// buildRequest resolves the problem, its language and the search options.
// It returns the request and the language name.
func buildRequest(e *env, arg string, f *searchFlags) (worker.Request, string, error) {
	pf, err := loadProblem(arg)
	if err != nil {
		return worker.Request{}, "", err
	}
	decls, scorer, err := e.registry.Language(pf.Language)
	if err != nil {
		return worker.Request{}, "", err
	}
	if s, ok := core.Scorers[pf.Scorer]; ok {
		scorer = s
	}
	l, err := lang.New(decls, pf.Problem.Spec)
	if err != nil {
		return worker.Request{}, "", fmt.Errorf("language %s: %w", pf.Language, err)
	}
	req := worker.Request{
		Problem: pf.Problem,
		Lang:    l,
		Scorer:  scorer,
		Options: worker.Options{
			Solver:       worker.Kind(f.solver),
			BeamSize:     f.beamSize,
			Componentize: f.componentize,
			Seed:         f.seed,
		},
	}
	if f.budget > 0 {
		req.Problem.Budget = f.budget
	}
	e.cfg.Search.Apply(&req)

	if f.statePath != "" {
		data, err := os.ReadFile(f.statePath)
		if err != nil {
			return worker.Request{}, "", fmt.Errorf("failed to read state: %w", err)
		}
		st, err := worker.UnmarshalSnapshot(data, l, rand.New(rand.NewSource(req.Options.Seed)), &ast.IDs{})
		if err != nil {
			return worker.Request{}, "", err
		}
		req.Options.InitialState = st
	}
	return req, pf.Language, nil
}

// report prints the result and writes its document when asked to.
func report(cmd *cobra.Command, res *worker.Result, outPath string) error {
	fmt.Fprintln(cmd.OutOrStdout(), res.String())
	if outPath == "" {
		return nil
	}
	doc, err := worker.EncodeResult(res)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
