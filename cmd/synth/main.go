package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snow-ghost/synth/interp/wasm"
	"github.com/snow-ghost/synth/pkg/config"
	"github.com/snow-ghost/synth/pkg/logging"
	"github.com/snow-ghost/synth/pkg/observability"
	"github.com/snow-ghost/synth/pkg/registry"
)

var (
	configPath    string
	languagesPath string
	logLevel      string

	rootCmd = &cobra.Command{
		Use:   "synth",
		Short: "Search for small programs that fit input/output examples",
		Long: `synth runs a type-directed program search over a language of
primitives until a program matches the given examples.`,
		SilenceUsage: true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file (default synth.yaml or $SYNTH_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&languagesPath, "languages", "", "Path to the language registry (default languages.yaml or $SYNTH_LANGUAGES)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(runCmd, serveCmd, parallelCmd, healthcheckCmd)
}

// env is what every command needs: configuration, observability and the
// languages.
type env struct {
	cfg      *config.Config
	obs      *observability.Manager
	logger   *logging.Logger
	registry *registry.Registry
	interp   *wasm.Interpreter
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	obs, err := observability.NewManager(cfg.Logging, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	logger := obs.Logger()
	reg, err := registry.NewLoader(languagesPath).LoadRegistry()
	if err != nil {
		return nil, err
	}
	interp := wasm.NewInterpreter()
	if err := reg.Open(ctx, interp); err != nil {
		_ = interp.Close(ctx)
		return nil, err
	}
	logger.Debug("configuration loaded",
		zap.String("solver", cfg.Search.Solver),
		zap.Strings("languages", reg.Names()),
	)
	return &env{cfg: cfg, obs: obs, logger: logger, registry: reg, interp: interp}, nil
}

func (e *env) close(ctx context.Context) {
	if err := e.interp.Close(ctx); err != nil {
		e.logger.Warn("interpreter close failed", zap.Error(err))
	}
	if err := e.obs.Shutdown(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "observability shutdown failed:", err)
	}
}
