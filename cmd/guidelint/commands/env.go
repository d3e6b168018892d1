package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/guidelint/pkg/compliance"
	"github.com/Sumatoshi-tech/guidelint/pkg/config"
	"github.com/Sumatoshi-tech/guidelint/pkg/observability"
	"github.com/Sumatoshi-tech/guidelint/pkg/version"
)

// environment is the loaded configuration and telemetry for one command.
type environment struct {
	root        string
	cfg         *config.Config
	settings    compliance.Settings
	providers   observability.Providers
	instruments *observability.RunInstruments
}

// loadEnvironment reads the project configuration and starts telemetry.
// Callers must call close.
func loadEnvironment(cmd *cobra.Command, path, configPath string, mode observability.AppMode) (*environment, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve project path: %w", err)
	}

	cfg, err := config.Load(configPath, root)
	if err != nil {
		return nil, err
	}

	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}

	obsCfg, err := cfg.Observability(version.Version, mode)
	if err != nil {
		return nil, err
	}

	obsCfg.LogWriter = cmd.ErrOrStderr()

	switch {
	case flagBool(cmd, "verbose"):
		obsCfg.LogLevel = slog.LevelDebug
	case flagBool(cmd, "quiet"):
		obsCfg.LogLevel = slog.LevelError
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	instruments, err := observability.NewRunInstruments(providers.Meter)
	if err != nil {
		return nil, err
	}

	return &environment{
		root:        root,
		cfg:         cfg,
		settings:    settings,
		providers:   providers,
		instruments: instruments,
	}, nil
}

// runnerOptions wires telemetry into a runner.
func (e *environment) runnerOptions() []compliance.Option {
	return []compliance.Option{
		compliance.WithLogger(e.providers.Logger),
		compliance.WithTracer(e.providers.Tracer),
		compliance.WithInstruments(e.instruments),
	}
}

func (e *environment) close() {
	err := e.providers.Shutdown(context.Background())
	if err != nil {
		e.providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}

// flagBool reads a boolean flag that may be inherited from the root command.
func flagBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return false
	}

	return v
}
