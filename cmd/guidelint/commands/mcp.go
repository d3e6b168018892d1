package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/guidelint/pkg/compliance"
	"github.com/Sumatoshi-tech/guidelint/pkg/config"
	"github.com/Sumatoshi-tech/guidelint/pkg/mcpserver"
	"github.com/Sumatoshi-tech/guidelint/pkg/observability"
	"github.com/Sumatoshi-tech/guidelint/pkg/version"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

Tools:
  - guidelint_check: check a project against its guidelines
  - guidelint_cache_stats: summarize a project's verdict cache

Telemetry and logging settings come from the config in the working directory.
Each tool call loads the config of the project it names.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadEnvironment(cmd, ".", configPath, observability.ModeMCP)
			if err != nil {
				return err
			}
			defer env.close()

			srv := mcpserver.NewServer(mcpserver.ServerDeps{
				Settings:      loadSettings,
				RunnerOptions: env.runnerOptions(),
				Version:       version.Version,
				Logger:        env.providers.Logger,
				Tracer:        env.providers.Tracer,
			})

			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file for server telemetry settings")

	return cmd
}

// loadSettings resolves run settings for a project named in a tool call.
func loadSettings(projectRoot, configPath string) (compliance.Settings, error) {
	cfg, err := config.Load(configPath, projectRoot)
	if err != nil {
		return compliance.Settings{}, err
	}

	return cfg.Settings()
}
