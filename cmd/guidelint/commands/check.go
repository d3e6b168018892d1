// Package commands implements CLI command handlers for guidelint.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/guidelint/pkg/collector"
	"github.com/Sumatoshi-tech/guidelint/pkg/compliance"
	"github.com/Sumatoshi-tech/guidelint/pkg/observability"
	"github.com/Sumatoshi-tech/guidelint/pkg/report"
)

// CheckCommand holds the configuration for the check command.
type CheckCommand struct {
	full       bool
	diffBase   string
	working    bool
	staged     bool
	jsonOut    bool
	yamlOut    bool
	output     string
	configPath string
	path       string
	noResume   bool
	noColor    bool

	// extraOptions are appended after the telemetry options.
	extraOptions []compliance.Option
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	return newCheckCommandWithDeps()
}

func newCheckCommandWithDeps(opts ...compliance.Option) *cobra.Command {
	cc := &CheckCommand{extraOptions: opts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check files against the project guidelines",
		Long: `Check candidate files against the guidelines file.

Files whose content and guidelines are unchanged since their last check are
answered from the cache. An interrupted run resumes from its last completed
batch unless --no-resume is given.

Exit status: 0 clean, 1 violations found, 2 error, 130 interrupted.`,
		Args: cobra.NoArgs,
		RunE: cc.run,
	}

	cmd.Flags().BoolVar(&cc.full, "full", false, "Check every matching file in the project")
	cmd.Flags().StringVar(&cc.diffBase, "diff", "", "Check files changed since leaving base branch `BRANCH`")
	cmd.Flags().BoolVar(&cc.working, "working", false, "Check unstaged and untracked changes")
	cmd.Flags().BoolVar(&cc.staged, "staged", false, "Check staged changes")
	cmd.Flags().BoolVar(&cc.jsonOut, "json", false, "Write JSON lines instead of text")
	cmd.Flags().BoolVar(&cc.yamlOut, "yaml", false, "Write YAML instead of text")
	cmd.Flags().StringVarP(&cc.output, "output", "o", "", "Also stream per-batch results to `FILE`")
	cmd.Flags().StringVar(&cc.configPath, "config", "", "Config file (default: .guidelint.yaml in the project)")
	cmd.Flags().StringVarP(&cc.path, "path", "p", ".", "Project root")
	cmd.Flags().BoolVar(&cc.noResume, "no-resume", false, "Discard progress from an interrupted run")
	cmd.Flags().BoolVar(&cc.noColor, "no-color", false, "Disable colored output")

	cmd.MarkFlagsMutuallyExclusive("full", "diff", "working", "staged")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml")

	return cmd
}

func (cc *CheckCommand) run(cmd *cobra.Command, _ []string) error {
	mode, err := cc.mode()
	if err != nil {
		return err
	}

	env, err := loadEnvironment(cmd, cc.path, cc.configPath, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer env.close()

	if cc.noResume {
		err = clearProgress(env)
		if err != nil {
			return err
		}
	}

	format := cc.format()
	opts := append(env.runnerOptions(), cc.extraOptions...)

	var stream *report.StreamSink

	if cc.output != "" {
		f, createErr := os.Create(cc.output)
		if createErr != nil {
			return fmt.Errorf("create output file: %w", createErr)
		}
		defer f.Close()

		stream = report.NewStreamSink(f, format)
		opts = append(opts, compliance.WithSink(stream))
	}

	runner, err := compliance.NewRunner(env.settings, opts...)
	if err != nil {
		return &ExitError{Code: report.ExitCode(nil, err), Err: err}
	}

	results, metrics, err := runner.Run(cmd.Context(), env.root, mode, cc.diffBase)
	if err != nil {
		return &ExitError{Code: report.ExitCode(nil, err), Err: err}
	}

	if stream != nil {
		err = stream.Finish(results, metrics)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()

	err = report.Write(out, format, results, metrics, report.Options{
		Color: colorFor(out, cc.noColor),
		Quiet: flagBool(cmd, "quiet"),
	})
	if err != nil {
		return err
	}

	code := report.ExitCode(results, nil)
	if code != report.ExitClean {
		return &ExitError{Code: code}
	}

	return nil
}

func (cc *CheckCommand) mode() (collector.Mode, error) {
	switch {
	case cc.full:
		return collector.ModeFull, nil
	case cc.diffBase != "":
		return collector.ModeDiff, nil
	case cc.working:
		return collector.ModeWorking, nil
	case cc.staged:
		return collector.ModeStaged, nil
	default:
		return "", ErrModeRequired
	}
}

func (cc *CheckCommand) format() report.Format {
	switch {
	case cc.jsonOut:
		return report.FormatJSON
	case cc.yamlOut:
		return report.FormatYAML
	default:
		return report.FormatText
	}
}

func clearProgress(env *environment) error {
	ledger, err := env.settings.Ledger(env.root, env.providers.Logger)
	if err != nil {
		return err
	}

	return ledger.Cleanup()
}

func colorFor(w io.Writer, disabled bool) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return report.ColorEnabled(f, disabled)
}
