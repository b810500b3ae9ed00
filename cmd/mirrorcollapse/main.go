package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Useroth/MirrorCollapse/pkg/config"
	"github.com/Useroth/MirrorCollapse/pkg/github"
	"github.com/Useroth/MirrorCollapse/pkg/log"
	"github.com/Useroth/MirrorCollapse/pkg/mirror"
	"github.com/Useroth/MirrorCollapse/pkg/report"
)

// These variables are set via ldflags during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

const stageConfig = "config"

var (
	configPath string
	dryRun     bool
	logLevel   string
	resultPath string
	initConfig bool
)

var rootCmd = &cobra.Command{
	Use:   "mirrorcollapse",
	Short: "Mirror merged upstream pull requests into an origin repository",
	Long: `Run one reconciliation pass between an upstream repository and its origin.

Merged upstream pull requests that origin does not yet contain are pushed to
mirror-<number> branches and opened as pull requests against origin's default
branch. Mirrored numbers are recorded in a ledger file on a dedicated branch of
origin, so repeated runs are idempotent.

Settings are read from <user config dir>/mirrorcollapse/settings.yaml unless
--config or MIRRORCOLLAPSE_CONFIG names another file (.yaml or .toml).`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		printer := report.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
		return run(cmd.Context(), cmd.OutOrStdout(), printer)
	},
}

// run performs one pass. Operational failures are reported through printer
// and do not produce an error.
func run(ctx context.Context, out io.Writer, printer *report.Printer) error {
	path, source, err := config.ResolvePath(configPath, os.Getenv)
	if err != nil {
		printer.Failure(stageConfig, err)
		return nil
	}

	if initConfig {
		return writeTemplate(path, out, printer)
	}

	settings := config.Load(path)
	settings.ApplyEnv(os.Getenv)

	level, levelSource := settings.ResolveLogLevel(logLevel)
	settings.LogLevel = level
	if err := settings.Validate(); err != nil {
		printer.Failure(stageConfig, err)
		return nil
	}
	if err := log.SetLevel(level); err != nil {
		printer.Failure(stageConfig, err)
		return nil
	}
	log.Debug("loaded settings", "path", path, "source", source, "log_level", level, "log_level_source", levelSource)

	timeout, _ := settings.Timeout()
	opts := []github.ClientOption{github.WithTimeout(timeout)}
	if settings.GitHubBaseURL != "" {
		opts = append(opts, github.WithBaseURL(settings.GitHubBaseURL))
	}
	if settings.GitHubUser != "" {
		opts = append(opts, github.WithBasicAuth(settings.GitHubUser, settings.GitHubPassword))
	}
	client := github.NewClient(settings.GitHubToken, opts...)
	log.Debug("using GitHub API", "base_url", client.BaseURL(), "timeout", timeout)

	runID := uuid.NewString()
	log.With("run_id", runID)

	pipeline, err := mirror.NewPipeline(client, settings.PipelineOptions(dryRun, runID), printer)
	if err != nil {
		printer.Failure(stageConfig, err)
		return nil
	}

	result, err := pipeline.Run(ctx)
	if err != nil && github.IsRateLimitError(err) {
		log.Warn("GitHub rate limit exhausted, rerun after it resets")
	}

	if resultPath != "" {
		if err := report.WriteResult(resultPath, result); err != nil {
			printer.Failure("result", err)
			return nil
		}
		log.Debug("wrote run result", "path", resultPath)
	}
	return nil
}

// writeTemplate writes a settings file with every key at its default.
// An existing file is left untouched.
func writeTemplate(path string, out io.Writer, printer *report.Printer) error {
	if _, err := os.Stat(path); err == nil {
		printer.Failure(stageConfig, fmt.Errorf("settings file %s already exists", path))
		return nil
	}
	if err := config.Default().Save(path); err != nil {
		printer.Failure(stageConfig, err)
		return nil
	}
	fmt.Fprintf(out, "wrote settings template to %s\n", path)
	return nil
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate)
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to settings file (.yaml or .toml)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Perform every read and log intended writes without making them")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from settings, else info)")
	rootCmd.Flags().StringVar(&resultPath, "result", "", "Write a JSON run report to this path")
	rootCmd.Flags().BoolVar(&initConfig, "init", false, "Write a settings template to the settings path and exit")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
