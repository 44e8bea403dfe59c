package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spindleworks/spindle-go/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagTenant     string
	flagProject    string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// errEntityErrors signals a run that finished but left per-entity
// failures in its report. main maps it to the partial exit code; the
// failures themselves were already printed.
var errEntityErrors = errors.New("completed with entity errors")

// httpClientTimeout bounds every remote call so a hung connection cannot
// block a CLI command indefinitely.
const httpClientTimeout = 30 * time.Second

// defaultHTTPClient returns an HTTP client with a sensible timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// RunFlags is the persistent-flag snapshot taken by the pre-run phase.
type RunFlags struct {
	Tenant  string
	Project string
	JSON    bool
	Verbose bool
	Quiet   bool
}

// CLIContext carries what every command needs after the pre-run phase:
// the effective config, the logger, and the flag snapshot. Tenant
// credentials are resolved lazily by the commands that talk to the
// remote, so config-only commands work without any credentials set.
type CLIContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Flags  RunFlags
}

// cliContextKey is the context key type for the CLIContext value.
type cliContextKey struct{}

func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

// mustCLIContext retrieves the CLIContext installed by PersistentPreRunE.
// Reaching a command's RunE without it is a wiring bug, not a user error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("CLI context not initialized; PersistentPreRunE did not run")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "spindle",
		Short:   "Spindle configuration sync client",
		Long:    "Mirrors a Spindle tenant's agent configuration to a local directory tree and pushes local edits back.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		// PersistentPreRunE resolves configuration and the logger before
		// every command. Credentials are not touched here.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupCLIContext(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagTenant, "tenant", "", "tenant to operate on (default from config when unset)")
	cmd.PersistentFlags().StringVar(&flagProject, "project", "", "project filter: remote id for pull, directory name for push/status/watch")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	// Register subcommands.
	cmd.AddCommand(newPullCmd())
	cmd.AddCommand(newPushCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newTenantsCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}

// setupCLIContext resolves the effective configuration through the
// four-layer override chain, builds the logger, and installs the
// CLIContext on the command's context for RunE to pick up.
func setupCLIContext(cmd *cobra.Command) error {
	// .env supplements the environment for local development; variables
	// already set in the real environment always win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.Resolve(config.ReadEnvOverrides(), config.CLIOverrides{ConfigPath: flagConfigPath})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cc := &CLIContext{
		Cfg:    cfg,
		Logger: buildLogger(cfg),
		Flags: RunFlags{
			Tenant:  flagTenant,
			Project: flagProject,
			JSON:    flagJSON,
			Verbose: flagVerbose,
			Quiet:   flagQuiet,
		},
	}

	cmd.SetContext(withCLIContext(cmd.Context(), cc))

	return nil
}

// buildLogger creates an slog.Logger on stderr, shaped by the config's
// log_format and leveled by the --verbose/--quiet flags.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitFatal)
}
