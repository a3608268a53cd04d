package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"nadc-check/internal/config"
	"nadc-check/internal/domain"
	"nadc-check/internal/report"
)

var (
	version = "dev"
	commit  = "none"
)

// Process exit codes.
const (
	ExitOK            = 0
	ExitFatal         = 1
	ExitDiscrepancies = 2
	ExitUnverified    = 3
)

// skipConfig marks commands that run without loading the configuration.
const skipConfig = "skip-config"

// exitCodeError carries a process exit code. A nil err exits silently.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitCodeError) Unwrap() error { return e.err }

// app holds the state resolved by the root command before a subcommand runs.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	output     string

	cfg    *config.Config
	logger *slog.Logger
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	err := rootCmd.Execute()
	if err == nil {
		return ExitOK
	}

	code := ExitFatal
	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		code = exitErr.code
		if exitErr.err == nil {
			return code
		}
	}

	output, _ := rootCmd.PersistentFlags().GetString("output")
	if resolveOutput(output, os.Stdout) == report.FormatJSON {
		errObj := map[string]interface{}{
			"error":     err.Error(),
			"exit_code": code,
		}
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			errObj["kind"] = "config"
		}
		var qf *domain.QueryFailure
		if errors.As(err, &qf) {
			errObj["kind"] = "query"
			errObj["catalog"] = qf.Catalog
		}
		_ = report.PrintJSON(os.Stdout, errObj)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return code
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "nadc-check",
		Short: "Reconcile the NADC product archive against its catalogs",
		Long: `nadc-check walks the Sciamachy and GOSAT archive pools and verifies that every
product file on disk is registered in the product catalog. It never modifies
the archive or the catalog.

Exit codes: 0 consistent, 2 discrepancies found, 3 leaves could not be
verified, 1 fatal error or interrupted run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(a.output); err != nil {
				return err
			}
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to the YAML configuration file (env: NADC_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (env: NADC_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: text or json (env: NADC_LOG_FORMAT)")
	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", "table", "Output format (table, json, auto)")

	rootCmd.AddCommand(newCheckCmd(a))
	rootCmd.AddCommand(newFamiliesCmd(a))
	rootCmd.AddCommand(newLookupCmd(a))
	rootCmd.AddCommand(newCatalogCmd(a))
	rootCmd.AddCommand(newScheduleCmd(a))
	rootCmd.AddCommand(newVersionCmd(a))
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// setup loads the configuration and builds the logger.
// Precedence: flag > env > file > default.
func (a *app) setup(cmd *cobra.Command) error {
	dotEnvWarnings, err := config.LoadDotEnv(".env")
	if err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	cfg.Warnings = append(dotEnvWarnings, cfg.Warnings...)
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), cfg.SlogLevel(), cfg.LogFormat)
	for _, w := range cfg.Warnings {
		a.logger.Warn(w)
	}
	a.logger.Debug("configuration loaded",
		"file", cfg.File, "families", len(cfg.Families), "catalogs", cfg.CatalogNames(), "host", cfg.Hostname)
	return nil
}

func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "completion [bash|zsh|fish|powershell]",
		Short:       "Generate shell completion scripts",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}
