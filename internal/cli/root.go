// Package cli contains the ytreport commands.
package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/yt-insights/ytreport/internal/config"
	"github.com/yt-insights/ytreport/internal/output"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// SetBuildInfo sets the version, commit hash and build time
func SetBuildInfo(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
}

// app carries the state shared by all commands of one invocation.
type app struct {
	cfgFile   string
	verbose   bool
	quiet     bool
	colorMode string

	stdout io.Writer
	stderr io.Writer

	cfg     *config.Config
	logger  *slog.Logger
	printer *output.Printer
}

// NewRootCmd builds the command tree writing to stdout and stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	return (&app{stdout: stdout, stderr: stderr}).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	var (
		count   int
		outPath string
	)

	rootCmd := &cobra.Command{
		Use:   "ytreport <api_key> <channel>",
		Short: "YouTube channel report generator",
		Long: `ytreport fetches the latest videos of a YouTube channel and writes a
self-contained HTML report with view and like trends and a popularity ranking.

The channel can be an @handle, a bare handle, a channel ID (UC...) or a
youtube.com channel URL.

Example usage:
  ytreport $YOUTUBE_API_KEY @GoogleDevelopers
  ytreport $YOUTUBE_API_KEY https://www.youtube.com/@GoogleDevelopers -n 50 -o gd.html
  ytreport serve --port 8080`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("num") {
				count = a.cfg.Report.Count
			}
			if !cmd.Flags().Changed("output") {
				outPath = a.cfg.Report.Output
			}
			return a.runReport(cmd.Context(), args[0], args[1], count, outPath)
		},
	}
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is .ytreport.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().StringVar(&a.colorMode, "color", "auto", "color output: auto, always or never")

	rootCmd.Flags().IntVarP(&count, "num", "n", 30, "number of latest videos to analyse")
	rootCmd.Flags().StringVarP(&outPath, "output", "o", "youtube_report.html", "output HTML file")

	rootCmd.AddCommand(a.newServeCmd(), newVersionCmd())
	return rootCmd
}

// setup loads configuration and sets up logging and terminal output.
func (a *app) setup() error {
	mode, err := output.ParseColorMode(a.colorMode)
	if err != nil {
		return &output.CLIError{
			Summary:  "invalid --color value",
			Detail:   err.Error(),
			ExitCode: output.ExitUsageError,
			Err:      err,
		}
	}

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return &output.CLIError{
			Summary:    "failed to load configuration",
			Detail:     err.Error(),
			Suggestion: "Check .ytreport.yaml and YTREPORT_* environment variables",
			ExitCode:   output.ExitConfig,
			Err:        err,
		}
	}
	a.cfg = cfg

	a.logger = newLogger(a.stderr, cfg.Logging, a.verbose)
	a.printer = output.NewPrinter(output.PrinterOptions{
		ColorMode:    mode,
		ConfigColors: cfg.Output.Colors,
		Quiet:        a.quiet,
		Out:          a.stdout,
		Err:          a.stderr,
	})

	a.logger.Debug("configuration loaded",
		"endpoint", cfg.YouTube.Endpoint,
		"requests_per_second", cfg.YouTube.RequestsPerSecond,
		"db_path_set", cfg.DB.Path != "",
	)
	return nil
}

func newLogger(w io.Writer, cfg config.LoggingConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	rootCmd := a.rootCmd()
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return output.ExitSuccess
	}

	var cliErr *output.CLIError
	if !errors.As(err, &cliErr) {
		// Anything cobra rejects before RunE is a usage problem.
		cliErr = &output.CLIError{
			Summary:    err.Error(),
			Suggestion: "Run 'ytreport --help' for usage",
			ExitCode:   output.ExitUsageError,
			Err:        err,
		}
	}
	a.errorPrinter().FormatError(cliErr)
	return output.ExitCodeOf(cliErr)
}

// errorPrinter is the configured printer, or one honouring only --color
// when setup did not get that far.
func (a *app) errorPrinter() *output.Printer {
	if a.printer != nil {
		return a.printer
	}
	mode, err := output.ParseColorMode(a.colorMode)
	if err != nil {
		mode = output.ColorAuto
	}
	return output.NewPrinter(output.PrinterOptions{
		ColorMode:    mode,
		ConfigColors: true,
		Out:          a.stdout,
		Err:          a.stderr,
	})
}

// Main is the entry point used by cmd/ytreport.
func Main(ctx context.Context) int {
	return Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}
