package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

type globalOptions struct {
	templatesDir string
	logLevel     string
	stdout       io.Writer
	stderr       io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "nbgen",
		Short: "Render Jupyter notebooks from templates",
		Long: `nbgen renders Jupyter notebooks from a catalog of templates.

Templates come in three formats:

  python  an empty notebook
  json    an itemized list of code, markdown, and generated cells
  jinja   a freeform template rendered straight to notebook JSON`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVar(&opts.templatesDir, "templates", "", "template catalog directory (defaults to the bundled catalog)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		listCmd(opts),
		renderCmd(opts),
		serveCmd(opts),
	)
	return rootCmd
}

func (o *globalOptions) logger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(strings.TrimSpace(o.logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(o.stderr, &slog.HandlerOptions{Level: level}))
}
