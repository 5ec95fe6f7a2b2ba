package main

import (
	"fmt"
	"io"
	"os"

	"github.com/akolanti/docqa/internal/bootstrap"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/rag"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	cfg     *config.Config
	logFile *os.File
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about a PDF of notes",
	Long: `docqa indexes one PDF and answers questions using only its text.

The first command that needs the index builds it; later runs reuse it.
Settings come from --config, a .env file and DOCQA_* environment variables.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logFile != nil {
			_ = logFile.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
}

func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}
	cfg = loaded

	out, err := logOutput(cmd)
	if err != nil {
		return err
	}
	logger_i.Init(logger_i.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: out})
	logger_i.NewLogger("main").Debug("effective configuration", "config", cfg.String())
	return nil
}

// logOutput keeps stdout clean for commands that own it.
func logOutput(cmd *cobra.Command) (io.Writer, error) {
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logFile = f
		return f, nil
	}
	switch cmd.Name() {
	case chatCmd.Name():
		return io.Discard, nil
	case serveCmd.Name():
		return os.Stdout, nil
	default:
		return os.Stderr, nil
	}
}

// openPipeline wires the app and builds or opens the index.
func openPipeline(cmd *cobra.Command) (*bootstrap.App, rag.Pipeline, error) {
	app, err := bootstrap.NewApp(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	p, err := app.Handle.Get(cmd.Context())
	if err != nil {
		_ = app.Close()
		return nil, nil, err
	}
	return app, p, nil
}
