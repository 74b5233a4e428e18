package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"dispatch-cli/internal/api"
	"dispatch-cli/internal/config"
	"dispatch-cli/internal/format"

	"github.com/spf13/cobra"
)

type App struct {
	ConfigPath string
	APIURL     string
	WSURL      string
	Token      string
	Format     string
	Pretty     bool
	LogLevel   string
	LogFormat  string
	LogFile    string

	cfg     *config.Config
	logger  *slog.Logger
	logFile *os.File
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "dispatch",
		Short:        "Field-service dispatch board (TUI + CLI)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive board
  dispatch

  # Run the sandbox backend, then point the board at it
  dispatch serve --seed
  dispatch --api-url http://127.0.0.1:8787/api

  # Scriptable commands
  dispatch snapshot --date 2026-03-10 --format text
  dispatch assign wo-1a2b3c4d crew-5e6f7a8b

  # Direct work order lookup (shortcut for: dispatch show <work-order-id>)
  dispatch wo-1a2b3c4d
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoard(cmd, app, boardFlags{})
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup(cmd)
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return app.teardown()
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "Config file (default $DISPATCH_CONFIG or ~/.dispatch/config.yaml)")
	cmd.PersistentFlags().StringVar(&app.APIURL, "api-url", "", "Backend API base URL")
	cmd.PersistentFlags().StringVar(&app.WSURL, "ws-url", "", "Push event websocket URL (default: derived from --api-url)")
	cmd.PersistentFlags().StringVar(&app.Token, "token", "", "Bearer token for the backend")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("DISPATCH_FORMAT", "json"), "Output format ("+strings.Join(format.Formats, "|")+")")
	cmd.PersistentFlags().BoolVar(&app.Pretty, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&app.LogFormat, "log-format", "", "Log format (text|json)")
	cmd.PersistentFlags().StringVar(&app.LogFile, "log-file", "", "Append logs to this file instead of stderr")

	cmd.AddCommand(newBoardCmd(app))
	cmd.AddCommand(newSnapshotCmd(app))
	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newAssignCmd(app))
	cmd.AddCommand(newUnassignCmd(app))
	cmd.AddCommand(newOptimizeCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newWebTUICmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newDocsCmd(app))
	cmd.AddCommand(newConfigCmd(app))

	return cmd
}

// setup resolves configuration (flag > env > file > defaults) and the logger.
func (app *App) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(); err != nil {
		return writeErr(cmd, err)
	}
	cfg, err := config.Load(app.ConfigPath)
	if err != nil {
		return writeErr(cmd, err)
	}
	flags := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = strings.TrimSpace(v)
		}
	}
	set("api-url", &cfg.APIURL, app.APIURL)
	set("ws-url", &cfg.WSURL, app.WSURL)
	set("token", &cfg.Token, app.Token)
	set("log-level", &cfg.LogLevel, app.LogLevel)
	set("log-format", &cfg.LogFormat, app.LogFormat)
	if err := cfg.ApplyDefaults(); err != nil {
		return writeErr(cmd, err)
	}
	app.cfg = cfg

	var w io.Writer = cmd.ErrOrStderr()
	if app.LogFile != "" {
		f, err := os.OpenFile(app.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return writeErr(cmd, fmt.Errorf("open log file: %w", err))
		}
		app.logFile = f
		w = f
	} else if ownsTerminal(cmd) {
		// The board repaints the whole screen; stray log lines would corrupt it.
		w = io.Discard
	}
	logger, err := setupLogger(cfg.LogLevel, cfg.LogFormat, w)
	if err != nil {
		return writeErr(cmd, err)
	}
	app.logger = logger
	return nil
}

func (app *App) teardown() error {
	if app.logFile == nil {
		return nil
	}
	err := app.logFile.Close()
	app.logFile = nil
	return err
}

func ownsTerminal(cmd *cobra.Command) bool {
	return cmd.Name() == "board" || !cmd.HasParent()
}

func (app *App) client() *api.Client {
	return api.New(api.Config{BaseURL: app.cfg.APIURL, Token: app.cfg.Token, Timeout: app.cfg.Timeout})
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

var errNoWorkOrder = errors.New("work order not found")
