// Package commands implements the relcol command line: inspecting the
// declared models, running the relation codecs by hand, following stored
// relations and serving the HTTP API.
package commands

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/relations/internal/config"
	"github.com/conduit-lang/relations/internal/logging"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// App carries what every command shares: flags and the loaded schema
type App struct {
	ConfigPath string
	NoColor    bool

	Config *config.Config
	Logger *zap.Logger
	Schema *config.Schema
}

// Load reads the configuration, builds the logger and declares every model
// and relation. It runs once; later calls are no-ops.
func (a *App) Load() error {
	if a.Schema != nil {
		return nil
	}

	path := a.ConfigPath
	if path == "" {
		if found, err := config.FindConfigFile(); err == nil {
			path = found
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	s, err := config.Build(cfg, logger)
	if err != nil {
		return err
	}

	a.Config = cfg
	a.Logger = logger
	a.Schema = s
	return nil
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "relcol",
		Short: "Relation columns across storage engines",
		Long: color.CyanString(`relcol - relation columns across storage engines

relcol declares models and the relation fields between them, encodes
relation values for storage and decodes them back.

Relation kinds:
  • scalar       single-attribute key in the same engine
  • composite    multi-attribute key stored as an ordered text mapping
  • cross_store  single-attribute key of a model in another engine`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if app.NoColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&app.ConfigPath, "config", "c", "", "config file (default: relcol.yaml in the current or a parent directory)")
	rootCmd.PersistentFlags().BoolVar(&app.NoColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewModelsCommand(app))
	rootCmd.AddCommand(NewEncodeCommand(app))
	rootCmd.AddCommand(NewDecodeCommand(app))
	rootCmd.AddCommand(NewGetCommand(app))
	rootCmd.AddCommand(NewServeCommand(app))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the relcol version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			// Set GoVersion to actual runtime if not set at build time
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			titleColor := color.New(color.FgCyan, color.Bold)

			titleColor.Fprint(out, "relcol version: ")
			fmt.Fprintln(out, Version)

			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)

			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)

			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
