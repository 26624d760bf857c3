// Package cmd implements the jmxgen command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"jmxgen/internal/config"
	"jmxgen/internal/logger"
)

const version = "0.1.0"

type rootOptions struct {
	ConfigPath string
	Verbose    bool
	LogDir     string
}

// appState carries the loaded configuration into subcommands.
type appState struct {
	opts rootOptions
	cfg  *config.Config
}

func (a *appState) initFromFlags() error {
	var cfg *config.Config
	var err error
	if a.opts.ConfigPath != "" {
		cfg, err = config.LoadConfig(a.opts.ConfigPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}
	if a.opts.LogDir != "" {
		cfg.Logging.Dir = a.opts.LogDir
	}
	if a.opts.Verbose {
		cfg.Logging.Verbose = true
	}
	a.cfg = cfg
	return nil
}

// newLogger opens a file logger in the configured log directory. Commands
// that only print to the terminal do not call this, so plain runs leave no
// log files behind.
func (a *appState) newLogger() (*logger.Logger, error) {
	return logger.NewLogger(a.cfg.Logging.Dir, a.cfg.Logging.Verbose)
}

// NewRootCmd builds the jmxgen command tree.
func NewRootCmd() *cobra.Command {
	app := &appState{}

	root := &cobra.Command{
		Use:   "jmxgen",
		Short: "Generate JMeter test plans from OpenAPI specs and scenario files",
		Long: "jmxgen compiles OpenAPI/Swagger specifications and pt_scenario.yaml\n" +
			"step definitions into JMeter JMX test plans.\n\n" +
			"Common usage:\n" +
			"  jmxgen analyze\n" +
			"  jmxgen generate --spec openapi.yaml --output test.jmx\n" +
			"  jmxgen generate --scenario pt_scenario.yaml --spec openapi.yaml\n" +
			"  jmxgen validate test.jmx\n" +
			"  jmxgen visualize pt_scenario.yaml --spec openapi.yaml\n",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.initFromFlags()
		},
	}

	root.PersistentFlags().StringVar(&app.opts.ConfigPath, "config", "", "Path to a jmxgen.yaml configuration file")
	root.PersistentFlags().BoolVarP(&app.opts.Verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVar(&app.opts.LogDir, "log-dir", "", "Directory for log files (overrides configuration)")

	root.SetVersionTemplate("{{.Version}}\n")
	root.Version = version

	root.AddCommand(newAnalyzeCmd(app))
	root.AddCommand(newGenerateCmd(app))
	root.AddCommand(newValidateCmd(app))
	root.AddCommand(newVisualizeCmd(app))
	root.AddCommand(newWizardCmd(app))
	root.AddCommand(newDraftCmd(app))
	root.AddCommand(newFeedCmd(app))
	root.AddCommand(newTestdataCmd(app))
	root.AddCommand(newMCPCmd(app))

	return root
}
