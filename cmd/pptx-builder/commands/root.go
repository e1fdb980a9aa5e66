// Package commands implements the pptx-builder command tree.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/pptx-builder/cmd/pptx-builder/ui"
	"github.com/spherical/pptx-builder/internal/config"
	"github.com/spherical/pptx-builder/internal/observability"
)

// Version is reported by the version command.
var Version = "dev"

var (
	cfgFile   string
	verbose   bool
	noColor   bool
	logFormat string

	cfg    *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pptx-builder",
	Short: "Build a presentation from slide images",
	Long: `pptx-builder turns an ordered list of slide images into a single .pptx
document. Each image becomes one slide, scaled to fit and centered on the
canvas. Inputs may be image files, directories of images, http(s) URLs or
PDF documents whose pages are rendered as images.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.InitUI(noColor, verbose)

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		if cmd.Flags().Changed("log-format") {
			cfg.Observability.LogFormat = logFormat
		}
		level := cfg.Observability.LogLevel
		if verbose {
			level = "debug"
		}
		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      cfg.Observability.LogFormat,
			ServiceName: "pptx-builder",
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console or json)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
