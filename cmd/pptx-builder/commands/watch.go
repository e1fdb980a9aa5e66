package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/pptx-builder/cmd/pptx-builder/ui"
	"github.com/spherical/pptx-builder/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [images...]",
	Short: "Rebuild a presentation whenever its slide directories change",
	Long: `Build once, then rebuild each time an image in one of the --dir
directories is added, changed or removed. Failed rebuilds are reported
and watching continues. Stop with Ctrl-C.`,
	Example: `  pptx-builder watch --dir ./slides -o deck.pptx`,
	RunE:    runWatch,
}

func init() {
	addConversionFlags(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before rebuilding")
	_ = watchCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := applyBuildFlags(cmd, cfg); err != nil {
		return err
	}
	inputs := collectInputs(args, buildDirs, nil)

	w, err := watch.New(buildDirs, watchDebounce, logger)
	if err != nil {
		return err
	}

	ui.Section("Watching for changes")
	rebuild := func(ctx context.Context) error {
		err := convert(ctx, inputs)
		if err != nil {
			ui.Error("%v", err)
		}
		return err
	}
	_ = rebuild(ctx)

	return w.Run(ctx, rebuild)
}
