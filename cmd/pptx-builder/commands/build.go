package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/pptx-builder/cmd/pptx-builder/ui"
	"github.com/spherical/pptx-builder/internal/config"
	"github.com/spherical/pptx-builder/internal/converter"
	"github.com/spherical/pptx-builder/internal/domain"
	"github.com/spherical/pptx-builder/internal/publish"
)

var (
	buildOutput      string
	buildDirs        []string
	buildPDFs        []string
	buildCanvas      string
	buildScale       float64
	buildWorkers     int
	buildTaskTimeout time.Duration
	buildDPI         float64
	buildPDFDPI      float64
	buildUpload      bool
)

var buildCmd = &cobra.Command{
	Use:   "build [images...]",
	Short: "Build a presentation from images",
	Long: `Build a .pptx with one slide per input image, in input order.

Positional inputs come first, then --dir entries, then --pdf entries.
Directories contribute their image files in natural order; URLs are
downloaded once; PDF pages are rendered to images.`,
	Example: `  pptx-builder build slide1.png slide2.jpg -o deck.pptx
  pptx-builder build --dir ./slides --canvas standard -o deck.pptx
  pptx-builder build https://example.com/a.png --pdf brochure.pdf -o deck.pptx --upload`,
	RunE: runBuild,
}

func init() {
	addConversionFlags(buildCmd)
	buildCmd.Flags().StringArrayVar(&buildPDFs, "pdf", nil, "PDF whose pages become slides (repeatable)")
	buildCmd.Flags().Float64Var(&buildPDFDPI, "pdf-dpi", 0, "resolution PDF pages are rendered at")
	buildCmd.Flags().BoolVar(&buildUpload, "upload", false, "upload the document to S3-compatible storage")
	rootCmd.AddCommand(buildCmd)
}

// addConversionFlags registers the flags shared by build and watch.
func addConversionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&buildOutput, "output", "o", "", "output .pptx path (defaults to output.path)")
	cmd.Flags().StringArrayVar(&buildDirs, "dir", nil, "directory of slide images (repeatable)")
	cmd.Flags().StringVar(&buildCanvas, "canvas", "", "canvas: widescreen, standard or WIDTHxHEIGHT in EMU")
	cmd.Flags().Float64Var(&buildScale, "scale", 1.0, "resize factor applied to embedded images")
	cmd.Flags().IntVar(&buildWorkers, "workers", 0, "maximum parallel image tasks")
	cmd.Flags().DurationVar(&buildTaskTimeout, "task-timeout", 0, "per-image timeout (0 disables)")
	cmd.Flags().Float64Var(&buildDPI, "dpi", 0, "resolution assumed for images without DPI metadata")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inputs := collectInputs(args, buildDirs, buildPDFs)
	if len(inputs) == 0 {
		return fmt.Errorf("no inputs: pass image paths, --dir or --pdf")
	}

	if err := applyBuildFlags(cmd, cfg); err != nil {
		return err
	}

	ui.Section("Building presentation")
	return convert(ctx, inputs)
}

// convert runs one conversion with terminal progress.
func convert(ctx context.Context, inputs []string) error {
	req, err := converter.NewRequest(cfg, inputs, cfg.Output.Path)
	if err != nil {
		return err
	}

	ui.Detail("Inputs", len(inputs))
	ui.Detail("Canvas", req.Canvas)
	ui.Detail("Workers", req.MaxWorkers)
	ui.Detail("Resize factor", req.ResizeFactor)

	spin := ui.NewSpinner("Resolving inputs...")
	spin.Start()

	var bar *ui.ProgressBar
	conv := converter.New(cfg,
		converter.WithLogger(logger),
		converter.WithPublisher(s3Publisher(cfg.Output.Upload)),
		converter.WithResolved(func(total int) {
			spin.Stop()
			bar = ui.NewProgressBar(int64(total), "Converting")
		}),
		converter.WithProgress(func(done, _ int) {
			bar.Set(int64(done))
		}),
	)

	res, err := conv.Run(ctx, req)
	spin.Stop()
	if bar != nil {
		bar.Finish()
	}

	if res.CleanupErr != nil {
		ui.Warning("Some temporary files could not be removed: %v", res.CleanupErr)
	}
	if err != nil {
		if res.OutputPath != "" {
			ui.Info("Document was written to %s", res.OutputPath)
		}
		return fmt.Errorf("%s: %w", failureLabel(err), err)
	}

	ui.Success("Wrote %d slides to %s in %s", res.Slides, res.OutputPath, res.Duration.Round(time.Millisecond))
	if res.URL != "" {
		ui.Success("Uploaded to %s", res.URL)
	}
	ui.Detail("Run ID", res.RunID)
	return nil
}

// collectInputs orders positional inputs, then directories, then PDFs.
func collectInputs(args, dirs, pdfs []string) []string {
	inputs := make([]string, 0, len(args)+len(dirs)+len(pdfs))
	inputs = append(inputs, args...)
	inputs = append(inputs, dirs...)
	inputs = append(inputs, pdfs...)
	return inputs
}

// applyBuildFlags lets explicitly set flags win over file and env config.
func applyBuildFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output.Path = buildOutput
	}
	if flags.Changed("canvas") {
		canvas, err := domain.ParseCanvas(buildCanvas)
		if err != nil {
			return err
		}
		cfg.Canvas = config.CanvasConfig{Width: canvas.Width, Height: canvas.Height}
	}
	if flags.Changed("scale") {
		cfg.Transform.ResizeFactor = buildScale
	}
	if flags.Changed("workers") {
		cfg.Pipeline.MaxWorkers = buildWorkers
	}
	if flags.Changed("task-timeout") {
		cfg.Pipeline.TaskTimeout = buildTaskTimeout
	}
	if flags.Changed("dpi") {
		cfg.Transform.DefaultDPI = buildDPI
	}
	if flags.Changed("pdf-dpi") {
		cfg.PDF.DPI = buildPDFDPI
	}
	if flags.Changed("upload") {
		cfg.Output.Upload.Enabled = buildUpload
	}
	if cfg.Output.Path == "" {
		return domain.ConfigError("no output path: pass -o or set output.path", nil)
	}
	return cfg.Validate()
}

func s3Publisher(up config.UploadConfig) converter.PublisherFactory {
	return func(ctx context.Context) (converter.Publisher, error) {
		p, err := publish.NewS3Publisher(ctx, publish.S3Config{
			Endpoint:  up.Endpoint,
			Bucket:    up.Bucket,
			Region:    up.Region,
			AccessKey: up.AccessKey,
			SecretKey: up.SecretKey,
			Prefix:    up.Prefix,
			Secure:    up.Secure,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

func failureLabel(err error) string {
	switch domain.KindOf(err) {
	case domain.ErrorKindDecode:
		return "could not read an image"
	case domain.ErrorKindFetch:
		return "could not download an image"
	case domain.ErrorKindPersist:
		return "could not write a temporary image"
	case domain.ErrorKindSerialization:
		return "could not write the document"
	case domain.ErrorKindPublish:
		return "could not upload the document"
	case domain.ErrorKindInvalidScale, domain.ErrorKindInvalidDimensions, domain.ErrorKindInvalidConfig:
		return "invalid settings"
	default:
		return "build failed"
	}
}
