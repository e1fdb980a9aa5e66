// Package source turns the caller's ordered inputs into local, readable
// image files. Inputs may be image paths, directories of images, http(s)
// URLs or PDF documents; everything fetched or rendered is registered as a
// transient artifact.
package source

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/maruel/natural"
	"golang.org/x/sync/errgroup"

	"github.com/spherical/pptx-builder/internal/domain"
	"github.com/spherical/pptx-builder/internal/observability"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// Options configures a Resolver.
type Options struct {
	TempDir    string
	Registry   domain.ArtifactRegistry
	HTTPClient *http.Client
	UserAgent  string
	// PDFDPI is the rendering resolution for PDF pages.
	PDFDPI float64
	// MaxFetches bounds concurrent downloads.
	MaxFetches int
	Logger     *observability.Logger
}

// Resolver expands inputs into an ordered list of source images.
type Resolver struct {
	tempDir    string
	registry   domain.ArtifactRegistry
	httpClient *http.Client
	userAgent  string
	pdfDPI     float64
	maxFetches int
	logger     *observability.Logger
}

// NewResolver creates a resolver.
func NewResolver(opts Options) (*Resolver, error) {
	if opts.TempDir == "" {
		return nil, domain.ConfigError("source resolver requires a temp dir", nil)
	}
	if opts.Registry == nil {
		return nil, domain.ConfigError("source resolver requires an artifact registry", nil)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.PDFDPI <= 0 {
		opts.PDFDPI = 150
	}
	if opts.MaxFetches < 1 {
		opts.MaxFetches = 4
	}
	if opts.Logger == nil {
		opts.Logger = observability.Nop()
	}

	return &Resolver{
		tempDir:    opts.TempDir,
		registry:   opts.Registry,
		httpClient: opts.HTTPClient,
		userAgent:  opts.UserAgent,
		pdfDPI:     opts.PDFDPI,
		maxFetches: opts.MaxFetches,
		logger:     opts.Logger.WithComponent("source"),
	}, nil
}

// Resolve expands inputs in order and assigns 1-based indices.
//
// Plain paths are passed through without being opened: a missing or
// unreadable image surfaces later as a decode error for its slide.
func (r *Resolver) Resolve(ctx context.Context, inputs []string) ([]domain.SourceImage, error) {
	var paths []string
	var remote []int // positions in paths that still hold a URL

	for _, in := range inputs {
		switch {
		case isRemote(in):
			remote = append(remote, len(paths))
			paths = append(paths, in)

		case isDir(in):
			files, err := listImages(in)
			if err != nil {
				return nil, err
			}
			r.logger.Debug().Str("dir", in).Int("images", len(files)).Msg("Expanded directory")
			paths = append(paths, files...)

		case strings.EqualFold(filepath.Ext(in), ".pdf"):
			pages, err := r.renderPDF(ctx, in)
			if err != nil {
				return nil, err
			}
			paths = append(paths, pages...)

		default:
			paths = append(paths, in)
		}
	}

	if len(remote) > 0 {
		if err := r.fetchAll(ctx, paths, remote); err != nil {
			return nil, err
		}
	}

	images := make([]domain.SourceImage, len(paths))
	for i, p := range paths {
		images[i] = domain.SourceImage{Index: i + 1, Path: p}
	}
	return images, nil
}

// fetchAll downloads the URLs at the given positions of paths in parallel
// and replaces each with its local file.
func (r *Resolver) fetchAll(ctx context.Context, paths []string, positions []int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxFetches)

	for _, pos := range positions {
		pos := pos
		url := paths[pos]
		g.Go(func() error {
			local, err := r.fetch(gctx, pos+1, url)
			if err != nil {
				return err
			}
			// Each goroutine owns a distinct slot.
			paths[pos] = local
			return nil
		})
	}
	return g.Wait()
}

func isRemote(in string) bool {
	lower := strings.ToLower(in)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func isDir(in string) bool {
	info, err := os.Stat(in)
	return err == nil && info.IsDir()
}

// listImages returns the image files directly inside dir in natural order,
// so "slide-2.png" sorts before "slide-10.png".
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.DecodeError(fmt.Sprintf("cannot list directory %s", dir), err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(natural.StringSlice(names))

	files := make([]string, len(names))
	for i, n := range names {
		files[i] = filepath.Join(dir, n)
	}
	return files, nil
}
