package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"

	"github.com/spherical/pptx-builder/internal/domain"
)

// renderPDF renders every page of the PDF at path to a transient PNG and
// returns the files in page order.
func (r *Resolver) renderPDF(ctx context.Context, path string) ([]string, error) {
	if err := r.validatePDF(path); err != nil {
		return nil, err
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, domain.DecodeError(fmt.Sprintf("failed to open PDF %s", path), err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.DecodeError(fmt.Sprintf("PDF has no pages: %s", path), nil)
	}
	r.logger.Info().Str("pdf", path).Int("pages", pageCount).Float64("dpi", r.pdfDPI).Msg("Rendering PDF pages")

	pages := make([]string, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := doc.ImageDPI(pageNum, r.pdfDPI)
		if err != nil {
			return nil, domain.DecodeError(fmt.Sprintf("failed to render page %d of %s", pageNum+1, path), err)
		}

		f, err := os.CreateTemp(r.tempDir, fmt.Sprintf("page-%03d-*.png", pageNum+1))
		if err != nil {
			return nil, domain.PersistError(fmt.Sprintf("failed to create file for page %d", pageNum+1), err)
		}
		r.registry.Register(f.Name())

		err = imaging.Encode(f, img, imaging.PNG)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, domain.PersistError(fmt.Sprintf("failed to encode page %d", pageNum+1), err)
		}

		pages = append(pages, f.Name())
	}

	return pages, nil
}

const largePDFSize = 100 << 20

var pdfMagic = []byte("%PDF-")

// validatePDF rejects paths that are not readable PDF files before they
// reach the renderer.
func (r *Resolver) validatePDF(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return domain.DecodeError(fmt.Sprintf("cannot access PDF %s", path), err)
	}
	if info.IsDir() {
		return domain.DecodeError(fmt.Sprintf("path is a directory, not a PDF: %s", path), nil)
	}
	if info.Size() > largePDFSize {
		r.logger.Warn().Str("pdf", path).Int64("mb", info.Size()>>20).Msg("PDF file is very large, rendering may take a while")
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.DecodeError(fmt.Sprintf("cannot open PDF %s", path), err)
	}
	defer f.Close()

	head := make([]byte, 1024)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return domain.DecodeError(fmt.Sprintf("cannot read PDF %s", path), err)
	}
	if !bytes.Contains(head[:n], pdfMagic) {
		return domain.DecodeError(fmt.Sprintf("not a PDF file: %s", path), nil)
	}
	return nil
}
