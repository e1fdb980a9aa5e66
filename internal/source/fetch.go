package source

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/spherical/pptx-builder/internal/domain"
)

// fetch downloads url once into a registered transient file. There is no
// retry: a failed request fails the run.
func (r *Resolver) fetch(ctx context.Context, index int, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fetchError(rawURL, "invalid request", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	r.logger.Info().Int("index", index).Str("url", rawURL).Msg("Downloading image")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fetchError(rawURL, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fetchError(rawURL, fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	f, err := os.CreateTemp(r.tempDir, fmt.Sprintf("fetch-%03d-*%s", index, remoteExt(rawURL, resp.Header.Get("Content-Type"))))
	if err != nil {
		return "", fetchError(rawURL, "cannot create download file", err)
	}
	r.registry.Register(f.Name())

	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fetchError(rawURL, "download interrupted", err)
	}

	r.logger.Debug().Int("index", index).Str("file", f.Name()).Int64("bytes", n).Msg("Downloaded image")
	return f.Name(), nil
}

// remoteExt picks a file extension from the URL path, falling back to the
// response content type. Decoding sniffs the format, so this is cosmetic.
func remoteExt(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); imageExtensions[ext] {
			return ext
		}
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "image/png":
			return ".png"
		case "image/jpeg":
			return ".jpg"
		case "image/webp":
			return ".webp"
		case "image/gif":
			return ".gif"
		}
	}
	return ".img"
}

func fetchError(rawURL, msg string, err error) error {
	return domain.FetchError(fmt.Sprintf("%s: %s", rawURL, msg), err)
}
