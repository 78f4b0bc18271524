// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/pdiddy/microfinance-engine/internal/logging"
	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// errTooLarge reports a download over MaxDocumentBytes.
var errTooLarge = errors.New("document exceeds size limit")

// contentTypeExt maps the media types document servers commonly send to
// the extensions KYC verification accepts.
var contentTypeExt = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/tiff":      ".tiff",
	"text/plain":      ".txt",
}

// fetchDocuments downloads every document that has a URL but no path into
// <DataDir>/documents/<app-id>/<kind><ext> and sets its Path. Existing
// files are reused.
func (l *Loader) fetchDocuments(ctx context.Context, app *types.Application) error {
	log := logging.WithComponent(ctx, "intake")

	for _, kind := range types.RequiredDocuments {
		doc, ok := app.KYCDocuments[kind]
		if !ok || doc.Path != "" || doc.URL == "" {
			continue
		}
		if l.Guard == nil {
			return fmt.Errorf("document %s: remote documents need an HTTP client", kind)
		}

		dir := filepath.Join(l.DataDir, DocumentsDir, app.ID)
		if existing := findExisting(dir, string(kind)); existing != "" {
			doc.Path = existing
			app.KYCDocuments[kind] = doc
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}

		dest, err := l.download(ctx, doc.URL, filepath.Join(dir, string(kind)))
		if err != nil {
			return fmt.Errorf("downloading %s: %w", kind, err)
		}
		log.Debug().Str("application_id", app.ID).Str("kind", string(kind)).Str("path", dest).Msg("document fetched")

		doc.Path = dest
		app.KYCDocuments[kind] = doc
	}
	return nil
}

// download fetches rawURL and writes it atomically to base plus an extension
// taken from the URL path or, failing that, the response Content-Type.
func (l *Loader) download(ctx context.Context, rawURL, base string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid document URL %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	if l.UserAgent != "" {
		req.Header.Set("User-Agent", l.UserAgent)
	}

	resp, err := l.Guard.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		ext = extForContentType(resp.Header.Get("Content-Type"))
	}
	dest := base + ext

	pf, err := renameio.NewPendingFile(dest, renameio.WithPermissions(0o644))
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer pf.Cleanup()

	body := io.Reader(resp.Body)
	if l.MaxDocumentBytes > 0 {
		body = io.LimitReader(resp.Body, l.MaxDocumentBytes+1)
	}
	n, err := io.Copy(pf, body)
	if err != nil {
		return "", fmt.Errorf("writing download: %w", err)
	}
	if l.MaxDocumentBytes > 0 && n > l.MaxDocumentBytes {
		return "", fmt.Errorf("%w (%d bytes)", errTooLarge, l.MaxDocumentBytes)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("committing download: %w", err)
	}
	return dest, nil
}

func extForContentType(ct string) string {
	media, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return contentTypeExt[media]
}

// findExisting returns a file in dir named kind with any extension.
func findExisting(dir, kind string) string {
	matches, _ := filepath.Glob(filepath.Join(dir, kind+".*"))
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			return m
		}
	}
	return ""
}
