// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ocr extracts text from KYC documents with pluggable backends.
package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extractor returns the text content of a document. Different backends
// (plain text, tesseract) implement this interface.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// PlainTextExtractor reads .txt documents directly.
type PlainTextExtractor struct{}

// Extract returns the file contents.
func (PlainTextExtractor) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// Router dispatches to an extractor by lowercased file extension.
type Router struct {
	byExt map[string]Extractor
}

// NewRouter creates a router that handles .txt with PlainTextExtractor and,
// when image is non-nil, images and PDFs with image.
func NewRouter(image Extractor) *Router {
	r := &Router{byExt: map[string]Extractor{".txt": PlainTextExtractor{}}}
	if image != nil {
		for _, ext := range []string{".jpg", ".jpeg", ".png", ".pdf", ".tif", ".tiff"} {
			r.byExt[ext] = image
		}
	}
	return r
}

// Handle registers ext (with leading dot) to e.
func (r *Router) Handle(ext string, e Extractor) {
	r.byExt[strings.ToLower(ext)] = e
}

// Extract routes path to the extractor registered for its extension.
func (r *Router) Extract(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := r.byExt[ext]
	if !ok {
		return "", fmt.Errorf("no extractor for %q files", ext)
	}
	return e.Extract(ctx, path)
}
