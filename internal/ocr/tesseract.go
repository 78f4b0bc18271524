// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pdiddy/microfinance-engine/internal/container"
)

// DefaultImage is the tesseract container image used when none is configured.
const DefaultImage = "tesseract:latest"

// tesseract reads the image from stdin and writes plain text to stdout.
var tesseractArgs = []string{"stdin", "stdout"}

// TesseractExtractor extracts text by piping documents through a tesseract
// container image. It depends on a container.Runtime (docker or podman)
// injected at construction time.
type TesseractExtractor struct {
	runtime container.Runtime
	image   string
}

// NewTesseractExtractor verifies that image exists locally in rt before
// returning. An empty image selects DefaultImage.
func NewTesseractExtractor(ctx context.Context, rt container.Runtime, image string) (*TesseractExtractor, error) {
	if image == "" {
		image = DefaultImage
	}
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("tesseract image not available in %s: %w", rt.Name(), err)
	}
	return &TesseractExtractor{runtime: rt, image: image}, nil
}

// Extract pipes the file at path through the container and returns its text.
func (t *TesseractExtractor) Extract(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening document %s: %w", path, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := t.runtime.Run(ctx, t.image, tesseractArgs, f, &out); err != nil {
		return "", fmt.Errorf("running OCR on %s: %w", path, err)
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("tesseract produced empty output for %s", path)
	}
	return out.String(), nil
}
