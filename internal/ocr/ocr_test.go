// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ocr

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	imageErr error
	runErr   error
	output   string
	gotArgs  []string
	gotInput string
}

func (f *fakeRuntime) Name() string                              { return "fake" }
func (f *fakeRuntime) Available(context.Context) bool            { return true }
func (f *fakeRuntime) ImageExists(context.Context, string) error { return f.imageErr }

func (f *fakeRuntime) Run(_ context.Context, _ string, args []string, stdin io.Reader, stdout io.Writer) error {
	f.gotArgs = args
	data, _ := io.ReadAll(stdin)
	f.gotInput = string(data)
	if f.runErr != nil {
		return f.runErr
	}
	_, err := io.WriteString(stdout, f.output)
	return err
}

type staticExtractor string

func (s staticExtractor) Extract(context.Context, string) (string, error) { return string(s), nil }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestPlainTextExtractor(t *testing.T) {
	p := writeFile(t, "id.txt", "National ID: Jane Doe")
	got, err := PlainTextExtractor{}.Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "National ID: Jane Doe", got)

	_, err = PlainTextExtractor{}.Extract(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestRouter(t *testing.T) {
	r := NewRouter(staticExtractor("from image"))
	ctx := context.Background()

	txt := writeFile(t, "a.txt", "plain")
	got, err := r.Extract(ctx, txt)
	require.NoError(t, err)
	assert.Equal(t, "plain", got)

	got, err = r.Extract(ctx, "scan.PNG")
	require.NoError(t, err)
	assert.Equal(t, "from image", got)

	_, err = r.Extract(ctx, "doc.docx")
	assert.ErrorContains(t, err, ".docx")
}

func TestRouterWithoutImageExtractor(t *testing.T) {
	r := NewRouter(nil)
	_, err := r.Extract(context.Background(), "scan.jpg")
	assert.Error(t, err)

	r.Handle(".JPG", staticExtractor("custom"))
	got, err := r.Extract(context.Background(), "scan.jpg")
	require.NoError(t, err)
	assert.Equal(t, "custom", got)
}

func TestNewTesseractExtractor(t *testing.T) {
	_, err := NewTesseractExtractor(context.Background(), &fakeRuntime{imageErr: errors.New("no such image")}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract image not available")

	ex, err := NewTesseractExtractor(context.Background(), &fakeRuntime{}, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultImage, ex.image)
}

func TestTesseractExtract(t *testing.T) {
	tests := []struct {
		name    string
		rt      *fakeRuntime
		want    string
		wantErr string
	}{
		{name: "success", rt: &fakeRuntime{output: "ADDRESS 12 Main St"}, want: "ADDRESS 12 Main St"},
		{name: "runtime error", rt: &fakeRuntime{runErr: errors.New("exit 1")}, wantErr: "running OCR"},
		{name: "empty output", rt: &fakeRuntime{}, wantErr: "empty output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, "scan.png", "PNGDATA")
			ex, err := NewTesseractExtractor(context.Background(), tt.rt, "ocr:test")
			require.NoError(t, err)

			got, err := ex.Extract(context.Background(), p)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, []string{"stdin", "stdout"}, tt.rt.gotArgs)
			assert.Equal(t, "PNGDATA", tt.rt.gotInput)
		})
	}
}
