package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner renders `pages` blank images for pdftoppm and answers tesseract
// with the image base name.
type fakeRunner struct {
	pages     []string
	failImage string
	calls     []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	switch name {
	case "pdftoppm":
		prefix := args[len(args)-1]
		for _, p := range f.pages {
			if err := os.WriteFile(prefix+"-"+p+".png", []byte("png"), 0o644); err != nil {
				return nil, err
			}
		}
		return nil, nil
	case "tesseract":
		base := filepath.Base(args[0])
		if base == f.failImage {
			return nil, errors.New("tesseract crashed")
		}
		return []byte("  text of " + base + "\n"), nil
	}
	return nil, errors.New("unexpected command " + name)
}

func TestRecognizeImage(t *testing.T) {
	runner := &fakeRunner{}
	engine := NewWithRunner(runner)

	text, err := engine.RecognizeImage(context.Background(), "/tmp/scan.png")
	require.NoError(t, err)
	assert.Equal(t, "text of scan.png", text)
	assert.Equal(t, []string{"tesseract /tmp/scan.png stdout"}, runner.calls)
}

func TestRecognizePage_RendersOnlyThatPage(t *testing.T) {
	runner := &fakeRunner{pages: []string{"3"}}
	engine := NewWithRunner(runner)

	text, err := engine.RecognizePage(context.Background(), "/docs/a.pdf", 3)
	require.NoError(t, err)
	assert.Equal(t, "text of page-3.png", text)
	require.Len(t, runner.calls, 2)
	assert.Contains(t, runner.calls[0], "-r 300 -png -f 3 -l 3 /docs/a.pdf")
}

func TestRecognizeDocument_PageOrder(t *testing.T) {
	runner := &fakeRunner{pages: []string{"10", "02", "01"}}
	engine := NewWithRunner(runner)

	pages, err := engine.RecognizeDocument(context.Background(), "/docs/a.pdf")
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, 10, pages[2].Number)
	assert.True(t, pages[2].OCR)
}

func TestRecognizeDocument_SkipsFailedPage(t *testing.T) {
	runner := &fakeRunner{pages: []string{"1", "2"}, failImage: "page-1.png"}
	engine := NewWithRunner(runner)

	pages, err := engine.RecognizeDocument(context.Background(), "/docs/a.pdf")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 2, pages[0].Number)
}

func TestRecognizePage_RenderError(t *testing.T) {
	engine := NewWithRunner(runnerFunc(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}))

	_, err := engine.RecognizePage(context.Background(), "/docs/a.pdf", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftoppm failed")
}

type runnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func (f runnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}
