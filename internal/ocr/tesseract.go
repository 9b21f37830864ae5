package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	// Register decoders for formats imaging does not handle itself.
	_ "golang.org/x/image/webp"

	"screenshot-search/internal/logging"
	"screenshot-search/internal/metrics"
)

const versionCheckTimeout = 5 * time.Second

// Tesseract extracts text by invoking the tesseract binary on a
// preprocessed copy of the image. Each call runs one subprocess; the
// engine itself is the latency bottleneck, so calls are expected to be
// sequential.
type Tesseract struct {
	cmd  string
	lang string
}

// NewTesseract creates a Tesseract extractor. Empty arguments select
// the defaults: the "tesseract" binary from PATH and English.
func NewTesseract(cmd, lang string) *Tesseract {
	if cmd == "" {
		cmd = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{cmd: cmd, lang: lang}
}

// Available probes the tesseract binary. Returns an error wrapping
// ErrUnavailable when the engine cannot run.
func (t *Tesseract) Available() error {
	path, err := exec.LookPath(t.cmd)
	if err != nil {
		return fmt.Errorf("%w: %s not found in PATH", ErrUnavailable, t.cmd)
	}
	logging.Debug("Tesseract path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), versionCheckTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, t.cmd, "--version").Output()
	if err != nil {
		return fmt.Errorf("%w: version check failed: %v", ErrUnavailable, err)
	}

	lines := strings.Split(string(out), "\n")
	if len(lines) > 0 {
		logging.Debug("Tesseract version: %s", strings.TrimSpace(lines[0]))
	}
	return nil
}

// Extract runs OCR on the image at path and returns the recovered
// text, trimmed. Failures are returned as *ExtractionError.
func (t *Tesseract) Extract(ctx context.Context, path string) (string, error) {
	start := time.Now()
	var err error
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.OCRExtractionsTotal.WithLabelValues(status).Inc()
		metrics.OCRExtractionDuration.Observe(time.Since(start).Seconds())
	}()

	prepared, cleanup, err := t.preprocess(path)
	if err != nil {
		return "", err
	}
	defer cleanup()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.cmd, prepared, "stdout", "-l", t.lang)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err = cmd.Run(); err != nil {
		err = &ExtractionError{Path: path, Reason: ReasonRun,
			Err: fmt.Errorf("%v: %s", err, strings.TrimSpace(stderr.String()))}
		return "", err
	}

	return strings.TrimSpace(stdout.String()), nil
}

// preprocess decodes the image, flattens any alpha channel onto a
// white background and re-encodes it as PNG for the engine. Tesseract
// misreads transparent PNGs and cannot open webp at all; feeding it a
// normalized PNG sidesteps both.
func (t *Tesseract) preprocess(path string) (string, func(), error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", nil, &ExtractionError{Path: path, Reason: ReasonDecode, Err: err}
	}

	bg := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
	flattened := imaging.OverlayCenter(bg, img, 1.0)

	tmp, err := os.CreateTemp("", "ocr-*.png")
	if err != nil {
		return "", nil, &ExtractionError{Path: path, Reason: ReasonDecode, Err: err}
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		logging.Warn("failed to close temp file %s: %v", tmpPath, err)
	}

	cleanup := func() {
		if err := os.Remove(tmpPath); err != nil {
			logging.Warn("failed to remove temp file %s: %v", tmpPath, err)
		}
	}

	if err := imaging.Save(flattened, tmpPath); err != nil {
		cleanup()
		return "", nil, &ExtractionError{Path: path, Reason: ReasonDecode, Err: err}
	}

	logging.Debug("Preprocessed %s -> %s", filepath.Base(path), tmpPath)
	return tmpPath, cleanup, nil
}
