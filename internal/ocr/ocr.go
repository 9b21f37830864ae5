package ocr

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable indicates the OCR engine is not installed or not
// runnable on this system.
var ErrUnavailable = errors.New("ocr engine unavailable")

// Extraction failure reasons.
const (
	ReasonUnavailable = "unavailable"
	ReasonDecode      = "decode"
	ReasonRun         = "run"
)

// Extractor is the text extraction boundary: image file in, plain
// text out, or a typed failure. Implementations must be safe to call
// repeatedly for the same input.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ExtractionError describes a failed extraction for one image.
type ExtractionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s (%s): %v", e.Path, e.Reason, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
