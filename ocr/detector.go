// Package ocr provides the text-region detection capability used for
// optional text masking. The engine depends only on the TextDetector
// interface; the Tesseract-backed implementation is best-effort and its
// absence degrades the run to unmasked, never fails it.
package ocr

import (
	"image"

	"gocv.io/x/gocv"
)

// TextDetector locates text regions in a screenshot. Implementations must be
// safe for concurrent use; the scan worker pool shares one detector.
type TextDetector interface {
	// DetectTextRegions returns the bounding boxes of detected text in img.
	DetectTextRegions(img gocv.Mat) ([]image.Rectangle, error)

	// Close releases detector resources.
	Close() error
}

// NoopDetector is the fallback detector: it never finds text, so masking
// becomes a no-op.
type NoopDetector struct{}

func (NoopDetector) DetectTextRegions(img gocv.Mat) ([]image.Rectangle, error) {
	return nil, nil
}

func (NoopDetector) Close() error { return nil }
