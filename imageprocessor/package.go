// Package imageprocessor loads raw screenshots and normalizes them for
// fingerprinting: fixed top/bottom band crops, canonical-width resize, and
// optional OCR-driven text masking.
package imageprocessor

import "gocv.io/x/gocv"

// ImageLoader is the interface that all screenshot loaders must implement.
type ImageLoader interface {
	// CanLoad checks if the loader can handle the given file
	CanLoad(path string) bool

	// LoadImage loads and returns the image
	LoadImage(path string) (gocv.Mat, error)
}
