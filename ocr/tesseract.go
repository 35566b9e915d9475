package ocr

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// TesseractDetector finds word-level text boxes using Tesseract. The
// gosseract client is not safe for concurrent use, so calls are serialized
// with a mutex; detection is a small fraction of per-image work.
type TesseractDetector struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseractDetector creates a detector for the given language set
// (comma-separated Tesseract codes, e.g. "eng"). Construction fails when the
// native tesseract library or language data is missing; callers degrade to
// NoopDetector in that case.
func NewTesseractDetector(langs string) (*TesseractDetector, error) {
	client := gosseract.NewClient()

	var codes []string
	for _, lang := range strings.Split(langs, ",") {
		if lang = strings.TrimSpace(lang); lang != "" {
			codes = append(codes, lang)
		}
	}
	if len(codes) > 0 {
		// SetLanguage replaces the language list, so all codes go in one call.
		if err := client.SetLanguage(codes...); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set OCR languages %q: %w", langs, err)
		}
	}

	// Sparse text mode: screenshots scatter text across the whole page
	// rather than presenting one uniform block.
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	return &TesseractDetector{client: client}, nil
}

// DetectTextRegions returns word bounding boxes found in img. Boxes whose
// recognized text is empty or whitespace are dropped.
func (d *TesseractDetector) DetectTextRegions(img gocv.Mat) ([]image.Rectangle, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image for OCR: %w", err)
	}
	defer buf.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return nil, fmt.Errorf("failed to set OCR image: %w", err)
	}

	boxes, err := d.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get text boxes: %w", err)
	}

	var regions []image.Rectangle
	for _, box := range boxes {
		if strings.TrimSpace(box.Word) == "" {
			continue
		}
		regions = append(regions, box.Box)
	}
	return regions, nil
}

// Close releases the Tesseract client.
func (d *TesseractDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil {
		err := d.client.Close()
		d.client = nil
		return err
	}
	return nil
}
