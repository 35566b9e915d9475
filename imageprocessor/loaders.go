package imageprocessor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"layoutdedupe/logging"

	"gocv.io/x/gocv"
	"golang.org/x/image/tiff"
)

// StandardImageLoader handles the formats crawlers actually emit: PNG, JPEG,
// WebP and BMP, all decoded directly by OpenCV.
type StandardImageLoader struct{}

// CanLoad checks extension and readability.
func (l *StandardImageLoader) CanLoad(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".webp", ".bmp":
		_, err := os.Stat(path)
		return err == nil
	}
	return false
}

// LoadImage decodes the screenshot in color; masking needs the color planes.
func (l *StandardImageLoader) LoadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return img, fmt.Errorf("failed to decode image: %s", path)
	}
	return img, nil
}

// TiffImageLoader handles TIFF screenshots. OpenCV covers most encodings;
// compression schemes it rejects fall back to the pure Go decoder.
type TiffImageLoader struct{}

func (l *TiffImageLoader) CanLoad(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".tif" && ext != ".tiff" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func (l *TiffImageLoader) LoadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if !img.Empty() {
		return img, nil
	}

	logging.DebugLog("OpenCV could not decode %s, trying pure Go TIFF decoder", path)
	f, err := os.Open(path)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to open TIFF %s: %w", path, err)
	}
	defer f.Close()

	decoded, err := tiff.Decode(f)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to decode TIFF %s: %w", path, err)
	}

	rgb, err := gocv.ImageToMatRGB(decoded)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to convert TIFF %s: %w", path, err)
	}
	defer rgb.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(rgb, &bgr, gocv.ColorRGBToBGR)
	return bgr, nil
}

// ImageLoaderRegistry maintains the per-extension loader table.
type ImageLoaderRegistry struct {
	loaders map[string]ImageLoader
	mutex   sync.RWMutex
}

// NewImageLoaderRegistry creates a registry covering all screenshot formats.
func NewImageLoaderRegistry() *ImageLoaderRegistry {
	registry := &ImageLoaderRegistry{
		loaders: make(map[string]ImageLoader),
	}

	standard := &StandardImageLoader{}
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".webp", ".bmp"} {
		registry.RegisterLoader(ext, standard)
	}

	tiffLoader := &TiffImageLoader{}
	registry.RegisterLoader(".tif", tiffLoader)
	registry.RegisterLoader(".tiff", tiffLoader)

	return registry
}

// RegisterLoader binds a loader to a file extension.
func (r *ImageLoaderRegistry) RegisterLoader(ext string, loader ImageLoader) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.loaders[strings.ToLower(ext)] = loader
}

// CanLoadFile checks if a registered loader can handle the given file.
func (r *ImageLoaderRegistry) CanLoadFile(path string) bool {
	r.mutex.RLock()
	loader, ok := r.loaders[strings.ToLower(filepath.Ext(path))]
	r.mutex.RUnlock()
	return ok && loader.CanLoad(path)
}

// LoadImage loads an image using the loader registered for its extension.
func (r *ImageLoaderRegistry) LoadImage(path string) (gocv.Mat, error) {
	r.mutex.RLock()
	loader, ok := r.loaders[strings.ToLower(filepath.Ext(path))]
	r.mutex.RUnlock()

	if !ok || !loader.CanLoad(path) {
		return gocv.NewMat(), fmt.Errorf("no suitable loader found for image: %s", path)
	}
	return loader.LoadImage(path)
}

// LoadImage loads a screenshot with the default registry.
func LoadImage(path string) (gocv.Mat, error) {
	return NewImageLoaderRegistry().LoadImage(path)
}
