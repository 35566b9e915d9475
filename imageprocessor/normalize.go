package imageprocessor

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// NormalizeOptions controls the crop and resize applied before
// fingerprinting.
type NormalizeOptions struct {
	CropTop     int
	CropBottom  int
	ResizeWidth int
}

// Normalize crops CropTop rows from the top and CropBottom rows from the
// bottom, then rescales to ResizeWidth preserving aspect ratio. Crops that
// would consume the whole image are an error rather than an empty result.
// The caller owns the returned Mat.
func Normalize(img gocv.Mat, opts NormalizeOptions) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.NewMat(), fmt.Errorf("cannot normalize empty image")
	}
	if opts.CropTop < 0 || opts.CropBottom < 0 {
		return gocv.NewMat(), fmt.Errorf("negative crop (top=%d, bottom=%d)", opts.CropTop, opts.CropBottom)
	}

	w, h := img.Cols(), img.Rows()
	if opts.CropTop+opts.CropBottom >= h {
		return gocv.NewMat(), fmt.Errorf("crop %d+%d exceeds image height %d", opts.CropTop, opts.CropBottom, h)
	}

	cropped := img
	if opts.CropTop > 0 || opts.CropBottom > 0 {
		region := img.Region(image.Rect(0, opts.CropTop, w, h-opts.CropBottom))
		defer region.Close()
		cropped = region
	}

	scale := float64(opts.ResizeWidth) / float64(w)
	newH := int(float64(cropped.Rows())*scale + 0.5)
	if newH < 1 {
		newH = 1
	}

	// INTER_AREA averages source pixels, the right filter for the
	// downscales a 1024-wide canonical width implies.
	interp := gocv.InterpolationArea
	if scale > 1 {
		interp = gocv.InterpolationLinear
	}

	resized := gocv.NewMat()
	gocv.Resize(cropped, &resized, image.Pt(opts.ResizeWidth, newH), 0, 0, interp)
	return resized, nil
}
