package imageprocessor

import (
	"image"
	"image/color"

	"layoutdedupe/ocr"

	"gocv.io/x/gocv"
)

// MaskText fills every detected text region with the dominant background
// color sampled around that region, so page copy stops influencing the
// layout fingerprint while the surrounding blocks keep their color. Returns
// the number of regions masked. Detector failure is returned to the caller,
// which treats it as a per-image degradation, not an error.
func MaskText(img *gocv.Mat, detector ocr.TextDetector) (int, error) {
	boxes, err := detector.DetectTextRegions(*img)
	if err != nil {
		return 0, err
	}

	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	masked := 0
	for _, box := range boxes {
		box = box.Intersect(bounds)
		if box.Empty() {
			continue
		}
		fill := dominantBorderColor(*img, box, bounds)
		gocv.Rectangle(img, box, fill, -1)
		masked++
	}
	return masked, nil
}

// dominantBorderColor samples the one-pixel ring just outside the box and
// majority-votes over coarsely quantized colors, returning the mean color of
// the winning bucket. The ring best approximates the background the text
// sits on.
func dominantBorderColor(img gocv.Mat, box, bounds image.Rectangle) color.RGBA {
	ring := box.Inset(-1).Intersect(bounds)

	type bucket struct {
		count   int
		b, g, r uint64
	}
	buckets := make(map[uint32]*bucket)

	sample := func(x, y int) {
		if (image.Pt(x, y).In(box)) || !(image.Pt(x, y).In(bounds)) {
			return
		}
		v := img.GetVecbAt(y, x)
		b, g, r := v[0], v[1], v[2]
		// Quantize each channel to 16 levels so anti-aliased borders
		// still vote for the same bucket.
		key := uint32(b>>4)<<8 | uint32(g>>4)<<4 | uint32(r>>4)
		bk := buckets[key]
		if bk == nil {
			bk = &bucket{}
			buckets[key] = bk
		}
		bk.count++
		bk.b += uint64(b)
		bk.g += uint64(g)
		bk.r += uint64(r)
	}

	for x := ring.Min.X; x < ring.Max.X; x++ {
		sample(x, ring.Min.Y)
		sample(x, ring.Max.Y-1)
	}
	for y := ring.Min.Y; y < ring.Max.Y; y++ {
		sample(ring.Min.X, y)
		sample(ring.Max.X-1, y)
	}

	// Ties break on the quantized key so reruns mask identically.
	var best *bucket
	var bestKey uint32
	for key, bk := range buckets {
		if best == nil || bk.count > best.count || (bk.count == best.count && key < bestKey) {
			best = bk
			bestKey = key
		}
	}
	if best == nil {
		return color.RGBA{255, 255, 255, 255}
	}
	n := uint64(best.count)
	// gocv drawing colors are RGBA ordered even though Mats are BGR.
	return color.RGBA{
		R: uint8(best.r / n),
		G: uint8(best.g / n),
		B: uint8(best.b / n),
		A: 255,
	}
}
