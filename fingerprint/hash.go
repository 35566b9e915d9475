package fingerprint

import (
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// averageHash downsamples to 8x8 and sets a bit for every pixel at or above
// the mean intensity.
func averageHash(gray gocv.Mat) uint64 {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Pt(8, 8), 0, 0, gocv.InterpolationArea)

	var sum uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			sum += uint64(resized.GetUCharAt(y, x))
		}
	}
	threshold := float64(sum) / 64.0

	var hash uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			hash <<= 1
			if float64(resized.GetUCharAt(y, x)) >= threshold {
				hash |= 1
			}
		}
	}
	return hash
}

// dctHash is the frequency-domain perceptual hash: downsample to 32x32,
// apply a DCT, keep the top-left 8x8 low-frequency block and binarize each
// coefficient against the block median.
func dctHash(gray gocv.Mat) uint64 {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Pt(32, 32), 0, 0, gocv.InterpolationArea)

	floatImg := gocv.NewMat()
	defer floatImg.Close()
	resized.ConvertTo(&floatImg, gocv.MatTypeCV32F)

	dct := gocv.NewMat()
	defer dct.Close()
	gocv.DCT(floatImg, &dct, 0)

	lowFreq := dct.Region(image.Rect(0, 0, 8, 8))
	defer lowFreq.Close()

	values := make([]float32, 64)
	idx := 0
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			values[idx] = lowFreq.GetFloatAt(y, x)
			idx++
		}
	}
	median := calculateMedian(values)

	var hash uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			hash <<= 1
			if lowFreq.GetFloatAt(y, x) >= median {
				hash |= 1
			}
		}
	}
	return hash
}

// differenceHash downsamples to 9x8 and sets a bit wherever a pixel is
// darker than its right neighbor, capturing horizontal gradients.
func differenceHash(gray gocv.Mat) uint64 {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Pt(9, 8), 0, 0, gocv.InterpolationArea)

	var hash uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			hash <<= 1
			if resized.GetUCharAt(y, x) < resized.GetUCharAt(y, x+1) {
				hash |= 1
			}
		}
	}
	return hash
}

// waveletHash downsamples to 64x64 and reduces three Haar decomposition
// levels to the 8x8 low-low band, binarized against the band median.
func waveletHash(gray gocv.Mat) uint64 {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Pt(64, 64), 0, 0, gocv.InterpolationArea)

	band := make([]float32, 64*64)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			band[y*64+x] = float32(resized.GetUCharAt(y, x)) / 255.0
		}
	}
	for size := 64; size > 8; size /= 2 {
		band = haarLL(band, size)
	}

	values := make([]float32, 64)
	copy(values, band)
	median := calculateMedian(values)

	var hash uint64
	for i := 0; i < 64; i++ {
		hash <<= 1
		if band[i] >= median {
			hash |= 1
		}
	}
	return hash
}

// haarLL computes one Haar decomposition level and returns only the low-low
// band, halving the side length. Input is a size x size row-major square.
func haarLL(band []float32, size int) []float32 {
	half := size / 2
	out := make([]float32, half*half)
	for y := 0; y < half; y++ {
		for x := 0; x < half; x++ {
			a := band[(2*y)*size+2*x]
			b := band[(2*y)*size+2*x+1]
			c := band[(2*y+1)*size+2*x]
			d := band[(2*y+1)*size+2*x+1]
			out[y*half+x] = (a + b + c + d) / 4.0
		}
	}
	return out
}

func calculateMedian(values []float32) float32 {
	valuesCopy := make([]float32, len(values))
	copy(valuesCopy, values)

	sort.Slice(valuesCopy, func(i, j int) bool {
		return valuesCopy[i] < valuesCopy[j]
	})

	length := len(valuesCopy)
	if length == 0 {
		return 0
	}
	if length%2 == 0 {
		return (valuesCopy[length/2-1] + valuesCopy[length/2]) / 2
	}
	return valuesCopy[length/2]
}
