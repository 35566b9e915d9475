// Package fingerprint derives the visual layout signature of a normalized
// screenshot: a family of bit-packed perceptual hashes, a coarse edge grid,
// and row/column intensity projections. All computations here are pure
// functions of the input image and safe to run in parallel across images.
package fingerprint

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Positions of the four hash words inside Fingerprint.HashBits.
const (
	HashAverage = iota
	HashDCT
	HashDifference
	HashWavelet
	numHashes
)

// TotalHashBits is the combined length of the packed hash vector.
const TotalHashBits = numHashes * 64

// Fingerprint is the immutable layout signature of one screenshot.
// EdgeGrid is GridSize x GridSize cells in row-major order, each the mean
// Canny edge intensity of its region scaled to [0,1]. RowProj and ColProj
// are probability distributions (they sum to 1) over GridSize buckets of
// grayscale row/column intensity sums.
type Fingerprint struct {
	HashBits [numHashes]uint64
	EdgeGrid []float32
	RowProj  []float64
	ColProj  []float64
	GridSize int
}

// Extract computes the full fingerprint of a normalized image. The input may
// be grayscale or BGR; color inputs are converted once and the grayscale
// plane feeds every sub-signature.
func Extract(img gocv.Mat, gridSize int) (*Fingerprint, error) {
	if img.Empty() {
		return nil, fmt.Errorf("cannot fingerprint empty image")
	}
	if gridSize < 2 {
		return nil, fmt.Errorf("invalid edge signature size %d", gridSize)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() != 1 {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	} else {
		img.CopyTo(&gray)
	}

	fp := &Fingerprint{GridSize: gridSize}
	fp.HashBits[HashAverage] = averageHash(gray)
	fp.HashBits[HashDCT] = dctHash(gray)
	fp.HashBits[HashDifference] = differenceHash(gray)
	fp.HashBits[HashWavelet] = waveletHash(gray)

	fp.EdgeGrid = edgeSignature(gray, gridSize)
	fp.RowProj, fp.ColProj = projections(gray, gridSize)

	return fp, nil
}

// edgeSignature runs Canny edge detection and averages the edge map down to
// a gridSize x gridSize block summary.
func edgeSignature(gray gocv.Mat, gridSize int) []float32 {
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 100, 200)

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(edges, &small, image.Pt(gridSize, gridSize), 0, 0, gocv.InterpolationArea)

	grid := make([]float32, gridSize*gridSize)
	for y := 0; y < gridSize; y++ {
		for x := 0; x < gridSize; x++ {
			grid[y*gridSize+x] = float32(small.GetUCharAt(y, x)) / 255.0
		}
	}
	return grid
}

// projections buckets grayscale row and column intensity sums into gridSize
// buckets each, normalized to probability distributions. A fully black image
// degenerates to the uniform distribution so the result always sums to 1.
func projections(gray gocv.Mat, gridSize int) (rowProj, colProj []float64) {
	rows, cols := gray.Rows(), gray.Cols()
	rowProj = make([]float64, gridSize)
	colProj = make([]float64, gridSize)

	for y := 0; y < rows; y++ {
		rb := y * gridSize / rows
		for x := 0; x < cols; x++ {
			v := float64(gray.GetUCharAt(y, x))
			rowProj[rb] += v
			colProj[x*gridSize/cols] += v
		}
	}

	normalize(rowProj)
	normalize(colProj)
	return rowProj, colProj
}

func normalize(buckets []float64) {
	var total float64
	for _, v := range buckets {
		total += v
	}
	if total == 0 {
		uniform := 1.0 / float64(len(buckets))
		for i := range buckets {
			buckets[i] = uniform
		}
		return
	}
	for i := range buckets {
		buckets[i] /= total
	}
}
