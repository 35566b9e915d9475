package results

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"layoutdedupe/imageprocessor"
	"layoutdedupe/logging"
	"layoutdedupe/types"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	sheetThumbWidth = 400
	sheetColumns    = 5
	sheetCaptionH   = 16
	sheetBorder     = 3
)

var (
	sheetBackground = color.RGBA{240, 240, 240, 255}
	canonicalMark   = color.RGBA{220, 40, 40, 255}
)

// WriteContactSheets renders one composite image per cluster, tiling member
// thumbnails with the canonical first and marked with a colored border.
// Failures are per-item: an unreadable member is skipped with a warning, a
// failed sheet skips that cluster, and neither aborts the run. Returns the
// number of sheets written.
func WriteContactSheets(dir string, clusters []types.Cluster, shots []types.Screenshot) int {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.LogWarning("cannot create contact sheet directory %s: %v", dir, err)
		return 0
	}

	written := 0
	for _, c := range clusters {
		path := filepath.Join(dir, fmt.Sprintf("cluster_%04d.jpg", c.ID))
		if err := writeSheet(path, c, shots); err != nil {
			logging.LogWarning("skipping contact sheet for cluster %d: %v", c.ID, err)
			continue
		}
		written++
	}
	return written
}

type thumb struct {
	img       image.Image
	name      string
	canonical bool
}

func writeSheet(path string, c types.Cluster, shots []types.Screenshot) error {
	// Canonical first, remaining members in id order.
	order := []int{c.Canonical}
	for _, m := range c.Members {
		if m != c.Canonical {
			order = append(order, m)
		}
	}

	var thumbs []thumb
	for _, m := range order {
		t, err := loadThumbnail(shots[m].Path)
		if err != nil {
			logging.LogWarning("skipping thumbnail %s: %v", shots[m].Path, err)
			continue
		}
		thumbs = append(thumbs, thumb{img: t, name: shots[m].Filename, canonical: m == c.Canonical})
	}
	if len(thumbs) == 0 {
		return fmt.Errorf("no readable members")
	}

	rows := (len(thumbs) + sheetColumns - 1) / sheetColumns
	rowHeights := make([]int, rows)
	for i, t := range thumbs {
		r := i / sheetColumns
		if h := t.img.Bounds().Dy(); h > rowHeights[r] {
			rowHeights[r] = h
		}
	}

	cols := sheetColumns
	if len(thumbs) < cols {
		cols = len(thumbs)
	}
	sheetW := cols * sheetThumbWidth
	sheetH := 0
	for _, h := range rowHeights {
		sheetH += h + sheetCaptionH
	}

	sheet := image.NewRGBA(image.Rect(0, 0, sheetW, sheetH))
	draw.Draw(sheet, sheet.Bounds(), image.NewUniform(sheetBackground), image.Point{}, draw.Src)

	y := 0
	for r := 0; r < rows; r++ {
		for col := 0; col < sheetColumns; col++ {
			i := r*sheetColumns + col
			if i >= len(thumbs) {
				break
			}
			t := thumbs[i]
			x := col * sheetThumbWidth
			b := t.img.Bounds()
			draw.Draw(sheet, image.Rect(x, y, x+b.Dx(), y+b.Dy()), t.img, b.Min, draw.Src)
			if t.canonical {
				drawBorder(sheet, image.Rect(x, y, x+b.Dx(), y+b.Dy()))
			}
			drawCaption(sheet, t.name, x, y+rowHeights[r]+sheetCaptionH-4)
		}
		y += rowHeights[r] + sheetCaptionH
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, sheet, &jpeg.Options{Quality: 85})
}

// loadThumbnail decodes a screenshot and scales it to the sheet thumbnail
// width preserving aspect ratio.
func loadThumbnail(path string) (image.Image, error) {
	mat, err := imageprocessor.LoadImage(path)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	src, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("cannot convert %s: %w", path, err)
	}

	b := src.Bounds()
	h := b.Dy() * sheetThumbWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, sheetThumbWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst, nil
}

func drawBorder(dst *image.RGBA, r image.Rectangle) {
	mark := image.NewUniform(canonicalMark)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+sheetBorder), mark, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Max.Y-sheetBorder, r.Max.X, r.Max.Y), mark, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+sheetBorder, r.Max.Y), mark, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Max.X-sheetBorder, r.Min.Y, r.Max.X, r.Max.Y), mark, image.Point{}, draw.Src)
}

func drawCaption(dst *image.RGBA, text string, x, baseline int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{20, 20, 20, 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x+4, baseline),
	}
	// Trim captions that would spill into the next column.
	maxW := fixed.I(sheetThumbWidth - 8)
	for len(text) > 0 && d.MeasureString(text) > maxW {
		text = text[:len(text)-1]
	}
	d.DrawString(text)
}
