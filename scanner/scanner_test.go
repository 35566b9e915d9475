package scanner

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"layoutdedupe/cluster"
	"layoutdedupe/config"
	"layoutdedupe/database"
	"layoutdedupe/ocr"
	"layoutdedupe/types"
)

// writePNG writes a small solid-color screenshot with a distinguishing
// horizontal band so different names can carry different layouts.
func writePNG(t *testing.T, dir, name string, bandY int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		c := color.RGBA{R: 250, G: 250, B: 250, A: 255}
		if y >= bandY && y < bandY+8 {
			c = color.RGBA{R: 10, G: 10, B: 10, A: 255}
		}
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(dir string) *config.Config {
	cfg := &config.Config{
		InputDir:    dir,
		ResizeWidth: 64,
		EdgeSigSize: 8,
		Workers:     2,
	}
	cfg.Defaults()
	return cfg
}

func TestCollectFingerprintsSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", 4)
	writePNG(t, dir, "b.png", 20)
	if err := os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	var summary types.RunSummary
	corpus, err := CollectFingerprints(Options{Cfg: testConfig(dir), Detector: ocr.NoopDetector{}}, &summary)
	if err != nil {
		t.Fatalf("CollectFingerprints: %v", err)
	}

	if summary.Found != 3 {
		t.Errorf("Found = %d, want 3", summary.Found)
	}
	if summary.Processed != 2 {
		t.Errorf("Processed = %d, want 2", summary.Processed)
	}
	if len(summary.Skipped) != 1 || summary.Skipped[0].Reason != types.SkipDecode {
		t.Errorf("Skipped = %+v, want one decode skip", summary.Skipped)
	}

	// Ids stay dense after the corrupt file drops out, and file order holds.
	if len(corpus.Shots) != 2 || len(corpus.Fingerprints) != 2 {
		t.Fatalf("corpus sizes = %d/%d, want 2/2", len(corpus.Shots), len(corpus.Fingerprints))
	}
	for i, shot := range corpus.Shots {
		if shot.ID != i {
			t.Errorf("Shots[%d].ID = %d, want dense ids", i, shot.ID)
		}
	}
	if corpus.Shots[0].Filename != "a.png" || corpus.Shots[1].Filename != "b.png" {
		t.Errorf("order = %s, %s", corpus.Shots[0].Filename, corpus.Shots[1].Filename)
	}
}

func TestCollectFingerprintsNoImages(t *testing.T) {
	var summary types.RunSummary
	_, err := CollectFingerprints(Options{Cfg: testConfig(t.TempDir()), Detector: ocr.NoopDetector{}}, &summary)
	if !errors.Is(err, ErrNoImages) {
		t.Errorf("err = %v, want ErrNoImages", err)
	}
}

func TestCollectFingerprintsAllCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.png"), []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}

	var summary types.RunSummary
	_, err := CollectFingerprints(Options{Cfg: testConfig(dir), Detector: ocr.NoopDetector{}}, &summary)
	if !errors.Is(err, ErrNoFingerprints) {
		t.Errorf("err = %v, want ErrNoFingerprints", err)
	}
}

func TestCollectFingerprintsMaxImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", 4)
	writePNG(t, dir, "b.png", 12)
	writePNG(t, dir, "c.png", 20)

	cfg := testConfig(dir)
	cfg.MaxImages = 2

	var summary types.RunSummary
	corpus, err := CollectFingerprints(Options{Cfg: cfg, Detector: ocr.NoopDetector{}}, &summary)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Found != 2 || len(corpus.Shots) != 2 {
		t.Errorf("Found = %d, shots = %d, want cap at 2", summary.Found, len(corpus.Shots))
	}
	// Glob order is sorted, so the cap keeps the lexicographically first files.
	if corpus.Shots[0].Filename != "a.png" || corpus.Shots[1].Filename != "b.png" {
		t.Errorf("capped to %s, %s", corpus.Shots[0].Filename, corpus.Shots[1].Filename)
	}
}

func TestCollectFingerprintsCacheRoundtrip(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", 4)
	writePNG(t, dir, "b.png", 20)

	db, err := database.InitCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	opts := Options{Cfg: testConfig(dir), Detector: ocr.NoopDetector{}, CacheDB: db}

	var cold types.RunSummary
	first, err := CollectFingerprints(opts, &cold)
	if err != nil {
		t.Fatal(err)
	}
	if cold.CacheHits != 0 {
		t.Errorf("cold run CacheHits = %d, want 0", cold.CacheHits)
	}

	var warm types.RunSummary
	second, err := CollectFingerprints(opts, &warm)
	if err != nil {
		t.Fatal(err)
	}
	if warm.CacheHits != 2 {
		t.Errorf("warm run CacheHits = %d, want 2", warm.CacheHits)
	}

	// Cached and recomputed fingerprints must agree.
	for i := range first.Fingerprints {
		if first.Fingerprints[i].HashBits != second.Fingerprints[i].HashBits {
			t.Errorf("fingerprint %d changed across cached run", i)
		}
	}
}

// ruledLayout draws a page-like fixture: horizontal rules across the top
// half, blank below. Its vertical mirror concentrates the same content at
// the bottom of the page, which every fingerprint component sees as a
// different layout.
func ruledLayout() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
		if y < 24 && y%6 < 2 {
			c = color.RGBA{A: 255}
		}
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func flipVertical(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, src.At(x, b.Max.Y-1-y))
		}
	}
	return dst
}

// withNoise shifts every pixel by at most one intensity level, a
// deterministic stand-in for compression artifacts.
func withNoise(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			d := (x*7+y*13)%3 - 1
			dst.Set(x, y, color.RGBA{
				R: clampU8(int(r>>8) + d),
				G: clampU8(int(g>>8) + d),
				B: clampU8(int(bl>>8) + d),
				A: 255,
			})
		}
	}
	return dst
}

func clampU8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func saveLayout(t *testing.T, dir, name string, img image.Image) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// clusterLabels runs the full pipeline over dir at the default weights and
// eps and returns each filename's cluster id.
func clusterLabels(t *testing.T, dir string) map[string]int {
	t.Helper()
	cfg := testConfig(dir)

	var summary types.RunSummary
	corpus, err := CollectFingerprints(Options{Cfg: cfg, Detector: ocr.NoopDetector{}}, &summary)
	if err != nil {
		t.Fatalf("CollectFingerprints: %v", err)
	}

	names := make([]string, len(corpus.Shots))
	for i, s := range corpus.Shots {
		names[i] = s.Filename
	}
	clusters, err := cluster.Run(corpus.Fingerprints, names, cluster.Options{
		Eps:          cfg.Eps,
		MinNeighbors: cfg.MinNeighbors,
		Weights:      cfg.Weights(),
		Workers:      cfg.Workers,
	})
	if err != nil {
		t.Fatalf("cluster.Run: %v", err)
	}

	labels := make(map[string]int)
	for _, c := range clusters {
		for _, m := range c.Members {
			labels[corpus.Shots[m].Filename] = c.ID
		}
	}
	return labels
}

func TestNoisyCopyClustersWithOriginal(t *testing.T) {
	dir := t.TempDir()
	base := ruledLayout()
	saveLayout(t, dir, "page.png", base)
	saveLayout(t, dir, "page_noisy.png", withNoise(base))

	labels := clusterLabels(t, dir)
	if labels["page.png"] != labels["page_noisy.png"] {
		t.Errorf("noisy copy in cluster %d, original in %d; sub-threshold noise must not split a layout",
			labels["page_noisy.png"], labels["page.png"])
	}
}

func TestMirroredLayoutGetsOwnCluster(t *testing.T) {
	dir := t.TempDir()
	base := ruledLayout()
	saveLayout(t, dir, "page.png", base)
	saveLayout(t, dir, "page_mirror.png", flipVertical(base))

	labels := clusterLabels(t, dir)
	if labels["page.png"] == labels["page_mirror.png"] {
		t.Errorf("mirrored layout shares cluster %d with the original", labels["page.png"])
	}
}

func TestCacheStaleAfterEdgeSigChange(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", 4)

	db, err := database.InitCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cfg := testConfig(dir)
	opts := Options{Cfg: cfg, Detector: ocr.NoopDetector{}, CacheDB: db}

	var cold types.RunSummary
	if _, err := CollectFingerprints(opts, &cold); err != nil {
		t.Fatal(err)
	}

	// A different grid size makes the cached row stale, not an error: the
	// run recomputes quietly and succeeds.
	cfg.EdgeSigSize = 16
	var warm types.RunSummary
	corpus, err := CollectFingerprints(opts, &warm)
	if err != nil {
		t.Fatalf("CollectFingerprints after grid change: %v", err)
	}
	if warm.CacheHits != 0 {
		t.Errorf("CacheHits = %d, want 0 after grid size change", warm.CacheHits)
	}
	if got := corpus.Fingerprints[0].GridSize; got != 16 {
		t.Errorf("GridSize = %d, want recomputed at 16", got)
	}
	if len(warm.Skipped) != 0 {
		t.Errorf("Skipped = %+v, want none", warm.Skipped)
	}
}

func TestCollectFingerprintsForceBypassesCache(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", 4)

	db, err := database.InitCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	opts := Options{Cfg: testConfig(dir), Detector: ocr.NoopDetector{}, CacheDB: db}
	var cold types.RunSummary
	if _, err := CollectFingerprints(opts, &cold); err != nil {
		t.Fatal(err)
	}

	opts.Cfg.Force = true
	var forced types.RunSummary
	if _, err := CollectFingerprints(opts, &forced); err != nil {
		t.Fatal(err)
	}
	if forced.CacheHits != 0 {
		t.Errorf("forced run CacheHits = %d, want 0", forced.CacheHits)
	}
}
