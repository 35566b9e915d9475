// Package scanner walks the screenshot corpus and drives the parallel
// normalize-and-fingerprint pipeline. Its output, the fingerprint table
// ordered by screenshot id, is the synchronization barrier before
// clustering.
package scanner

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"layoutdedupe/config"
	"layoutdedupe/database"
	"layoutdedupe/fingerprint"
	"layoutdedupe/imageprocessor"
	"layoutdedupe/logging"
	"layoutdedupe/ocr"
	"layoutdedupe/types"
)

// ErrNoImages is returned when the input directory matches no screenshots.
var ErrNoImages = errors.New("no images found in input directory")

// ErrNoFingerprints is returned when every matched screenshot failed to
// process.
var ErrNoFingerprints = errors.New("no fingerprints computed")

// Options wires the scan to its collaborators. CacheDB may be nil.
type Options struct {
	Cfg      *config.Config
	Detector ocr.TextDetector
	CacheDB  *sql.DB
}

// Corpus is the scan result: screenshots and their fingerprints as parallel
// slices indexed by the dense screenshot id.
type Corpus struct {
	Shots        []types.Screenshot
	Fingerprints []*fingerprint.Fingerprint
}

type itemResult struct {
	index    int
	shot     types.Screenshot
	fp       *fingerprint.Fingerprint
	masked   bool
	cacheHit bool
	reason   types.SkipReason
	err      error
}

// CollectFingerprints globs the corpus, fingerprints every screenshot in a
// bounded worker pool and returns the ordered fingerprint table. Per-image
// failures are recoverable: they are logged, counted in the summary and
// excluded from the result.
func CollectFingerprints(opts Options, summary *types.RunSummary) (*Corpus, error) {
	cfg := opts.Cfg

	files, err := filepath.Glob(filepath.Join(cfg.InputDir, cfg.Glob))
	if err != nil {
		return nil, fmt.Errorf("bad glob %q: %w", cfg.Glob, err)
	}
	sort.Strings(files)
	if cfg.MaxImages > 0 && len(files) > cfg.MaxImages {
		files = files[:cfg.MaxImages]
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoImages, cfg.InputDir, cfg.Glob)
	}
	summary.Found = len(files)

	registry := imageprocessor.NewImageLoaderRegistry()
	tracker := newProgressTracker(len(files))

	results := make([]*itemResult, len(files))
	resultsChan := make(chan *itemResult, 100)
	semaphore := make(chan struct{}, cfg.Workers)

	var collectorWG sync.WaitGroup
	collectorWG.Add(1)
	go func() {
		defer collectorWG.Done()
		for r := range resultsChan {
			results[r.index] = r
			tracker.record(r.err == nil, r.cacheHit)
			logging.LogImageProcessed(r.shot.Path, r.err == nil, errText(r.err))
		}
	}()

	var wg sync.WaitGroup
	for i, path := range files {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(index int, p string) {
			defer wg.Done()
			defer func() { <-semaphore }()
			resultsChan <- processScreenshot(index, p, opts, registry)
		}(i, path)
	}
	wg.Wait()
	close(resultsChan)
	collectorWG.Wait()
	tracker.stop()

	// Compact in file order, reassigning dense ids so skipped inputs leave
	// no holes in the fingerprint table.
	corpus := &Corpus{}
	for _, r := range results {
		if r.err != nil {
			logging.LogWarning("skipping %s: %v", r.shot.Path, r.err)
			summary.Skipped = append(summary.Skipped, types.SkippedFile{Path: r.shot.Path, Reason: r.reason, Err: r.err})
			continue
		}
		r.shot.ID = len(corpus.Shots)
		corpus.Shots = append(corpus.Shots, r.shot)
		corpus.Fingerprints = append(corpus.Fingerprints, r.fp)
		summary.Processed++
		if r.cacheHit {
			summary.CacheHits++
		}
		if r.masked {
			summary.Masked++
		}
	}

	if len(corpus.Shots) == 0 {
		return nil, fmt.Errorf("%w: all %d inputs failed", ErrNoFingerprints, len(files))
	}
	return corpus, nil
}

var maskWarnOnce sync.Once

// processScreenshot runs the per-image pipeline: cache probe, load,
// normalize, optional mask, extract, cache store.
func processScreenshot(index int, path string, opts Options, registry *imageprocessor.ImageLoaderRegistry) *itemResult {
	cfg := opts.Cfg
	result := &itemResult{
		index: index,
		shot: types.Screenshot{
			Filename: filepath.Base(path),
			Path:     path,
			SiteTag:  cfg.SiteTag,
		},
	}

	info, err := os.Stat(path)
	if err != nil {
		result.reason = types.SkipDecode
		result.err = fmt.Errorf("cannot stat file: %w", err)
		return result
	}
	result.shot.ModTime = info.ModTime()
	result.shot.Size = info.Size()

	if opts.CacheDB != nil && !cfg.Force {
		if cached := probeCache(opts.CacheDB, path, info, cfg); cached != nil {
			result.fp = cached.Fingerprint
			result.shot.Width = cached.Width
			result.shot.Height = cached.Height
			result.cacheHit = true
			return result
		}
	}

	img, err := registry.LoadImage(path)
	if err != nil {
		result.reason = types.SkipDecode
		result.err = err
		return result
	}
	defer img.Close()

	norm, err := imageprocessor.Normalize(img, imageprocessor.NormalizeOptions{
		CropTop:     cfg.CropTop,
		CropBottom:  cfg.CropBottom,
		ResizeWidth: cfg.ResizeWidth,
	})
	if err != nil {
		result.reason = types.SkipNormalize
		result.err = err
		return result
	}
	defer norm.Close()
	result.shot.Width = norm.Cols()
	result.shot.Height = norm.Rows()

	if cfg.MaskText {
		if n, err := imageprocessor.MaskText(&norm, opts.Detector); err != nil {
			maskWarnOnce.Do(func() {
				logging.LogWarning("text detection failed, continuing unmasked: %v", err)
			})
		} else if n > 0 {
			result.masked = true
		}
	}

	fp, err := fingerprint.Extract(norm, cfg.EdgeSigSize)
	if err != nil {
		result.reason = types.SkipFingerprint
		result.err = err
		return result
	}
	result.fp = fp

	if opts.CacheDB != nil {
		err := database.Store(opts.CacheDB, database.CachedFingerprint{
			Path:        path,
			SiteTag:     cfg.SiteTag,
			Params:      cfg.FingerprintParams(),
			ModifiedAt:  info.ModTime().Format(time.RFC3339),
			Size:        info.Size(),
			Width:       result.shot.Width,
			Height:      result.shot.Height,
			Fingerprint: fp,
		})
		if err != nil {
			// The cache is an accelerator; failing to write it never fails
			// the image.
			logging.LogWarning("cache store failed for %s: %v", path, err)
		}
	}

	return result
}

// probeCache returns a fresh cached fingerprint or nil. A row is fresh when
// mtime, size and the fingerprint parameter signature all match.
func probeCache(db *sql.DB, path string, info os.FileInfo, cfg *config.Config) *database.CachedFingerprint {
	rec, err := database.Lookup(db, path, cfg.SiteTag, cfg.EdgeSigSize)
	if err != nil {
		logging.LogWarning("cache lookup failed for %s: %v", path, err)
		return nil
	}
	if rec == nil {
		return nil
	}
	if rec.Fingerprint == nil || rec.Params != cfg.FingerprintParams() || rec.Size != info.Size() ||
		rec.ModifiedAt != info.ModTime().Format(time.RFC3339) {
		logging.DebugLog("stale cache row for %s, recomputing", path)
		return nil
	}
	return rec
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
