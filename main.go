package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"layoutdedupe/cluster"
	"layoutdedupe/config"
	"layoutdedupe/database"
	"layoutdedupe/fingerprint"
	"layoutdedupe/imageprocessor"
	"layoutdedupe/logging"
	"layoutdedupe/ocr"
	"layoutdedupe/results"
	"layoutdedupe/scanner"
	"layoutdedupe/signalhandler"
	"layoutdedupe/types"
	"layoutdedupe/utils"
)

func main() {
	signalhandler.SetupHandler()
	runtime.GOMAXPROCS(config.OptimalWorkers())

	args := utils.ParseArguments()

	command, hasCommand := args["command"]
	if !hasCommand {
		utils.PrintUsage()
		os.Exit(1)
	}

	cfg, err := config.FromArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Setup(cfg.LogFile, cfg.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to setup logging: %v\n", err)
	}
	defer logging.Close()

	switch command {
	case "cluster":
		handleClusterCommand(cfg)
	case "compare":
		handleCompareCommand(cfg, args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		utils.PrintUsage()
		os.Exit(1)
	}
}

func handleClusterCommand(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	startTime := time.Now()
	summary := &types.RunSummary{}

	detector := makeDetector(cfg, summary)
	defer detector.Close()

	var cacheDB *sql.DB
	if cfg.CacheDB != "" {
		var err error
		cacheDB, err = openCache(cfg.CacheDB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing fingerprint cache: %v\n", err)
			os.Exit(1)
		}
		defer cacheDB.Close()
	}

	fmt.Printf("Clustering screenshots in %s (glob %s)\n", cfg.InputDir, cfg.Glob)
	fmt.Printf("eps=%.3f weights=(%.2f, %.2f, %.2f) edge-sig=%d workers=%d\n",
		cfg.Eps, cfg.Alpha, cfg.Beta, cfg.Gamma, cfg.EdgeSigSize, cfg.Workers)

	corpus, err := scanner.CollectFingerprints(scanner.Options{
		Cfg:      cfg,
		Detector: detector,
		CacheDB:  cacheDB,
	}, summary)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
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
		Prebucket:    cfg.Prebucket,
		PrefixBits:   cfg.PrefixBits,
	})
	if err != nil {
		if errors.Is(err, cluster.ErrEmptyCorpus) {
			fmt.Fprintf(os.Stderr, "Error: nothing to cluster\n")
		} else {
			fmt.Fprintf(os.Stderr, "Error clustering corpus: %v\n", err)
		}
		os.Exit(1)
	}

	summary.Clusters = len(clusters)
	for _, c := range clusters {
		if len(c.Members) == 1 {
			summary.Singletons++
		}
	}

	records := results.BuildRecords(clusters, corpus.Shots)
	if err := results.WriteCSV(cfg.OutputCSV, records); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output table: %v\n", err)
		os.Exit(1)
	}

	if cfg.ContactSheetsDir != "" {
		n := results.WriteContactSheets(cfg.ContactSheetsDir, clusters, corpus.Shots)
		fmt.Printf("Contact sheets written: %d/%d (%s)\n", n, len(clusters), cfg.ContactSheetsDir)
	}
	if cfg.ClustersDir != "" {
		results.WriteClusterDirs(cfg.ClustersDir, clusters, corpus.Shots)
		fmt.Printf("Cluster directories written to %s\n", cfg.ClustersDir)
	}

	summary.Elapsed = time.Since(startTime)
	printSummary(cfg, summary)
}

func handleCompareCommand(cfg *config.Config, args map[string]string) {
	pathA, pathB := args["image-a"], args["image-b"]
	if pathA == "" || pathB == "" {
		fmt.Println("Error: compare needs --image-a=FILE and --image-b=FILE")
		utils.PrintUsage()
		os.Exit(1)
	}
	if err := cfg.ValidateParams(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	summary := &types.RunSummary{}
	detector := makeDetector(cfg, summary)
	defer detector.Close()

	fpA, err := fingerprintOne(pathA, cfg, detector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", pathA, err)
		os.Exit(1)
	}
	fpB, err := fingerprintOne(pathB, cfg, detector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", pathB, err)
		os.Exit(1)
	}

	w := cfg.Weights()
	fmt.Printf("hash distance:       %.6f\n", fingerprint.HashDistance(fpA, fpB))
	fmt.Printf("edge distance:       %.6f\n", fingerprint.EdgeDistance(fpA, fpB))
	fmt.Printf("projection distance: %.6f\n", fingerprint.ProjectionDistance(fpA, fpB))
	fmt.Printf("composite distance:  %.6f (eps %.3f -> %s)\n",
		fingerprint.Composite(fpA, fpB, w), cfg.Eps,
		map[bool]string{true: "same layout", false: "different layouts"}[fingerprint.Composite(fpA, fpB, w) <= cfg.Eps])
}

// fingerprintOne runs the single-image pipeline for the compare command.
func fingerprintOne(path string, cfg *config.Config, detector ocr.TextDetector) (*fingerprint.Fingerprint, error) {
	img, err := imageprocessor.LoadImage(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	norm, err := imageprocessor.Normalize(img, imageprocessor.NormalizeOptions{
		CropTop:     cfg.CropTop,
		CropBottom:  cfg.CropBottom,
		ResizeWidth: cfg.ResizeWidth,
	})
	if err != nil {
		return nil, err
	}
	defer norm.Close()

	if cfg.MaskText {
		if _, err := imageprocessor.MaskText(&norm, detector); err != nil {
			logging.LogWarning("text detection failed, comparing unmasked: %v", err)
		}
	}

	return fingerprint.Extract(norm, cfg.EdgeSigSize)
}

// makeDetector returns the configured text detector, degrading to the noop
// detector with a single warning when Tesseract is unavailable.
func makeDetector(cfg *config.Config, summary *types.RunSummary) ocr.TextDetector {
	if !cfg.MaskText {
		return ocr.NoopDetector{}
	}
	detector, err := ocr.NewTesseractDetector(cfg.OCRLang)
	if err != nil {
		logging.LogWarning("text masking unavailable, running unmasked: %v", err)
		summary.Degraded = true
		return ocr.NoopDetector{}
	}
	return detector
}

// openCache initializes the fingerprint cache with a short retry, matching
// SQLite's habit of transient lock errors on network filesystems.
func openCache(path string) (*sql.DB, error) {
	var db *sql.DB
	var err error
	const maxRetries = 3
	for i := 0; i < maxRetries; i++ {
		db, err = database.InitCache(path)
		if err == nil {
			return db, nil
		}
		if i < maxRetries-1 {
			logging.LogWarning("error initializing cache (attempt %d/%d): %v - retrying...", i+1, maxRetries, err)
			time.Sleep(time.Second * time.Duration(i+1))
		}
	}
	return nil, err
}

func printSummary(cfg *config.Config, summary *types.RunSummary) {
	fmt.Printf("\nClustering complete in %v.\n", summary.Elapsed.Round(time.Millisecond))
	fmt.Printf("Output table: %s\n", cfg.OutputCSV)
	fmt.Printf("\nSummary:\n")
	fmt.Printf("- Screenshots found:    %d\n", summary.Found)
	fmt.Printf("- Fingerprinted:        %d (cache hits: %d)\n", summary.Processed, summary.CacheHits)
	if cfg.MaskText {
		fmt.Printf("- Text-masked:          %d\n", summary.Masked)
	}
	fmt.Printf("- Clusters:             %d (%d singletons)\n", summary.Clusters, summary.Singletons)
	fmt.Printf("- Skipped:              %d\n", summary.SkipCount())
	for _, s := range summary.Skipped {
		fmt.Printf("    %s (%s): %v\n", s.Path, s.Reason, s.Err)
	}
	if summary.Degraded {
		fmt.Printf("- Degraded: text masking was unavailable, run completed unmasked\n")
	}
}
