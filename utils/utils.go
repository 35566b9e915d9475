package utils

import (
	"fmt"
	"os"
	"strings"
)

// ParseArguments converts command-line arguments into a map of flags and
// values. The first bare word selects the command (cluster/compare).
func ParseArguments() map[string]string {
	args := make(map[string]string)

	commandIndex := -1
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "cluster" || os.Args[i] == "compare" {
			args["command"] = os.Args[i]
			commandIndex = i
			break
		}
	}

	for i := 1; i < len(os.Args); i++ {
		if i == commandIndex {
			continue
		}

		arg := os.Args[i]

		// Handle flags with equals sign (--key=value)
		if strings.HasPrefix(arg, "--") && strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			args[strings.TrimPrefix(parts[0], "--")] = parts[1]
			continue
		}

		// Handle flags without equals sign (--key value / --flag)
		if strings.HasPrefix(arg, "--") {
			flagName := strings.TrimPrefix(arg, "--")
			if i+1 >= len(os.Args) || strings.HasPrefix(os.Args[i+1], "--") {
				args[flagName] = "true"
			} else {
				args[flagName] = os.Args[i+1]
				i++
			}
		}
	}

	return args
}

// PrintUsage outputs the command-line usage instructions.
func PrintUsage() {
	fmt.Printf("Usage:\n")
	fmt.Printf("  %s cluster --input-dir=DIR [--output-csv=FILE] [options]\n", os.Args[0])
	fmt.Printf("  %s compare --image-a=FILE --image-b=FILE [options]\n", os.Args[0])
	fmt.Printf("\nCluster options:\n")
	fmt.Printf("  --input-dir          : Directory of screenshots to cluster\n")
	fmt.Printf("  --glob               : Filename glob inside the input dir (default: *.png)\n")
	fmt.Printf("  --output-csv         : Path for the cluster assignment table (default: layout_clusters.csv)\n")
	fmt.Printf("  --contact-sheets-dir : Optional directory for per-cluster contact sheets\n")
	fmt.Printf("  --clusters-dir       : Optional directory for per-cluster member links\n")
	fmt.Printf("  --cache-db           : Optional SQLite fingerprint cache\n")
	fmt.Printf("  --site-tag           : Tag recorded with cached fingerprints (e.g. festival)\n")
	fmt.Printf("  --max-images         : Cap on input count, 0 = all (default: 0)\n")
	fmt.Printf("  --eps                : Clustering radius on the composite distance (default: 0.33)\n")
	fmt.Printf("  --min-neighbors      : Neighbors required to seed a cluster (default: 1)\n")
	fmt.Printf("  --alpha/beta/gamma   : Weights for hash/edge/projection distances (default: 0.55/0.35/0.10)\n")
	fmt.Printf("  --prebucket          : Prune candidate pairs by hash distance (same output, less work)\n")
	fmt.Printf("  --prefix-bits        : Leading DCT-hash bits used for prebucketing (default: 16)\n")
	fmt.Printf("  --force              : Recompute fingerprints even when cached\n")
	fmt.Printf("\nNormalization options (both commands):\n")
	fmt.Printf("  --resize-width       : Canonical width after normalization (default: 1024)\n")
	fmt.Printf("  --crop-top/--crop-bottom : Pixel bands removed before resizing (default: 0)\n")
	fmt.Printf("  --mask-text          : Mask OCR-detected text before fingerprinting\n")
	fmt.Printf("  --ocr-lang           : Tesseract languages, comma-separated (default: eng)\n")
	fmt.Printf("  --edge-sig-size      : Edge signature grid size (default: 64)\n")
	fmt.Printf("\nGeneral:\n")
	fmt.Printf("  --config             : YAML config file; flags override file values\n")
	fmt.Printf("  --workers            : Parallel fingerprint workers (default: 3/4 of CPUs)\n")
	fmt.Printf("  --debug              : Enable debug logging\n")
	fmt.Printf("  --logfile            : Append a JSON log file\n")
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  %s cluster --input-dir=folklife-screens --output-csv=layout_clusters.csv --mask-text\n", os.Args[0])
	fmt.Printf("  %s compare --image-a=a.png --image-b=b.png --eps=0.33\n", os.Args[0])
}
