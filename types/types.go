package types

import "time"

// Screenshot identifies one input image of the corpus. The ID is a dense
// index assigned in sorted-filename order during the scan and is used to key
// fingerprints, distance lookups and cluster membership.
type Screenshot struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
	SiteTag  string `json:"site_tag"`
	// Dimensions after normalization (crop + resize).
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	ModTime time.Time `json:"modified_at"`
	Size    int64     `json:"size"`
}

// Cluster is one group of visually-equivalent layouts. Members hold
// screenshot IDs; Canonical is the medoid member. DistToCanonical maps every
// member, including the canonical itself at 0, to its composite distance
// from the canonical.
type Cluster struct {
	ID              int
	Members         []int
	Canonical       int
	DistToCanonical map[int]float64
}

// AssignmentRecord is one row of the persisted cluster table, the sole
// artifact the presentation layer consumes.
type AssignmentRecord struct {
	ClusterID           int
	Canonical           bool
	Filename            string
	Path                string
	DistanceToCanonical float64
}

// SkipReason classifies why a screenshot was excluded from the run.
type SkipReason string

const (
	SkipDecode      SkipReason = "decode"
	SkipNormalize   SkipReason = "normalize"
	SkipFingerprint SkipReason = "fingerprint"
)

// SkippedFile records one excluded input for the run summary.
type SkippedFile struct {
	Path   string
	Reason SkipReason
	Err    error
}

// RunSummary aggregates the counters reported at the end of a run. Skipped
// inputs are excluded from the output table, so the summary is the only
// place they remain visible.
type RunSummary struct {
	Found      int
	Processed  int
	CacheHits  int
	Masked     int
	Skipped    []SkippedFile
	Clusters   int
	Singletons int
	Degraded   bool
	Elapsed    time.Duration
}

// SkipCount returns the number of excluded inputs.
func (s *RunSummary) SkipCount() int {
	return len(s.Skipped)
}
