// Package results persists the clustering output: the assignment CSV, the
// optional per-cluster contact sheets and the optional cluster directory
// export.
package results

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"

	"layoutdedupe/types"
)

// BuildRecords flattens clusters into assignment rows in their stable output
// order: cluster id ascending, canonical first, then distance ascending,
// then filename. The total order makes reruns byte-identical.
func BuildRecords(clusters []types.Cluster, shots []types.Screenshot) []types.AssignmentRecord {
	var records []types.AssignmentRecord
	for _, c := range clusters {
		for _, m := range c.Members {
			records = append(records, types.AssignmentRecord{
				ClusterID:           c.ID,
				Canonical:           m == c.Canonical,
				Filename:            shots[m].Filename,
				Path:                shots[m].Path,
				DistanceToCanonical: c.DistToCanonical[m],
			})
		}
	}

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.ClusterID != b.ClusterID {
			return a.ClusterID < b.ClusterID
		}
		if a.Canonical != b.Canonical {
			return a.Canonical
		}
		if a.DistanceToCanonical != b.DistanceToCanonical {
			return a.DistanceToCanonical < b.DistanceToCanonical
		}
		return a.Filename < b.Filename
	})
	return records
}

// WriteCSV writes the assignment table.
func WriteCSV(path string, records []types.AssignmentRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create output CSV %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"cluster_id", "canonical", "filename", "path", "distance_to_canonical"}); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			fmt.Sprintf("%d", r.ClusterID),
			fmt.Sprintf("%t", r.Canonical),
			r.Filename,
			r.Path,
			fmt.Sprintf("%.6f", r.DistanceToCanonical),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("cannot write output CSV %s: %w", path, err)
	}
	return nil
}
