package results

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"layoutdedupe/types"
)

func testClusters() ([]types.Cluster, []types.Screenshot) {
	shots := []types.Screenshot{
		{ID: 0, Filename: "c.png", Path: "/shots/c.png"},
		{ID: 1, Filename: "a.png", Path: "/shots/a.png"},
		{ID: 2, Filename: "b.png", Path: "/shots/b.png"},
		{ID: 3, Filename: "d.png", Path: "/shots/d.png"},
	}
	clusters := []types.Cluster{
		{
			ID:        0,
			Members:   []int{0, 1, 2},
			Canonical: 1,
			DistToCanonical: map[int]float64{
				0: 0.12,
				1: 0,
				2: 0.05,
			},
		},
		{
			ID:              1,
			Members:         []int{3},
			Canonical:       3,
			DistToCanonical: map[int]float64{3: 0},
		},
	}
	return clusters, shots
}

func TestBuildRecordsOrdering(t *testing.T) {
	clusters, shots := testClusters()
	records := BuildRecords(clusters, shots)

	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}
	// Cluster 0: canonical a.png first, then b.png (0.05), then c.png (0.12).
	wantFiles := []string{"a.png", "b.png", "c.png", "d.png"}
	for i, want := range wantFiles {
		if records[i].Filename != want {
			t.Errorf("records[%d].Filename = %s, want %s", i, records[i].Filename, want)
		}
	}
	if !records[0].Canonical || records[1].Canonical || records[2].Canonical {
		t.Errorf("canonical flags wrong: %+v", records[:3])
	}
	if !records[3].Canonical || records[3].ClusterID != 1 {
		t.Errorf("singleton record = %+v", records[3])
	}
}

func TestWriteCSV(t *testing.T) {
	clusters, shots := testClusters()
	records := BuildRecords(clusters, shots)

	path := filepath.Join(t.TempDir(), "clusters.csv")
	if err := WriteCSV(path, records); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want header + 4 rows", len(lines))
	}
	if lines[0] != "cluster_id,canonical,filename,path,distance_to_canonical" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "0,true,a.png,/shots/a.png,0.000000" {
		t.Errorf("canonical row = %q", lines[1])
	}
	if lines[3] != "0,false,c.png,/shots/c.png,0.120000" {
		t.Errorf("member row = %q", lines[3])
	}
}

func TestWriteCSVDeterministic(t *testing.T) {
	clusters, shots := testClusters()
	dir := t.TempDir()

	p1 := filepath.Join(dir, "one.csv")
	p2 := filepath.Join(dir, "two.csv")
	if err := WriteCSV(p1, BuildRecords(clusters, shots)); err != nil {
		t.Fatal(err)
	}
	if err := WriteCSV(p2, BuildRecords(clusters, shots)); err != nil {
		t.Fatal(err)
	}

	d1, _ := os.ReadFile(p1)
	d2, _ := os.ReadFile(p2)
	if !bytes.Equal(d1, d2) {
		t.Error("repeated writes are not byte-identical")
	}
}

func TestWriteCSVBadPath(t *testing.T) {
	if err := WriteCSV(filepath.Join(t.TempDir(), "missing", "out.csv"), nil); err == nil {
		t.Error("expected error for unwritable output path")
	}
}
