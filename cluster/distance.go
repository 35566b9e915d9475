package cluster

import (
	"sync"

	"layoutdedupe/fingerprint"

	"gonum.org/v1/gonum/mat"
)

// DistanceTable holds the pairwise composite distances of the corpus as a
// symmetric matrix. It is filled once by a parallel worker pool and then read
// by the sequential assignment phase.
//
// With pruning enabled, pairs whose hash-distance lower bound already
// exceeds eps are stored as that bound instead of the full composite
// distance; neighborhood queries see identical results either way because
// both values sit above eps. Exact recovers the full distance on demand for
// medoid selection.
type DistanceTable struct {
	fps     []*fingerprint.Fingerprint
	weights fingerprint.Weights
	dist    *mat.SymDense
	exact   []bool
	pruned  bool
}

// BuildDistanceTable computes the distance matrix in parallel row stripes.
// Fingerprints are read-only, and distinct (i,j) pairs write distinct matrix
// cells, so workers share no mutable state.
func BuildDistanceTable(fps []*fingerprint.Fingerprint, opts Options) *DistanceTable {
	n := len(fps)
	t := &DistanceTable{
		fps:     fps,
		weights: opts.Weights,
		dist:    mat.NewSymDense(max(n, 1), nil),
		pruned:  opts.Prebucket,
	}
	if t.pruned {
		t.exact = make([]bool, n*n)
	}

	// Bucket by the leading bits of the frequency-domain hash. Same-bucket
	// pairs are almost always admissible, so they skip straight to the full
	// distance; cross-bucket pairs get the cheap bound check first.
	var buckets []uint64
	if opts.Prebucket {
		buckets = make([]uint64, n)
		shift := uint(64 - opts.PrefixBits)
		for i, fp := range fps {
			buckets[i] = fp.HashBits[fingerprint.HashDCT] >> shift
		}
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	rows := make(chan int, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rows {
				for j := i + 1; j < n; j++ {
					if t.pruned && buckets[i] != buckets[j] {
						if bound := fingerprint.HashBound(fps[i], fps[j], t.weights); bound > opts.Eps {
							t.dist.SetSym(i, j, bound)
							continue
						}
					}
					t.dist.SetSym(i, j, fingerprint.Composite(fps[i], fps[j], t.weights))
					if t.pruned {
						t.exact[i*n+j] = true
					}
				}
			}
		}()
	}
	for i := 0; i < n; i++ {
		rows <- i
	}
	close(rows)
	wg.Wait()

	return t
}

// Len returns the number of corpus members.
func (t *DistanceTable) Len() int { return len(t.fps) }

// At returns the stored distance. For pruned pairs this is a lower bound
// that is still strictly greater than eps, which is all neighborhood
// queries depend on.
func (t *DistanceTable) At(i, j int) float64 {
	return t.dist.At(i, j)
}

// Exact returns the full composite distance, computing and memoizing it when
// the fill phase stored only a pruning bound. Only the sequential phases
// call this, so memoization needs no lock.
func (t *DistanceTable) Exact(i, j int) float64 {
	if i == j {
		return 0
	}
	if !t.pruned {
		return t.dist.At(i, j)
	}
	if i > j {
		i, j = j, i
	}
	n := len(t.fps)
	if !t.exact[i*n+j] {
		t.dist.SetSym(i, j, fingerprint.Composite(t.fps[i], t.fps[j], t.weights))
		t.exact[i*n+j] = true
	}
	return t.dist.At(i, j)
}

// Neighbors returns every other index within eps of i, ascending.
func (t *DistanceTable) Neighbors(i int, eps float64) []int {
	var nbrs []int
	for j := 0; j < t.Len(); j++ {
		if j != i && t.At(i, j) <= eps {
			nbrs = append(nbrs, j)
		}
	}
	return nbrs
}
