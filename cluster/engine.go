// Package cluster partitions a fingerprinted corpus into groups of
// visually-equivalent layouts using density-based clustering over the
// composite distance, and picks a medoid canonical per group.
package cluster

import (
	"errors"
	"sort"

	"layoutdedupe/fingerprint"
	"layoutdedupe/types"
)

// ErrEmptyCorpus is returned when there is nothing to cluster.
var ErrEmptyCorpus = errors.New("empty corpus: no fingerprints to cluster")

// Options configures one clustering run.
type Options struct {
	// Eps is the neighborhood radius on the composite distance.
	Eps float64

	// MinNeighbors is the number of *other* screenshots within Eps required
	// to seed or extend a cluster. The default of 1 means any two layouts
	// within Eps of each other merge; screenshots with no neighbor become
	// singleton clusters rather than being dropped.
	MinNeighbors int

	Weights fingerprint.Weights
	Workers int

	// Prebucket enables hash-bound candidate pruning in the distance table.
	// It changes how much work the fill phase does, never the clusters.
	Prebucket  bool
	PrefixBits int
}

// Run clusters the corpus. fps and names are parallel slices indexed by
// screenshot id; names break medoid ties deterministically. The returned
// clusters partition the input: every id appears in exactly one cluster.
func Run(fps []*fingerprint.Fingerprint, names []string, opts Options) ([]types.Cluster, error) {
	if len(fps) == 0 {
		return nil, ErrEmptyCorpus
	}

	table := BuildDistanceTable(fps, opts)
	part := assign(table, opts.Eps, opts.MinNeighbors)
	return buildClusters(table, part, names), nil
}

// Point states of the assignment state machine.
type pointState uint8

const (
	stateUnvisited pointState = iota
	stateCore
	stateBorder
	stateNoise
)

// Partition is the mutable clustering state. It is created inside assign and
// owned by that single goroutine for its whole lifetime; distance lookups
// stay read-only and shared.
type Partition struct {
	States []pointState
	Labels []int
}

func newPartition(n int) *Partition {
	p := &Partition{
		States: make([]pointState, n),
		Labels: make([]int, n),
	}
	for i := range p.Labels {
		p.Labels[i] = -1
	}
	return p
}

// assign runs the density-based sweep. Neighborhood expansion is iterative
// with an explicit frontier so large clusters cannot exhaust the stack.
// Labels are dense from 0 in seed order; screenshots whose neighborhoods
// never qualify get fresh singleton labels afterwards, in id order.
func assign(table *DistanceTable, eps float64, minNeighbors int) *Partition {
	n := table.Len()
	p := newPartition(n)
	next := 0

	for i := 0; i < n; i++ {
		if p.States[i] != stateUnvisited {
			continue
		}
		nbrs := table.Neighbors(i, eps)
		if len(nbrs) < minNeighbors {
			p.States[i] = stateNoise
			continue
		}

		cid := next
		next++
		p.States[i] = stateCore
		p.Labels[i] = cid

		frontier := append([]int(nil), nbrs...)
		for head := 0; head < len(frontier); head++ {
			j := frontier[head]
			if p.States[j] == stateNoise {
				// Previously rejected seed, now reachable from a core
				// point: pull it in as a border member.
				p.States[j] = stateBorder
				p.Labels[j] = cid
				continue
			}
			if p.States[j] != stateUnvisited {
				continue
			}
			p.Labels[j] = cid
			jn := table.Neighbors(j, eps)
			if len(jn) >= minNeighbors {
				p.States[j] = stateCore
				frontier = append(frontier, jn...)
			} else {
				p.States[j] = stateBorder
			}
		}
	}

	// No input is ever dropped: leftover noise points become singletons.
	for i := 0; i < n; i++ {
		if p.States[i] == stateNoise {
			p.Labels[i] = next
			next++
		}
	}

	return p
}

// buildClusters groups members by label, selects the medoid canonical and
// attaches every member's distance to it.
func buildClusters(table *DistanceTable, part *Partition, names []string) []types.Cluster {
	byLabel := make(map[int][]int)
	maxLabel := -1
	for i, label := range part.Labels {
		byLabel[label] = append(byLabel[label], i)
		if label > maxLabel {
			maxLabel = label
		}
	}

	clusters := make([]types.Cluster, 0, maxLabel+1)
	for label := 0; label <= maxLabel; label++ {
		members := byLabel[label]
		sort.Ints(members)

		canonical := medoid(table, members, names)
		dists := make(map[int]float64, len(members))
		for _, m := range members {
			dists[m] = table.Exact(canonical, m)
		}

		clusters = append(clusters, types.Cluster{
			ID:              label,
			Members:         members,
			Canonical:       canonical,
			DistToCanonical: dists,
		})
	}

	return clusters
}

// medoid returns the member whose summed distance to all other members is
// minimal. Ties go to the lexicographically smallest filename.
func medoid(table *DistanceTable, members []int, names []string) int {
	best := members[0]
	bestCost := medoidCost(table, members, best)
	for _, m := range members[1:] {
		cost := medoidCost(table, members, m)
		if cost < bestCost || (cost == bestCost && names[m] < names[best]) {
			best = m
			bestCost = cost
		}
	}
	return best
}

func medoidCost(table *DistanceTable, members []int, candidate int) float64 {
	var cost float64
	for _, o := range members {
		if o != candidate {
			cost += table.Exact(candidate, o)
		}
	}
	return cost
}
