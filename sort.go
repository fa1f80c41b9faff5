package splat

import "sort"

// DefaultSortThreshold is the splat count at which the sorter switches
// from insertion sort to the general comparison sort. Below it, the
// setup cost of the general sort dominates, and the near-sorted
// permutation carried over from the previous frame makes insertion sort
// close to linear.
const DefaultSortThreshold = 1000

// sorter produces the back-to-front permutation. It keeps its
// permutation buffer across frames: the previous frame's order is the
// starting point for the next sort, which is what makes the insertion
// path profitable under temporal coherence.
type sorter struct {
	perm      []uint32
	threshold int
}

// reset discards the carried-over permutation, e.g. after a structural
// rebuild, and resizes for capacity entries.
func (s *sorter) reset(capacity int) {
	if cap(s.perm) < capacity {
		s.perm = make([]uint32, 0, capacity)
	}
	s.perm = s.perm[:0]
}

// sort orders perm[0:n] so that keys[perm[i]] is non-increasing in i.
// Ties land in unspecified order. The result is always a bijection on
// [0, n), for any n including 0 and 1.
func (s *sorter) sort(keys []float32, n int) []uint32 {
	// The carried-over permutation is only reusable while the count is
	// unchanged; truncating or extending it would break the bijection.
	if len(s.perm) != n {
		s.perm = s.perm[:0]
		for i := range n {
			s.perm = append(s.perm, uint32(i))
		}
	}

	threshold := s.threshold
	if threshold <= 0 {
		threshold = DefaultSortThreshold
	}

	if n < threshold {
		insertionSortDesc(s.perm, keys)
	} else {
		sort.Slice(s.perm, func(i, j int) bool {
			return keys[s.perm[i]] > keys[s.perm[j]]
		})
	}
	return s.perm
}

// insertionSortDesc sorts perm by descending key. Nearly-sorted input
// runs in close to linear time.
func insertionSortDesc(perm []uint32, keys []float32) {
	for i := 1; i < len(perm); i++ {
		p := perm[i]
		k := keys[p]
		j := i - 1
		for j >= 0 && keys[perm[j]] < k {
			perm[j+1] = perm[j]
			j--
		}
		perm[j+1] = p
	}
}
