package splat

import (
	"math"
	"math/rand"
	"testing"
)

// checkBijection fails the test unless perm maps [0, n) onto [0, n).
func checkBijection(t *testing.T, perm []uint32, n int) {
	t.Helper()
	if len(perm) != n {
		t.Fatalf("len(perm) = %d, want %d", len(perm), n)
	}
	seen := make([]bool, n)
	for i, p := range perm {
		if int(p) >= n {
			t.Fatalf("perm[%d] = %d, out of range [0, %d)", i, p, n)
		}
		if seen[p] {
			t.Fatalf("perm[%d] = %d appears twice", i, p)
		}
		seen[p] = true
	}
}

// checkDescending fails the test unless keys[perm[i]] is non-increasing.
func checkDescending(t *testing.T, perm []uint32, keys []float32) {
	t.Helper()
	for i := 1; i < len(perm); i++ {
		if keys[perm[i-1]] < keys[perm[i]] {
			t.Fatalf("keys out of order at %d: %v < %v", i, keys[perm[i-1]], keys[perm[i]])
		}
	}
}

func TestSorterBijection(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, n := range []int{0, 1, 2, 5, 100, 2000} {
		var s sorter
		s.reset(n)
		keys := make([]float32, n)
		for i := range keys {
			keys[i] = r.Float32()
		}
		perm := s.sort(keys, n)
		checkBijection(t, perm, n)
		checkDescending(t, perm, keys)
	}
}

func TestSorterBackToFront(t *testing.T) {
	var s sorter
	s.reset(3)
	keys := []float32{1, 5, 3}
	perm := s.sort(keys, 3)
	want := []uint32{1, 2, 0}
	for i := range want {
		if perm[i] != want[i] {
			t.Fatalf("perm = %v, want %v", perm, want)
		}
	}
}

func TestSorterBranchEquivalence(t *testing.T) {
	// Both sort paths must produce the same order for distinct keys.
	r := rand.New(rand.NewSource(2))
	const n = 500
	keys := make([]float32, n)
	for i := range keys {
		keys[i] = float32(i) + r.Float32()*0.5
	}

	insertion := sorter{threshold: n + 1}
	insertion.reset(n)
	comparison := sorter{threshold: 1}
	comparison.reset(n)

	a := insertion.sort(keys, n)
	b := comparison.sort(keys, n)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("paths disagree at %d: insertion %d, comparison %d", i, a[i], b[i])
		}
	}
}

func TestSorterCarriedPermutation(t *testing.T) {
	var s sorter
	s.reset(4)
	keys := []float32{4, 3, 2, 1}
	first := s.sort(keys, 4)
	checkDescending(t, first, keys)

	// A small perturbation of an already-sorted frame.
	keys[1], keys[2] = 2, 3
	second := s.sort(keys, 4)
	checkBijection(t, second, 4)
	checkDescending(t, second, keys)
}

func TestSorterCountChange(t *testing.T) {
	var s sorter
	s.reset(8)
	keys := []float32{5, 6, 7, 8, 1, 2, 3, 4}
	checkBijection(t, s.sort(keys, 8), 8)

	// Shrinking the count must rebuild the permutation, not truncate it.
	perm := s.sort(keys, 3)
	checkBijection(t, perm, 3)
	checkDescending(t, perm, keys[:3])

	perm = s.sort(keys, 6)
	checkBijection(t, perm, 6)
	checkDescending(t, perm, keys[:6])
}

func TestSorterInvalidKeysLast(t *testing.T) {
	inf := float32(math.Inf(-1))
	var s sorter
	s.reset(5)
	keys := []float32{inf, 2, inf, 1, 3}
	perm := s.sort(keys, 5)
	checkBijection(t, perm, 5)
	checkDescending(t, perm, keys)
	for i := 3; i < 5; i++ {
		if keys[perm[i]] != inf {
			t.Errorf("perm[%d] = %d with key %v, want an invalid entry", i, perm[i], keys[perm[i]])
		}
	}
}
