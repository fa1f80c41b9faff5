package parallel

import (
	"runtime"
	"sync/atomic"
	"testing"
)

func TestPoolWorkersDefault(t *testing.T) {
	p := NewPool(0)
	defer p.Close()
	if got := p.Workers(); got != runtime.GOMAXPROCS(0) {
		t.Errorf("Workers() = %d, want GOMAXPROCS %d", got, runtime.GOMAXPROCS(0))
	}
}

func TestForEachCoversEveryIndex(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	const n = 10000
	visits := make([]int32, n)
	p.ForEach(n, 0, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			atomic.AddInt32(&visits[i], 1)
		}
	})

	for i, v := range visits {
		if v != 1 {
			t.Fatalf("index %d visited %d times, want 1", i, v)
		}
	}
}

func TestForEachSmallRunsInline(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	calls := 0
	p.ForEach(10, 0, func(lo, hi int) {
		calls++
		if lo != 0 || hi != 10 {
			t.Errorf("range = [%d, %d), want [0, 10)", lo, hi)
		}
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1 inline call", calls)
	}
}

func TestForEachZero(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	p.ForEach(0, 0, func(lo, hi int) {
		t.Errorf("fn called with [%d, %d) for n = 0", lo, hi)
	})
	p.ForEach(-5, 0, func(lo, hi int) {
		t.Errorf("fn called with [%d, %d) for n < 0", lo, hi)
	})
}

func TestForEachExplicitGrain(t *testing.T) {
	p := NewPool(3)
	defer p.Close()

	const n, grain = 1000, 128
	var total atomic.Int64
	var chunks atomic.Int64
	p.ForEach(n, grain, func(lo, hi int) {
		if hi-lo > grain {
			t.Errorf("chunk [%d, %d) larger than grain %d", lo, hi, grain)
		}
		total.Add(int64(hi - lo))
		chunks.Add(1)
	})

	if total.Load() != n {
		t.Errorf("covered %d indices, want %d", total.Load(), n)
	}
	wantChunks := int64((n + grain - 1) / grain)
	if chunks.Load() != wantChunks {
		t.Errorf("chunks = %d, want %d", chunks.Load(), wantChunks)
	}
}

func TestForEachAfterCloseRunsInline(t *testing.T) {
	p := NewPool(2)
	p.Close()

	calls := 0
	p.ForEach(5000, 0, func(lo, hi int) {
		calls++
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1 inline call on a closed pool", calls)
	}
}

func TestCloseIdempotent(t *testing.T) {
	p := NewPool(2)
	p.Close()
	p.Close()
}

func TestForEachBarrier(t *testing.T) {
	// ForEach must not return before every chunk completed.
	p := NewPool(4)
	defer p.Close()

	const n = 8192
	var done atomic.Int64
	p.ForEach(n, 256, func(lo, hi int) {
		done.Add(int64(hi - lo))
	})
	if done.Load() != n {
		t.Fatalf("ForEach returned with %d of %d indices done", done.Load(), n)
	}
}
