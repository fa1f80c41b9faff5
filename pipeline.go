package splat

import (
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/gogpu/splat/internal/parallel"
)

// Pipeline runs the per-frame sort-and-project sequence over one splat
// source and owns every intermediate buffer: distance keys, the sorted
// permutation and the output vertex batch, all sized to the source
// capacity at SetSource time.
//
// A frame is three strictly ordered phases:
//
//  1. distance keys, data-parallel across splats
//  2. the back-to-front permutation, sequential
//  3. quad projection in permutation order, data-parallel
//
// Each phase completes for every splat before the next begins, and the
// emitted vertex order equals the permutation order; the rasterizer
// relies on draw order for correct over-blending.
//
// Thread safety: Pipeline is NOT safe for concurrent use. Update calls
// must be serialized by the caller, together with any mutation of the
// splat source.
type Pipeline struct {
	opts pipelineOptions

	pool *parallel.Pool

	src      SplatSource
	capacity int

	keys   []float32
	sorter sorter
	batch  *VertexBatch

	validCount int
	drawCount  int
}

// NewPipeline creates an empty pipeline. Call SetSource before Update.
func NewPipeline(opts ...Option) *Pipeline {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Pipeline{
		opts:   o,
		pool:   parallel.NewPool(o.workers),
		sorter: sorter{threshold: o.sortThreshold},
	}
}

// SetSource attaches a splat source and rebuilds every internal buffer
// for its capacity. This is a structural change: the carried-over sort
// permutation and any previous vertex batch are invalidated. Passing the
// same source again is a no-op; sources are compared by identity, and a
// source of a non-comparable type is always treated as new.
func (pl *Pipeline) SetSource(src SplatSource) {
	if sameSource(pl.src, src) {
		return
	}
	pl.src = src
	pl.capacity = 0
	pl.keys = nil
	pl.batch = nil
	pl.validCount = 0
	pl.drawCount = 0
	if src == nil {
		return
	}

	pl.capacity = src.Capacity()
	pl.keys = make([]float32, pl.capacity)
	for i := range pl.keys {
		pl.keys[i] = invalidKey
	}
	pl.sorter.reset(pl.capacity)
	pl.batch = NewVertexBatch(pl.capacity)

	Logger().Info("splat: pipeline rebuilt", "capacity", pl.capacity)
}

// sameSource reports whether a and b are the same source. Interface
// equality panics for non-comparable implementations (e.g. a slice
// type), so the dynamic type is checked first.
func sameSource(a, b SplatSource) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// Capacity returns the splat capacity of the current source, or 0.
func (pl *Pipeline) Capacity() int { return pl.capacity }

// Batch returns the vertex batch produced by the last successful Update.
// The batch is owned by the pipeline and overwritten on the next update.
func (pl *Pipeline) Batch() *VertexBatch { return pl.batch }

// DrawRange returns the index range [first, first+count) to draw from
// the batch. count is ValidCount()*6; splats culled after sorting emit
// degenerate quads inside the range and cost nothing to rasterize.
func (pl *Pipeline) DrawRange() (first, count int) {
	return 0, pl.drawCount
}

// ValidCount returns the number of splats with valid ordering keys in
// the last update.
func (pl *Pipeline) ValidCount() int { return pl.validCount }

// Update runs one frame: distance keys, sort, projection.
//
// Error semantics follow the frame-retaining model: on ErrNotReady the
// update is skipped and the previous batch and draw range remain valid
// (callers may ignore the error and draw again); ErrCapacityExceeded is
// structural and requires SetSource with a larger source. Per-splat
// numeric edge cases are never errors; they surface as degenerate
// quads.
func (pl *Pipeline) Update(params FrameParameters) error {
	if pl.src == nil {
		return ErrNoSource
	}
	n := pl.src.NumSplats()
	if n > pl.capacity {
		return fmt.Errorf("splat: %d splats in a pipeline built for %d: %w", n, pl.capacity, ErrCapacityExceeded)
	}
	if n == 0 {
		pl.validCount = 0
		pl.drawCount = 0
		return nil
	}

	a := pl.accelerator()

	// Phase 1: distance keys.
	valid, err := pl.computeDistances(a, n, &params)
	if err != nil {
		// Not ready: keep the previous batch and draw range intact.
		return err
	}

	// Phase 2: back-to-front permutation. Runs only after every key is
	// written; the sort is global and sequential.
	order := pl.sorter.sort(pl.keys, n)

	// Phase 3: projection in permutation order.
	pl.project(a, order, &params)

	pl.validCount = valid
	pl.drawCount = valid * QuadIndexCount
	Logger().Debug("splat: frame updated", "splats", n, "valid", valid)
	return nil
}

// accelerator resolves the effective accelerator for this pipeline.
func (pl *Pipeline) accelerator() Accelerator {
	if !pl.opts.useRegistry {
		return pl.opts.accel
	}
	return RegisteredAccelerator()
}

// computeDistances runs phase 1 and returns the valid-entry count.
func (pl *Pipeline) computeDistances(a Accelerator, n int, params *FrameParameters) (int, error) {
	if a != nil && a.CanAccelerate(AccelDistance) {
		err := a.ComputeDistances(pl.src, params, pl.keys[:n])
		switch {
		case err == nil:
			return pl.countValid(n), nil
		case errors.Is(err, ErrNotReady):
			return 0, err
		default:
			if !errors.Is(err, ErrFallbackToCPU) {
				Logger().Warn("splat: accelerator distance stage failed", "accelerator", a.Name(), "err", err)
			}
		}
	}

	var valid chunkCounter
	pl.pool.ForEach(n, 0, func(lo, hi int) {
		valid.add(computeDistanceRange(pl.src, params, pl.keys, lo, hi))
	})
	return valid.total(), nil
}

// chunkCounter accumulates per-chunk tallies from pool workers.
type chunkCounter struct {
	n atomic.Int64
}

func (c *chunkCounter) add(v int)  { c.n.Add(int64(v)) }
func (c *chunkCounter) total() int { return int(c.n.Load()) }

// countValid tallies finite keys after an accelerated distance pass.
func (pl *Pipeline) countValid(n int) int {
	valid := 0
	for i := range n {
		if pl.keys[i] != invalidKey && isFinite32(pl.keys[i]) {
			valid++
		} else {
			pl.keys[i] = invalidKey
		}
	}
	return valid
}

// project runs phase 3.
func (pl *Pipeline) project(a Accelerator, order []uint32, params *FrameParameters) {
	if a != nil && a.CanAccelerate(AccelProject) {
		err := a.Project(pl.src, params, order, pl.batch)
		if err == nil {
			return
		}
		if !errors.Is(err, ErrFallbackToCPU) {
			Logger().Warn("splat: accelerator projection stage failed", "accelerator", a.Name(), "err", err)
		}
	}

	st := newFrameState(*params)
	pl.pool.ForEach(len(order), 0, func(lo, hi int) {
		for slot := lo; slot < hi; slot++ {
			projectSplat(pl.src, &st, order[slot], slot, pl.batch)
		}
	})
}

// Close releases the worker pool. The pipeline must not be used after
// Close.
func (pl *Pipeline) Close() {
	pl.pool.Close()
}
