package splat

import (
	"errors"
	"testing"
)

// fakeAccel is a scriptable accelerator for pipeline tests.
type fakeAccel struct {
	name      string
	ops       AcceleratedOp
	distances func(src SplatSource, params *FrameParameters, keys []float32) error
	project   func(src SplatSource, params *FrameParameters, order []uint32, batch *VertexBatch) error

	distanceCalls int
	projectCalls  int
}

func (f *fakeAccel) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}
func (f *fakeAccel) Init() error                        { return nil }
func (f *fakeAccel) Close()                             {}
func (f *fakeAccel) CanAccelerate(op AcceleratedOp) bool { return op&f.ops != 0 }

func (f *fakeAccel) ComputeDistances(src SplatSource, params *FrameParameters, keys []float32) error {
	f.distanceCalls++
	if f.distances != nil {
		return f.distances(src, params, keys)
	}
	return ErrFallbackToCPU
}

func (f *fakeAccel) Project(src SplatSource, params *FrameParameters, order []uint32, batch *VertexBatch) error {
	f.projectCalls++
	if f.project != nil {
		return f.project(src, params, order, batch)
	}
	return ErrFallbackToCPU
}

// overCapacitySource reports more active splats than its capacity.
type overCapacitySource struct{ *BufferSource }

func (overCapacitySource) NumSplats() int { return 1 << 20 }

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	pl := NewPipeline(opts...)
	t.Cleanup(pl.Close)
	return pl
}

func TestPipelineNoSource(t *testing.T) {
	pl := newTestPipeline(t)
	if err := pl.Update(testFrameParams()); !errors.Is(err, ErrNoSource) {
		t.Fatalf("Update() = %v, want ErrNoSource", err)
	}
}

func TestPipelineEmptySource(t *testing.T) {
	pl := newTestPipeline(t)
	pl.SetSource(NewBufferSource(8))
	if err := pl.Update(testFrameParams()); err != nil {
		t.Fatalf("Update() = %v", err)
	}
	if first, count := pl.DrawRange(); first != 0 || count != 0 {
		t.Errorf("DrawRange() = (%d, %d), want (0, 0)", first, count)
	}
	if pl.ValidCount() != 0 {
		t.Errorf("ValidCount() = %d, want 0", pl.ValidCount())
	}
}

func TestPipelineCapacityExceeded(t *testing.T) {
	pl := newTestPipeline(t)
	pl.SetSource(overCapacitySource{NewBufferSource(4)})
	if err := pl.Update(testFrameParams()); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("Update() = %v, want ErrCapacityExceeded", err)
	}
}

func TestPipelineUpdate(t *testing.T) {
	pl := newTestPipeline(t)
	src := NewBufferSource(8)
	// Far splat on +X, near splat on -X; back-to-front means the far
	// one is drawn first.
	if err := src.Set(0, testSplatAt(Vec3{-1, 0, -2})); err != nil {
		t.Fatal(err)
	}
	if err := src.Set(1, testSplatAt(Vec3{1, 0, -10})); err != nil {
		t.Fatal(err)
	}
	pl.SetSource(src)

	if err := pl.Update(testFrameParams()); err != nil {
		t.Fatalf("Update() = %v", err)
	}

	if pl.ValidCount() != 2 {
		t.Fatalf("ValidCount() = %d, want 2", pl.ValidCount())
	}
	if _, count := pl.DrawRange(); count != 2*QuadIndexCount {
		t.Errorf("DrawRange() count = %d, want %d", count, 2*QuadIndexCount)
	}

	batch := pl.Batch()
	// Slot 0 holds the far (+X) splat, slot 1 the near (-X) one.
	if x := batch.Positions[0][0]; x <= 0 {
		t.Errorf("slot 0 x = %v, want > 0 (far splat first)", x)
	}
	if x := batch.Positions[QuadVertexCount][0]; x >= 0 {
		t.Errorf("slot 1 x = %v, want < 0 (near splat last)", x)
	}
}

func TestPipelineIndicesFixedPattern(t *testing.T) {
	pl := newTestPipeline(t)
	src := NewBufferSource(3)
	if err := src.Set(2, testSplatAt(Vec3{0, 0, -1})); err != nil {
		t.Fatal(err)
	}
	pl.SetSource(src)

	batch := pl.Batch()
	if len(batch.Indices) != 3*QuadIndexCount {
		t.Fatalf("len(Indices) = %d, want %d", len(batch.Indices), 3*QuadIndexCount)
	}
	for s := range 3 {
		base := uint32(s * QuadVertexCount)
		for i, rel := range quadPattern {
			if got := batch.Indices[s*QuadIndexCount+i]; got != base+rel {
				t.Fatalf("Indices[%d] = %d, want %d", s*QuadIndexCount+i, got, base+rel)
			}
		}
	}
}

func TestPipelineSetSourceSameIsNoop(t *testing.T) {
	pl := newTestPipeline(t)
	src := NewBufferSource(4)
	pl.SetSource(src)
	batch := pl.Batch()
	pl.SetSource(src)
	if pl.Batch() != batch {
		t.Error("SetSource with the same source rebuilt the batch")
	}
}

// sliceSource is a non-comparable SplatSource implementation.
type sliceSource []PackedSplat

func (s sliceSource) Capacity() int        { return len(s) }
func (s sliceSource) NumSplats() int       { return len(s) }
func (s sliceSource) At(i int) PackedSplat { return s[i] }
func (s sliceSource) Range() CodecRange    { return DefaultCodecRange() }

func TestPipelineSetSourceNonComparable(t *testing.T) {
	pl := newTestPipeline(t)
	src := sliceSource{testSplatAt(Vec3{0, 0, -3})}

	// Must not panic on interface comparison; each call is a rebuild.
	pl.SetSource(src)
	pl.SetSource(src)

	if err := pl.Update(testFrameParams()); err != nil {
		t.Fatalf("Update() = %v", err)
	}
	if pl.ValidCount() != 1 {
		t.Errorf("ValidCount() = %d, want 1", pl.ValidCount())
	}
}

func TestPipelineSetSourceRebuilds(t *testing.T) {
	pl := newTestPipeline(t)
	pl.SetSource(NewBufferSource(4))
	if pl.Capacity() != 4 {
		t.Fatalf("Capacity() = %d, want 4", pl.Capacity())
	}
	pl.SetSource(NewBufferSource(16))
	if pl.Capacity() != 16 {
		t.Fatalf("Capacity() = %d, want 16", pl.Capacity())
	}
	if got := len(pl.Batch().Positions); got != 16*QuadVertexCount {
		t.Errorf("len(Positions) = %d, want %d", got, 16*QuadVertexCount)
	}
}

func TestPipelineNotReadyRetainsFrame(t *testing.T) {
	accel := &fakeAccel{ops: AccelDistance}
	pl := newTestPipeline(t, WithAccelerator(accel))
	src := NewBufferSource(4)
	if err := src.Set(0, testSplatAt(Vec3{0, 0, -3})); err != nil {
		t.Fatal(err)
	}
	pl.SetSource(src)

	// First frame on the CPU.
	if err := pl.Update(testFrameParams()); err != nil {
		t.Fatalf("Update() = %v", err)
	}
	_, wantCount := pl.DrawRange()
	wantValid := pl.ValidCount()

	// Second frame: the accelerator's readback is not ready.
	accel.distances = func(SplatSource, *FrameParameters, []float32) error {
		return ErrNotReady
	}
	if err := pl.Update(testFrameParams()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Update() = %v, want ErrNotReady", err)
	}
	if _, count := pl.DrawRange(); count != wantCount {
		t.Errorf("DrawRange() count = %d, want retained %d", count, wantCount)
	}
	if pl.ValidCount() != wantValid {
		t.Errorf("ValidCount() = %d, want retained %d", pl.ValidCount(), wantValid)
	}
}

func TestPipelineAcceleratorFallback(t *testing.T) {
	accel := &fakeAccel{ops: AccelDistance | AccelProject}
	pl := newTestPipeline(t, WithAccelerator(accel))
	src := NewBufferSource(4)
	if err := src.Set(0, testSplatAt(Vec3{0, 0, -3})); err != nil {
		t.Fatal(err)
	}
	pl.SetSource(src)

	if err := pl.Update(testFrameParams()); err != nil {
		t.Fatalf("Update() = %v, want fallback to succeed", err)
	}
	if accel.distanceCalls != 1 || accel.projectCalls != 1 {
		t.Errorf("accelerator calls = (%d, %d), want (1, 1)", accel.distanceCalls, accel.projectCalls)
	}
	if pl.ValidCount() != 1 {
		t.Errorf("ValidCount() = %d, want 1 via CPU fallback", pl.ValidCount())
	}
}

func TestPipelineAcceleratorKeysUsed(t *testing.T) {
	// The accelerator supplies distance keys; the pipeline must sort and
	// count on them, sanitizing non-finite entries.
	accel := &fakeAccel{ops: AccelDistance}
	accel.distances = func(src SplatSource, _ *FrameParameters, keys []float32) error {
		for i := range keys {
			keys[i] = float32(i)
		}
		keys[0] = invalidKey
		return nil
	}
	pl := newTestPipeline(t, WithAccelerator(accel))
	src := NewBufferSource(4)
	for i := range 3 {
		if err := src.Set(i, testSplatAt(Vec3{0, 0, -1})); err != nil {
			t.Fatal(err)
		}
	}
	pl.SetSource(src)

	if err := pl.Update(testFrameParams()); err != nil {
		t.Fatalf("Update() = %v", err)
	}
	if pl.ValidCount() != 2 {
		t.Errorf("ValidCount() = %d, want 2", pl.ValidCount())
	}
}

func TestPipelineNilAcceleratorForcesCPU(t *testing.T) {
	pl := newTestPipeline(t, WithAccelerator(nil))
	src := NewBufferSource(2)
	if err := src.Set(0, testSplatAt(Vec3{0, 0, -3})); err != nil {
		t.Fatal(err)
	}
	pl.SetSource(src)
	if err := pl.Update(testFrameParams()); err != nil {
		t.Fatalf("Update() = %v", err)
	}
	if pl.ValidCount() != 1 {
		t.Errorf("ValidCount() = %d, want 1", pl.ValidCount())
	}
}

func TestPipelineDegenerateInsideDrawRange(t *testing.T) {
	pl := newTestPipeline(t)
	src := NewBufferSource(4)
	if err := src.Set(0, testSplatAt(Vec3{0, 0, -3})); err != nil {
		t.Fatal(err)
	}
	// Valid key, but culled in projection (behind the camera it is not;
	// use zero alpha instead so the distance stage still counts it).
	transparent := Splat{
		Center:   Vec3{0, 0, -2},
		Scale:    Vec3{0.1, 0.1, 0.1},
		Rotation: QuatIdent(),
		Color:    Vec4{1, 1, 1, 0},
	}.Encode(DefaultCodecRange())
	if err := src.Set(1, transparent); err != nil {
		t.Fatal(err)
	}
	pl.SetSource(src)

	if err := pl.Update(testFrameParams()); err != nil {
		t.Fatalf("Update() = %v", err)
	}
	// Both have finite keys, so both are inside the draw range; the
	// transparent one as a degenerate quad.
	if pl.ValidCount() != 2 {
		t.Fatalf("ValidCount() = %d, want 2", pl.ValidCount())
	}
	batch := pl.Batch()
	degenerates := 0
	for s := range 2 {
		if isDegenerate(batch, s) {
			degenerates++
		}
	}
	if degenerates != 1 {
		t.Errorf("degenerate quads = %d, want exactly 1", degenerates)
	}
}

func TestPipelineWorkerOptions(t *testing.T) {
	pl := newTestPipeline(t, WithWorkers(2), WithSortThreshold(10))
	src := NewBufferSource(64)
	for i := range 64 {
		if err := src.Set(i, testSplatAt(Vec3{0, 0, -1 - float32(i)})); err != nil {
			t.Fatal(err)
		}
	}
	pl.SetSource(src)
	if err := pl.Update(testFrameParams()); err != nil {
		t.Fatalf("Update() = %v", err)
	}
	if pl.ValidCount() != 64 {
		t.Errorf("ValidCount() = %d, want 64", pl.ValidCount())
	}
}
