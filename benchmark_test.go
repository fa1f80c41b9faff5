package splat

import (
	"math"
	"math/rand"
	"testing"
)

func benchSource(b *testing.B, n int) *BufferSource {
	b.Helper()
	rng := rand.New(rand.NewSource(1))
	src := NewBufferSource(n)
	for i := range n {
		s := Splat{
			Center: Vec3{
				rng.Float32()*20 - 10,
				rng.Float32()*20 - 10,
				-1 - rng.Float32()*40,
			},
			Scale:    Vec3{0.05, 0.05, 0.05},
			Rotation: QuatFromAxisAngle(Vec3{0, 1, 0}, rng.Float32()*math.Pi),
			Color:    Vec4{rng.Float32(), rng.Float32(), rng.Float32(), 1},
		}
		if err := src.Set(i, s.Encode(DefaultCodecRange())); err != nil {
			b.Fatal(err)
		}
	}
	return src
}

func BenchmarkPipelineUpdate(b *testing.B) {
	const n = 10000
	pl := NewPipeline()
	defer pl.Close()
	pl.SetSource(benchSource(b, n))
	params := testFrameParams()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := pl.Update(params); err != nil {
			b.Fatal(err)
		}
	}
	b.ReportMetric(float64(n), "splats/frame")
}

func BenchmarkPipelineUpdateCoherent(b *testing.B) {
	// Camera barely moves between frames, so the carried permutation
	// keeps the insertion sort nearly linear.
	const n = 10000
	pl := NewPipeline(WithSortThreshold(n + 1))
	defer pl.Close()
	pl.SetSource(benchSource(b, n))
	params := testFrameParams()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		params.CameraPosition[0] = float32(i%100) * 0.0001
		if err := pl.Update(params); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSorter(b *testing.B) {
	const n = 100000
	rng := rand.New(rand.NewSource(2))
	keys := make([]float32, n)
	for i := range keys {
		keys[i] = rng.Float32()
	}
	var s sorter
	s.reset(n)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.sort(keys, n)
	}
}

func BenchmarkDecode(b *testing.B) {
	ps := Splat{
		Center:   Vec3{1, 2, -3},
		Scale:    Vec3{0.1, 0.2, 0.3},
		Rotation: QuatFromAxisAngle(Vec3{1, 1, 0}.Normalize(), 0.7),
		Color:    Vec4{0.5, 0.6, 0.7, 0.9},
	}.Encode(DefaultCodecRange())
	rng := DefaultCodecRange()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ps.Decode(rng)
	}
}

func BenchmarkProjectSplat(b *testing.B) {
	src := benchSource(b, 1)
	batch := NewVertexBatch(1)
	st := newFrameState(testFrameParams())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		projectSplat(src, &st, 0, 0, batch)
	}
}
