package splat

import (
	"math"
	"testing"
)

// testSplatAt packs a splat at the given center with benign defaults.
func testSplatAt(center Vec3) PackedSplat {
	return Splat{
		Center:   center,
		Scale:    Vec3{0.1, 0.1, 0.1},
		Rotation: QuatIdent(),
		Color:    Vec4{1, 1, 1, 1},
	}.Encode(DefaultCodecRange())
}

func TestComputeDistanceRadial(t *testing.T) {
	src := NewBufferSource(3)
	centers := []Vec3{{0, 0, -2}, {3, 4, 0}, {0, 0, 0}}
	for i, c := range centers {
		if err := src.Set(i, testSplatAt(c)); err != nil {
			t.Fatal(err)
		}
	}

	p := DefaultFrameParameters()
	p.CameraPosition = Vec3{0, 0, 0}
	p.SortMode = SortRadial

	keys := make([]float32, 3)
	valid := computeDistanceRange(src, &p, keys, 0, 3)
	if valid != 3 {
		t.Fatalf("valid = %d, want 3", valid)
	}

	want := []float32{2, 5, 0}
	for i := range want {
		if !almostEqual(keys[i], want[i], 1e-3) {
			t.Errorf("keys[%d] = %v, want %v", i, keys[i], want[i])
		}
	}
}

func TestComputeDistanceRadialOffsetCamera(t *testing.T) {
	src := NewBufferSource(1)
	if err := src.Set(0, testSplatAt(Vec3{1, 1, 1})); err != nil {
		t.Fatal(err)
	}

	p := DefaultFrameParameters()
	p.CameraPosition = Vec3{1, 1, 0}

	keys := make([]float32, 1)
	computeDistanceRange(src, &p, keys, 0, 1)
	if !almostEqual(keys[0], 1, 1e-3) {
		t.Errorf("keys[0] = %v, want 1", keys[0])
	}
}

func TestComputeDistancePlanar(t *testing.T) {
	src := NewBufferSource(2)
	if err := src.Set(0, testSplatAt(Vec3{0, 0, -4})); err != nil {
		t.Fatal(err)
	}
	// Lateral offset must not change a planar key.
	if err := src.Set(1, testSplatAt(Vec3{7, 0, -4})); err != nil {
		t.Fatal(err)
	}

	p := DefaultFrameParameters()
	p.SortMode = SortPlanar

	keys := make([]float32, 2)
	computeDistanceRange(src, &p, keys, 0, 2)
	// Identity rotation looks down -Z, so depth 4 in front of the camera.
	if !almostEqual(keys[0], 4, 1e-3) {
		t.Errorf("keys[0] = %v, want 4", keys[0])
	}
	if !almostEqual(keys[1], 4, 1e-2) {
		t.Errorf("keys[1] = %v, want 4", keys[1])
	}
}

func TestComputeDistancePlanarBias(t *testing.T) {
	src := NewBufferSource(1)
	if err := src.Set(0, testSplatAt(Vec3{0, 0, -4})); err != nil {
		t.Fatal(err)
	}

	p := DefaultFrameParameters()
	p.SortMode = SortPlanar
	p.DepthBias = 1.5

	keys := make([]float32, 1)
	computeDistanceRange(src, &p, keys, 0, 1)
	if !almostEqual(keys[0], 5.5, 1e-3) {
		t.Errorf("keys[0] = %v, want 5.5", keys[0])
	}
}

func TestComputeDistancePlanarRotatedCamera(t *testing.T) {
	src := NewBufferSource(1)
	if err := src.Set(0, testSplatAt(Vec3{-4, 0, 0})); err != nil {
		t.Fatal(err)
	}

	p := DefaultFrameParameters()
	p.SortMode = SortPlanar
	// Yaw 90 degrees: the camera now looks down -X.
	p.CameraRotation = QuatFromAxisAngle(Vec3{0, 1, 0}, math.Pi/2)

	keys := make([]float32, 1)
	computeDistanceRange(src, &p, keys, 0, 1)
	if !almostEqual(keys[0], 4, 1e-3) {
		t.Errorf("keys[0] = %v, want 4", keys[0])
	}
}

func TestComputeDistanceInvalidEntries(t *testing.T) {
	src := NewBufferSource(3)
	if err := src.Set(0, testSplatAt(Vec3{0, 0, -1})); err != nil {
		t.Fatal(err)
	}
	// An infinite half-float center produces a non-finite key.
	infCenter := testSplatAt(Vec3{0, 0, 0})
	infCenter.Word1 = uint32(0x7c00) // +Inf x
	if err := src.Set(1, infCenter); err != nil {
		t.Fatal(err)
	}
	// A NaN center as well.
	nanCenter := testSplatAt(Vec3{0, 0, 0})
	nanCenter.Word1 = uint32(0x7e00) // NaN x
	if err := src.Set(2, nanCenter); err != nil {
		t.Fatal(err)
	}

	p := DefaultFrameParameters()
	keys := make([]float32, 3)
	valid := computeDistanceRange(src, &p, keys, 0, 3)
	if valid != 1 {
		t.Fatalf("valid = %d, want 1", valid)
	}
	if keys[1] != invalidKey || keys[2] != invalidKey {
		t.Errorf("keys = %v, want invalid sentinel at 1 and 2", keys)
	}
}

func TestComputeDistanceRangeBounds(t *testing.T) {
	src := NewBufferSource(4)
	for i := range 4 {
		if err := src.Set(i, testSplatAt(Vec3{0, 0, -float32(i + 1)})); err != nil {
			t.Fatal(err)
		}
	}

	p := DefaultFrameParameters()
	keys := make([]float32, 4)
	keys[0] = 99
	keys[3] = 99
	computeDistanceRange(src, &p, keys, 1, 3)
	if keys[0] != 99 || keys[3] != 99 {
		t.Errorf("keys outside [1, 3) were touched: %v", keys)
	}
	if !almostEqual(keys[1], 2, 1e-3) || !almostEqual(keys[2], 3, 1e-3) {
		t.Errorf("keys[1:3] = %v, want [2 3]", keys[1:3])
	}
}
