package splat

import "fmt"

// SplatSource is an addressable, fixed-capacity collection of packed
// splats. The pipeline reads it by index for the duration of one frame;
// mutation and aggregation are the owner's responsibility, serialized
// with pipeline updates.
//
// A new underlying store (a different SplatSource value passed to
// Pipeline.SetSource) is the single trigger for a structural rebuild.
type SplatSource interface {
	// Capacity returns the number of addressable slots.
	Capacity() int

	// NumSplats returns the active count. Indices in [0, NumSplats())
	// are valid for At.
	NumSplats() int

	// At returns the packed splat at index i. Called only with
	// 0 <= i < NumSplats().
	At(i int) PackedSplat

	// Range returns the dequantization ranges for this source.
	Range() CodecRange
}

// BufferSource is an in-memory SplatSource backed by a flat slice.
type BufferSource struct {
	splats []PackedSplat
	num    int
	rng    CodecRange
}

// NewBufferSource creates a source with the given fixed capacity and
// the default codec range.
func NewBufferSource(capacity int) *BufferSource {
	return &BufferSource{
		splats: make([]PackedSplat, capacity),
		rng:    DefaultCodecRange(),
	}
}

// Capacity returns the number of addressable slots.
func (b *BufferSource) Capacity() int { return len(b.splats) }

// NumSplats returns the active count.
func (b *BufferSource) NumSplats() int { return b.num }

// At returns the packed splat at index i.
func (b *BufferSource) At(i int) PackedSplat { return b.splats[i] }

// Range returns the source's codec range.
func (b *BufferSource) Range() CodecRange { return b.rng }

// SetRange replaces the codec range applied to every splat.
func (b *BufferSource) SetRange(r CodecRange) { b.rng = r }

// Set stores a packed splat at index i and grows the active count to
// cover it.
func (b *BufferSource) Set(i int, p PackedSplat) error {
	if i < 0 || i >= len(b.splats) {
		return fmt.Errorf("splat: index %d out of range [0, %d): %w", i, len(b.splats), ErrCapacityExceeded)
	}
	b.splats[i] = p
	if i >= b.num {
		b.num = i + 1
	}
	return nil
}

// SetNumSplats overrides the active count, e.g. after bulk writes.
func (b *BufferSource) SetNumSplats(n int) error {
	if n < 0 || n > len(b.splats) {
		return fmt.Errorf("splat: count %d out of range [0, %d]: %w", n, len(b.splats), ErrCapacityExceeded)
	}
	b.num = n
	return nil
}

// Texel layout
//
// GPU backends store the packed splats in a layered RGBA32Uint texture,
// one texel per splat. The index-to-coordinate mapping below is the
// reference layout (2048x2048 per layer); any scheme preserving the
// total order over indices is compatible as long as upload and kernels
// agree.

const (
	// TexelWidthBits and TexelHeightBits size one texture layer.
	TexelWidthBits  = 11
	TexelHeightBits = 11

	// TexelWidth and TexelHeight are the layer dimensions in texels.
	TexelWidth  = 1 << TexelWidthBits
	TexelHeight = 1 << TexelHeightBits

	// TexelLayerSize is the number of splats per layer.
	TexelLayerSize = TexelWidth * TexelHeight
)

// TexelCoord maps a splat index to its storage coordinate.
func TexelCoord(index int) (x, y, z int) {
	x = index & (TexelWidth - 1)
	y = index >> TexelWidthBits & (TexelHeight - 1)
	z = index >> (TexelWidthBits + TexelHeightBits)
	return x, y, z
}

// TexelIndex is the inverse of TexelCoord.
func TexelIndex(x, y, z int) int {
	return z<<(TexelWidthBits+TexelHeightBits) | y<<TexelWidthBits | x
}
