package splat

// Quad geometry constants. Every splat occupies exactly four vertices
// and six indices whether or not it is visible, so batch offsets never
// depend on per-splat validity.
const (
	QuadVertexCount = 4
	QuadIndexCount  = 6
)

// quadCorners are the local corner offsets, wound to match quadPattern.
var quadCorners = [QuadVertexCount]Vec2{
	{-1, -1},
	{1, -1},
	{1, 1},
	{-1, 1},
}

// quadPattern is the per-splat index pattern (two triangles).
var quadPattern = [QuadIndexCount]uint32{0, 1, 2, 0, 2, 3}

// degeneratePosition is the sentinel vertex position for culled splats.
// Its depth sits outside the NDC range, so the collapsed quad is clipped
// before rasterization.
var degeneratePosition = Vec3{0, 0, 2}

// VertexBatch is the projection stage's output: four vertices per splat
// in permutation order, vector-typed throughout.
//
// Positions are NDC; Colors carry alpha already corrected for the
// anti-aliasing dilation; UVs span [-MaxStdDev, MaxStdDev] and feed the
// downstream Gaussian falloff evaluation. Indices hold the fixed quad
// pattern for the whole capacity and never change after a rebuild.
type VertexBatch struct {
	Positions []Vec3
	Colors    []Vec4
	UVs       []Vec2
	Indices   []uint32
}

// NewVertexBatch allocates a batch for capacity splats with the index
// pattern prefilled.
func NewVertexBatch(capacity int) *VertexBatch {
	b := &VertexBatch{
		Positions: make([]Vec3, capacity*QuadVertexCount),
		Colors:    make([]Vec4, capacity*QuadVertexCount),
		UVs:       make([]Vec2, capacity*QuadVertexCount),
		Indices:   make([]uint32, 0, capacity*QuadIndexCount),
	}
	for i := range capacity {
		base := uint32(i * QuadVertexCount)
		for _, rel := range quadPattern {
			b.Indices = append(b.Indices, base+rel)
		}
	}
	return b
}

// setDegenerate overwrites slot's four vertices with the fixed sentinel:
// collapsed off-screen position, zero-alpha color, zero UV.
func (b *VertexBatch) setDegenerate(slot int) {
	base := slot * QuadVertexCount
	for c := range QuadVertexCount {
		b.Positions[base+c] = degeneratePosition
		b.Colors[base+c] = Vec4{}
		b.UVs[base+c] = Vec2{}
	}
}
