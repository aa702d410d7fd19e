// Package mesh turns a window of a voxel block into triangle buffers. Three extractors are
// provided: face culling, greedy merging of culled faces, and marching cubes over a
// doubled sampling lattice. All of them read the block through absolute coordinates so a
// window can look one cell past its own edge; anything outside [0, Upper] is inactive.
package mesh

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"voxelmesh.ai/internal/voxel"
)

type Algorithm uint8

const (
	Culled Algorithm = iota
	Greedy
	MarchingCubes
)

func (a Algorithm) String() string {
	switch a {
	case Culled:
		return "culled"
	case Greedy:
		return "greedy"
	case MarchingCubes:
		return "marching"
	default:
		return fmt.Sprintf("algorithm(%d)", uint8(a))
	}
}

func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "culled", "":
		return Culled, nil
	case "greedy":
		return Greedy, nil
	case "marching", "marching_cubes", "marchingcubes":
		return MarchingCubes, nil
	}
	return 0, fmt.Errorf("unknown algorithm %q", s)
}

// ShadeSource selects what drives vertex colour.
type ShadeSource uint8

const (
	ShadeColor ShadeSource = iota
	ShadeValue
)

func (s ShadeSource) String() string {
	if s == ShadeValue {
		return "value"
	}
	return "color"
}

func ParseShadeSource(s string) (ShadeSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "color", "colour", "":
		return ShadeColor, nil
	case "value":
		return ShadeValue, nil
	}
	return 0, fmt.Errorf("unknown shade source %q", s)
}

// Window is the region of the block a single extraction covers. Offset and Size are in
// cells; Upper holds the inclusive upper bound of the whole block on each axis.
type Window struct {
	Offset [3]int
	Size   [3]int
	Upper  [3]int
}

func (w Window) Empty() bool {
	return w.Size[0] <= 0 || w.Size[1] <= 0 || w.Size[2] <= 0
}

// Params are the per-volume rendering inputs shared by all extractors.
type Params struct {
	CellSize  float32
	Overlap   float32
	SelfShade float32
	Source    ShadeSource
}

// FallbackColor is written when marching cubes cannot find an active cell to colour a
// vertex from.
var FallbackColor = voxel.RGBA8{R: 255, G: 0, B: 255, A: 255}

// Buffers holds one extraction result. Positions, UVs and Colors are parallel; Indices
// holds triangle triples into them.
type Buffers struct {
	Positions []mgl32.Vec3
	UVs       []mgl32.Vec2
	Colors    []voxel.RGBA8
	Indices   []uint32

	// ColorFallbacks counts vertices that received FallbackColor.
	ColorFallbacks int
}

// Reset empties the buffers, keeping capacity.
func (b *Buffers) Reset() {
	b.Positions = b.Positions[:0]
	b.UVs = b.UVs[:0]
	b.Colors = b.Colors[:0]
	b.Indices = b.Indices[:0]
	b.ColorFallbacks = 0
}

func (b *Buffers) Empty() bool { return len(b.Indices) == 0 }

func (b *Buffers) Triangles() int { return len(b.Indices) / 3 }

func (b *Buffers) Clone() *Buffers {
	if b == nil {
		return nil
	}
	return &Buffers{
		Positions:      append([]mgl32.Vec3(nil), b.Positions...),
		UVs:            append([]mgl32.Vec2(nil), b.UVs...),
		Colors:         append([]voxel.RGBA8(nil), b.Colors...),
		Indices:        append([]uint32(nil), b.Indices...),
		ColorFallbacks: b.ColorFallbacks,
	}
}

// Extract runs the selected algorithm, rebuilding out from scratch.
func Extract(alg Algorithm, src voxel.Reader, w Window, p Params, out *Buffers) {
	switch alg {
	case Greedy:
		ExtractGreedy(src, w, p, out)
	case MarchingCubes:
		ExtractMarchingCubes(src, w, p, out)
	default:
		ExtractCulled(src, w, p, out)
	}
}

// sampler bounds every lookup by the block's upper limits.
type sampler struct {
	src   voxel.Reader
	upper [3]int
}

func (s sampler) cell(x, y, z int) voxel.Cell {
	if x < 0 || y < 0 || z < 0 || x > s.upper[0] || y > s.upper[1] || z > s.upper[2] {
		return voxel.Cell{}
	}
	return s.src.At(x, y, z)
}

func (s sampler) solid(x, y, z int) bool {
	return s.cell(x, y, z).State == voxel.Active
}

func (s sampler) solidAt(p [3]int) bool { return s.solid(p[0], p[1], p[2]) }

func baseColor(c voxel.Cell, src ShadeSource) voxel.RGBA8 {
	if src == ShadeValue {
		return voxel.Gray(c.Value)
	}
	return c.Color
}
