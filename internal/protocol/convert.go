package protocol

import (
	"fmt"
	"strings"

	"voxelmesh.ai/internal/mesh"
	"voxelmesh.ai/internal/voxel"
)

// ToCell converts a wire cell. Channels outside 0..255 are rejected.
func (c CellJSON) ToCell() (voxel.Cell, error) {
	var st voxel.State
	switch strings.ToUpper(c.State) {
	case "INACTIVE", "":
		st = voxel.Inactive
	case "ACTIVE":
		st = voxel.Active
	case "HIDDEN":
		st = voxel.Hidden
	default:
		return voxel.Cell{}, fmt.Errorf("unknown state %q", c.State)
	}
	if c.Value < 0 || c.Value > 255 {
		return voxel.Cell{}, fmt.Errorf("value %d out of range", c.Value)
	}
	for _, ch := range c.Color {
		if ch < 0 || ch > 255 {
			return voxel.Cell{}, fmt.Errorf("colour channel %d out of range", ch)
		}
	}
	return voxel.Cell{
		State: st,
		Value: uint8(c.Value),
		Color: voxel.RGBA8{R: uint8(c.Color[0]), G: uint8(c.Color[1]), B: uint8(c.Color[2]), A: uint8(c.Color[3])},
	}, nil
}

func CellToJSON(c voxel.Cell) CellJSON {
	return CellJSON{
		State: c.State.String(),
		Value: int(c.Value),
		Color: [4]int{int(c.Color.R), int(c.Color.G), int(c.Color.B), int(c.Color.A)},
	}
}

// NewChunkMesh flattens buffers into a CHUNK_MESH message. Nil or empty buffers give
// a clear message.
func NewChunkMesh(tick uint64, frame int, chunk [3]int, src mesh.ShadeSource, b *mesh.Buffers) ChunkMeshMsg {
	m := ChunkMeshMsg{
		Type:            TypeChunkMesh,
		ProtocolVersion: Version,
		Tick:            tick,
		Frame:           frame,
		Chunk:           chunk,
		ShadeSource:     src.String(),
		Positions:       []float32{},
		UVs:             []float32{},
		Colors:          []uint32{},
		Indices:         []uint32{},
	}
	if b == nil || b.Empty() {
		return m
	}
	m.Positions = make([]float32, 0, 3*len(b.Positions))
	for _, p := range b.Positions {
		m.Positions = append(m.Positions, p[0], p[1], p[2])
	}
	m.UVs = make([]float32, 0, 2*len(b.UVs))
	for _, uv := range b.UVs {
		m.UVs = append(m.UVs, uv[0], uv[1])
	}
	m.Colors = make([]uint32, len(b.Colors))
	for i, c := range b.Colors {
		m.Colors[i] = c.Packed()
	}
	m.Indices = append(m.Indices, b.Indices...)
	m.Digest = fmt.Sprintf("%016x", mesh.Digest(b))
	return m
}
