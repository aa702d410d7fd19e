package frame

import "voxelmesh.ai/internal/voxel"

// FillRegion writes c into every in-range cell of [min, min+size) with the same change
// rules as SetVoxel. It returns the number of cells that queued regeneration.
func (g *Grid) FillRegion(min, size [3]int, c voxel.Cell) int {
	n := 0
	for z := min[2]; z < min[2]+size[2]; z++ {
		for y := min[1]; y < min[1]+size[1]; y++ {
			for x := min[0]; x < min[0]+size[0]; x++ {
				if g.SetVoxel(x, y, z, c) {
					n++
				}
			}
		}
	}
	return n
}

// CopyRegion copies [srcMin, srcMin+size) of src to dstMin through SetVoxel. Cells
// outside src or the grid are skipped.
func (g *Grid) CopyRegion(src *voxel.Block, srcMin, size, dstMin [3]int) int {
	n := 0
	for z := 0; z < size[2]; z++ {
		for y := 0; y < size[1]; y++ {
			for x := 0; x < size[0]; x++ {
				c, ok := src.Get(srcMin[0]+x, srcMin[1]+y, srcMin[2]+z)
				if !ok {
					continue
				}
				if g.SetVoxel(dstMin[0]+x, dstMin[1]+y, dstMin[2]+z, c) {
					n++
				}
			}
		}
	}
	return n
}

// Rotate turns the block by quarter turns about Y, rebuilds the chunk partition and
// regenerates everything.
func (g *Grid) Rotate(quarters int) {
	g.block = g.block.RotatedY(quarters)
	g.partition(g.chunkSize)
	g.RegenerateAll()
}

// Scroll moves every cell by (dx,dy,dz) and regenerates everything.
func (g *Grid) Scroll(dx, dy, dz int, wrap bool) {
	g.block = g.block.Scrolled(dx, dy, dz, wrap)
	g.RegenerateAll()
}

// Resize changes the block size, keeping overlapping cells in place.
func (g *Grid) Resize(sx, sy, sz int) {
	g.block = g.block.Resized(sx, sy, sz)
	g.partition(g.chunkSize)
	g.RegenerateAll()
}

// SetChunkSize discards the current partition, including queued and pending work,
// and regenerates under the new chunk size.
func (g *Grid) SetChunkSize(cs [3]int) {
	g.partition(cs)
	g.RegenerateAll()
}

// Replace swaps in a new block of any size, as after loading a snapshot.
func (g *Grid) Replace(b *voxel.Block) {
	g.block = b
	g.partition(g.chunkSize)
	g.RegenerateAll()
}
