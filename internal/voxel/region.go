package voxel

// Fill writes c into every in-bounds cell of the box [min, min+size).
func (b *Block) Fill(min, size [3]int, c Cell) int {
	n := 0
	for z := min[2]; z < min[2]+size[2]; z++ {
		for y := min[1]; y < min[1]+size[1]; y++ {
			for x := min[0]; x < min[0]+size[0]; x++ {
				if b.Set(x, y, z, c) {
					n++
				}
			}
		}
	}
	return n
}

// CopyFrom copies the box [srcMin, srcMin+size) of src to dstMin in b. Cells falling
// outside either block are skipped. It returns the number of cells written.
func (b *Block) CopyFrom(src *Block, srcMin, size, dstMin [3]int) int {
	n := 0
	for z := 0; z < size[2]; z++ {
		for y := 0; y < size[1]; y++ {
			for x := 0; x < size[0]; x++ {
				c, ok := src.Get(srcMin[0]+x, srcMin[1]+y, srcMin[2]+z)
				if !ok {
					continue
				}
				if b.Set(dstMin[0]+x, dstMin[1]+y, dstMin[2]+z, c) {
					n++
				}
			}
		}
	}
	return n
}

// Resized returns a copy of b with a new size. Overlapping cells keep their position.
func (b *Block) Resized(sx, sy, sz int) *Block {
	out := NewBlock(sx, sy, sz)
	out.CopyFrom(b, [3]int{}, b.Dims(), [3]int{})
	return out
}

// RotatedY returns b rotated by quarter turns about the Y axis. Each quarter turn maps
// (x, z) to (sz-1-z, x) and swaps the X and Z sizes.
func (b *Block) RotatedY(quarters int) *Block {
	q := ((quarters % 4) + 4) % 4
	cur := b.Clone()
	for i := 0; i < q; i++ {
		next := NewBlock(cur.sz, cur.sy, cur.sx)
		for z := 0; z < cur.sz; z++ {
			for y := 0; y < cur.sy; y++ {
				for x := 0; x < cur.sx; x++ {
					next.cells[next.Index(cur.sz-1-z, y, x)] = cur.cells[cur.Index(x, y, z)]
				}
			}
		}
		cur = next
	}
	return cur
}

// Scrolled returns a copy of b with every cell moved by (dx,dy,dz). With wrap set, cells
// leaving one side re-enter on the other; otherwise vacated cells become inactive.
func (b *Block) Scrolled(dx, dy, dz int, wrap bool) *Block {
	out := NewBlock(b.sx, b.sy, b.sz)
	for z := 0; z < b.sz; z++ {
		for y := 0; y < b.sy; y++ {
			for x := 0; x < b.sx; x++ {
				nx, ny, nz := x+dx, y+dy, z+dz
				if wrap {
					nx, ny, nz = wrapIndex(nx, b.sx), wrapIndex(ny, b.sy), wrapIndex(nz, b.sz)
				} else if !b.InBounds(nx, ny, nz) {
					continue
				}
				out.cells[out.Index(nx, ny, nz)] = b.cells[b.Index(x, y, z)]
			}
		}
	}
	return out
}

func wrapIndex(v, n int) int {
	m := v % n
	if m < 0 {
		m += n
	}
	return m
}
