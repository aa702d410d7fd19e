package voxel

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Reader is read-only access to cells by absolute coordinate. Coordinates outside the
// backing storage read as the zero Cell, which is inactive.
type Reader interface {
	At(x, y, z int) Cell
}

// Block is a dense 3D array of cells. Index order is x fastest, then y, then z.
type Block struct {
	sx, sy, sz int
	cells      []Cell

	// Digest cache. Set is the only mutator of an existing block.
	dirty bool
	hash  uint64
}

func NewBlock(sx, sy, sz int) *Block {
	if sx < 0 {
		sx = 0
	}
	if sy < 0 {
		sy = 0
	}
	if sz < 0 {
		sz = 0
	}
	return &Block{
		sx:    sx,
		sy:    sy,
		sz:    sz,
		cells: make([]Cell, sx*sy*sz),
		dirty: true,
	}
}

func (b *Block) Size() (x, y, z int) { return b.sx, b.sy, b.sz }

func (b *Block) Dims() [3]int { return [3]int{b.sx, b.sy, b.sz} }

func (b *Block) Len() int { return len(b.cells) }

// Index returns the linear index of (x,y,z). It does not check bounds.
func (b *Block) Index(x, y, z int) int {
	return x + b.sx*(y+b.sy*z)
}

func (b *Block) InBounds(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < b.sx && y < b.sy && z < b.sz
}

// Get returns the cell at (x,y,z) and false when out of bounds.
func (b *Block) Get(x, y, z int) (Cell, bool) {
	if !b.InBounds(x, y, z) {
		return Cell{}, false
	}
	return b.cells[b.Index(x, y, z)], true
}

func (b *Block) At(x, y, z int) Cell {
	if !b.InBounds(x, y, z) {
		return Cell{}
	}
	return b.cells[b.Index(x, y, z)]
}

func (b *Block) ActiveAt(x, y, z int) bool {
	return b.At(x, y, z).State == Active
}

// Set writes c at (x,y,z). It returns false and does nothing when out of bounds.
func (b *Block) Set(x, y, z int, c Cell) bool {
	if !b.InBounds(x, y, z) {
		return false
	}
	b.cells[b.Index(x, y, z)] = c
	b.dirty = true
	return true
}

func (b *Block) Clone() *Block {
	out := &Block{sx: b.sx, sy: b.sy, sz: b.sz, cells: make([]Cell, len(b.cells)), dirty: true}
	copy(out.cells, b.cells)
	return out
}

// CountActive returns the number of active cells.
func (b *Block) CountActive() int {
	n := 0
	for _, c := range b.cells {
		if c.State == Active {
			n++
		}
	}
	return n
}

// Digest is a content hash over the 6-byte record stream plus the block size.
func (b *Block) Digest() uint64 {
	if !b.dirty {
		return b.hash
	}
	h := xxhash.New()
	var dims [12]byte
	binary.LittleEndian.PutUint32(dims[0:], uint32(b.sx))
	binary.LittleEndian.PutUint32(dims[4:], uint32(b.sy))
	binary.LittleEndian.PutUint32(dims[8:], uint32(b.sz))
	_, _ = h.Write(dims[:])
	var rec [CellSize]byte
	for _, c := range b.cells {
		c.PutBytes(rec[:])
		_, _ = h.Write(rec[:])
	}
	b.hash = h.Sum64()
	b.dirty = false
	return b.hash
}

// Region is a detached copy of part of a block that still answers reads in the
// coordinates of the block it was taken from.
type Region struct {
	Origin [3]int
	Block  *Block
}

func (r *Region) At(x, y, z int) Cell {
	return r.Block.At(x-r.Origin[0], y-r.Origin[1], z-r.Origin[2])
}

// Snapshot copies the box [min, min+size) into a Region. Parts of the box outside b are
// left inactive.
func (b *Block) Snapshot(min, size [3]int) *Region {
	sub := NewBlock(size[0], size[1], size[2])
	for z := 0; z < sub.sz; z++ {
		for y := 0; y < sub.sy; y++ {
			for x := 0; x < sub.sx; x++ {
				if c, ok := b.Get(min[0]+x, min[1]+y, min[2]+z); ok {
					sub.cells[sub.Index(x, y, z)] = c
				}
			}
		}
	}
	return &Region{Origin: min, Block: sub}
}
