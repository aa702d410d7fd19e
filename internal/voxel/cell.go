package voxel

import "fmt"

// State is the activity state of a single cell.
type State uint8

const (
	Inactive State = iota
	Active
	Hidden
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "INACTIVE"
	case Active:
		return "ACTIVE"
	case Hidden:
		return "HIDDEN"
	default:
		return fmt.Sprintf("STATE(%d)", uint8(s))
	}
}

func (s State) Valid() bool { return s <= Hidden }

// RGBA8 is an 8-bit-per-channel colour.
type RGBA8 struct {
	R, G, B, A uint8
}

// Packed returns the colour as 0xRRGGBBAA.
func (c RGBA8) Packed() uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}

// Gray builds an opaque grey from a scalar value.
func Gray(v uint8) RGBA8 { return RGBA8{R: v, G: v, B: v, A: 255} }

// CellSize is the on-wire size of one Cell record: state, value, r, g, b, a.
const CellSize = 6

type Cell struct {
	State State
	Value uint8
	Color RGBA8
}

func (c Cell) Active() bool { return c.State == Active }

// AffectsMesh reports whether replacing c with next can change generated geometry.
// State transitions always count; colour and value only matter while the cell is active.
func (c Cell) AffectsMesh(next Cell) bool {
	if c.State != next.State {
		return true
	}
	if !c.Active() {
		return false
	}
	return c.Color.R != next.Color.R ||
		c.Color.G != next.Color.G ||
		c.Color.B != next.Color.B ||
		c.Value != next.Value
}

// PutBytes writes the 6-byte record for c into b.
func (c Cell) PutBytes(b []byte) {
	_ = b[CellSize-1]
	b[0] = byte(c.State)
	b[1] = c.Value
	b[2] = c.Color.R
	b[3] = c.Color.G
	b[4] = c.Color.B
	b[5] = c.Color.A
}

// CellFromBytes decodes a 6-byte record.
func CellFromBytes(b []byte) (Cell, error) {
	if len(b) < CellSize {
		return Cell{}, ErrStreamLength
	}
	s := State(b[0])
	if !s.Valid() {
		return Cell{}, fmt.Errorf("%w: %d", ErrBadState, b[0])
	}
	return Cell{
		State: s,
		Value: b[1],
		Color: RGBA8{R: b[2], G: b[3], B: b[4], A: b[5]},
	}, nil
}
