package voxel

import (
	"bufio"
	"fmt"
	"io"
)

// ToByteStream encodes every cell as a 6-byte record, x innermost, then y, then z.
func ToByteStream(b *Block) []byte {
	out := make([]byte, len(b.cells)*CellSize)
	for i, c := range b.cells {
		c.PutBytes(out[i*CellSize:])
	}
	return out
}

// FromByteStream decodes a record stream produced by ToByteStream into a block of the
// given size.
func FromByteStream(data []byte, sx, sy, sz int) (*Block, error) {
	b := NewBlock(sx, sy, sz)
	if len(data) != len(b.cells)*CellSize {
		return nil, fmt.Errorf("%w: got %d bytes want %d", ErrStreamLength, len(data), len(b.cells)*CellSize)
	}
	for i := range b.cells {
		c, err := CellFromBytes(data[i*CellSize:])
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		b.cells[i] = c
	}
	return b, nil
}

// WriteStream writes the record stream of b to w.
func WriteStream(w io.Writer, b *Block) error {
	bw := bufio.NewWriterSize(w, 64*1024)
	var rec [CellSize]byte
	for _, c := range b.cells {
		c.PutBytes(rec[:])
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadStream reads exactly sx*sy*sz records from r.
func ReadStream(r io.Reader, sx, sy, sz int) (*Block, error) {
	b := NewBlock(sx, sy, sz)
	var rec [CellSize]byte
	for i := range b.cells {
		if _, err := io.ReadFull(r, rec[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("%w: stream ended at cell %d of %d", ErrStreamLength, i, len(b.cells))
			}
			return nil, err
		}
		c, err := CellFromBytes(rec[:])
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		b.cells[i] = c
	}
	return b, nil
}
