package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"voxelmesh.ai/internal/protocol"
	"voxelmesh.ai/internal/volume"
)

func (e *Engine) handleEdit(tick uint64, req EditRequest) {
	v := e.viewers[req.SessionID]
	if v == nil {
		return
	}
	var ackFor, op, code, msg string
	switch {
	case req.Edit != nil:
		ackFor, op = req.Edit.EditID, req.Edit.Op
		if !v.edits {
			code, msg = protocol.ErrReadOnly, "session did not request edits"
			break
		}
		code, msg = e.applyEdit(req.Edit)
	case req.Select != nil:
		ackFor, op = req.Select.EditID, protocol.TypeSelectFrame
		if !v.edits {
			code, msg = protocol.ErrReadOnly, "session did not request edits"
			break
		}
		code, msg = e.selectFrame(req.Select)
	default:
		return
	}
	if e.editLog != nil {
		if err := e.editLog.WriteEdit(EditLogEntry{
			Tick:      tick,
			SessionID: v.id,
			EditID:    ackFor,
			Op:        op,
			Frame:     e.seq.CurrentIndex(),
			Accepted:  code == "",
			Code:      code,
		}); err != nil {
			e.log.Printf("edit log: %v", err)
		}
	}
	ack := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          ackFor,
		Accepted:        code == "",
		Code:            code,
		Message:         msg,
		ServerTick:      tick,
	}
	b, err := json.Marshal(ack)
	if err != nil {
		return
	}
	if !trySend(v.out, b) {
		e.log.Printf("viewer %s outbox full; drop ack for %s", v.id, ackFor)
	}
}

// applyEdit mutates the current frame. Structural edits rotate every frame so the
// sequence keeps one size.
func (e *Engine) applyEdit(m *protocol.EditMsg) (code, msg string) {
	cur := e.seq.Current()
	switch m.Op {
	case protocol.EditSet:
		if m.Cell == nil {
			return protocol.ErrBadRequest, "missing cell"
		}
		c, err := m.Cell.ToCell()
		if err != nil {
			return protocol.ErrBadRequest, err.Error()
		}
		if !cur.Block().InBounds(m.Pos[0], m.Pos[1], m.Pos[2]) {
			return protocol.ErrOutOfRange, fmt.Sprintf("pos %v outside volume %v", m.Pos, cur.Block().Dims())
		}
		cur.SetVoxel(m.Pos[0], m.Pos[1], m.Pos[2], c)
	case protocol.EditFill:
		if m.Cell == nil {
			return protocol.ErrBadRequest, "missing cell"
		}
		c, err := m.Cell.ToCell()
		if err != nil {
			return protocol.ErrBadRequest, err.Error()
		}
		lo, size, ok := clip(m.Pos, m.Size, cur.Block().Dims())
		if !ok {
			return protocol.ErrOutOfRange, fmt.Sprintf("region %v+%v outside volume %v", m.Pos, m.Size, cur.Block().Dims())
		}
		cur.FillRegion(lo, size, c)
	case protocol.EditRotate:
		if m.Quarters%4 != 0 {
			e.seq.Rotate(m.Quarters)
		}
	case protocol.EditScroll:
		if m.Offset != [3]int{} {
			cur.Scroll(m.Offset[0], m.Offset[1], m.Offset[2], m.Wrap)
		}
	default:
		return protocol.ErrBadRequest, fmt.Sprintf("unknown op %q", m.Op)
	}
	return "", ""
}

func (e *Engine) selectFrame(m *protocol.SelectFrameMsg) (code, msg string) {
	target := m.Frame
	if m.Step != 0 {
		n := e.seq.Len()
		target = ((e.seq.CurrentIndex()+m.Step)%n + n) % n
	}
	if err := e.seq.SetCurrent(target); err != nil {
		if errors.Is(err, volume.ErrFrameIndex) {
			return protocol.ErrOutOfRange, err.Error()
		}
		return protocol.ErrInternal, err.Error()
	}
	return "", ""
}

// clip intersects [at, at+size) with the volume and reports false when nothing is left.
func clip(at, size, dims [3]int) (lo, n [3]int, ok bool) {
	for a := 0; a < 3; a++ {
		lo[a] = max(at[a], 0)
		hi := min(at[a]+size[a], dims[a])
		if size[a] <= 0 || hi <= lo[a] {
			return lo, n, false
		}
		n[a] = hi - lo[a]
	}
	return lo, n, true
}
