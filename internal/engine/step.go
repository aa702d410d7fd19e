package engine

import (
	"encoding/json"
	"time"

	"voxelmesh.ai/internal/frame"
	"voxelmesh.ai/internal/metrics"
	"voxelmesh.ai/internal/protocol"
)

func (e *Engine) step(joins []JoinRequest, leaves []string, edits []EditRequest) {
	began := time.Now()
	tick := e.tick.Load()

	for _, id := range leaves {
		e.handleLeave(id)
	}
	for _, req := range joins {
		e.handleJoin(req)
	}
	for _, req := range edits {
		e.handleEdit(tick, req)
	}

	e.syncFrame()
	cur := e.shown
	cur.ProcessDirty(false, e.cfg.MaxChunksPerTick)
	e.collect(tick)
	e.flush(tick)

	metrics.ObserveTick(time.Since(began), cur.DirtyLen(), e.cfg.Grid.Scheduler.InFlight())

	if e.snapshotSink != nil && e.cfg.SnapshotEveryTicks > 0 && tick > 0 && tick%uint64(e.cfg.SnapshotEveryTicks) == 0 {
		select {
		case e.snapshotSink <- e.snapshotAt(tick):
		default:
			e.log.Printf("snapshot sink full; skip tick=%d", tick)
		}
	}
	e.tick.Add(1)
}

func (e *Engine) handleJoin(req JoinRequest) {
	v := &viewer{
		id:        req.SessionID,
		name:      req.Name,
		out:       req.Out,
		edits:     req.Edits,
		maxMeshes: req.MaxMeshesPerTick,
		pending:   frame.NewQueue(),
		needFrame: true,
	}
	if old, ok := e.viewers[v.id]; ok && old != nil {
		e.log.Printf("viewer %s rejoined", v.id)
	} else {
		metrics.ViewerConnected()
	}
	e.viewers[v.id] = v
	if e.shown != nil {
		e.queueCached(v)
	}
	if req.Resp != nil {
		req.Resp <- JoinResponse{Welcome: e.welcome(v.id)}
	}
}

func (e *Engine) handleLeave(id string) {
	if _, ok := e.viewers[id]; !ok {
		return
	}
	delete(e.viewers, id)
	metrics.ViewerDisconnected()
}

func (e *Engine) welcome(sessionID string) protocol.WelcomeMsg {
	cur := e.seq.Current()
	p := cur.Params()
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		VolumeID:        e.cfg.VolumeID,
		Params: protocol.VolumeParams{
			TickRateHz:  e.cfg.TickRateHz,
			CellSize:    p.CellSize,
			Overlap:     p.Overlap,
			Algorithm:   cur.Algorithm().String(),
			SelfShade:   p.SelfShade,
			ShadeSource: p.Source.String(),
		},
	}
}

// queueCached schedules every cached mesh of the shown frame for v, in grid order.
func (e *Engine) queueCached(v *viewer) {
	v.pending.Clear()
	for _, k := range e.shown.Keys() {
		if _, ok := e.cache[k]; ok {
			v.pending.Push(k)
		}
	}
}

// syncFrame notices a change of the current frame or of its chunk partition. Viewers
// then get a FRAME message and the full set of meshes again.
func (e *Engine) syncFrame() {
	cur := e.seq.Current()
	idx := e.seq.CurrentIndex()
	if cur == e.shown && cur.Epoch() == e.shownEpoch && idx == e.shownIndex {
		return
	}
	switched := cur != e.shown
	rebuilt := switched || cur.Epoch() != e.shownEpoch
	e.shown, e.shownEpoch, e.shownIndex = cur, cur.Epoch(), idx

	if rebuilt {
		clear(e.cache)
	}
	for _, v := range e.viewers {
		v.needFrame = true
		e.queueCached(v)
	}
	if !switched {
		return
	}
	// Chunks consumed while this frame was shown before need fresh buffers.
	for _, k := range cur.Keys() {
		if st, ok := cur.Chunk(k); ok && st.Status() == frame.Idle {
			cur.MarkDirty(k)
		}
	}
}

// collect encodes the shown frame's Ready chunks, queues them for every viewer and
// returns the chunks to Idle.
func (e *Engine) collect(tick uint64) {
	cur := e.shown
	src := cur.Params().Source
	for _, rc := range cur.ReadyChunks() {
		k := rc.Key
		if rc.Buffers == nil || rc.Buffers.Empty() {
			_, had := e.cache[k]
			delete(e.cache, k)
			if had {
				e.queueAll(k)
			}
			cur.Acknowledge(k)
			continue
		}
		msg := protocol.NewChunkMesh(tick, e.shownIndex, [3]int{k.CX, k.CY, k.CZ}, src, rc.Buffers)
		b, err := json.Marshal(msg)
		if err != nil {
			e.log.Printf("encode chunk %d,%d,%d: %v", k.CX, k.CY, k.CZ, err)
			continue
		}
		e.cache[k] = b
		e.queueAll(k)
		cur.Acknowledge(k)
	}
}

func (e *Engine) queueAll(k frame.ChunkKey) {
	for _, v := range e.viewers {
		v.pending.Push(k)
	}
}

// flush sends each viewer its FRAME, if owed, and then up to its per-tick budget of
// meshes. A full outbox leaves the rest for the next tick.
func (e *Engine) flush(tick uint64) {
	var frameMsg []byte
	sent := 0
	for _, v := range e.viewers {
		if v.needFrame {
			if frameMsg == nil {
				b, err := e.encodeFrame(tick)
				if err != nil {
					e.log.Printf("encode frame %d: %v", e.shownIndex, err)
					break
				}
				frameMsg = b
			}
			if !trySend(v.out, frameMsg) {
				continue
			}
			v.needFrame = false
		}
		n := 0
		for v.maxMeshes <= 0 || n < v.maxMeshes {
			k, ok := v.pending.Pop()
			if !ok {
				break
			}
			b, ok := e.cache[k]
			if !ok {
				var err error
				if b, err = e.encodeClear(tick, k); err != nil {
					e.log.Printf("encode clear %d,%d,%d: %v", k.CX, k.CY, k.CZ, err)
					continue
				}
			}
			if !trySend(v.out, b) {
				v.pending.PushFront(k)
				break
			}
			n++
		}
		sent += n
	}
	if sent > 0 {
		metrics.MeshesSent(sent)
	}
}

func (e *Engine) encodeFrame(tick uint64) ([]byte, error) {
	cur := e.shown
	return json.Marshal(protocol.FrameMsg{
		Type:            protocol.TypeFrame,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Frame:           e.shownIndex,
		Frames:          e.seq.Len(),
		Epoch:           cur.Epoch(),
		VolumeSize:      cur.Block().Dims(),
		ChunkSize:       cur.ChunkSize(),
		ChunkCounts:     cur.ChunkCounts(),
	})
}

func (e *Engine) encodeClear(tick uint64, k frame.ChunkKey) ([]byte, error) {
	msg := protocol.NewChunkMesh(tick, e.shownIndex, [3]int{k.CX, k.CY, k.CZ}, e.shown.Params().Source, nil)
	return json.Marshal(msg)
}

func trySend(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}
