// Package engine runs the host loop around a volume.Sequence. A single goroutine owns
// the sequence: it applies viewer edits, feeds the current frame's dirty queue to the
// generator, and streams finished chunk meshes to connected viewers.
package engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"voxelmesh.ai/internal/frame"
	"voxelmesh.ai/internal/metrics"
	"voxelmesh.ai/internal/persistence/snapshot"
	"voxelmesh.ai/internal/protocol"
	"voxelmesh.ai/internal/volume"
)

type Config struct {
	VolumeID         string
	TickRateHz       int
	MaxChunksPerTick int

	// SnapshotEveryTicks hands a snapshot to the sink every N ticks; 0 disables.
	SnapshotEveryTicks int

	Size      [3]int
	ChunkSize [3]int
	Frames    int

	Grid frame.Options
}

// Index receives one record per extractor run. Implementations must not block.
type Index interface {
	RecordGeneration(frameIndex int, g frame.Generation)
}

// EditLogEntry records one EDIT or SELECT_FRAME request after it was handled.
type EditLogEntry struct {
	Tick      uint64 `json:"tick"`
	SessionID string `json:"session_id"`
	EditID    string `json:"edit_id"`
	Op        string `json:"op"`
	Frame     int    `json:"frame"`
	Accepted  bool   `json:"accepted"`
	Code      string `json:"code,omitempty"`
}

type EditLogger interface {
	WriteEdit(entry EditLogEntry) error
}

type JoinRequest struct {
	SessionID        string
	Name             string
	Edits            bool
	MaxMeshesPerTick int
	Out              chan []byte
	Resp             chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

// EditRequest carries exactly one of Edit or Select.
type EditRequest struct {
	SessionID string
	Edit      *protocol.EditMsg
	Select    *protocol.SelectFrameMsg
}

type viewer struct {
	id        string
	name      string
	out       chan []byte
	edits     bool
	maxMeshes int

	pending   *frame.Queue
	needFrame bool
}

// Engine is a single-threaded host around a frame sequence.
// All sequence state must be accessed only from the loop goroutine.
type Engine struct {
	cfg Config
	log *log.Logger
	idx Index

	seq *volume.Sequence

	tick atomic.Uint64

	viewers map[string]*viewer

	// Encoded CHUNK_MESH of every non-empty chunk of the shown frame.
	cache      map[frame.ChunkKey][]byte
	shown      *frame.Grid
	shownEpoch uint64
	shownIndex int

	join   chan JoinRequest
	leave  chan string
	inbox  chan EditRequest
	stop   chan struct{}
	closed atomic.Bool

	snapshotSink chan<- snapshot.SnapshotV1
	editLog      EditLogger
}

func newEngine(cfg Config, idx Index, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 10
	}
	if cfg.Frames <= 0 {
		cfg.Frames = 1
	}
	return &Engine{
		cfg:     cfg,
		log:     logger,
		idx:     idx,
		viewers: map[string]*viewer{},
		cache:   map[frame.ChunkKey][]byte{},
		join:    make(chan JoinRequest, 64),
		leave:   make(chan string, 64),
		inbox:   make(chan EditRequest, 1024),
		stop:    make(chan struct{}),
	}
}

// New builds an engine over cfg.Frames empty frames. Every frame is generated before
// New returns.
func New(cfg Config, idx Index, logger *log.Logger) *Engine {
	e := newEngine(cfg, idx, logger)
	e.seq = volume.New(e.cfg.Size, e.cfg.ChunkSize, e.gridOptions())
	for i := 1; i < e.cfg.Frames; i++ {
		e.seq.AddFrame(false)
	}
	return e
}

// Restore builds an engine from a snapshot. Volume contents and the current frame come
// from snap; chunk size and meshing come from cfg.
func Restore(cfg Config, snap snapshot.SnapshotV1, idx Index, logger *log.Logger) (*Engine, error) {
	blocks, err := snap.FrameBlocks()
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	e := newEngine(cfg, idx, logger)
	if e.cfg.ChunkSize == [3]int{} {
		e.cfg.ChunkSize = snap.ChunkSize
	}
	seq, err := volume.FromBlocks(blocks, e.cfg.ChunkSize, snap.Current, e.gridOptions())
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	e.seq = seq
	e.cfg.Size = seq.Size()
	e.cfg.Frames = seq.Len()
	e.tick.Store(snap.Header.Tick)
	return e, nil
}

// gridOptions wraps the caller's generation hook with metrics and the index. Records
// carry the frame the run belonged to; runs of removed frames are not indexed.
func (e *Engine) gridOptions() frame.Options {
	opts := e.cfg.Grid
	if opts.Logger == nil {
		opts.Logger = e.log
	}
	next := opts.OnGenerated
	opts.OnGenerated = func(g frame.Generation) {
		metrics.ObserveGeneration(g)
		if e.idx != nil && g.Frame >= 0 {
			e.idx.RecordGeneration(g.Frame, g)
		}
		if next != nil {
			next(g)
		}
	}
	return opts
}

func (e *Engine) Join() chan<- JoinRequest  { return e.join }
func (e *Engine) Leave() chan<- string      { return e.leave }
func (e *Engine) Inbox() chan<- EditRequest { return e.inbox }

func (e *Engine) CurrentTick() uint64 { return e.tick.Load() }

func (e *Engine) VolumeID() string { return e.cfg.VolumeID }

func (e *Engine) TickRateHz() int { return e.cfg.TickRateHz }

// Sequence exposes the owned sequence. Callers must not touch it while Run is active.
func (e *Engine) Sequence() *volume.Sequence { return e.seq }

// SetSnapshotSink sets where periodic snapshots go. Sends never block the loop.
func (e *Engine) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { e.snapshotSink = ch }

func (e *Engine) SetEditLogger(l EditLogger) { e.editLog = l }

func (e *Engine) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(e.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingEdits []EditRequest

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stop:
			return nil
		case req := <-e.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-e.leave:
			pendingLeaves = append(pendingLeaves, id)
		case req := <-e.inbox:
			pendingEdits = append(pendingEdits, req)
		case <-ticker.C:
			e.step(pendingJoins, pendingLeaves, pendingEdits)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingEdits = pendingEdits[:0]
		}
	}
}

func (e *Engine) Stop() {
	if e.closed.CompareAndSwap(false, true) {
		close(e.stop)
	}
}

// StepOnce advances a single tick with the same ordering as Run. It is meant for tools
// and tests that drive the engine without the loop goroutine.
func (e *Engine) StepOnce(joins []JoinRequest, leaves []string, edits []EditRequest) uint64 {
	tick := e.tick.Load()
	e.step(joins, leaves, edits)
	return tick
}

// Snapshot captures every frame. It must not be called while Run is active.
func (e *Engine) Snapshot() snapshot.SnapshotV1 {
	return e.snapshotAt(e.tick.Load())
}

func (e *Engine) snapshotAt(tick uint64) snapshot.SnapshotV1 {
	cur := e.seq.Current()
	p := cur.Params()
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:  snapshot.Version,
			VolumeID: e.cfg.VolumeID,
			Tick:     tick,
		},
		ChunkSize:   e.seq.ChunkSize(),
		Current:     e.seq.CurrentIndex(),
		Algorithm:   cur.Algorithm().String(),
		CellSize:    p.CellSize,
		Overlap:     p.Overlap,
		SelfShade:   p.SelfShade,
		ShadeSource: p.Source.String(),
	}
	snap.SetFrames(e.seq.Blocks())
	return snap
}
