package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelmesh.ai/internal/config"
	"voxelmesh.ai/internal/frame"
	"voxelmesh.ai/internal/persistence/snapshot"
)

// SQLiteIndex is a queryable secondary index of snapshots and chunk generations.
// Writes are queued to a single writer goroutine and dropped when it falls behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropGeneration atomic.Uint64
	dropSnapshot   atomic.Uint64
}

type reqKind int

const (
	reqGeneration reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	generation generationRow
	snapshot   snapshotRow
}

// Stats reports queue pressure on the writer goroutine.
type Stats struct {
	QueueDepth          int
	QueueCapacity       int
	DropGenerationTotal uint64
	DropSnapshotTotal   uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Bulk regenerations report every chunk at once.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			volume_id TEXT NOT NULL,
			frames INTEGER NOT NULL,
			sx INTEGER NOT NULL,
			sy INTEGER NOT NULL,
			sz INTEGER NOT NULL,
			algorithm TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS generations (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			frame INTEGER NOT NULL,
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			algorithm TEXT NOT NULL,
			vertices INTEGER NOT NULL,
			triangles INTEGER NOT NULL,
			fallbacks INTEGER NOT NULL,
			digest TEXT NOT NULL,
			duration_us INTEGER NOT NULL,
			immediate INTEGER NOT NULL,
			superseded INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_generations_chunk ON generations(frame, cx, cy, cz, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains queued writes and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:          len(s.ch),
		QueueCapacity:       cap(s.ch),
		DropGenerationTotal: s.dropGeneration.Load(),
		DropSnapshotTotal:   s.dropSnapshot.Load(),
	}
}

// RecordGeneration queues one extractor run of chunk g.Key in frame frameIndex.
// Safe to call from worker goroutines.
func (s *SQLiteIndex) RecordGeneration(frameIndex int, g frame.Generation) {
	if s == nil || s.closed.Load() {
		return
	}
	r := newGenerationRow(frameIndex, g)
	select {
	case s.ch <- req{kind: reqGeneration, generation: r}:
	default:
		s.dropGeneration.Add(1)
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := newSnapshotRow(path, snap)
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// UpsertConfig stores the configuration actually applied, synchronously.
func (s *SQLiteIndex) UpsertConfig(cfg config.Config) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"mesher", hex.EncodeToString(sum[:]), string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

// SnapshotRecord is one row of the snapshots table.
type SnapshotRecord struct {
	Tick     uint64
	Path     string
	VolumeID string
	Frames   int
}

// LatestSnapshot returns the snapshot with the highest tick, if any.
func (s *SQLiteIndex) LatestSnapshot(ctx context.Context) (SnapshotRecord, bool, error) {
	var r SnapshotRecord
	var tick int64
	err := s.db.QueryRowContext(ctx,
		`SELECT tick, path, volume_id, frames FROM snapshots ORDER BY tick DESC LIMIT 1`,
	).Scan(&tick, &r.Path, &r.VolumeID, &r.Frames)
	if errors.Is(err, sql.ErrNoRows) {
		return r, false, nil
	}
	if err != nil {
		return r, false, err
	}
	r.Tick = uint64(tick)
	return r, true, nil
}

// GenerationRecord is one row of the generations table.
type GenerationRecord struct {
	Seq        int64
	Algorithm  string
	Triangles  int
	Fallbacks  int
	Digest     string
	Superseded bool
}

// ChunkHistory lists generations of one chunk, oldest first.
func (s *SQLiteIndex) ChunkHistory(ctx context.Context, frameIndex int, k frame.ChunkKey) ([]GenerationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, algorithm, triangles, fallbacks, digest, superseded FROM generations
		 WHERE frame = ? AND cx = ? AND cy = ? AND cz = ? ORDER BY seq`,
		frameIndex, k.CX, k.CY, k.CZ)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GenerationRecord
	for rows.Next() {
		var r GenerationRecord
		if err := rows.Scan(&r.Seq, &r.Algorithm, &r.Triangles, &r.Fallbacks, &r.Digest, &r.Superseded); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertGeneration, _ := s.db.Prepare(`INSERT INTO generations(frame,cx,cy,cz,algorithm,vertices,triangles,fallbacks,digest,duration_us,immediate,superseded,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,volume_id,frames,sx,sy,sz,algorithm,recorded_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertGeneration != nil {
			_ = insertGeneration.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	// An idle writer still commits within commitMaxWait.
	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	for {
		var r req
		select {
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		case <-ticker.C:
			flushIfNeeded()
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqGeneration:
			g := r.generation
			if insertGeneration == nil {
				break
			}
			if _, err := tx.Stmt(insertGeneration).Exec(
				g.Frame, g.CX, g.CY, g.CZ,
				g.Algorithm,
				g.Vertices,
				g.Triangles,
				g.Fallbacks,
				g.Digest,
				g.DurationUS,
				g.Immediate,
				g.Superseded,
				g.RecordedAt,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot == nil {
				break
			}
			if _, err := tx.Stmt(insertSnapshot).Exec(
				int64(sn.Tick),
				sn.Path,
				sn.VolumeID,
				sn.Frames,
				sn.SX, sn.SY, sn.SZ,
				sn.Algorithm,
				sn.RecordedAt,
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}
}
