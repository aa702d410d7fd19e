package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Layout selects how often a JSONL stream starts a new file.
type Layout string

const (
	LayoutHourly Layout = "hourly"
	LayoutDaily  Layout = "daily"
)

func (l Layout) format() string {
	if l == LayoutDaily {
		return "2006-01-02"
	}
	return "2006-01-02-15"
}

type WriterOptions struct {
	Layout Layout
	// OnClose is called with the path of every file after it is closed.
	OnClose func(path string)
	Now     func() time.Time
}

// JSONLZstdWriter appends one JSON value per line to a zstd stream under baseDir,
// starting a new file whenever the layout's time bucket changes.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	opts    WriterOptions

	mu     sync.Mutex
	bucket string
	path   string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string, opts WriterOptions) *JSONLZstdWriter {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &JSONLZstdWriter{baseDir: baseDir, prefix: prefix, opts: opts}
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	bucket := w.opts.Now().UTC().Format(w.opts.Layout.format())
	if bucket != w.bucket || w.w == nil {
		if err := w.rotateLocked(bucket); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) rotateLocked(bucket string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, bucket))
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.enc, w.path, w.bucket = f, enc, path, bucket
	w.w = bufio.NewWriterSize(enc, 64*1024)
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	if w.f == nil {
		return nil
	}
	var err error
	if w.w != nil {
		err = w.w.Flush()
	}
	if cerr := w.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	path := w.path
	w.f, w.enc, w.w, w.path = nil, nil, nil, ""
	if w.opts.OnClose != nil {
		w.opts.OnClose(path)
	}
	return err
}
