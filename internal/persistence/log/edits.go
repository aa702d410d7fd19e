package log

import (
	"path/filepath"

	"voxelmesh.ai/internal/engine"
)

// EditLogger journals handled viewer edits under <volumeDir>/edits.
type EditLogger struct{ w *JSONLZstdWriter }

func NewEditLogger(volumeDir string, opts WriterOptions) *EditLogger {
	return &EditLogger{w: NewJSONLZstdWriter(filepath.Join(volumeDir, "edits"), "edits", opts)}
}

func (l *EditLogger) WriteEdit(entry engine.EditLogEntry) error { return l.w.Write(entry) }
func (l *EditLogger) Close() error                              { return l.w.Close() }
