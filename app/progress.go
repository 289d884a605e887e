package app

import (
	"sync"
	"time"

	"echidna/domain/core"
	"echidna/ports"
)

// progressTracker counts finished limits of a run
type progressTracker struct {
	mu       sync.Mutex
	reporter ports.ProgressReporter
	runID    core.RunID
	total    int
	finished int
}

func newProgressTracker(reporter ports.ProgressReporter, runID core.RunID, total int) *progressTracker {
	return &progressTracker{reporter: reporter, runID: runID, total: total}
}

func (t *progressTracker) done(mode core.Mode, signal string) {
	t.step(ports.StageLimit, mode, signal, "")
}

func (t *progressTracker) failed(mode core.Mode, signal, reason string) {
	t.step(ports.StageLimitFailed, mode, signal, reason)
}

func (t *progressTracker) step(stage string, mode core.Mode, signal, message string) {
	t.mu.Lock()
	t.finished++
	progress := 1.0
	if t.total > 0 {
		progress = float64(t.finished) / float64(t.total)
	}
	t.mu.Unlock()

	t.reporter.Report(ports.ProgressEvent{
		RunID:     t.runID,
		Stage:     stage,
		Mode:      mode,
		Signal:    signal,
		Progress:  progress,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}
