package ports

import (
	"time"

	"echidna/domain/core"
)

// Progress stages of a limit run
const (
	StageStarted     = "started"
	StageLimit       = "limit"
	StageLimitFailed = "limit_failed"
	StageOutputs     = "outputs"
	StageFinished    = "finished"
	StageError       = "error"
)

// ProgressEvent reports one step of a limit run
type ProgressEvent struct {
	RunID     core.RunID `json:"run_id"`
	Stage     string     `json:"stage"`
	Mode      core.Mode  `json:"mode,omitempty"`
	Signal    string     `json:"signal,omitempty"`
	Progress  float64    `json:"progress"`
	Message   string     `json:"message,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ProgressReporter receives progress events. Implementations must not block.
type ProgressReporter interface {
	Report(event ProgressEvent)
}

// NopProgress discards every event
type NopProgress struct{}

func (NopProgress) Report(ProgressEvent) {}
