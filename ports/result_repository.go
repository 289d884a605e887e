package ports

import (
	"context"

	"echidna/domain/core"
	"echidna/domain/limit"
)

// ResultRepository stores limit-setting runs and everything they produce
type ResultRepository interface {
	CreateRun(ctx context.Context, run *limit.Run) error
	SaveLimit(ctx context.Context, runID core.RunID, l limit.Limit) error
	SaveConfig(ctx context.Context, runID core.RunID, dump limit.ConfigDump) error
	SaveAnalyser(ctx context.Context, runID core.RunID, dump limit.AnalyserDump) error

	GetRun(ctx context.Context, runID core.RunID) (*limit.Run, error)
	ListRuns(ctx context.Context, max int) ([]*limit.Run, error)
	ListLimits(ctx context.Context, runID core.RunID) ([]limit.Limit, error)
	ListConfigs(ctx context.Context, runID core.RunID) ([]limit.ConfigDump, error)
	ListAnalysers(ctx context.Context, runID core.RunID) ([]limit.AnalyserDump, error)
}
