package testkit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"echidna/domain/core"
	"echidna/domain/limit"
	"echidna/domain/spectra"
	"echidna/ports"
)

// InMemorySpectraRepository implements SpectraRepository with in-memory storage
type InMemorySpectraRepository struct {
	spectra map[string]*spectra.Spectra
	updated map[string]time.Time
	mu      sync.RWMutex
}

func NewInMemorySpectraRepository() *InMemorySpectraRepository {
	return &InMemorySpectraRepository{
		spectra: make(map[string]*spectra.Spectra),
		updated: make(map[string]time.Time),
	}
}

func (r *InMemorySpectraRepository) Save(ctx context.Context, s *spectra.Spectra) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.spectra[s.Name] = s.Copy()
	r.updated[s.Name] = time.Now()
	return nil
}

func (r *InMemorySpectraRepository) Get(ctx context.Context, name core.SpectraName) (*spectra.Spectra, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.spectra[name.String()]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrSpectraNotFound, name)
	}
	return s.Copy(), nil
}

func (r *InMemorySpectraRepository) List(ctx context.Context) ([]ports.SpectraInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ports.SpectraInfo, 0, len(r.spectra))
	for name, s := range r.spectra {
		infos = append(infos, ports.SpectraInfo{
			Name:      name,
			NumDecays: s.NumDecays,
			RawEvents: s.RawEvents,
			Events:    s.Sum(),
			UpdatedAt: r.updated[name],
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (r *InMemorySpectraRepository) Delete(ctx context.Context, name core.SpectraName) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.spectra[name.String()]; !exists {
		return fmt.Errorf("%w: %s", core.ErrSpectraNotFound, name)
	}
	delete(r.spectra, name.String())
	delete(r.updated, name.String())
	return nil
}

// InMemoryResultRepository implements ResultRepository with in-memory storage
type InMemoryResultRepository struct {
	runs      map[core.RunID]*limit.Run
	limits    map[core.RunID][]limit.Limit
	configs   map[core.RunID][]limit.ConfigDump
	analysers map[core.RunID][]limit.AnalyserDump
	mu        sync.RWMutex
}

func NewInMemoryResultRepository() *InMemoryResultRepository {
	return &InMemoryResultRepository{
		runs:      make(map[core.RunID]*limit.Run),
		limits:    make(map[core.RunID][]limit.Limit),
		configs:   make(map[core.RunID][]limit.ConfigDump),
		analysers: make(map[core.RunID][]limit.AnalyserDump),
	}
}

func (r *InMemoryResultRepository) CreateRun(ctx context.Context, run *limit.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	stored := *run
	stored.Limits = nil
	r.runs[run.ID] = &stored
	return nil
}

func (r *InMemoryResultRepository) SaveLimit(ctx context.Context, runID core.RunID, l limit.Limit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[runID]; !exists {
		return fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
	}
	for i, existing := range r.limits[runID] {
		if existing.Signal == l.Signal && existing.Mode == l.Mode {
			r.limits[runID][i] = l
			return nil
		}
	}
	r.limits[runID] = append(r.limits[runID], l)
	return nil
}

func (r *InMemoryResultRepository) SaveConfig(ctx context.Context, runID core.RunID, dump limit.ConfigDump) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[runID]; !exists {
		return fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
	}
	r.configs[runID] = append(r.configs[runID], dump)
	return nil
}

func (r *InMemoryResultRepository) SaveAnalyser(ctx context.Context, runID core.RunID, dump limit.AnalyserDump) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[runID]; !exists {
		return fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
	}
	r.analysers[runID] = append(r.analysers[runID], dump)
	return nil
}

func (r *InMemoryResultRepository) GetRun(ctx context.Context, runID core.RunID) (*limit.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, exists := r.runs[runID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
	}
	out := *run
	out.Limits = r.sortedLimits(runID)
	return &out, nil
}

func (r *InMemoryResultRepository) ListRuns(ctx context.Context, max int) ([]*limit.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]*limit.Run, 0, len(r.runs))
	for _, run := range r.runs {
		out := *run
		runs = append(runs, &out)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	if max > 0 && len(runs) > max {
		runs = runs[:max]
	}
	return runs, nil
}

func (r *InMemoryResultRepository) ListLimits(ctx context.Context, runID core.RunID) ([]limit.Limit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedLimits(runID), nil
}

func (r *InMemoryResultRepository) ListConfigs(ctx context.Context, runID core.RunID) ([]limit.ConfigDump, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]limit.ConfigDump(nil), r.configs[runID]...), nil
}

func (r *InMemoryResultRepository) ListAnalysers(ctx context.Context, runID core.RunID) ([]limit.AnalyserDump, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]limit.AnalyserDump(nil), r.analysers[runID]...), nil
}

// sortedLimits orders limits by mode then signal, as the sql store does
func (r *InMemoryResultRepository) sortedLimits(runID core.RunID) []limit.Limit {
	limits := append([]limit.Limit(nil), r.limits[runID]...)
	sort.Slice(limits, func(i, j int) bool {
		if limits[i].Mode != limits[j].Mode {
			return limits[i].Mode < limits[j].Mode
		}
		return limits[i].Signal < limits[j].Signal
	})
	return limits
}

var (
	_ ports.SpectraRepository = (*InMemorySpectraRepository)(nil)
	_ ports.ResultRepository  = (*InMemoryResultRepository)(nil)
)
