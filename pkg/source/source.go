package source

import (
	"context"
	"strings"
	"sync"

	errs "describer/pkg/errors"
	"describer/pkg/logger"
	"describer/pkg/models"
)

// Source lists candidate images
type Source interface {
	Name() string
	NextBatch(ctx context.Context) ([]models.Candidate, error)
}

// Seen reports candidate ids used by earlier runs
type Seen interface {
	Contains(id string) bool
}

// Filter drops candidates whose extension is not allowed or whose id was used before
type Filter struct {
	allowed map[string]bool
	seen    Seen
	logger  logger.Logger
}

// NewFilter builds a filter. Extensions are matched case-insensitively
// without the leading dot; seen may be nil.
func NewFilter(allowed []string, seen Seen, log logger.Logger) *Filter {
	if log == nil {
		log = logger.NewNopLogger()
	}
	f := &Filter{allowed: make(map[string]bool, len(allowed)), seen: seen, logger: log}
	for _, ext := range allowed {
		f.allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return f
}

// Allowed reports whether c passes both checks
func (f *Filter) Allowed(c models.Candidate) bool {
	if ext := c.Extension(); !f.allowed[ext] {
		f.logger.DebugWithFields("skipping candidate with disallowed extension", map[string]interface{}{
			"candidate_id": c.ID,
			"extension":    ext,
		})
		return false
	}
	if f.seen != nil && f.seen.Contains(c.ID) {
		f.logger.DebugWithFields("skipping candidate already in history", map[string]interface{}{
			"candidate_id": c.ID,
		})
		return false
	}
	return true
}

// Apply keeps the allowed candidates, preserving order
func (f *Filter) Apply(batch []models.Candidate) []models.Candidate {
	out := make([]models.Candidate, 0, len(batch))
	for _, c := range batch {
		if f.Allowed(c) {
			out = append(out, c)
		}
	}
	return out
}

// Supplier hands out filtered candidates one at a time. Each candidate is
// handed out at most once per run. When the queue runs dry the source is asked
// for another batch; a batch with nothing new ends the run with a
// NoCandidatesError.
type Supplier struct {
	source Source
	filter *Filter
	queue  []models.Candidate
	tried  map[string]bool
	mu     sync.Mutex
	logger logger.Logger
}

// NewSupplier wraps src
func NewSupplier(src Source, filter *Filter, log logger.Logger) *Supplier {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Supplier{
		source: src,
		filter: filter,
		tried:  make(map[string]bool),
		logger: log.WithField("source", src.Name()),
	}
}

// Next returns the next untried candidate
func (s *Supplier) Next(ctx context.Context) (models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		if err := s.refill(ctx); err != nil {
			return models.Candidate{}, err
		}
	}

	c := s.queue[0]
	s.queue = s.queue[1:]
	s.tried[c.ID] = true
	return c, nil
}

// Tried returns how many candidates were handed out
func (s *Supplier) Tried() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tried)
}

func (s *Supplier) refill(ctx context.Context) error {
	batch, err := s.source.NextBatch(ctx)
	if err != nil {
		return err
	}

	fresh := make([]models.Candidate, 0, len(batch))
	for _, c := range s.filter.Apply(batch) {
		if !s.tried[c.ID] {
			fresh = append(fresh, c)
		}
	}

	s.logger.DebugWithFields("fetched candidates", map[string]interface{}{
		"fetched": len(batch),
		"usable":  len(fresh),
	})

	if len(fresh) == 0 {
		return &errs.NoCandidatesError{Source: s.source.Name()}
	}
	s.queue = fresh
	return nil
}
