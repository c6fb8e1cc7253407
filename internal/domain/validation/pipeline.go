// Package validation is the entry point for validating a (diagnosis,
// procedure) pair. It owns the result cache and turns every recoverable
// failure into a result.
package validation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/icdachi/validator/internal/domain/codes"
	"github.com/icdachi/validator/internal/domain/evidence"
	"github.com/icdachi/validator/internal/domain/hierarchy"
	"github.com/icdachi/validator/internal/domain/relationship"
	"github.com/icdachi/validator/internal/domain/verdict"
	"github.com/icdachi/validator/internal/domain/verdictlog"
)

// ErrInvalidInput is returned by Confirm for a malformed relationship.
var ErrInvalidInput = errors.New("invalid input")

const (
	degradedExplanation = "Degraded mode: category mapping only, reasoning service unavailable"
	logWriteTimeout     = 5 * time.Second
)

// Registry resolves codes. Absent codes return codes.ErrNotFound.
type Registry interface {
	LookupDiagnosis(ctx context.Context, code string) (*codes.Diagnosis, error)
	LookupProcedure(ctx context.Context, code string) (*codes.Procedure, error)
}

// EvidenceAssembler picks the tier and gathers evidence for a pair.
type EvidenceAssembler interface {
	Assemble(ctx context.Context, p evidence.Pair) (evidence.Bundle, error)
}

// Oracle answers an evidence bundle. It never fails; failures come back as
// error-source results.
type Oracle interface {
	Evaluate(ctx context.Context, b evidence.Bundle) *verdict.Result
}

// Options configures optional pipeline collaborators.
type Options struct {
	// Cache defaults to an in-memory cache without expiry.
	Cache Cache
	// VerdictLog records the first determined result per pair when set.
	VerdictLog verdictlog.Repository
	// Degraded answers from the category mapping table when the oracle
	// fails. Nil disables degraded mode.
	Degraded evidence.ContextSource
	Logger   zerolog.Logger
}

// Outcome is a result plus whether it was served from the cache.
type Outcome struct {
	Result *verdict.Result
	Cached bool
}

// Stats are cache and oracle counters since start.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	OracleCalls int64 `json:"oracle_calls"`
	Errors      int64 `json:"errors"`
	CacheSize   int   `json:"cache_size"`
}

// Pipeline validates code pairs. Construct it once per process and share it.
type Pipeline struct {
	registry  Registry
	assembler EvidenceAssembler
	oracle    Oracle
	rels      relationship.Repository
	cache     Cache
	vlog      verdictlog.Repository
	degraded  evidence.ContextSource
	logger    zerolog.Logger

	group singleflight.Group
	locks *keyedMutex
	bg    sync.WaitGroup

	hits        atomic.Int64
	misses      atomic.Int64
	oracleCalls atomic.Int64
	failures    atomic.Int64
}

// NewPipeline wires a pipeline. rels is the relationship store used by Confirm.
func NewPipeline(registry Registry, assembler EvidenceAssembler, oracle Oracle, rels relationship.Repository, opts Options) *Pipeline {
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	return &Pipeline{
		registry:  registry,
		assembler: assembler,
		oracle:    oracle,
		rels:      rels,
		cache:     cache,
		vlog:      opts.VerdictLog,
		degraded:  opts.Degraded,
		logger:    opts.Logger.With().Str("component", "validation").Logger(),
		locks:     newKeyedMutex(),
	}
}

// Validate returns the result for the pair. The only error it returns wraps
// verdict.ErrStoreUnavailable.
func (p *Pipeline) Validate(ctx context.Context, diagnosisCode, procedureCode string) (*verdict.Result, error) {
	out, err := p.ValidatePair(ctx, diagnosisCode, procedureCode)
	if err != nil {
		return nil, err
	}
	return out.Result, nil
}

// ValidatePair is Validate that also reports cache hits.
func (p *Pipeline) ValidatePair(ctx context.Context, diagnosisCode, procedureCode string) (Outcome, error) {
	key := CacheKey(diagnosisCode, procedureCode)

	if res, ok := p.cached(ctx, key); ok {
		p.hits.Add(1)
		return Outcome{Result: res, Cached: true}, nil
	}
	p.misses.Add(1)

	v, err, _ := p.group.Do(key, func() (any, error) {
		return p.compute(context.WithoutCancel(ctx), key, diagnosisCode, procedureCode)
	})
	if err != nil {
		p.failures.Add(1)
		return Outcome{}, err
	}
	return Outcome{Result: v.(*verdict.Result).Clone()}, nil
}

func (p *Pipeline) cached(ctx context.Context, key string) (*verdict.Result, bool) {
	res, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logger.Warn().Err(err).Msg("cache read failed, treating as miss")
		return nil, false
	}
	return res, ok
}

func (p *Pipeline) compute(ctx context.Context, key, diagnosisCode, procedureCode string) (*verdict.Result, error) {
	release := p.locks.Lock(key)
	defer release()

	// A concurrent flight for the same pair may have filled the cache
	// between our miss and acquiring the lock.
	if res, ok := p.cached(ctx, key); ok {
		return res, nil
	}

	dx, px, notFound, err := p.resolve(ctx, diagnosisCode, procedureCode)
	if err != nil {
		return nil, err
	}
	if notFound != nil {
		return notFound, nil
	}

	pair := evidence.Pair{Diagnosis: dx, Procedure: px}
	bundle, err := p.assembler.Assemble(ctx, pair)
	if err != nil {
		return nil, err
	}

	if bundle.Tier() != evidence.TierExactMatch {
		p.oracleCalls.Add(1)
	}
	res := p.oracle.Evaluate(ctx, bundle)

	degraded := false
	if res.Source == verdict.SourceError {
		p.failures.Add(1)
		if fallback := p.fallback(ctx, bundle); fallback != nil {
			res, degraded = fallback, true
		}
	}
	res.DiagnosisDescription = dx.Description
	res.ProcedureDescription = px.Label()

	if res.Cacheable() && !degraded {
		if err := p.cache.Set(ctx, key, res); err != nil {
			p.logger.Warn().Err(err).Msg("cache write failed")
		}
		p.record(ctx, diagnosisCode, procedureCode, res)
	}

	p.logger.Debug().
		Str("diagnosis", diagnosisCode).
		Str("procedure", procedureCode).
		Str("source", string(res.Source)).
		Bool("is_valid", res.IsValid).
		Float64("confidence", res.Confidence).
		Msg("pair validated")
	return res, nil
}

// resolve looks up both codes. A missing code yields a not_found result.
func (p *Pipeline) resolve(ctx context.Context, diagnosisCode, procedureCode string) (*codes.Diagnosis, *codes.Procedure, *verdict.Result, error) {
	notFound := func(kind, code string) *verdict.Result {
		return verdict.NotFound(fmt.Sprintf("%s code %s not found in database", kind, code))
	}

	if diagnosisCode == "" {
		return nil, nil, notFound("ICD", diagnosisCode), nil
	}
	dx, err := p.registry.LookupDiagnosis(ctx, diagnosisCode)
	if errors.Is(err, codes.ErrNotFound) {
		return nil, nil, notFound("ICD", diagnosisCode), nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: lookup diagnosis: %w", verdict.ErrStoreUnavailable, err)
	}

	if procedureCode == "" {
		return nil, nil, notFound("ACHI", procedureCode), nil
	}
	px, err := p.registry.LookupProcedure(ctx, procedureCode)
	if errors.Is(err, codes.ErrNotFound) {
		return nil, nil, notFound("ACHI", procedureCode), nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: lookup procedure: %w", verdict.ErrStoreUnavailable, err)
	}
	return dx, px, nil, nil
}

// fallback answers from the category mapping table when degraded mode is
// on and the procedure resolves to a main category.
func (p *Pipeline) fallback(ctx context.Context, b evidence.Bundle) *verdict.Result {
	if p.degraded == nil {
		return nil
	}
	var hc hierarchy.Context
	if h, ok := b.(*evidence.Hierarchical); ok {
		hc = h.Context
	} else {
		pair := b.Pair()
		var err error
		hc, err = p.degraded.ContextFor(ctx, pair.Diagnosis, pair.Procedure)
		if err != nil {
			p.logger.Warn().Err(err).Msg("degraded mode context lookup failed")
			return nil
		}
	}
	if !hc.Procedure.HasMainCategory() {
		return nil
	}
	return CategoryVerdict(hc)
}

// CategoryVerdict judges a pair by chapter/category mapping alone.
func CategoryVerdict(hc hierarchy.Context) *verdict.Result {
	res := &verdict.Result{
		CertaintyExplanation: degradedExplanation,
		Source:               verdict.SourceHierarchical,
	}
	if hc.MappingFound {
		res.IsValid = true
		res.Confidence = 0.85
		res.Reasoning = fmt.Sprintf("Category match: %s -> %s", hc.Chapter.Name, hc.MainCategoryLabel())
	} else {
		res.IsValid = false
		res.Confidence = 0.95
		res.Reasoning = fmt.Sprintf("Category mismatch: %s <-> %s", hc.Chapter.Name, hc.MainCategoryLabel())
	}
	return res
}

// record appends to the verdict log in the background. Failures are logged only.
func (p *Pipeline) record(ctx context.Context, diagnosisCode, procedureCode string, res *verdict.Result) {
	if p.vlog == nil {
		return
	}
	entry := verdictlog.FromResult(diagnosisCode, procedureCode, res)
	p.bg.Add(1)
	go func() {
		defer p.bg.Done()
		ctx, cancel := context.WithTimeout(ctx, logWriteTimeout)
		defer cancel()
		if _, err := p.vlog.Record(ctx, entry); err != nil {
			p.logger.Warn().Err(err).
				Str("diagnosis", diagnosisCode).
				Str("procedure", procedureCode).
				Msg("failed to record verdict")
		}
	}()
}

// Confirm stores a validated relationship for the pair and evicts its cache
// entry, so the next Validate answers exact_match. It reports whether a row
// was written; an existing relationship is kept.
func (p *Pipeline) Confirm(ctx context.Context, diagnosisCode, procedureCode, text string, confidence float64, source relationship.Source) (bool, error) {
	dx, px, notFound, err := p.resolve(ctx, diagnosisCode, procedureCode)
	if err != nil {
		return false, err
	}
	if notFound != nil {
		return false, fmt.Errorf("%w: %s", verdict.ErrCodeNotFound, notFound.Reasoning)
	}

	rel := &relationship.Relationship{
		DiagnosisCode:        dx.Code,
		DiagnosisDescription: dx.Description,
		DiagnosisCategory:    dx.Category,
		ProcedureCode:        px.Code,
		ProcedureDescription: px.Label(),
		ProcedureCategory:    px.Category,
		RelationshipText:     text,
		Confidence:           confidence,
		Source:               source,
	}
	rel.Normalize()
	if err := rel.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	key := CacheKey(diagnosisCode, procedureCode)
	release := p.locks.Lock(key)
	defer release()

	inserted, err := p.rels.Insert(ctx, rel)
	if err != nil {
		return false, fmt.Errorf("%w: insert relationship: %w", verdict.ErrStoreUnavailable, err)
	}
	if err := p.cache.Delete(ctx, key); err != nil {
		p.logger.Warn().Err(err).Msg("cache evict failed")
	}
	p.logger.Info().
		Str("diagnosis", diagnosisCode).
		Str("procedure", procedureCode).
		Bool("inserted", inserted).
		Msg("relationship confirmed")
	return inserted, nil
}

// Stats returns the pipeline counters.
func (p *Pipeline) Stats(ctx context.Context) Stats {
	s := Stats{
		Hits:        p.hits.Load(),
		Misses:      p.misses.Load(),
		OracleCalls: p.oracleCalls.Load(),
		Errors:      p.failures.Load(),
	}
	if n, err := p.cache.Len(ctx); err == nil {
		s.CacheSize = n
	}
	return s
}

// Close waits for pending verdict log writes.
func (p *Pipeline) Close() {
	p.bg.Wait()
}
