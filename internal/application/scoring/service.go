// Package scoring is the application service behind every front end. It wraps
// a trained ensemble as a microstate scorer and adds profile caching,
// persistence and metrics around the sequencer.
package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/pkasolver/internal/application/microstate"
	"github.com/turtacn/pkasolver/internal/domain/molecule"
	"github.com/turtacn/pkasolver/internal/domain/profile"
	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/internal/intelligence/pka_gnn"
	"github.com/turtacn/pkasolver/internal/intelligence/sites"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// Profile sources reported to metrics.
const (
	SourceComputed = "computed"
	SourceCache    = "cache"
)

// Service defines the pKa operations exposed to HTTP, the queue worker and
// the CLI.
type Service interface {
	Predict(ctx context.Context, input *ProfileInput) (*profile.Record, error)
	PredictProfile(ctx context.Context, g *molecule.Graph, opts microstate.Options) (*profile.Record, error)
	ScorePair(ctx context.Context, input *PairInput) (*PairResult, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*profile.Record, error)
	ListProfiles(ctx context.Context, smiles string, limit int) ([]*profile.Record, error)
	ModelInfo() pka_gnn.EnsembleInfo
}

// Model is the trained regressor the service scores with. *pka_gnn.Ensemble
// satisfies it.
type Model interface {
	Score(ctx context.Context, pair molecule.ConjugatePair) (float64, error)
	Version() string
	Info() pka_gnn.EnsembleInfo
}

// Metrics receives scoring telemetry. *prometheus.PKAMetrics satisfies it.
type Metrics interface {
	RecordScore(pka float64, d time.Duration, err error)
	RecordCandidateSkipped(direction, reason string)
	RecordStep(direction string)
	RecordProfile(source string, entries int, d time.Duration)
	RecordCacheAccess(hit bool)
	RecordError(component, code string)
}

type nopMetrics struct{}

func (nopMetrics) RecordScore(float64, time.Duration, error) {}
func (nopMetrics) RecordCandidateSkipped(string, string)     {}
func (nopMetrics) RecordStep(string)                         {}
func (nopMetrics) RecordProfile(string, int, time.Duration)  {}
func (nopMetrics) RecordCacheAccess(bool)                    {}
func (nopMetrics) RecordError(string, string)                {}

// -----------------------------------------------------------------------
// Inputs and outputs
// -----------------------------------------------------------------------

// ProfileInput describes a molecule given as SMILES or as a MOL block.
// Exactly one of the two must be set.
type ProfileInput struct {
	SMILES   string
	MolBlock string
	Options  microstate.Options
}

// Graph parses whichever representation is present.
func (in *ProfileInput) Graph() (*molecule.Graph, error) {
	smiles := strings.TrimSpace(in.SMILES)
	switch {
	case smiles != "" && in.MolBlock != "":
		return nil, errors.NewValidationError(errors.ErrCodeMoleculeInvalidFormat, "give either smiles or molblock, not both")
	case smiles != "":
		return molecule.ParseSMILES(smiles)
	case in.MolBlock != "":
		return molecule.ParseMolBlock(in.MolBlock)
	default:
		return nil, errors.NewValidationError(errors.ErrCodeMoleculeEmpty, "no molecule given")
	}
}

// PairInput is an explicit conjugate pair. A negative Site is derived from
// the two structures.
type PairInput struct {
	Protonated   string
	Deprotonated string
	Site         int
}

// PairResult is the estimate for one pair.
type PairResult struct {
	PKa          float64 `json:"pka"`
	Site         int     `json:"site"`
	Protonated   string  `json:"protonated"`
	Deprotonated string  `json:"deprotonated"`
	ModelVersion string  `json:"model_version"`
}

// -----------------------------------------------------------------------
// Construction
// -----------------------------------------------------------------------

// Option configures a service.
type Option func(*service)

// WithCache enables profile caching.
func WithCache(c profile.Cache) Option { return func(s *service) { s.cache = c } }

// WithRepository persists every computed profile.
func WithRepository(r profile.Repository) Option { return func(s *service) { s.repo = r } }

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option { return func(s *service) { s.logger = l } }

// WithTimeout bounds one sequencing run.
func WithTimeout(d time.Duration) Option { return func(s *service) { s.timeout = d } }

// WithMaxParallel bounds concurrent candidate scoring.
func WithMaxParallel(n int) Option { return func(s *service) { s.maxParallel = n } }

// WithLocator replaces the default site locator.
func WithLocator(l sites.Locator) Option { return func(s *service) { s.locator = l } }

type service struct {
	model       Model
	seq         *microstate.Sequencer
	cache       profile.Cache
	repo        profile.Repository
	metrics     Metrics
	logger      logging.Logger
	locator     sites.Locator
	timeout     time.Duration
	maxParallel int
	flight      singleflight.Group
}

// NewService builds the service around model.
func NewService(model Model, opts ...Option) (Service, error) {
	if model == nil {
		return nil, errors.ErrModelNotLoaded
	}
	s := &service{model: model, metrics: nopMetrics{}, maxParallel: microstate.DefaultMaxParallel}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger).Named("scoring")

	seqOpts := []microstate.Option{
		microstate.WithLogger(s.logger),
		microstate.WithMetrics(sequencerMetrics{s.metrics}),
		microstate.WithMaxParallel(s.maxParallel),
	}
	if s.locator != nil {
		seqOpts = append(seqOpts, microstate.WithLocator(s.locator))
	}
	seq, err := microstate.NewSequencer(NewScorer(model, s.metrics), seqOpts...)
	if err != nil {
		return nil, err
	}
	s.seq = seq
	return s, nil
}

// -----------------------------------------------------------------------
// Operations
// -----------------------------------------------------------------------

func (s *service) Predict(ctx context.Context, input *ProfileInput) (*profile.Record, error) {
	if input == nil {
		return nil, errors.NewValidationError(errors.ErrCodeMoleculeEmpty, "nil input")
	}
	g, err := input.Graph()
	if err != nil {
		return nil, err
	}
	return s.PredictProfile(ctx, g, input.Options)
}

func (s *service) PredictProfile(ctx context.Context, g *molecule.Graph, opts microstate.Options) (*profile.Record, error) {
	if g == nil || g.NumAtoms() == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeMoleculeEmpty, "molecule has no atoms")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	smiles := g.SMILES()
	key := profile.CacheKey(smiles, opts.PH, cacheMode(opts), s.model.Version())
	log := s.logger.With(logging.String(logging.KeySMILES, smiles))

	if rec, ok := s.cached(ctx, key, log); ok {
		return rec, nil
	}

	// Concurrent identical requests share one sequencing run.
	v, err, shared := s.flight.Do(key, func() (interface{}, error) {
		return s.compute(ctx, g, opts, smiles, key, log)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug("profile computation shared")
	}
	return v.(*profile.Record), nil
}

func (s *service) compute(ctx context.Context, g *molecule.Graph, opts microstate.Options, smiles, key string, log logging.Logger) (*profile.Record, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	p, err := s.seq.Sequence(ctx, g, opts)
	if err != nil {
		s.metrics.RecordError("sequencer", string(errors.GetCode(err)))
		return nil, err
	}
	rec := NewRecord(p, smiles, s.model.Version())

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, rec); err != nil {
			log.Warn("profile cache write failed", logging.Err(err))
			s.metrics.RecordError("cache", string(errors.GetCode(err)))
		}
	}
	if s.repo != nil {
		if err := s.repo.Save(ctx, rec); err != nil {
			log.Warn("profile persistence failed", logging.Err(err))
			s.metrics.RecordError("repository", string(errors.GetCode(err)))
		}
	}
	return rec, nil
}

// cached returns a stored profile for key. Cache failures count as misses.
func (s *service) cached(ctx context.Context, key string, log logging.Logger) (*profile.Record, bool) {
	if s.cache == nil {
		return nil, false
	}
	rec, err := s.cache.Get(ctx, key)
	switch {
	case err == nil && rec != nil:
		s.metrics.RecordCacheAccess(true)
		s.metrics.RecordProfile(SourceCache, len(rec.Entries), 0)
		return rec, true
	case err == nil || errors.IsNotFound(err):
		s.metrics.RecordCacheAccess(false)
	default:
		s.metrics.RecordCacheAccess(false)
		s.metrics.RecordError("cache", string(errors.GetCode(err)))
		log.Warn("profile cache read failed", logging.Err(err))
	}
	return nil, false
}

func (s *service) ScorePair(ctx context.Context, input *PairInput) (*PairResult, error) {
	if input == nil {
		return nil, errors.NewValidationError(errors.ErrCodeMoleculeEmpty, "nil input")
	}
	pair, err := molecule.PairFromSMILES(input.Protonated, input.Deprotonated, input.Site)
	if err != nil {
		return nil, err
	}
	v, err := NewScorer(s.model, s.metrics).Score(ctx, pair)
	if err != nil {
		return nil, err
	}
	return &PairResult{
		PKa:          v,
		Site:         pair.Site,
		Protonated:   pair.Protonated.SMILES(),
		Deprotonated: pair.Deprotonated.SMILES(),
		ModelVersion: s.model.Version(),
	}, nil
}

func (s *service) GetProfile(ctx context.Context, id uuid.UUID) (*profile.Record, error) {
	if s.repo == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "profile persistence is disabled")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListProfiles(ctx context.Context, smiles string, limit int) ([]*profile.Record, error) {
	if s.repo == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "profile persistence is disabled")
	}
	g, err := molecule.ParseSMILES(smiles)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListBySMILES(ctx, g.SMILES(), limit)
}

func (s *service) ModelInfo() pka_gnn.EnsembleInfo { return s.model.Info() }

// cacheMode folds the window settings into the mode part of the cache key.
func cacheMode(opts microstate.Options) string {
	if !opts.EnforceWindow {
		return opts.Mode.String() + "+open"
	}
	return fmt.Sprintf("%s+%g-%g", opts.Mode, opts.MinPKa, opts.MaxPKa)
}

// NewRecord converts a sequencer profile into its stored form.
func NewRecord(p *microstate.Profile, smiles, modelVersion string) *profile.Record {
	rec := &profile.Record{
		ID:           uuid.New(),
		SMILES:       smiles,
		PH:           p.PH,
		Mode:         p.Mode.String(),
		ModelVersion: modelVersion,
		Entries:      make([]profile.Entry, 0, len(p.Entries)),
		Skipped:      p.Skipped,
		CreatedAt:    time.Now().UTC(),
	}
	for _, e := range p.Entries {
		rec.Entries = append(rec.Entries, profile.Entry{
			Site:         e.Site,
			PKa:          e.PKa,
			Protonated:   e.Pair.Protonated.SMILES(),
			Deprotonated: e.Pair.Deprotonated.SMILES(),
		})
	}
	return rec
}

// -----------------------------------------------------------------------
// Scorer and metrics adapters
// -----------------------------------------------------------------------

type modelScorer struct {
	model   Model
	metrics Metrics
}

// NewScorer wraps model as a microstate.Scorer. Featurization failures and
// non-finite estimates become ModelInferenceErrors so the sequencer skips the
// candidate; cancellation passes through unchanged.
func NewScorer(model Model, metrics Metrics) microstate.Scorer {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return modelScorer{model: model, metrics: metrics}
}

func (s modelScorer) Score(ctx context.Context, pair molecule.ConjugatePair) (float64, error) {
	start := time.Now()
	v, err := s.model.Score(ctx, pair)
	switch {
	case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
	case err != nil:
		err = errors.NewModelInferenceError(pair.Site, math.NaN()).WithCause(err)
	case math.IsNaN(v) || math.IsInf(v, 0):
		err = errors.NewModelInferenceError(pair.Site, v)
	}
	s.metrics.RecordScore(v, time.Since(start), err)
	if err != nil {
		return 0, err
	}
	return v, nil
}

type sequencerMetrics struct{ m Metrics }

func (a sequencerMetrics) CandidateSkipped(dir microstate.Direction, reason string) {
	a.m.RecordCandidateSkipped(dir.String(), reason)
}

func (a sequencerMetrics) StepCommitted(dir microstate.Direction) { a.m.RecordStep(dir.String()) }

func (a sequencerMetrics) ProfileCompleted(entries int, elapsed time.Duration) {
	a.m.RecordProfile(SourceComputed, entries, elapsed)
}

//Personal.AI order the ending
