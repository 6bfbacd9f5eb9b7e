// Package microstate orders the protonation events of a molecule into a pKa
// profile. The input graph is first protonated as far as the model allows;
// the profile is the chain of deprotonation events from that state towards
// the fully deprotonated molecule, one committed event per step.
package microstate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/pkasolver/internal/domain/molecule"
	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/internal/intelligence/sites"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// Window bounds applied when Options.EnforceWindow is set.
const (
	DefaultMinPKa      = 0.5
	DefaultMaxPKa      = 13.5
	DefaultMaxParallel = 4
)

// Scorer estimates the pKa of one conjugate pair. Implementations must be
// safe for concurrent use. A ModelInferenceError marks a single bad
// candidate; any other error aborts the profile.
type Scorer interface {
	Score(ctx context.Context, pair molecule.ConjugatePair) (float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, pair molecule.ConjugatePair) (float64, error)

// Score implements Scorer.
func (f ScorerFunc) Score(ctx context.Context, pair molecule.ConjugatePair) (float64, error) {
	return f(ctx, pair)
}

// Metrics receives sequencing events.
type Metrics interface {
	CandidateSkipped(direction Direction, reason string)
	StepCommitted(direction Direction)
	ProfileCompleted(entries int, elapsed time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) CandidateSkipped(Direction, string)  {}
func (nopMetrics) StepCommitted(Direction)             {}
func (nopMetrics) ProfileCompleted(int, time.Duration) {}

// ----------------------------------------------------------------------------
// Enums
// ----------------------------------------------------------------------------

// Direction is the way a walk moves the working graph.
type Direction int

const (
	Protonation Direction = iota
	Deprotonation
)

func (d Direction) String() string {
	switch d {
	case Protonation:
		return "protonation"
	case Deprotonation:
		return "deprotonation"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Phase is the state of a walk.
type Phase int

const (
	PhaseScanning Phase = iota
	PhaseScoring
	PhaseCommitting
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseScanning:
		return "scanning"
	case PhaseScoring:
		return "scoring"
	case PhaseCommitting:
		return "committing"
	case PhaseTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ----------------------------------------------------------------------------
// Options
// ----------------------------------------------------------------------------

// Options controls one Sequence call.
type Options struct {
	PH            float64    `json:"ph" yaml:"ph"`
	Mode          sites.Mode `json:"mode" yaml:"mode"`
	EnforceWindow bool       `json:"enforce_window" yaml:"enforce_window"`
	MinPKa        float64    `json:"min_pka" yaml:"min_pka"`
	MaxPKa        float64    `json:"max_pka" yaml:"max_pka"`
}

// DefaultOptions returns pH 7.4, rule-filtered sites and the [0.5, 13.5]
// window.
func DefaultOptions() Options {
	return Options{
		PH:            molecule.DefaultPH,
		Mode:          sites.RuleFiltered,
		EnforceWindow: true,
		MinPKa:        DefaultMinPKa,
		MaxPKa:        DefaultMaxPKa,
	}
}

// Validate checks the option values.
func (o Options) Validate() error {
	if math.IsNaN(o.PH) || math.IsInf(o.PH, 0) || o.PH < 0 || o.PH > 14 {
		return errors.NewValidationError(errors.ErrCodeBadRequest, fmt.Sprintf("ph %v outside [0, 14]", o.PH))
	}
	if o.Mode != sites.RuleFiltered && o.Mode != sites.Exhaustive {
		return errors.NewValidationError(errors.ErrCodeBadRequest, fmt.Sprintf("unknown site mode %v", o.Mode))
	}
	if o.EnforceWindow && !(o.MinPKa < o.MaxPKa) {
		return errors.NewValidationError(errors.ErrCodeBadRequest,
			fmt.Sprintf("pka window [%v, %v] is empty", o.MinPKa, o.MaxPKa))
	}
	return nil
}

func (o Options) inWindow(pka float64) bool {
	return !o.EnforceWindow || (pka >= o.MinPKa && pka <= o.MaxPKa)
}

// ----------------------------------------------------------------------------
// Profile
// ----------------------------------------------------------------------------

// Entry is one committed protonation event.
type Entry struct {
	PKa  float64
	Pair molecule.ConjugatePair
	Site int
}

// Profile lists events in ascending pKa. Entry i's deprotonated graph is
// entry i+1's protonated graph and no site repeats. Skipped counts distinct
// sites whose scoring failed at least once.
type Profile struct {
	Entries []Entry
	PH      float64
	Mode    sites.Mode
	Skipped int
}

// Len returns the number of entries.
func (p *Profile) Len() int { return len(p.Entries) }

// PKas returns the pKa values in profile order.
func (p *Profile) PKas() []float64 {
	out := make([]float64, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = e.PKa
	}
	return out
}

// Sites returns the site indices in profile order.
func (p *Profile) Sites() []int {
	out := make([]int, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = e.Site
	}
	return out
}

// ----------------------------------------------------------------------------
// Sequencer
// ----------------------------------------------------------------------------

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLocator replaces the default rule locator.
func WithLocator(l sites.Locator) Option {
	return func(s *Sequencer) {
		if l != nil {
			s.locator = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Sequencer) { s.logger = logging.OrNop(l) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Sequencer) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithMaxParallel bounds concurrent Score calls within one step.
func WithMaxParallel(n int) Option {
	return func(s *Sequencer) {
		if n > 0 {
			s.maxParallel = n
		}
	}
}

// Sequencer builds profiles with a frozen Scorer. It holds no per-call state
// and is safe for concurrent use.
type Sequencer struct {
	scorer      Scorer
	locator     sites.Locator
	logger      logging.Logger
	metrics     Metrics
	maxParallel int
}

// NewSequencer returns a sequencer around scorer.
func NewSequencer(scorer Scorer, opts ...Option) (*Sequencer, error) {
	if scorer == nil {
		return nil, errors.ErrModelNotLoaded
	}
	s := &Sequencer{
		scorer:      scorer,
		locator:     sites.NewLocator(),
		logger:      logging.NewNopLogger(),
		metrics:     nopMetrics{},
		maxParallel: DefaultMaxParallel,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// candidate is a scored pair produced in one Scoring phase.
type candidate struct {
	site int
	pair molecule.ConjugatePair
	pka  float64
	ok   bool
}

// walk carries the mutable state of one Sequence call.
type walk struct {
	opts   Options
	mu     sync.Mutex
	failed map[int]bool
}

// fail records an inference failure at site and reports whether the site
// is new to the failure set.
func (w *walk) fail(site int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed[site] {
		return false
	}
	w.failed[site] = true
	return true
}

// Sequence returns the ordered profile of g. The input is first protonated
// as far as the model allows; the profile is then read off a single
// deprotonation walk from that state. A molecule without acceptable
// candidates yields an empty profile and no error.
func (s *Sequencer) Sequence(ctx context.Context, g *molecule.Graph, opts Options) (*Profile, error) {
	if g == nil || g.NumAtoms() == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeMoleculeEmpty, "empty molecule")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	w := &walk{opts: opts, failed: make(map[int]bool)}

	top, err := s.protonate(ctx, w, g)
	if err != nil {
		return nil, err
	}
	entries, err := s.deprotonate(ctx, w, top)
	if err != nil {
		return nil, err
	}

	profile := &Profile{Entries: entries, PH: opts.PH, Mode: opts.Mode, Skipped: len(w.failed)}
	s.metrics.ProfileCompleted(len(entries), time.Since(start))
	s.logger.Debug("profile complete",
		logging.Int("entries", len(entries)),
		logging.Int("skipped", len(w.failed)),
		logging.Duration("elapsed", time.Since(start)))
	return profile, nil
}

// protonate commits the highest in-window protonation until none is left and
// returns the most protonated graph reached. Nothing is recorded; the
// deprotonation walk re-scores every event in its own context.
func (s *Sequencer) protonate(ctx context.Context, w *walk, g *molecule.Graph) (*molecule.Graph, error) {
	working := g
	visited := make(map[int]bool)
	log := s.logger.With(logging.String("direction", Protonation.String()))
	for {
		scored, err := s.step(ctx, w, working, Protonation, visited, log)
		if err != nil {
			return nil, err
		}
		best, found := selectCandidate(scored, Protonation, math.Inf(1), w.opts)
		if !found {
			break
		}
		log.Debug("step",
			logging.String("phase", PhaseCommitting.String()),
			logging.Int("site", best.site),
			logging.Float64("pka", best.pka))
		visited[best.site] = true
		working = best.pair.Protonated
		s.metrics.StepCommitted(Protonation)
	}
	log.Debug("step", logging.String("phase", PhaseTerminated.String()), logging.Int("committed", len(visited)))
	return working, nil
}

// deprotonate walks from the most protonated graph towards the fully
// deprotonated one, committing the lowest pKa not below the previous event.
// An event outside the window still advances the working graph but is not
// reported.
func (s *Sequencer) deprotonate(ctx context.Context, w *walk, top *molecule.Graph) ([]Entry, error) {
	working := top
	visited := make(map[int]bool)
	bound := math.Inf(-1)
	log := s.logger.With(logging.String("direction", Deprotonation.String()))

	var out []Entry
	for {
		scored, err := s.step(ctx, w, working, Deprotonation, visited, log)
		if err != nil {
			return nil, err
		}
		open := w.opts
		open.EnforceWindow = false
		best, found := selectCandidate(scored, Deprotonation, bound, open)
		if !found {
			break
		}
		log.Debug("step",
			logging.String("phase", PhaseCommitting.String()),
			logging.Int("site", best.site),
			logging.Float64("pka", best.pka))
		visited[best.site] = true
		bound = best.pka
		working = best.pair.Deprotonated
		s.metrics.StepCommitted(Deprotonation)
		if !w.opts.inWindow(best.pka) {
			log.Debug("event outside window", logging.Int("site", best.site), logging.Float64("pka", best.pka))
			s.metrics.CandidateSkipped(Deprotonation, "window")
			continue
		}
		out = append(out, Entry{PKa: best.pka, Pair: best.pair, Site: best.site})
	}
	log.Debug("step", logging.String("phase", PhaseTerminated.String()), logging.Int("entries", len(out)))
	return out, nil
}

// step runs one Scanning and Scoring phase on working.
func (s *Sequencer) step(ctx context.Context, w *walk, working *molecule.Graph, dir Direction, visited map[int]bool, log logging.Logger) ([]candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Debug("step", logging.String("phase", PhaseScanning.String()))
	sitesToTry := s.scan(working, dir, w.opts.Mode, visited)
	if len(sitesToTry) == 0 {
		return nil, nil
	}
	log.Debug("step", logging.String("phase", PhaseScoring.String()), logging.Int("candidates", len(sitesToTry)))
	return s.score(ctx, w, working, dir, sitesToTry)
}

// scan lists unvisited located sites that can move in dir.
func (s *Sequencer) scan(working *molecule.Graph, dir Direction, mode sites.Mode, visited map[int]bool) []int {
	var out []int
	for _, i := range s.locator.Locate(working, mode) {
		if visited[i] {
			continue
		}
		if dir == Protonation && !sites.CanGainProtonIn(working, i, mode) {
			continue
		}
		if dir == Deprotonation && !sites.CanLoseProton(working, i) {
			continue
		}
		out = append(out, i)
	}
	return out
}

// score builds and scores one pair per site with bounded parallelism. The
// result keeps the order of siteList.
func (s *Sequencer) score(ctx context.Context, w *walk, working *molecule.Graph, dir Direction, siteList []int) ([]candidate, error) {
	out := make([]candidate, len(siteList))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.maxParallel)
	for idx, site := range siteList {
		idx, site := idx, site
		eg.Go(func() error {
			pair, err := conjugatePair(working, site, dir, w.opts.PH)
			if err != nil {
				if !errors.IsValidation(err) {
					return err
				}
				s.logger.Debug("candidate has no valid conjugate",
					logging.String("direction", dir.String()),
					logging.Int("site", site),
					logging.Err(err))
				s.metrics.CandidateSkipped(dir, "transform")
				return nil
			}
			v, err := s.scorer.Score(egCtx, pair)
			if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
				err = errors.NewModelInferenceError(site, v)
			}
			if err != nil {
				if !errors.IsModelInference(err) {
					return err
				}
				if w.fail(site) {
					s.logger.Warn("candidate skipped",
						logging.String("direction", dir.String()),
						logging.Int("site", site),
						logging.Err(err))
					s.metrics.CandidateSkipped(dir, "inference")
				}
				return nil
			}
			out[idx] = candidate{site: site, pair: pair, pka: v, ok: true}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// conjugatePair applies the transform with the opposite-direction guess and
// orders the result as (protonated, deprotonated).
func conjugatePair(working *molecule.Graph, site int, dir Direction, ph float64) (molecule.ConjugatePair, error) {
	if dir == Protonation {
		prot, err := molecule.Protonate(working, site, ph)
		if err != nil {
			return molecule.ConjugatePair{}, err
		}
		return molecule.NewConjugatePair(prot, working, site)
	}
	deprot, err := molecule.Deprotonate(working, site, ph)
	if err != nil {
		return molecule.ConjugatePair{}, err
	}
	return molecule.NewConjugatePair(working, deprot, site)
}

// selectCandidate picks the next event among candidates inside the window
// and on the right side of bound. Ties go to the lowest site index.
func selectCandidate(scored []candidate, dir Direction, bound float64, opts Options) (candidate, bool) {
	var pool []candidate
	for _, c := range scored {
		if !c.ok || !opts.inWindow(c.pka) {
			continue
		}
		if dir == Protonation && c.pka > bound {
			continue
		}
		if dir == Deprotonation && c.pka < bound {
			continue
		}
		pool = append(pool, c)
	}
	if len(pool) == 0 {
		return candidate{}, false
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].pka != pool[j].pka {
			if dir == Protonation {
				return pool[i].pka > pool[j].pka
			}
			return pool[i].pka < pool[j].pka
		}
		return pool[i].site < pool[j].site
	})
	return pool[0], true
}

//Personal.AI order the ending
