package scoring

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pkasolver/internal/application/microstate"
	"github.com/turtacn/pkasolver/internal/domain/molecule"
	"github.com/turtacn/pkasolver/internal/domain/profile"
	"github.com/turtacn/pkasolver/internal/intelligence/pka_gnn"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// fakeModel scores the acetic acid carboxyl oxygen at 4.76 and everything
// else far outside the window, unless fn is set.
type fakeModel struct {
	fn    func(pair molecule.ConjugatePair) (float64, error)
	calls atomic.Int32
}

func (m *fakeModel) Score(_ context.Context, pair molecule.ConjugatePair) (float64, error) {
	m.calls.Add(1)
	if m.fn != nil {
		return m.fn(pair)
	}
	if pair.Site == 3 {
		return 4.76, nil
	}
	return 50, nil
}

func (m *fakeModel) Version() string { return "test-v1" }

func (m *fakeModel) Info() pka_gnn.EnsembleInfo { return pka_gnn.EnsembleInfo{Version: "test-v1"} }

type memCache struct {
	mu      sync.Mutex
	items   map[string]*profile.Record
	sets    int
	readErr error
}

func newMemCache() *memCache { return &memCache{items: map[string]*profile.Record{}} }

func (c *memCache) Get(_ context.Context, key string) (*profile.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	if r, ok := c.items[key]; ok {
		return r, nil
	}
	return nil, profile.ErrNotFound
}

func (c *memCache) Set(_ context.Context, key string, r *profile.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.items[key] = r
	return nil
}

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Save(ctx context.Context, r *profile.Record) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockRepository) GetByID(ctx context.Context, id uuid.UUID) (*profile.Record, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*profile.Record)
	return rec, args.Error(1)
}

func (m *mockRepository) ListBySMILES(ctx context.Context, smiles string, limit int) ([]*profile.Record, error) {
	args := m.Called(ctx, smiles, limit)
	recs, _ := args.Get(0).([]*profile.Record)
	return recs, args.Error(1)
}

type recordingMetrics struct {
	mu       sync.Mutex
	steps    map[string]int
	profiles map[string]int
	hits     int
	misses   int
	scores   int
	errs     []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{steps: map[string]int{}, profiles: map[string]int{}}
}

func (m *recordingMetrics) RecordScore(float64, time.Duration, error) {
	m.mu.Lock()
	m.scores++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordCandidateSkipped(string, string) {}

func (m *recordingMetrics) RecordStep(dir string) {
	m.mu.Lock()
	m.steps[dir]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordProfile(source string, _ int, _ time.Duration) {
	m.mu.Lock()
	m.profiles[source]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordCacheAccess(hit bool) {
	m.mu.Lock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordError(component, _ string) {
	m.mu.Lock()
	m.errs = append(m.errs, component)
	m.mu.Unlock()
}

func aceticInput() *ProfileInput {
	return &ProfileInput{SMILES: "CC(=O)O", Options: microstate.DefaultOptions()}
}

func TestNewService_NilModel(t *testing.T) {
	_, err := NewService(nil)
	assert.True(t, errors.Is(err, errors.ErrModelNotLoaded))
}

func TestPredict_AceticAcid(t *testing.T) {
	repo := new(mockRepository)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*profile.Record")).Return(nil).Once()
	metrics := newRecordingMetrics()

	svc, err := NewService(&fakeModel{}, WithRepository(repo), WithMetrics(metrics))
	require.NoError(t, err)

	rec, err := svc.Predict(context.Background(), aceticInput())
	require.NoError(t, err)
	require.Len(t, rec.Entries, 1)
	assert.Equal(t, 3, rec.Entries[0].Site)
	assert.InDelta(t, 4.76, rec.Entries[0].PKa, 1e-9)
	assert.Equal(t, "test-v1", rec.ModelVersion)
	assert.Equal(t, "rule_filtered", rec.Mode)
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.NoError(t, rec.Validate())

	repo.AssertExpectations(t)
	assert.Equal(t, 1, metrics.steps["deprotonation"])
	assert.Equal(t, 1, metrics.profiles[SourceComputed])
}

func TestPredict_CacheHitSkipsModel(t *testing.T) {
	model := &fakeModel{}
	cache := newMemCache()
	metrics := newRecordingMetrics()
	svc, err := NewService(model, WithCache(cache), WithMetrics(metrics))
	require.NoError(t, err)

	first, err := svc.Predict(context.Background(), aceticInput())
	require.NoError(t, err)
	calls := model.calls.Load()

	second, err := svc.Predict(context.Background(), aceticInput())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, calls, model.calls.Load())
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, 1, metrics.hits)
	assert.Equal(t, 1, metrics.misses)
	assert.Equal(t, 1, metrics.profiles[SourceCache])
}

func TestPredict_CacheKeyDependsOnOptions(t *testing.T) {
	cache := newMemCache()
	svc, err := NewService(&fakeModel{}, WithCache(cache))
	require.NoError(t, err)

	in := aceticInput()
	_, err = svc.Predict(context.Background(), in)
	require.NoError(t, err)

	in.Options.EnforceWindow = false
	_, err = svc.Predict(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 2, cache.sets)
}

func TestPredict_CacheAndRepositoryFailuresAreNotFatal(t *testing.T) {
	cache := newMemCache()
	cache.readErr = errors.New(errors.ErrCodeCacheError, "connection refused")
	repo := new(mockRepository)
	repo.On("Save", mock.Anything, mock.Anything).Return(errors.New(errors.ErrCodeDatabaseError, "down"))
	metrics := newRecordingMetrics()

	svc, err := NewService(&fakeModel{}, WithCache(cache), WithRepository(repo), WithMetrics(metrics))
	require.NoError(t, err)

	rec, err := svc.Predict(context.Background(), aceticInput())
	require.NoError(t, err)
	assert.Len(t, rec.Entries, 1)
	assert.Contains(t, metrics.errs, "cache")
	assert.Contains(t, metrics.errs, "repository")
}

func TestPredict_InvalidInput(t *testing.T) {
	svc, err := NewService(&fakeModel{})
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name  string
		input *ProfileInput
	}{
		{"nil", nil},
		{"empty", &ProfileInput{Options: microstate.DefaultOptions()}},
		{"both forms", &ProfileInput{SMILES: "C", MolBlock: "x", Options: microstate.DefaultOptions()}},
		{"bad smiles", &ProfileInput{SMILES: "C1CC", Options: microstate.DefaultOptions()}},
		{"bad ph", &ProfileInput{SMILES: "CC(=O)O", Options: microstate.Options{PH: 20}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Predict(ctx, tt.input)
			assert.True(t, errors.IsValidation(err), "got %v", err)
		})
	}
}

func TestPredict_Benzaldehyde_Empty(t *testing.T) {
	svc, err := NewService(&fakeModel{})
	require.NoError(t, err)

	rec, err := svc.Predict(context.Background(), &ProfileInput{SMILES: "O=Cc1ccccc1", Options: microstate.DefaultOptions()})
	require.NoError(t, err)
	assert.Empty(t, rec.Entries)
}

func TestPredict_TimeoutAborts(t *testing.T) {
	model := &fakeModel{fn: func(molecule.ConjugatePair) (float64, error) {
		time.Sleep(50 * time.Millisecond)
		return 0, context.DeadlineExceeded
	}}
	svc, err := NewService(model, WithTimeout(time.Millisecond))
	require.NoError(t, err)

	_, err = svc.Predict(context.Background(), aceticInput())
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestPredict_ConcurrentRequestsShareOneRun(t *testing.T) {
	release := make(chan struct{})
	model := &fakeModel{fn: func(pair molecule.ConjugatePair) (float64, error) {
		<-release
		if pair.Site == 3 {
			return 4.76, nil
		}
		return 50, nil
	}}
	svc, err := NewService(model)
	require.NoError(t, err)

	const callers = 6
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := svc.Predict(context.Background(), aceticInput())
			if assert.NoError(t, err) {
				ids[i] = rec.ID
			}
		}(i)
	}
	require.Eventually(t, func() bool { return model.calls.Load() > 0 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
}

func TestScorePair(t *testing.T) {
	svc, err := NewService(&fakeModel{})
	require.NoError(t, err)

	res, err := svc.ScorePair(context.Background(), &PairInput{Protonated: "CC(=O)O", Deprotonated: "CC(=O)[O-]", Site: -1})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Site)
	assert.InDelta(t, 4.76, res.PKa, 1e-9)
	assert.Equal(t, "test-v1", res.ModelVersion)

	_, err = svc.ScorePair(context.Background(), &PairInput{Protonated: "CC(=O)O", Deprotonated: "CCO", Site: -1})
	assert.True(t, errors.IsValidation(err))
}

func TestScorer_ErrorMapping(t *testing.T) {
	pair, err := molecule.PairFromSMILES("CC(=O)O", "CC(=O)[O-]", -1)
	require.NoError(t, err)

	tests := []struct {
		name      string
		fn        func(molecule.ConjugatePair) (float64, error)
		inference bool
		canceled  bool
	}{
		{"nan", func(molecule.ConjugatePair) (float64, error) { return math.NaN(), nil }, true, false},
		{"inf", func(molecule.ConjugatePair) (float64, error) { return math.Inf(-1), nil }, true, false},
		{"featurizer", func(molecule.ConjugatePair) (float64, error) {
			return 0, errors.NewValidationError(errors.ErrCodeFeatureUnknown, "bad feature")
		}, true, false},
		{"canceled", func(molecule.ConjugatePair) (float64, error) { return 0, context.Canceled }, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := newRecordingMetrics()
			_, err := NewScorer(&fakeModel{fn: tt.fn}, metrics).Score(context.Background(), pair)
			require.Error(t, err)
			assert.Equal(t, tt.inference, errors.IsModelInference(err))
			assert.Equal(t, tt.canceled, errors.Is(err, context.Canceled))
			assert.Equal(t, 1, metrics.scores)
		})
	}
}

func TestGetAndListProfiles(t *testing.T) {
	noRepo, err := NewService(&fakeModel{})
	require.NoError(t, err)
	_, err = noRepo.GetProfile(context.Background(), uuid.New())
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))

	id := uuid.New()
	stored := &profile.Record{ID: id, SMILES: "CC(=O)O"}
	repo := new(mockRepository)
	repo.On("GetByID", mock.Anything, id).Return(stored, nil)
	repo.On("ListBySMILES", mock.Anything, mock.AnythingOfType("string"), 20).Return([]*profile.Record{stored}, nil)

	svc, err := NewService(&fakeModel{}, WithRepository(repo))
	require.NoError(t, err)

	got, err := svc.GetProfile(context.Background(), id)
	require.NoError(t, err)
	assert.Same(t, stored, got)

	list, err := svc.ListProfiles(context.Background(), "CC(=O)O", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	repo.AssertExpectations(t)
}

func TestModelInfo(t *testing.T) {
	svc, err := NewService(&fakeModel{})
	require.NoError(t, err)
	assert.Equal(t, "test-v1", svc.ModelInfo().Version)
}

//Personal.AI order the ending
