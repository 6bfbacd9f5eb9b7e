package testutil

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/turtacn/pkasolver/internal/application/microstate"
	"github.com/turtacn/pkasolver/internal/application/scoring"
	"github.com/turtacn/pkasolver/internal/domain/molecule"
	"github.com/turtacn/pkasolver/internal/domain/profile"
	"github.com/turtacn/pkasolver/internal/intelligence/pka_gnn"
)

// MockService is a testify mock of scoring.Service.
type MockService struct {
	mock.Mock
}

func (m *MockService) Predict(ctx context.Context, in *scoring.ProfileInput) (*profile.Record, error) {
	args := m.Called(ctx, in)
	rec, _ := args.Get(0).(*profile.Record)
	return rec, args.Error(1)
}

func (m *MockService) PredictProfile(ctx context.Context, g *molecule.Graph, opts microstate.Options) (*profile.Record, error) {
	args := m.Called(ctx, g, opts)
	rec, _ := args.Get(0).(*profile.Record)
	return rec, args.Error(1)
}

func (m *MockService) ScorePair(ctx context.Context, in *scoring.PairInput) (*scoring.PairResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*scoring.PairResult)
	return res, args.Error(1)
}

func (m *MockService) GetProfile(ctx context.Context, id uuid.UUID) (*profile.Record, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*profile.Record)
	return rec, args.Error(1)
}

func (m *MockService) ListProfiles(ctx context.Context, smiles string, limit int) ([]*profile.Record, error) {
	args := m.Called(ctx, smiles, limit)
	recs, _ := args.Get(0).([]*profile.Record)
	return recs, args.Error(1)
}

func (m *MockService) ModelInfo() pka_gnn.EnsembleInfo {
	return m.Called().Get(0).(pka_gnn.EnsembleInfo)
}

var _ scoring.Service = (*MockService)(nil)

//Personal.AI order the ending
