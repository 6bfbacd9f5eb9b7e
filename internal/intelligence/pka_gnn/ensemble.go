package pka_gnn

import (
	"context"
	"fmt"

	"github.com/turtacn/pkasolver/internal/domain/molecule"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// member is one frozen regressor and the featurizer its inputs need.
type member struct {
	name       string
	model      *Regressor
	featurizer *Featurizer
}

// Ensemble averages the estimates of one or more frozen regressors. It is
// read-only after construction and safe for concurrent use.
type Ensemble struct {
	members    []member
	checkpoint *Checkpoint
	version    string
}

// MemberInfo describes one ensemble member.
type MemberInfo struct {
	Name         string   `json:"name"`
	Variant      Variant  `json:"variant"`
	Attention    bool     `json:"attention"`
	NumLayers    int      `json:"num_layers"`
	EmbeddingDim int      `json:"embedding_dim"`
	NodeFeatures []string `json:"node_features"`
	EdgeFeatures []string `json:"edge_features"`
	Parameters   int      `json:"parameters"`
}

// EnsembleInfo is the model description reported by the front ends.
type EnsembleInfo struct {
	Version       string       `json:"version"`
	SchemaVersion string       `json:"schema_version"`
	Members       []MemberInfo `json:"members"`
	BestEpoch     int          `json:"best_epoch"`
	BestLoss      float64      `json:"best_loss"`
}

// NewEnsemble wraps trained regressors. version labels the ensemble in
// caches and responses.
func NewEnsemble(version string, models ...*Regressor) (*Ensemble, error) {
	if len(models) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeAIModelNotAvailable, "ensemble needs at least one model")
	}
	e := &Ensemble{version: version}
	for i, m := range models {
		f, err := m.hp.Featurizer()
		if err != nil {
			return nil, err
		}
		if f.NodeDim() != m.nodeDim || f.EdgeDim() != m.edgeDim {
			return nil, errors.NewValidationError(errors.ErrCodeAIModelVersionMismatch,
				fmt.Sprintf("model %d expects feature widths %d/%d, featurizer yields %d/%d",
					i, m.nodeDim, m.edgeDim, f.NodeDim(), f.EdgeDim()))
		}
		e.members = append(e.members, member{name: fmt.Sprintf("%s-%d", m.hp.Variant, i), model: m, featurizer: f})
	}
	return e, nil
}

// EnsembleFromArtifact rebuilds every member of a.
func EnsembleFromArtifact(version string, a *Artifact) (*Ensemble, error) {
	models := make([]*Regressor, len(a.Members))
	for i := range a.Members {
		r, err := a.Regressor(i)
		if err != nil {
			return nil, err
		}
		models[i] = r
	}
	e, err := NewEnsemble(version, models...)
	if err != nil {
		return nil, err
	}
	for i := range e.members {
		e.members[i].name = a.Members[i].Name
	}
	e.checkpoint = a.Checkpoint
	return e, nil
}

// Version is the label given at construction.
func (e *Ensemble) Version() string { return e.version }

// Size is the number of members.
func (e *Ensemble) Size() int { return len(e.members) }

// Info describes the ensemble.
func (e *Ensemble) Info() EnsembleInfo {
	info := EnsembleInfo{Version: e.version, SchemaVersion: ArtifactVersion, BestEpoch: -1, BestLoss: initialBestLoss}
	if e.checkpoint != nil {
		info.BestEpoch = e.checkpoint.Best.Epoch
		info.BestLoss = e.checkpoint.Best.Loss
	}
	for _, m := range e.members {
		n := 0
		for _, p := range m.model.Parameters() {
			n += len(p.Tensor.Data)
		}
		hp := m.model.hp
		info.Members = append(info.Members, MemberInfo{
			Name:         m.name,
			Variant:      hp.Variant,
			Attention:    hp.Attention,
			NumLayers:    hp.NumLayers,
			EmbeddingDim: hp.EmbeddingDim,
			NodeFeatures: append([]string(nil), hp.NodeFeatures...),
			EdgeFeatures: append([]string(nil), hp.EdgeFeatures...),
			Parameters:   n,
		})
	}
	return info
}

// Score estimates the pKa of one pair.
func (e *Ensemble) Score(ctx context.Context, pair molecule.ConjugatePair) (float64, error) {
	out, err := e.ScoreBatch(ctx, []molecule.ConjugatePair{pair})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// ScoreBatch estimates every pair in one forward pass per member and returns
// the member mean, in input order.
func (e *Ensemble) ScoreBatch(ctx context.Context, pairs []molecule.ConjugatePair) ([]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	sum := make([]float64, len(pairs))
	for _, m := range e.members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		samples := make([]Sample, len(pairs))
		for i, p := range pairs {
			s, err := m.featurizer.Sample(p, 0)
			if err != nil {
				return nil, err
			}
			samples[i] = s
		}
		b, err := NewBatch(samples)
		if err != nil {
			return nil, err
		}
		for i, v := range m.model.Predict(b) {
			sum[i] += v
		}
	}
	for i := range sum {
		sum[i] /= float64(len(e.members))
	}
	return sum, nil
}

// PredictLoader scores every sample of l in stored order.
func (e *Ensemble) PredictLoader(ctx context.Context, l *Loader) ([]float64, error) {
	pairs := make([]molecule.ConjugatePair, 0, l.Len())
	for _, s := range l.Samples() {
		pairs = append(pairs, s.Pair)
	}
	return e.ScoreBatch(ctx, pairs)
}

//Personal.AI order the ending
