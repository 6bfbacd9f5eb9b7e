package pka_gnn

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/turtacn/pkasolver/pkg/errors"
)

// ArtifactVersion tags the on-disk schema of a trained ensemble.
const ArtifactVersion = "pkasolver.ensemble/v1"

// MemberArtifact is one serialized regressor.
type MemberArtifact struct {
	Name            string                  `json:"name"`
	Hyperparameters Hyperparameters         `json:"hyperparameters"`
	NodeDim         int                     `json:"node_dim"`
	EdgeDim         int                     `json:"edge_dim"`
	Weights         map[string]WeightTensor `json:"weights"`
}

// Artifact is the persisted form of an ensemble, optionally with the
// training checkpoint of its last member.
type Artifact struct {
	Version    string           `json:"version"`
	CreatedAt  time.Time        `json:"created_at"`
	Members    []MemberArtifact `json:"members"`
	Checkpoint *Checkpoint      `json:"checkpoint,omitempty"`
}

// NewArtifact snapshots the current weights of models.
func NewArtifact(models ...*Regressor) *Artifact {
	a := &Artifact{Version: ArtifactVersion, CreatedAt: time.Now().UTC()}
	for i, m := range models {
		a.Members = append(a.Members, MemberArtifact{
			Name:            fmt.Sprintf("%s-%d", m.hp.Variant, i),
			Hyperparameters: m.hp,
			NodeDim:         m.nodeDim,
			EdgeDim:         m.edgeDim,
			Weights:         m.Weights(),
		})
	}
	return a
}

// Regressor rebuilds member i.
func (a *Artifact) Regressor(i int) (*Regressor, error) {
	if i < 0 || i >= len(a.Members) {
		return nil, errors.NewValidationError(errors.ErrCodeAIModelNotAvailable,
			fmt.Sprintf("artifact has %d members, asked for %d", len(a.Members), i))
	}
	m := a.Members[i]
	r, err := NewRegressor(m.Hyperparameters, m.NodeDim, m.EdgeDim)
	if err != nil {
		return nil, err
	}
	if err := r.LoadWeights(m.Weights); err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeAIModelVersionMismatch, "member %s", m.Name)
	}
	return r, nil
}

// EncodeArtifact writes a as gzip-compressed JSON.
func EncodeArtifact(w io.Writer, a *Artifact) error {
	if a.Version == "" {
		a.Version = ArtifactVersion
	}
	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(a); err != nil {
		_ = zw.Close()
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode artifact")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "flush artifact")
	}
	return nil
}

// DecodeArtifact reads an artifact written by EncodeArtifact and rejects
// other schema versions.
func DecodeArtifact(r io.Reader) (*Artifact, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "open artifact")
	}
	defer zr.Close()
	var a Artifact
	if err := json.NewDecoder(zr).Decode(&a); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode artifact")
	}
	if a.Version != ArtifactVersion {
		return nil, errors.NewValidationError(errors.ErrCodeAIModelVersionMismatch,
			fmt.Sprintf("artifact version %q, expected %q", a.Version, ArtifactVersion))
	}
	if len(a.Members) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeAIModelNotAvailable, "artifact has no members")
	}
	return &a, nil
}

//Personal.AI order the ending
