// Package profile holds the persisted form of a microstate profile and the
// contracts its stores implement.
package profile

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/pkasolver/pkg/errors"
)

// ErrNotFound is returned by stores when no record matches.
var ErrNotFound = errors.New(errors.ErrCodeNotFound, "profile not found")

// Entry is one protonation state of a stored profile.
type Entry struct {
	Site         int     `json:"site"`
	PKa          float64 `json:"pka"`
	Protonated   string  `json:"protonated"`
	Deprotonated string  `json:"deprotonated"`
}

// Record is a computed profile together with the inputs that produced it.
type Record struct {
	ID           uuid.UUID `json:"id"`
	SMILES       string    `json:"smiles"`
	PH           float64   `json:"ph"`
	Mode         string    `json:"mode"`
	ModelVersion string    `json:"model_version"`
	Entries      []Entry   `json:"entries"`
	Skipped      int       `json:"skipped"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks the ordering guarantees every stored profile carries.
func (r *Record) Validate() error {
	if r.SMILES == "" {
		return errors.NewValidationError(errors.ErrCodeMoleculeEmpty, "profile has no input SMILES")
	}
	seen := make(map[int]bool, len(r.Entries))
	for i, e := range r.Entries {
		if math.IsNaN(e.PKa) || math.IsInf(e.PKa, 0) {
			return errors.NewValidationError(errors.ErrCodeValidation, fmt.Sprintf("entry %d has non-finite pKa", i))
		}
		if i > 0 && e.PKa < r.Entries[i-1].PKa {
			return errors.NewValidationError(errors.ErrCodeValidation, fmt.Sprintf("entry %d breaks ascending pKa order", i))
		}
		if seen[e.Site] {
			return errors.NewValidationError(errors.ErrCodeValidation, fmt.Sprintf("site %d repeated", e.Site))
		}
		seen[e.Site] = true
	}
	return nil
}

// PKas returns the pKa of every entry in order.
func (r *Record) PKas() []float64 {
	out := make([]float64, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.PKa
	}
	return out
}

// CacheKey identifies a profile by everything that changes its result. pH is
// rounded to two decimals.
func CacheKey(smiles string, ph float64, mode, modelVersion string) string {
	return "profile:" + modelVersion + ":" + mode + ":" + strconv.FormatFloat(ph, 'f', 2, 64) + ":" + smiles
}

// Repository persists profile records.
type Repository interface {
	Save(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	ListBySMILES(ctx context.Context, smiles string, limit int) ([]*Record, error)
}

// Cache stores records by CacheKey. Get returns ErrNotFound on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, r *Record) error
}

//Personal.AI order the ending
