package profile

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/pkasolver/pkg/errors"
)

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  Record
		wantErr bool
	}{
		{"empty profile", Record{SMILES: "c1ccccc1C=O"}, false},
		{"ascending", Record{SMILES: "OC(=O)CC(O)C(=O)O", Entries: []Entry{{Site: 8, PKa: 2.79}, {Site: 2, PKa: 3.86}}}, false},
		{"equal pKa allowed", Record{SMILES: "x", Entries: []Entry{{Site: 0, PKa: 3}, {Site: 7, PKa: 3}}}, false},
		{"no smiles", Record{}, true},
		{"descending", Record{SMILES: "x", Entries: []Entry{{Site: 1, PKa: 5}, {Site: 2, PKa: 4}}}, true},
		{"repeated site", Record{SMILES: "x", Entries: []Entry{{Site: 1, PKa: 4}, {Site: 1, PKa: 5}}}, true},
		{"nan", Record{SMILES: "x", Entries: []Entry{{Site: 1, PKa: math.NaN()}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr {
				assert.True(t, errors.IsValidation(err), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCacheKey(t *testing.T) {
	k := CacheKey("CC(=O)O", 7.4, "rule_filtered", "v1")
	assert.Equal(t, "profile:v1:rule_filtered:7.40:CC(=O)O", k)
	assert.NotEqual(t, k, CacheKey("CC(=O)O", 7.4, "exhaustive", "v1"))
	assert.Equal(t, k, CacheKey("CC(=O)O", 7.4001, "rule_filtered", "v1"))
}

func TestPKas(t *testing.T) {
	r := Record{Entries: []Entry{{PKa: 1}, {PKa: 2.5}}}
	assert.Equal(t, []float64{1, 2.5}, r.PKas())
}

//Personal.AI order the ending
