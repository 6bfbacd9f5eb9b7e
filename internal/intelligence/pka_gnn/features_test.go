package pka_gnn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pkasolver/internal/domain/molecule"
	"github.com/turtacn/pkasolver/internal/intelligence/sites"
	"github.com/turtacn/pkasolver/pkg/errors"
)

func TestNewFeaturizer_Widths(t *testing.T) {
	t.Parallel()

	f, err := NewFeaturizer(DefaultNodeFeatures(), DefaultEdgeFeatures(), nil)
	require.NoError(t, err)
	assert.Equal(t, 10+5+7+5+1+7+7+1+1+len(sites.DefaultRules()), f.NodeDim())
	assert.Equal(t, 4+1+1, f.EdgeDim())
	assert.Equal(t, DefaultNodeFeatures(), f.NodeFeatures())
	assert.Equal(t, DefaultEdgeFeatures(), f.EdgeFeatures())

	f, err = NewFeaturizer([]NodeFeature{NodeElement, NodeReactionCenter}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 11, f.NodeDim())
	assert.Equal(t, 0, f.EdgeDim())
}

func TestNewFeaturizer_Rejects(t *testing.T) {
	t.Parallel()

	_, err := NewFeaturizer(nil, nil, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeatureUnknown))
	_, err = NewFeaturizer([]NodeFeature{"electronegativity"}, nil, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeatureUnknown))
	_, err = NewFeaturizer([]NodeFeature{NodeElement}, []EdgeFeature{"bond_length"}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeatureUnknown))
	_, err = NewFeaturizer([]NodeFeature{NodeElement, NodeElement}, nil, nil)
	assert.Error(t, err)
}

func TestFeaturizer_Featurize(t *testing.T) {
	t.Parallel()

	f, err := NewFeaturizer(
		[]NodeFeature{NodeElement, NodeFormalCharge, NodeTotalHs, NodeReactionCenter, NodeSMARTS},
		[]EdgeFeature{EdgeBondType, EdgeRotatable},
		nil,
	)
	require.NoError(t, err)
	g := molecule.MustParseSMILES("CC(=O)[O-]")
	in, err := f.Featurize(g, 3)
	require.NoError(t, err)

	assert.Equal(t, 4, in.X.Rows)
	assert.Equal(t, f.NodeDim(), in.X.Cols)

	row := in.X.Row(3)
	assert.Equal(t, 1.0, row[2], "oxygen one-hot")
	assert.Equal(t, 1.0, row[10+1], "charge -1")
	assert.Equal(t, 1.0, row[15+0], "no hydrogens")
	assert.Equal(t, 1.0, row[20], "reaction centre")
	assert.Equal(t, 1.0, row[21+0], "carboxylic acid rule")
	assert.Equal(t, 0.0, in.X.Row(0)[20])

	// methyl carbon: element C, neutral, three hydrogens
	row = in.X.Row(0)
	assert.Equal(t, 1.0, row[0])
	assert.Equal(t, 1.0, row[10+2])
	assert.Equal(t, 1.0, row[15+3])

	assert.Equal(t, []int{0, 1, 1, 2, 1, 3}, in.Src)
	assert.Equal(t, []int{1, 0, 2, 1, 3, 1}, in.Dst)
	assert.Equal(t, 6, in.EdgeAttr.Rows)
	assert.Equal(t, in.EdgeAttr.Row(2), in.EdgeAttr.Row(3))
	assert.Equal(t, []float64{0, 1, 0, 0, 0}, in.EdgeAttr.Row(2), "C=O is double and not rotatable")
}

func TestFeaturizer_FeaturizeRejects(t *testing.T) {
	t.Parallel()

	f, err := NewFeaturizer(DefaultNodeFeatures(), DefaultEdgeFeatures(), nil)
	require.NoError(t, err)
	_, err = f.Featurize(molecule.MustParseSMILES("CCO"), 3)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSiteOutOfRange))
	_, err = f.Featurize(nil, 0)
	assert.Error(t, err)
}

func TestFeaturizer_ConjugatesDifferOnlyAtSite(t *testing.T) {
	t.Parallel()

	f, err := NewFeaturizer(DefaultNodeFeatures(), DefaultEdgeFeatures(), nil)
	require.NoError(t, err)
	pair, err := molecule.PairFromSMILES("CC(=O)O", "CC(=O)[O-]", -1)
	require.NoError(t, err)
	s, err := f.Sample(pair, 4.76)
	require.NoError(t, err)

	for i := 0; i < s.Prot.X.Rows; i++ {
		if i == pair.Site {
			assert.NotEqual(t, s.Prot.X.Row(i), s.Deprot.X.Row(i))
			continue
		}
		assert.Equal(t, s.Prot.X.Row(i), s.Deprot.X.Row(i), "atom %d", i)
	}
	assert.Equal(t, s.Prot.EdgeAttr.Data, s.Deprot.EdgeAttr.Data)
}

//Personal.AI order the ending
