package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pkasolver/pkg/errors"
)

func TestHybridization(t *testing.T) {
	t.Parallel()

	cases := []struct {
		smiles string
		atom   int
		want   Hybridization
	}{
		{"CC(=O)O", 0, HybridSP3},
		{"CC(=O)O", 1, HybridSP2},
		{"CC(=O)O", 2, HybridSP2},
		{"CC(=O)O", 3, HybridSP2},
		{"CC#N", 1, HybridSP},
		{"CC#N", 2, HybridSP},
		{"c1ccncc1", 3, HybridSP2},
		{"C1CCNCC1", 3, HybridSP3},
		{"Nc1ccccc1", 0, HybridSP2},
		{"[NH4+]", 0, HybridSP3},
		{"[Na+]", 0, HybridUnspecified},
		{"OS(=O)(=O)O", 1, HybridSP3},
	}
	for _, tc := range cases {
		g := MustParseSMILES(tc.smiles)
		assert.Equal(t, tc.want, g.Hybridization(tc.atom), "%s atom %d", tc.smiles, tc.atom)
	}
	assert.Equal(t, "SP2", HybridSP2.String())
	assert.Equal(t, "UNSPECIFIED", Hybridization(42).String())
}

func TestTotalValenceAndDegree(t *testing.T) {
	t.Parallel()

	cases := []struct {
		smiles   string
		atom     int
		valence  int
		totalDeg int
	}{
		{"c1ccccc1", 0, 4, 3},
		{"c1ccncc1", 3, 3, 2},
		{"c1cc[nH+]cc1", 3, 4, 3},
		{"CC(=O)O", 1, 4, 3},
		{"c1ccc2ccccc2c1", 3, 4, 3},
		{"C1CC[NH2+]CC1", 3, 4, 4},
	}
	for _, tc := range cases {
		g := MustParseSMILES(tc.smiles)
		assert.Equal(t, tc.valence, g.TotalValence(tc.atom), "%s atom %d", tc.smiles, tc.atom)
		assert.Equal(t, tc.totalDeg, g.TotalDegree(tc.atom), "%s atom %d", tc.smiles, tc.atom)
	}
}

func TestConjugation(t *testing.T) {
	t.Parallel()

	g := MustParseSMILES("CC(=O)O")
	assert.False(t, g.IsConjugated(0))
	assert.True(t, g.IsConjugated(1))
	assert.True(t, g.IsConjugated(2))

	g = MustParseSMILES("C=CC=C")
	for b := 0; b < g.NumBonds(); b++ {
		assert.True(t, g.IsConjugated(b), "butadiene bond %d", b)
	}

	g = MustParseSMILES("C=CCC=C")
	for b := 0; b < g.NumBonds(); b++ {
		assert.False(t, g.IsConjugated(b), "isolated diene bond %d", b)
	}

	g = MustParseSMILES("c1ccccc1")
	for b := 0; b < g.NumBonds(); b++ {
		assert.True(t, g.IsConjugated(b))
	}
}

func TestRotatable(t *testing.T) {
	t.Parallel()

	g := MustParseSMILES("CCCC")
	assert.False(t, g.IsRotatable(0))
	assert.True(t, g.IsRotatable(1))
	assert.False(t, g.IsRotatable(2))

	g = MustParseSMILES("C1CCCCC1")
	for b := 0; b < g.NumBonds(); b++ {
		assert.False(t, g.IsRotatable(b))
	}

	g = MustParseSMILES("CC#CC")
	for b := 0; b < g.NumBonds(); b++ {
		assert.False(t, g.IsRotatable(b))
	}

	g = MustParseSMILES("CC=CC")
	assert.False(t, g.IsRotatable(1))
}

func TestNewGraph_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewGraph([]Atom{{Element: "C"}}, []Bond{{Begin: 0, End: 1, Order: BondSingle}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeParsingFailed))

	_, err = NewGraph([]Atom{{Element: "C"}}, []Bond{{Begin: 0, End: 0, Order: BondSingle}})
	assert.Error(t, err)

	_, err = NewGraph([]Atom{{Element: "C"}, {Element: "C"}}, []Bond{
		{Begin: 0, End: 1, Order: BondSingle},
		{Begin: 1, End: 0, Order: BondDouble},
	})
	assert.Error(t, err)

	_, err = NewGraph([]Atom{{Element: "Zz"}}, nil)
	assert.Error(t, err)

	_, err = NewGraph([]Atom{{Element: "C"}, {Element: "C"}}, []Bond{{Begin: 0, End: 1, Order: 7}})
	assert.Error(t, err)

	g, err := NewGraph([]Atom{{Element: "O"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, g.TotalH(0))
}

func TestWithAtom_SharesTopologyAndLeavesParent(t *testing.T) {
	t.Parallel()

	g := MustParseSMILES("CC(=O)O")
	a := g.Atom(3)
	a.Charge = -1
	next, err := g.WithAtom(3, a)
	require.NoError(t, err)

	assert.Equal(t, 0, g.Atom(3).Charge)
	assert.Equal(t, 1, g.TotalH(3))
	assert.Equal(t, -1, next.Atom(3).Charge)
	assert.Equal(t, 0, next.TotalH(3))
	assert.Equal(t, g.NumBonds(), next.NumBonds())

	_, err = g.WithAtom(9, a)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSiteOutOfRange))
}

func TestDiffSites(t *testing.T) {
	t.Parallel()

	diff, err := DiffSites(MustParseSMILES("O=C(O)CC(O)C(=O)O"), MustParseSMILES("O=C(O)CC(O)C(=O)[O-]"))
	require.NoError(t, err)
	assert.Equal(t, []int{8}, diff)

	_, err = DiffSites(MustParseSMILES("CCO"), MustParseSMILES("CCOC"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeConjugateTopology))

	_, err = DiffSites(MustParseSMILES("CCO"), MustParseSMILES("CCN"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeConjugateTopology))
}

//Personal.AI order the ending
