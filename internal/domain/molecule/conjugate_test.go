package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pkasolver/pkg/errors"
)

func TestTransform_Branches(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		smiles string
		site   int
		pKa    float64
		pH     float64
		want   string
	}{
		{"acid loses proton above its pKa", "CC(=O)O", 3, 8.4, 7.4, "CC(=O)[O-]"},
		{"carboxylate gains proton below pH", "CC(=O)[O-]", 3, 6.4, 7.4, "CC(=O)O"},
		{"amine gains implicit proton", "C1CCNCC1", 3, 6.4, 7.4, "C1CC[NH2+]CC1"},
		{"positive charge is relieved", "C1CC[NH2+]CC1", 3, 5.0, 7.4, "C1CCNCC1"},
		{"aromatic nitrogen gains explicit proton", "C1=CC=NC=C1", 3, 6.4, 7.4, "c1cc[nH+]cc1"},
		{"pyridinium loses proton", "c1cc[nH+]cc1", 3, 8.4, 7.4, "c1ccncc1"},
		{"no hydrogens and pKa above pH", "CC(=O)[O-]", 3, 9.0, 7.4, "CC(=O)O"},
		{"no hydrogens and pKa equal to pH", "c1ccncc1", 3, 7.4, 7.4, "c1cc[nH+]cc1"},
		{"tertiary amine", "CN(C)C", 1, 6.4, 7.4, "C[NH+](C)C"},
		{"phenol", "Oc1ccccc1", 0, 8.4, 7.4, "[O-]c1ccccc1"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g := MustParseSMILES(tc.smiles)
			before := g.SMILES()
			out, err := Transform(g, tc.site, tc.pKa, tc.pH)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.SMILES())
			assert.Equal(t, before, g.SMILES(), "input must not change")
		})
	}
}

func TestTransform_RoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		smiles string
		site   int
	}{
		{"CC(=O)O", 3},
		{"C1CCNCC1", 3},
		{"Oc1ccccc1", 0},
		{"C[NH3+]", 1},
		{"c1cc[nH+]cc1", 3},
		{"c1cc[nH]c1", 3},
		{"OS(=O)(=O)O", 0},
	}
	const pH = 7.4
	for _, tc := range cases {
		g := MustParseSMILES(tc.smiles)
		deprot, err := Transform(g, tc.site, pH+1, pH)
		require.NoError(t, err, tc.smiles)
		assert.Equal(t, g.Atom(tc.site).Charge-1, deprot.Atom(tc.site).Charge, tc.smiles)

		back, err := Transform(deprot, tc.site, pH-1, pH)
		require.NoError(t, err, tc.smiles)
		assert.Equal(t, g.Atom(tc.site).Charge, back.Atom(tc.site).Charge, tc.smiles)
		assert.Equal(t, g.TotalH(tc.site), back.TotalH(tc.site), tc.smiles)
		assert.True(t, g.Equal(back), "%s -> %s -> %s", tc.smiles, deprot.SMILES(), back.SMILES())
	}
}

func TestTransform_Errors(t *testing.T) {
	t.Parallel()

	g := MustParseSMILES("CCO")
	_, err := Transform(g, 3, 5, 7.4)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSiteOutOfRange))
	_, err = Transform(g, -1, 5, 7.4)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSiteOutOfRange))
	_, err = Transform(nil, 0, 5, 7.4)
	assert.True(t, errors.IsValidation(err))
}

func TestProtonateDeprotonate(t *testing.T) {
	t.Parallel()

	g := MustParseSMILES("CC(=O)[O-]")
	prot, err := Protonate(g, 3, DefaultPH)
	require.NoError(t, err)
	assert.Equal(t, "CC(=O)O", prot.SMILES())

	deprot, err := Deprotonate(prot, 3, DefaultPH)
	require.NoError(t, err)
	assert.True(t, deprot.Equal(g))
}

func TestNewConjugatePair(t *testing.T) {
	t.Parallel()

	prot := MustParseSMILES("CC(=O)O")
	deprot := MustParseSMILES("CC(=O)[O-]")

	pair, err := NewConjugatePair(prot, deprot, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, pair.Site)
	assert.Equal(t, "CC(=O)O>>CC(=O)[O-]@3", pair.String())

	_, err = NewConjugatePair(deprot, prot, 3)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConjugateTopology))

	_, err = NewConjugatePair(prot, deprot, 2)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConjugateTopology))

	_, err = NewConjugatePair(prot, prot, 3)
	assert.Error(t, err)

	_, err = NewConjugatePair(nil, deprot, 3)
	assert.Error(t, err)
}

func TestPairFromSMILES_DerivesSite(t *testing.T) {
	t.Parallel()

	pair, err := PairFromSMILES("c1cc[nH+]cc1", "c1ccncc1", -1)
	require.NoError(t, err)
	assert.Equal(t, 3, pair.Site)

	pair, err = PairFromSMILES("C1CC[NH2+]CC1", "C1CCNCC1", -1)
	require.NoError(t, err)
	assert.Equal(t, 3, pair.Site)

	other, err := PairFromSMILES("C1CC[NH2+]CC1", "C1CCNCC1", 3)
	require.NoError(t, err)
	assert.True(t, pair.Equal(other))

	_, err = PairFromSMILES("O=C(O)CC(O)C(=O)O", "O=C([O-])CC(O)C(=O)[O-]", -1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConjugateTopology))

	_, err = PairFromSMILES("C1CC", "C1CCNCC1", -1)
	assert.True(t, errors.IsValidation(err))
}

//Personal.AI order the ending
