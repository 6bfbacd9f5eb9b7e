package molecule

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pkasolver/pkg/errors"
)

const acetateMol = `acetate
  pkasolver

  4  3  0  0  0  0  0  0  0  0999 V2000
    0.0000    0.0000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    1.5000    0.0000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    2.2500    1.2990    0.0000 O   0  0  0  0  0  0  0  0  0  0  0  0
    2.2500   -1.2990    0.0000 O   0  0  0  0  0  0  0  0  0  0  0  0
  1  2  1  0
  2  3  2  0
  2  4  1  0
M  CHG  1   4  -1
M  END`

const ammoniumMol = `ammonium
  pkasolver

  5  4  0  0  0  0  0  0  0  0999 V2000
    0.0000    0.0000    0.0000 N   0  3  0  0  0  0  0  0  0  0  0  0
    1.0000    0.0000    0.0000 H   0  0  0  0  0  0  0  0  0  0  0  0
   -1.0000    0.0000    0.0000 H   0  0  0  0  0  0  0  0  0  0  0  0
    0.0000    1.0000    0.0000 H   0  0  0  0  0  0  0  0  0  0  0  0
    0.0000   -1.0000    0.0000 H   0  0  0  0  0  0  0  0  0  0  0  0
  1  2  1  0
  1  3  1  0
  1  4  1  0
  1  5  1  0
M  END`

const pyridineMol = `pyridine
  pkasolver

  6  6  0  0  0  0  0  0  0  0999 V2000
    0.0000    1.4000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    1.2124    0.7000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    1.2124   -0.7000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
    0.0000   -1.4000    0.0000 N   0  0  0  0  0  0  0  0  0  0  0  0
   -1.2124   -0.7000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
   -1.2124    0.7000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
  1  2  2  0
  2  3  1  0
  3  4  2  0
  4  5  1  0
  5  6  2  0
  6  1  1  0
M  END`

func TestParseMolBlock_ChargeLines(t *testing.T) {
	t.Parallel()

	g, err := ParseMolBlock(acetateMol)
	require.NoError(t, err)
	assert.Equal(t, "CC(=O)[O-]", g.SMILES())
	assert.True(t, g.Equal(MustParseSMILES("CC(=O)[O-]")))
}

func TestParseMolBlock_FoldsHydrogensAndAtomBlockCharge(t *testing.T) {
	t.Parallel()

	g, err := ParseMolBlock(ammoniumMol)
	require.NoError(t, err)
	require.Equal(t, 1, g.NumAtoms())
	assert.Equal(t, 1, g.Atom(0).Charge)
	assert.Equal(t, 4, g.TotalH(0))
	assert.Equal(t, "[NH4+]", g.SMILES())
}

func TestParseMolBlock_KekuleAromatized(t *testing.T) {
	t.Parallel()

	g, err := ParseMolBlock(pyridineMol)
	require.NoError(t, err)
	assert.Equal(t, "c1ccncc1", g.SMILES())
}

func TestParseMolBlock_Errors(t *testing.T) {
	t.Parallel()

	_, err := ParseMolBlock("x\ny")
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeInvalidFormat))

	v3000 := strings.Replace(acetateMol, "V2000", "V3000", 1)
	_, err = ParseMolBlock(v3000)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeInvalidFormat))

	truncated := strings.Join(strings.Split(acetateMol, "\n")[:6], "\n")
	_, err = ParseMolBlock(truncated)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeInvalidFormat))

	badElement := strings.Replace(acetateMol, " O   0", " Xx  0", 1)
	_, err = ParseMolBlock(badElement)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeInvalidFormat))

	badBond := strings.Replace(acetateMol, "  2  4  1  0", "  2  9  1  0", 1)
	_, err = ParseMolBlock(badBond)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeInvalidFormat))
}

func TestReadSDF(t *testing.T) {
	t.Parallel()

	sdf := acetateMol + "\n>  <name>\nacetate\n\n$$$$\n" + pyridineMol + "\n$$$$\n"
	graphs, err := ReadSDF(strings.NewReader(sdf))
	require.NoError(t, err)
	require.Len(t, graphs, 2)
	assert.Equal(t, "CC(=O)[O-]", graphs[0].SMILES())
	assert.Equal(t, "c1ccncc1", graphs[1].SMILES())

	_, err = ReadSDF(strings.NewReader("broken\n$$$$\n"))
	assert.Error(t, err)
}

func TestMolChargeCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, molChargeCode(3))
	assert.Equal(t, -1, molChargeCode(5))
	assert.Equal(t, 3, molChargeCode(1))
	assert.Equal(t, -3, molChargeCode(7))
	assert.Equal(t, 0, molChargeCode(4))
}

//Personal.AI order the ending
