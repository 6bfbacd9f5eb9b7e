// Package molecule provides the immutable molecular graph used by every other
// pkasolver component: atoms with formal charge and hydrogen bookkeeping, bonds,
// derived chemical perception (implicit hydrogens, rings, aromaticity,
// hybridization, conjugation), SMILES and MOL V2000 input, SMILES output and the
// conjugate acid/base transform.
package molecule

import (
	"fmt"
	"strings"
)

// ─────────────────────────────────────────────────────────────────────────────
// Elements
// ─────────────────────────────────────────────────────────────────────────────

var atomicNumbers = map[string]int{
	"H": 1, "He": 2, "Li": 3, "Be": 4, "B": 5, "C": 6, "N": 7, "O": 8, "F": 9, "Ne": 10,
	"Na": 11, "Mg": 12, "Al": 13, "Si": 14, "P": 15, "S": 16, "Cl": 17, "Ar": 18,
	"K": 19, "Ca": 20, "Mn": 25, "Fe": 26, "Co": 27, "Ni": 28, "Cu": 29, "Zn": 30,
	"Ga": 31, "Ge": 32, "As": 33, "Se": 34, "Br": 35, "Kr": 36, "Rb": 37, "Sr": 38,
	"Ag": 47, "Sn": 50, "Sb": 51, "Te": 52, "I": 53, "Xe": 54, "Cs": 55, "Ba": 56,
	"Pt": 78, "Au": 79, "Hg": 80, "Pb": 82, "Bi": 83,
}

// AtomicNumber returns the atomic number of an element symbol, or 0 when the
// symbol is unknown.
func AtomicNumber(symbol string) int {
	return atomicNumbers[symbol]
}

// KnownElement reports whether symbol is in the element table.
func KnownElement(symbol string) bool {
	_, ok := atomicNumbers[symbol]
	return ok
}

// defaultValences lists the allowed valences of an element, indexed by its
// effective (isoelectronic) atomic number Z - charge.
var defaultValences = map[int][]int{
	1:  {1},
	5:  {3},
	6:  {4},
	7:  {3},
	8:  {2},
	9:  {1},
	14: {4},
	15: {3, 5},
	16: {2, 4, 6},
	17: {1},
	33: {3, 5},
	34: {2, 4, 6},
	35: {1},
	53: {1, 3, 5},
}

// organicSubset lists the elements that may be written without brackets.
var organicSubset = map[string]bool{
	"B": true, "C": true, "N": true, "O": true, "P": true, "S": true,
	"F": true, "Cl": true, "Br": true, "I": true,
}

// aromaticCapable lists the elements that may be written as lowercase atoms.
var aromaticCapable = map[string]bool{
	"B": true, "C": true, "N": true, "O": true, "P": true, "S": true, "Se": true, "As": true,
}

// ─────────────────────────────────────────────────────────────────────────────
// Atom
// ─────────────────────────────────────────────────────────────────────────────

// Atom is one node of a Graph. Atoms are values; a Graph never exposes a
// pointer into its own storage.
type Atom struct {
	Element   string `json:"element"`
	Charge    int    `json:"charge,omitempty"`
	ExplicitH int    `json:"explicit_h,omitempty"`
	// NoImplicit disables implicit hydrogen perception; bracket atoms and
	// atoms whose hydrogens were frozen during aromaticity perception set it.
	NoImplicit bool `json:"no_implicit,omitempty"`
	Aromatic   bool `json:"aromatic,omitempty"`
	Isotope    int  `json:"isotope,omitempty"`
	MapNum     int  `json:"map_num,omitempty"`
}

// AtomicNum returns the atomic number of the atom's element.
func (a Atom) AtomicNum() int {
	return AtomicNumber(a.Element)
}

func (a Atom) String() string {
	var sb strings.Builder
	sb.WriteString(a.Element)
	if a.Aromatic {
		sb.WriteString("(ar)")
	}
	if a.ExplicitH > 0 {
		fmt.Fprintf(&sb, "H%d", a.ExplicitH)
	}
	switch {
	case a.Charge > 0:
		fmt.Fprintf(&sb, "+%d", a.Charge)
	case a.Charge < 0:
		fmt.Fprintf(&sb, "%d", a.Charge)
	}
	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// Bond
// ─────────────────────────────────────────────────────────────────────────────

// BondOrder is the multiplicity of a bond.
type BondOrder int

const (
	BondSingle   BondOrder = 1
	BondDouble   BondOrder = 2
	BondTriple   BondOrder = 3
	BondAromatic BondOrder = 4
)

// valenceContribution is the valence the bond uses
// at each endpoint. Aromatic bonds contribute one; the extra pi electron is
// accounted per atom.
func (o BondOrder) valenceContribution() int {
	switch o {
	case BondDouble:
		return 2
	case BondTriple:
		return 3
	default:
		return 1
	}
}

// IsMultiple reports double, triple and aromatic bonds.
func (o BondOrder) IsMultiple() bool {
	return o == BondDouble || o == BondTriple || o == BondAromatic
}

func (o BondOrder) String() string {
	switch o {
	case BondSingle:
		return "SINGLE"
	case BondDouble:
		return "DOUBLE"
	case BondTriple:
		return "TRIPLE"
	case BondAromatic:
		return "AROMATIC"
	default:
		return fmt.Sprintf("BondOrder(%d)", int(o))
	}
}

// Bond connects atoms Begin and End.
type Bond struct {
	Begin int       `json:"begin"`
	End   int       `json:"end"`
	Order BondOrder `json:"order"`
}

// Other returns the endpoint of b that is not i.
func (b Bond) Other(i int) int {
	if b.Begin == i {
		return b.End
	}
	return b.Begin
}

// ─────────────────────────────────────────────────────────────────────────────
// Hybridization
// ─────────────────────────────────────────────────────────────────────────────

// Hybridization is the perceived orbital hybridization of an atom.
type Hybridization int

const (
	HybridUnspecified Hybridization = iota
	HybridS
	HybridSP
	HybridSP2
	HybridSP3
	HybridSP3D
	HybridSP3D2
)

func (h Hybridization) String() string {
	switch h {
	case HybridS:
		return "S"
	case HybridSP:
		return "SP"
	case HybridSP2:
		return "SP2"
	case HybridSP3:
		return "SP3"
	case HybridSP3D:
		return "SP3D"
	case HybridSP3D2:
		return "SP3D2"
	default:
		return "UNSPECIFIED"
	}
}

//Personal.AI order the ending
