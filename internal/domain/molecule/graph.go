package molecule

import (
	"fmt"
	"sort"

	"github.com/turtacn/pkasolver/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Graph
// ─────────────────────────────────────────────────────────────────────────────

// Graph is an immutable molecular graph. Topology (atoms and bonds) never
// changes after construction; WithAtom yields a new Graph that shares the
// topology and ring information with its parent.
type Graph struct {
	atoms []Atom
	bonds []Bond
	adj   [][]int // bond indices incident to each atom

	ringBond []bool
	ringAtom []bool

	implicitH []int
	hyb       []Hybridization
	conjBond  []bool
}

// NewGraph validates atoms and bonds and returns a Graph with its property
// cache populated. Kekulé rings are left as written; the parsers call
// Aromatize explicitly.
func NewGraph(atoms []Atom, bonds []Bond) (*Graph, error) {
	g := &Graph{
		atoms: append([]Atom(nil), atoms...),
		bonds: append([]Bond(nil), bonds...),
	}
	if err := g.buildTopology(); err != nil {
		return nil, err
	}
	if err := g.refresh(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) buildTopology() error {
	n := len(g.atoms)
	for i, a := range g.atoms {
		if !KnownElement(a.Element) {
			return errors.NewValidationError(errors.ErrCodeMoleculeParsingFailed,
				fmt.Sprintf("atom %d: unknown element %q", i, a.Element))
		}
		if a.ExplicitH < 0 {
			return errors.NewValidationError(errors.ErrCodeMoleculeValence,
				fmt.Sprintf("atom %d: negative hydrogen count", i))
		}
	}
	g.adj = make([][]int, n)
	seen := make(map[[2]int]bool, len(g.bonds))
	for bi, b := range g.bonds {
		if b.Begin < 0 || b.Begin >= n || b.End < 0 || b.End >= n {
			return errors.NewValidationError(errors.ErrCodeMoleculeParsingFailed,
				fmt.Sprintf("bond %d references a missing atom", bi))
		}
		if b.Begin == b.End {
			return errors.NewValidationError(errors.ErrCodeMoleculeParsingFailed,
				fmt.Sprintf("bond %d is a self loop on atom %d", bi, b.Begin))
		}
		if b.Order < BondSingle || b.Order > BondAromatic {
			return errors.NewValidationError(errors.ErrCodeMoleculeParsingFailed,
				fmt.Sprintf("bond %d has unsupported order %d", bi, int(b.Order)))
		}
		key := bondKey(b.Begin, b.End)
		if seen[key] {
			return errors.NewValidationError(errors.ErrCodeMoleculeParsingFailed,
				fmt.Sprintf("duplicate bond between atoms %d and %d", b.Begin, b.End))
		}
		seen[key] = true
		g.adj[b.Begin] = append(g.adj[b.Begin], bi)
		g.adj[b.End] = append(g.adj[b.End], bi)
	}
	g.perceiveRings()
	return nil
}

// refresh recomputes the per-atom property cache. It is the equivalent of a
// property-cache update after any charge or hydrogen change.
func (g *Graph) refresh() error {
	n := len(g.atoms)
	g.implicitH = make([]int, n)
	for i := range g.atoms {
		used := g.explicitValence(i) + g.atoms[i].ExplicitH
		if limit, ok := g.maxValence(i); ok && !g.atoms[i].Aromatic && used > limit {
			return errors.NewValidationError(errors.ErrCodeMoleculeValence,
				fmt.Sprintf("atom %d (%s) has valence %d, maximum is %d", i, g.atoms[i].Element, used, limit))
		}
		g.implicitH[i] = g.computeImplicitH(i, g.atoms[i])
	}
	g.hyb = make([]Hybridization, n)
	for i := range g.atoms {
		g.hyb[i] = g.perceiveHybridization(i)
	}
	g.conjBond = make([]bool, len(g.bonds))
	for bi := range g.bonds {
		g.conjBond[bi] = g.perceiveConjugation(bi)
	}
	return nil
}

// WithAtom returns a copy of g in which atom i is replaced by a and the
// property cache is recomputed. Topology is shared with g.
func (g *Graph) WithAtom(i int, a Atom) (*Graph, error) {
	if err := g.checkIndex(i); err != nil {
		return nil, err
	}
	if !KnownElement(a.Element) {
		return nil, errors.NewValidationError(errors.ErrCodeMoleculeParsingFailed,
			fmt.Sprintf("unknown element %q", a.Element))
	}
	if a.ExplicitH < 0 {
		return nil, errors.NewValidationError(errors.ErrCodeMoleculeValence,
			fmt.Sprintf("atom %d: negative hydrogen count", i))
	}
	next := &Graph{
		atoms:    append([]Atom(nil), g.atoms...),
		bonds:    g.bonds,
		adj:      g.adj,
		ringBond: g.ringBond,
		ringAtom: g.ringAtom,
	}
	next.atoms[i] = a
	if err := next.refresh(); err != nil {
		return nil, err
	}
	return next, nil
}

func (g *Graph) checkIndex(i int) error {
	if i < 0 || i >= len(g.atoms) {
		return errors.NewValidationError(errors.ErrCodeSiteOutOfRange,
			fmt.Sprintf("atom index %d out of range", i)).WithDetail(fmt.Sprintf("atoms=%d", len(g.atoms)))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Accessors
// ─────────────────────────────────────────────────────────────────────────────

// NumAtoms returns the number of heavy (explicit) atoms.
func (g *Graph) NumAtoms() int { return len(g.atoms) }

// NumBonds returns the number of bonds.
func (g *Graph) NumBonds() int { return len(g.bonds) }

// Atom returns atom i by value. It panics on an out-of-range index like a
// slice access would.
func (g *Graph) Atom(i int) Atom { return g.atoms[i] }

// Atoms returns a copy of the atom list.
func (g *Graph) Atoms() []Atom { return append([]Atom(nil), g.atoms...) }

// Bond returns bond i.
func (g *Graph) Bond(i int) Bond { return g.bonds[i] }

// Bonds returns a copy of the bond list.
func (g *Graph) Bonds() []Bond { return append([]Bond(nil), g.bonds...) }

// AtomBonds returns the indices of the bonds incident to atom i.
func (g *Graph) AtomBonds(i int) []int { return append([]int(nil), g.adj[i]...) }

// Neighbors returns the atoms bonded to atom i in bond order.
func (g *Graph) Neighbors(i int) []int {
	out := make([]int, 0, len(g.adj[i]))
	for _, bi := range g.adj[i] {
		out = append(out, g.bonds[bi].Other(i))
	}
	return out
}

// BondBetween returns the index of the bond joining i and j.
func (g *Graph) BondBetween(i, j int) (int, bool) {
	for _, bi := range g.adj[i] {
		if g.bonds[bi].Other(i) == j {
			return bi, true
		}
	}
	return -1, false
}

// ImplicitH returns the perceived implicit hydrogen count of atom i.
func (g *Graph) ImplicitH(i int) int { return g.implicitH[i] }

// TotalH returns explicit plus implicit hydrogens on atom i.
func (g *Graph) TotalH(i int) int { return g.atoms[i].ExplicitH + g.implicitH[i] }

// Degree returns the number of explicit neighbours of atom i.
func (g *Graph) Degree(i int) int { return len(g.adj[i]) }

// TotalDegree returns neighbours plus hydrogens of atom i.
func (g *Graph) TotalDegree(i int) int { return len(g.adj[i]) + g.TotalH(i) }

// TotalValence returns the valence used by bonds and hydrogens on atom i.
// Aromatic bonds count one each plus one pi electron for carbon-like and
// nitrogen-like aromatic atoms.
func (g *Graph) TotalValence(i int) int {
	return g.explicitValence(i) + g.aromaticPi(i) + g.TotalH(i)
}

// Hybridization returns the perceived hybridization of atom i.
func (g *Graph) Hybridization(i int) Hybridization { return g.hyb[i] }

// InRing reports whether atom i belongs to at least one ring.
func (g *Graph) InRing(i int) bool { return g.ringAtom[i] }

// BondInRing reports whether bond b belongs to at least one ring.
func (g *Graph) BondInRing(b int) bool { return g.ringBond[b] }

// IsConjugated reports whether bond b is part of a conjugated system.
func (g *Graph) IsConjugated(b int) bool { return g.conjBond[b] }

// IsRotatable reports whether bond b is a single, acyclic bond between two
// non-terminal atoms neither of which carries a triple bond.
func (g *Graph) IsRotatable(b int) bool {
	bond := g.bonds[b]
	if bond.Order != BondSingle || g.ringBond[b] {
		return false
	}
	for _, end := range []int{bond.Begin, bond.End} {
		if len(g.adj[end]) < 2 || g.hasBondOrder(end, BondTriple, -1) {
			return false
		}
	}
	return true
}

// NetCharge returns the sum of formal charges.
func (g *Graph) NetCharge() int {
	total := 0
	for _, a := range g.atoms {
		total += a.Charge
	}
	return total
}

// Equal reports whether g and other describe the same molecule with the same
// atom numbering: element, charge, aromaticity, isotope and total hydrogens
// per atom, and the same bonds with the same orders.
func (g *Graph) Equal(other *Graph) bool {
	if g == nil || other == nil {
		return g == other
	}
	if len(g.atoms) != len(other.atoms) || len(g.bonds) != len(other.bonds) {
		return false
	}
	for i, a := range g.atoms {
		b := other.atoms[i]
		if a.Element != b.Element || a.Charge != b.Charge || a.Aromatic != b.Aromatic ||
			a.Isotope != b.Isotope || g.TotalH(i) != other.TotalH(i) {
			return false
		}
	}
	orders := make(map[[2]int]BondOrder, len(g.bonds))
	for _, b := range g.bonds {
		orders[bondKey(b.Begin, b.End)] = b.Order
	}
	for _, b := range other.bonds {
		if o, ok := orders[bondKey(b.Begin, b.End)]; !ok || o != b.Order {
			return false
		}
	}
	return true
}

// DiffSites returns the atom indices whose charge or total hydrogen count
// differ between two graphs of identical topology, in ascending order.
func DiffSites(a, b *Graph) ([]int, error) {
	if a.NumAtoms() != b.NumAtoms() || a.NumBonds() != b.NumBonds() {
		return nil, errors.NewValidationError(errors.ErrCodeConjugateTopology,
			fmt.Sprintf("atom/bond counts differ: %d/%d vs %d/%d", a.NumAtoms(), a.NumBonds(), b.NumAtoms(), b.NumBonds()))
	}
	var out []int
	for i := range a.atoms {
		if a.atoms[i].Element != b.atoms[i].Element {
			return nil, errors.NewValidationError(errors.ErrCodeConjugateTopology,
				fmt.Sprintf("atom %d is %s in one graph and %s in the other", i, a.atoms[i].Element, b.atoms[i].Element))
		}
		if a.atoms[i].Charge != b.atoms[i].Charge || a.TotalH(i) != b.TotalH(i) {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out, nil
}

func bondKey(i, j int) [2]int {
	if i > j {
		i, j = j, i
	}
	return [2]int{i, j}
}

//Personal.AI order the ending
