package molecule

import (
	"fmt"

	"github.com/turtacn/pkasolver/pkg/errors"
)

// DefaultPH is the reference pH used when callers do not supply one.
const DefaultPH = 7.4

// Transform derives the conjugate acid or base of g at atom site for a
// predicted pKa at reference pH. g is not modified.
//
// Precedence:
//  1. pKa > pH with at least one hydrogen on the site, or a positive charge:
//     remove a proton (charge -1, one explicit hydrogen fewer if any).
//  2. pKa < pH and charge <= 0: add a proton (charge +1, one explicit
//     hydrogen more when the site has no hydrogens or has explicit ones).
//  3. Otherwise (pKa >= pH and no hydrogens): same adjustment as 2.
//
// Implicit hydrogens are re-perceived on the result, so an amine nitrogen
// gains its extra hydrogen through the valence model.
func Transform(g *Graph, site int, pKa, pH float64) (*Graph, error) {
	if g == nil {
		return nil, errors.NewValidationError(errors.ErrCodeMoleculeEmpty, "nil graph")
	}
	if err := g.checkIndex(site); err != nil {
		return nil, err
	}
	atom := g.Atom(site)
	totalH := g.TotalH(site)
	explicitH := atom.ExplicitH

	switch {
	case (pKa > pH && totalH > 0) || atom.Charge > 0:
		atom.Charge--
		if explicitH > 0 {
			atom.ExplicitH--
		}
	case pKa < pH && atom.Charge <= 0:
		atom.Charge++
		if totalH == 0 || explicitH > 0 {
			atom.ExplicitH++
		}
	default:
		// Same adjustment as the protonation branch.
		atom.Charge++
		if totalH == 0 || explicitH > 0 {
			atom.ExplicitH++
		}
	}

	out, err := g.WithAtom(site, atom)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeUnknown, "conjugate of atom %d", site)
	}
	return out, nil
}

// Protonate returns the conjugate acid at site. It is Transform with a pKa
// one unit below pH.
func Protonate(g *Graph, site int, pH float64) (*Graph, error) {
	return Transform(g, site, pH-1, pH)
}

// Deprotonate returns the conjugate base at site. It is Transform with a pKa
// one unit above pH.
func Deprotonate(g *Graph, site int, pH float64) (*Graph, error) {
	return Transform(g, site, pH+1, pH)
}

// ─────────────────────────────────────────────────────────────────────────────
// ConjugatePair
// ─────────────────────────────────────────────────────────────────────────────

// ConjugatePair is an ordered (more protonated, less protonated) pair of
// graphs with identical topology that differ only at Site.
type ConjugatePair struct {
	Protonated   *Graph
	Deprotonated *Graph
	Site         int
}

// NewConjugatePair validates that prot and deprot share a topology and differ
// at site only, with prot carrying the extra proton.
func NewConjugatePair(prot, deprot *Graph, site int) (ConjugatePair, error) {
	if prot == nil || deprot == nil {
		return ConjugatePair{}, errors.NewValidationError(errors.ErrCodeMoleculeEmpty, "nil graph in conjugate pair")
	}
	diff, err := DiffSites(prot, deprot)
	if err != nil {
		return ConjugatePair{}, err
	}
	if len(diff) != 1 || diff[0] != site {
		return ConjugatePair{}, errors.NewValidationError(errors.ErrCodeConjugateTopology,
			fmt.Sprintf("graphs must differ at site %d only, differ at %v", site, diff))
	}
	if prot.Atom(site).Charge != deprot.Atom(site).Charge+1 {
		return ConjugatePair{}, errors.NewValidationError(errors.ErrCodeConjugateTopology,
			fmt.Sprintf("protonated member must carry one more charge at site %d", site))
	}
	return ConjugatePair{Protonated: prot, Deprotonated: deprot, Site: site}, nil
}

// PairFromSMILES parses both members and, when site is negative, derives the
// reaction centre as the single atom whose charge or hydrogen count differs.
func PairFromSMILES(protSMILES, deprotSMILES string, site int) (ConjugatePair, error) {
	prot, err := ParseSMILES(protSMILES)
	if err != nil {
		return ConjugatePair{}, err
	}
	deprot, err := ParseSMILES(deprotSMILES)
	if err != nil {
		return ConjugatePair{}, err
	}
	if site < 0 {
		diff, err := DiffSites(prot, deprot)
		if err != nil {
			return ConjugatePair{}, err
		}
		if len(diff) != 1 {
			return ConjugatePair{}, errors.NewValidationError(errors.ErrCodeConjugateTopology,
				fmt.Sprintf("expected exactly one differing atom, found %d", len(diff)))
		}
		site = diff[0]
	}
	return NewConjugatePair(prot, deprot, site)
}

// Equal reports whether both members and the site match.
func (p ConjugatePair) Equal(other ConjugatePair) bool {
	return p.Site == other.Site && p.Protonated.Equal(other.Protonated) && p.Deprotonated.Equal(other.Deprotonated)
}

func (p ConjugatePair) String() string {
	return fmt.Sprintf("%s>>%s@%d", p.Protonated.SMILES(), p.Deprotonated.SMILES(), p.Site)
}

//Personal.AI order the ending
