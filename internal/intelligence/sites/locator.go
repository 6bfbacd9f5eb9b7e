// Package sites finds atoms of a molecular graph that can take part in a
// protonation or deprotonation event.
package sites

import (
	"fmt"
	"strings"

	"github.com/turtacn/pkasolver/internal/domain/molecule"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// Mode selects how candidate sites are discovered.
type Mode int

const (
	// RuleFiltered keeps only atoms matched by one of the named functional
	// group rules.
	RuleFiltered Mode = iota
	// Exhaustive keeps every heteroatom that could carry or accept a proton.
	Exhaustive
)

func (m Mode) String() string {
	switch m {
	case RuleFiltered:
		return "rule_filtered"
	case Exhaustive:
		return "exhaustive"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts the names used by configuration and the command line.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rule_filtered", "rule-filtered", "rules", "filtered":
		return RuleFiltered, nil
	case "exhaustive", "all":
		return Exhaustive, nil
	default:
		return RuleFiltered, errors.NewValidationError(errors.ErrCodeBadRequest,
			fmt.Sprintf("unknown site mode %q", s))
	}
}

// Locator proposes candidate ionization sites. Returned indices are ascending
// and unique.
type Locator interface {
	Locate(g *molecule.Graph, mode Mode) []int
}

// RuleLocator is the default Locator backed by an ordered rule list.
type RuleLocator struct {
	rules []Rule
}

// NewLocator builds a locator over rules, or over DefaultRules when none are
// given.
func NewLocator(rules ...Rule) *RuleLocator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &RuleLocator{rules: append([]Rule(nil), rules...)}
}

// Rules returns the rules in evaluation order.
func (l *RuleLocator) Rules() []Rule { return append([]Rule(nil), l.rules...) }

// Locate implements Locator.
func (l *RuleLocator) Locate(g *molecule.Graph, mode Mode) []int {
	if g == nil {
		return nil
	}
	var out []int
	for i := 0; i < g.NumAtoms(); i++ {
		var keep bool
		switch mode {
		case Exhaustive:
			keep = IsIonizable(g, i)
		default:
			_, keep = l.match(g, i)
		}
		if keep {
			out = append(out, i)
		}
	}
	return out
}

// Matches returns the name of the first rule matching each matched atom.
func (l *RuleLocator) Matches(g *molecule.Graph) map[int]string {
	out := make(map[int]string)
	if g == nil {
		return out
	}
	for i := 0; i < g.NumAtoms(); i++ {
		if name, ok := l.match(g, i); ok {
			out[i] = name
		}
	}
	return out
}

// RuleNames returns the rule names in evaluation order.
func (l *RuleLocator) RuleNames() []string {
	names := make([]string, len(l.rules))
	for i, r := range l.rules {
		names[i] = r.Name
	}
	return names
}

func (l *RuleLocator) match(g *molecule.Graph, i int) (string, bool) {
	for _, r := range l.rules {
		if r.Match(g, i) {
			return r.Name, true
		}
	}
	return "", false
}

// ─────────────────────────────────────────────────────────────────────────────
// Direction helpers
// ─────────────────────────────────────────────────────────────────────────────

// IsIonizable is the exhaustive-mode criterion.
func IsIonizable(g *molecule.Graph, i int) bool {
	a := g.Atom(i)
	switch a.Element {
	case "N", "O", "S":
	default:
		return false
	}
	if a.Charge < 0 && zwitterionicOxygen(g, i) {
		return false
	}
	return g.TotalH(i) > 0 || a.Charge < 0 || IsBasicNitrogen(g, i)
}

// CanGainProton reports whether site i can accept one more proton.
func CanGainProton(g *molecule.Graph, i int) bool {
	a := g.Atom(i)
	if a.Charge < 0 {
		return !zwitterionicOxygen(g, i)
	}
	return IsBasicNitrogen(g, i)
}

// CanGainProtonIn is CanGainProton for a locator mode. Exhaustive mode also
// offers neutral N, O and S atoms that already carry a hydrogen, such as a
// thiol becoming a sulfonium ion.
func CanGainProtonIn(g *molecule.Graph, i int, mode Mode) bool {
	if CanGainProton(g, i) {
		return true
	}
	if mode != Exhaustive {
		return false
	}
	a := g.Atom(i)
	switch a.Element {
	case "N", "O", "S":
		return a.Charge == 0 && g.TotalH(i) > 0
	}
	return false
}

// CanLoseProton reports whether site i carries a proton that can be removed.
func CanLoseProton(g *molecule.Graph, i int) bool {
	return g.TotalH(i) > 0
}

// IsBasicNitrogen reports a neutral nitrogen with a lone pair available for
// protonation: an amine, an imine or a pyridine-type aromatic nitrogen.
func IsBasicNitrogen(g *molecule.Graph, i int) bool {
	a := g.Atom(i)
	if a.Element != "N" || a.Charge != 0 {
		return false
	}
	if a.Aromatic {
		return g.TotalH(i) == 0 && g.Degree(i) == 2
	}
	for _, bi := range g.AtomBonds(i) {
		b := g.Bond(bi)
		j := b.Other(i)
		switch b.Order {
		case molecule.BondTriple:
			return false
		case molecule.BondDouble:
			// imines are basic, N=O is not
			if g.Atom(j).Element != "C" {
				return false
			}
			return g.TotalDegree(i) == 2
		}
		if isAcylLike(g, j) {
			return false
		}
	}
	return g.TotalDegree(i) == 3
}

// isAcylLike reports a C, S or P atom double bonded to O or S, the pattern
// that turns an attached nitrogen into an amide or sulfonamide.
func isAcylLike(g *molecule.Graph, j int) bool {
	switch g.Atom(j).Element {
	case "C", "S", "P":
	default:
		return false
	}
	return countDoubleBonded(g, j, "O", "S") > 0
}

// zwitterionicOxygen reports an anionic oxygen bound to a cationic atom, as
// in nitro groups and N-oxides.
func zwitterionicOxygen(g *molecule.Graph, i int) bool {
	if g.Atom(i).Element != "O" {
		return false
	}
	for _, j := range g.Neighbors(i) {
		if g.Atom(j).Charge > 0 {
			return true
		}
	}
	return false
}

//Personal.AI order the ending
