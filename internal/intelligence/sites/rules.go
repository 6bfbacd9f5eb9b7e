package sites

import (
	"github.com/turtacn/pkasolver/internal/domain/molecule"
)

// Rule names one functional group and decides whether atom i is its
// ionizable centre.
type Rule struct {
	Name  string
	Match func(g *molecule.Graph, i int) bool
}

// Rule names, in default evaluation order. More specific groups come first
// so that, for example, a tetrazole NH is not reported as a pyridine N.
const (
	RuleCarboxylicAcid   = "carboxylic_acid"
	RuleSulfonicAcid     = "sulfonic_acid"
	RulePhosphonicAcid   = "phosphonic_acid"
	RuleHydroxamicAcid   = "hydroxamic_acid"
	RulePhenol           = "phenol"
	RuleEnol             = "enol"
	RuleActivatedAlcohol = "activated_alcohol"
	RuleThiol            = "thiol"
	RuleTetrazole        = "tetrazole"
	RuleSulfonamide      = "sulfonamide"
	RuleImidazole        = "imidazole"
	RulePyridine         = "pyridine"
	RuleAmidine          = "amidine"
	RuleAliphaticAmine   = "aliphatic_amine"
	RuleAniline          = "aniline"
)

// DefaultRules returns a fresh copy of the bundled rule set.
func DefaultRules() []Rule {
	return []Rule{
		{RuleCarboxylicAcid, isCarboxylicAcid},
		{RuleSulfonicAcid, acidicOxygenOn("S")},
		{RulePhosphonicAcid, acidicOxygenOn("P")},
		{RuleHydroxamicAcid, isHydroxamicAcid},
		{RulePhenol, isPhenol},
		{RuleEnol, isEnol},
		{RuleActivatedAlcohol, isActivatedAlcohol},
		{RuleThiol, isThiol},
		{RuleTetrazole, isTetrazole},
		{RuleSulfonamide, isSulfonamide},
		{RuleImidazole, isImidazole},
		{RulePyridine, isPyridine},
		{RuleAmidine, isAmidine},
		{RuleAliphaticAmine, amine(false)},
		{RuleAniline, amine(true)},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Oxygen and sulfur acids
// ─────────────────────────────────────────────────────────────────────────────

// protic reports a hydroxyl-like terminal atom: it carries a hydrogen or the
// negative charge left after losing one.
func protic(g *molecule.Graph, i int, element string) bool {
	a := g.Atom(i)
	if a.Element != element || a.Aromatic || g.Degree(i) != 1 {
		return false
	}
	return g.TotalH(i) > 0 || a.Charge < 0
}

// singleNeighbor returns the only heavy-atom neighbour of a terminal atom.
func singleNeighbor(g *molecule.Graph, i int) (int, molecule.BondOrder) {
	bi := g.AtomBonds(i)[0]
	b := g.Bond(bi)
	return b.Other(i), b.Order
}

func isCarboxylicAcid(g *molecule.Graph, i int) bool {
	if !protic(g, i, "O") {
		return false
	}
	c, order := singleNeighbor(g, i)
	if order != molecule.BondSingle || g.Atom(c).Element != "C" || g.Atom(c).Aromatic {
		return false
	}
	return countDoubleBonded(g, c, "O") > 0
}

func acidicOxygenOn(center string) func(*molecule.Graph, int) bool {
	return func(g *molecule.Graph, i int) bool {
		if !protic(g, i, "O") {
			return false
		}
		j, order := singleNeighbor(g, i)
		if order != molecule.BondSingle || g.Atom(j).Element != center {
			return false
		}
		return countDoubleBonded(g, j, "O") > 0
	}
}

func isHydroxamicAcid(g *molecule.Graph, i int) bool {
	if !protic(g, i, "O") {
		return false
	}
	n, order := singleNeighbor(g, i)
	if order != molecule.BondSingle || g.Atom(n).Element != "N" {
		return false
	}
	for _, c := range g.Neighbors(n) {
		if g.Atom(c).Element == "C" && countDoubleBonded(g, c, "O") > 0 {
			return true
		}
	}
	return false
}

func isPhenol(g *molecule.Graph, i int) bool {
	if !protic(g, i, "O") {
		return false
	}
	c, _ := singleNeighbor(g, i)
	return g.Atom(c).Aromatic && g.Atom(c).Element == "C"
}

func isEnol(g *molecule.Graph, i int) bool {
	if !protic(g, i, "O") {
		return false
	}
	c, order := singleNeighbor(g, i)
	if order != molecule.BondSingle || g.Atom(c).Element != "C" || g.Atom(c).Aromatic {
		return false
	}
	return countDoubleBonded(g, c, "C") > 0
}

// isActivatedAlcohol matches an sp3 alcohol next to a carbonyl carbon or a
// carbon bearing at least two halogens.
func isActivatedAlcohol(g *molecule.Graph, i int) bool {
	if !protic(g, i, "O") {
		return false
	}
	c, order := singleNeighbor(g, i)
	if order != molecule.BondSingle || g.Atom(c).Element != "C" || g.Hybridization(c) != molecule.HybridSP3 {
		return false
	}
	for _, j := range g.Neighbors(c) {
		if j == i || g.Atom(j).Element != "C" {
			continue
		}
		if countDoubleBonded(g, j, "O") > 0 || countHalogens(g, j) >= 2 {
			return true
		}
	}
	return countHalogens(g, c) >= 2
}

func isThiol(g *molecule.Graph, i int) bool {
	if !protic(g, i, "S") {
		return false
	}
	c, order := singleNeighbor(g, i)
	return order == molecule.BondSingle && g.Atom(c).Element == "C"
}

// ─────────────────────────────────────────────────────────────────────────────
// Nitrogen
// ─────────────────────────────────────────────────────────────────────────────

// isTetrazole matches the acidic NH (or its anion) of a ring with at least
// three other aromatic nitrogens within two bonds.
func isTetrazole(g *molecule.Graph, i int) bool {
	a := g.Atom(i)
	if a.Element != "N" || !a.Aromatic {
		return false
	}
	if g.TotalH(i) == 0 && a.Charge >= 0 {
		return false
	}
	return inAromaticFiveRing(g, i) && aromaticNitrogensWithin2(g, i) >= 3
}

func isSulfonamide(g *molecule.Graph, i int) bool {
	a := g.Atom(i)
	if a.Element != "N" || a.Aromatic || (g.TotalH(i) == 0 && a.Charge >= 0) {
		return false
	}
	for _, j := range g.Neighbors(i) {
		if g.Atom(j).Element == "S" && countDoubleBonded(g, j, "O") > 0 {
			return true
		}
	}
	return false
}

// pyridineLike matches an aromatic two-connected nitrogen either neutral
// without hydrogen or protonated.
func pyridineLike(g *molecule.Graph, i int) bool {
	a := g.Atom(i)
	if a.Element != "N" || !a.Aromatic || g.Degree(i) != 2 {
		return false
	}
	switch a.Charge {
	case 0:
		return g.TotalH(i) == 0
	case 1:
		return g.TotalH(i) == 1
	}
	return false
}

// isImidazole matches the basic nitrogen of imidazoles and the related
// five-membered azoles with fewer than three ring nitrogens nearby.
func isImidazole(g *molecule.Graph, i int) bool {
	if !pyridineLike(g, i) || !inAromaticFiveRing(g, i) {
		return false
	}
	return aromaticNitrogensWithin2(g, i) < 3
}

func isPyridine(g *molecule.Graph, i int) bool {
	return pyridineLike(g, i) && !inAromaticFiveRing(g, i)
}

// isAmidine matches the imine nitrogen of an amidine or guanidine, neutral or
// protonated.
func isAmidine(g *molecule.Graph, i int) bool {
	a := g.Atom(i)
	if a.Element != "N" || a.Aromatic || a.Charge < 0 || a.Charge > 1 {
		return false
	}
	if a.Charge == 1 && g.TotalH(i) == 0 {
		return false
	}
	for _, bi := range g.AtomBonds(i) {
		b := g.Bond(bi)
		if b.Order != molecule.BondDouble {
			continue
		}
		c := b.Other(i)
		if g.Atom(c).Element != "C" {
			return false
		}
		for _, k := range g.Neighbors(c) {
			if k != i && g.Atom(k).Element == "N" && !g.Atom(k).Aromatic {
				return true
			}
		}
	}
	return false
}

// amine matches an sp3 amine or its ammonium form. aromatic selects anilines
// (at least one aromatic neighbour) instead of purely aliphatic amines. The
// amino groups of amidines are left to the imine nitrogen.
func amine(aromatic bool) func(*molecule.Graph, int) bool {
	return func(g *molecule.Graph, i int) bool {
		a := g.Atom(i)
		if a.Element != "N" || a.Aromatic {
			return false
		}
		switch a.Charge {
		case 0:
			if g.TotalDegree(i) != 3 {
				return false
			}
		case 1:
			if g.TotalH(i) == 0 || g.TotalDegree(i) != 4 {
				return false
			}
		default:
			return false
		}
		hasAromatic := false
		for _, bi := range g.AtomBonds(i) {
			b := g.Bond(bi)
			if b.Order != molecule.BondSingle {
				return false
			}
			j := b.Other(i)
			if isAcylLike(g, j) || g.Atom(j).Charge > 0 || countDoubleBonded(g, j, "N") > 0 {
				return false
			}
			if g.Atom(j).Aromatic {
				hasAromatic = true
			}
		}
		return hasAromatic == aromatic
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// countDoubleBonded counts neighbours of j joined by a double bond whose
// element is one of elements.
func countDoubleBonded(g *molecule.Graph, j int, elements ...string) int {
	n := 0
	for _, bi := range g.AtomBonds(j) {
		b := g.Bond(bi)
		if b.Order != molecule.BondDouble {
			continue
		}
		el := g.Atom(b.Other(j)).Element
		for _, want := range elements {
			if el == want {
				n++
				break
			}
		}
	}
	return n
}

func countHalogens(g *molecule.Graph, j int) int {
	n := 0
	for _, k := range g.Neighbors(j) {
		switch g.Atom(k).Element {
		case "F", "Cl", "Br", "I":
			n++
		}
	}
	return n
}

// aromaticNitrogensWithin2 counts distinct aromatic nitrogens other than i
// reachable over at most two aromatic bonds.
func aromaticNitrogensWithin2(g *molecule.Graph, i int) int {
	seen := map[int]bool{i: true}
	n := 0
	visit := func(k int) {
		if seen[k] {
			return
		}
		seen[k] = true
		if g.Atom(k).Element == "N" && g.Atom(k).Aromatic {
			n++
		}
	}
	for _, bi := range g.AtomBonds(i) {
		b := g.Bond(bi)
		if b.Order != molecule.BondAromatic {
			continue
		}
		j := b.Other(i)
		visit(j)
		for _, bj := range g.AtomBonds(j) {
			b2 := g.Bond(bj)
			if b2.Order == molecule.BondAromatic {
				visit(b2.Other(j))
			}
		}
	}
	return n
}

// inAromaticFiveRing reports whether i closes a cycle of five aromatic bonds.
func inAromaticFiveRing(g *molecule.Graph, i int) bool {
	var walk func(u, depth int, onPath map[int]bool) bool
	walk = func(u, depth int, onPath map[int]bool) bool {
		for _, bi := range g.AtomBonds(u) {
			b := g.Bond(bi)
			if b.Order != molecule.BondAromatic {
				continue
			}
			v := b.Other(u)
			if v == i && depth == 4 {
				return true
			}
			if onPath[v] || depth >= 4 {
				continue
			}
			onPath[v] = true
			found := walk(v, depth+1, onPath)
			delete(onPath, v)
			if found {
				return true
			}
		}
		return false
	}
	return walk(i, 0, map[int]bool{i: true})
}

//Personal.AI order the ending
