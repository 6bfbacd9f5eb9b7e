package molecule

import (
	"sort"
	"strconv"
	"strings"
)

// SMILES renders g as a SMILES string. The output is deterministic for a
// given atom numbering (depth-first from the lowest unvisited atom, neighbours
// in ascending index order) and parses back to a Graph Equal to g. It is not a
// canonicalizer: graphs of the same molecule with different numbering may
// render differently.
func (g *Graph) SMILES() string {
	w := &smilesWriter{
		g:        g,
		visited:  make([]bool, g.NumAtoms()),
		emitted:  make([]bool, g.NumAtoms()),
		children: make([][]int, g.NumAtoms()),
		closures: make([][]int, g.NumAtoms()),
		treeBond: make([]bool, g.NumBonds()),
		digits:   make(map[int]int),
	}
	var sb strings.Builder
	for root := 0; root < g.NumAtoms(); root++ {
		if w.visited[root] {
			continue
		}
		w.plan(root, -1)
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		w.emit(&sb, root, -1)
	}
	return sb.String()
}

type smilesWriter struct {
	g        *Graph
	visited  []bool
	emitted  []bool
	children [][]int // tree children in traversal order
	closures [][]int // ring-closure bond indices per atom
	treeBond []bool
	digits   map[int]int // open ring bond -> digit
	inUse    [100]bool
}

func (w *smilesWriter) sortedNeighbors(i int) []int {
	nb := w.g.Neighbors(i)
	sort.Ints(nb)
	return nb
}

// plan runs the depth-first traversal that fixes tree edges and ring closures.
func (w *smilesWriter) plan(u, parentBond int) {
	w.visited[u] = true
	for _, v := range w.sortedNeighbors(u) {
		bi, _ := w.g.BondBetween(u, v)
		if bi == parentBond {
			continue
		}
		if !w.visited[v] {
			w.treeBond[bi] = true
			w.children[u] = append(w.children[u], v)
			w.plan(v, bi)
			continue
		}
		if !w.treeBond[bi] && !containsInt(w.closures[u], bi) {
			w.closures[u] = append(w.closures[u], bi)
			w.closures[v] = append(w.closures[v], bi)
		}
	}
}

func (w *smilesWriter) emit(sb *strings.Builder, u, parentBond int) {
	if parentBond >= 0 {
		sb.WriteString(w.bondSymbol(parentBond))
	}
	sb.WriteString(w.atomSymbol(u))
	w.emitted[u] = true

	for _, bi := range w.closures[u] {
		other := w.g.Bond(bi).Other(u)
		if !w.emitted[other] {
			d := w.allocDigit()
			w.digits[bi] = d
			sb.WriteString(ringDigit(d))
			continue
		}
		d := w.digits[bi]
		sb.WriteString(w.bondSymbol(bi))
		sb.WriteString(ringDigit(d))
		w.inUse[d] = false
		delete(w.digits, bi)
	}

	kids := w.children[u]
	for k, v := range kids {
		bi, _ := w.g.BondBetween(u, v)
		if k < len(kids)-1 {
			sb.WriteByte('(')
			w.emit(sb, v, bi)
			sb.WriteByte(')')
		} else {
			w.emit(sb, v, bi)
		}
	}
}

func (w *smilesWriter) allocDigit() int {
	for d := 1; d < len(w.inUse); d++ {
		if !w.inUse[d] {
			w.inUse[d] = true
			return d
		}
	}
	return 0
}

func ringDigit(d int) string {
	if d < 10 {
		return strconv.Itoa(d)
	}
	return "%" + strconv.Itoa(d)
}

func (w *smilesWriter) bondSymbol(bi int) string {
	b := w.g.Bond(bi)
	aromaticEnds := w.g.Atom(b.Begin).Aromatic && w.g.Atom(b.End).Aromatic
	switch b.Order {
	case BondDouble:
		return "="
	case BondTriple:
		return "#"
	case BondAromatic:
		if aromaticEnds {
			return ""
		}
		return ":"
	default:
		if aromaticEnds {
			return "-"
		}
		return ""
	}
}

func (w *smilesWriter) atomSymbol(i int) string {
	a := w.g.Atom(i)
	symbol := a.Element
	if a.Aromatic {
		symbol = strings.ToLower(symbol)
	}
	totalH := w.g.TotalH(i)
	bare := a.Charge == 0 && a.Isotope == 0 && a.MapNum == 0 &&
		organicSubset[a.Element] && (!a.Aromatic || aromaticCapable[a.Element]) &&
		totalH == w.g.defaultHydrogens(i)
	if bare {
		return symbol
	}

	var sb strings.Builder
	sb.WriteByte('[')
	if a.Isotope > 0 {
		sb.WriteString(strconv.Itoa(a.Isotope))
	}
	sb.WriteString(symbol)
	switch {
	case totalH == 1:
		sb.WriteByte('H')
	case totalH > 1:
		sb.WriteByte('H')
		sb.WriteString(strconv.Itoa(totalH))
	}
	switch {
	case a.Charge == 1:
		sb.WriteByte('+')
	case a.Charge == -1:
		sb.WriteByte('-')
	case a.Charge > 1:
		sb.WriteString("+" + strconv.Itoa(a.Charge))
	case a.Charge < -1:
		sb.WriteString(strconv.Itoa(a.Charge))
	}
	if a.MapNum > 0 {
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(a.MapNum))
	}
	sb.WriteByte(']')
	return sb.String()
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

//Personal.AI order the ending
