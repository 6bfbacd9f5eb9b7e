package molecule

// ─────────────────────────────────────────────────────────────────────────────
// Valence and hydrogens
// ─────────────────────────────────────────────────────────────────────────────

func (g *Graph) explicitValence(i int) int {
	sum := 0
	for _, bi := range g.adj[i] {
		sum += g.bonds[bi].Order.valenceContribution()
	}
	return sum
}

func (g *Graph) hasBondOrder(i int, order BondOrder, except int) bool {
	for _, bi := range g.adj[i] {
		if bi != except && g.bonds[bi].Order == order {
			return true
		}
	}
	return false
}

func (g *Graph) hasMultipleExcept(i, except int) bool {
	for _, bi := range g.adj[i] {
		if bi != except && g.bonds[bi].Order.IsMultiple() {
			return true
		}
	}
	return false
}

// aromaticPiFor is the extra valence an aromatic atom spends on the ring pi
// system: one for carbon-like and nitrogen-like atoms without an exocyclic
// multiple bond.
func (g *Graph) aromaticPiFor(i int, a Atom) int {
	if !a.Aromatic {
		return 0
	}
	if z := a.AtomicNum() - a.Charge; z != 6 && z != 7 {
		return 0
	}
	if g.hasBondOrder(i, BondDouble, -1) || g.hasBondOrder(i, BondTriple, -1) {
		return 0
	}
	return 1
}

func (g *Graph) aromaticPi(i int) int {
	return g.aromaticPiFor(i, g.atoms[i])
}

func (g *Graph) maxValence(i int) (int, bool) {
	a := g.atoms[i]
	vals := defaultValences[a.AtomicNum()-a.Charge]
	if len(vals) == 0 {
		return 0, false
	}
	return vals[len(vals)-1], true
}

// computeImplicitH returns the implicit hydrogens atom a would carry at
// position i: the smallest allowed valence of the isoelectronic element that
// accommodates the bonds, explicit hydrogens and aromatic pi electron.
func (g *Graph) computeImplicitH(i int, a Atom) int {
	if a.NoImplicit {
		return 0
	}
	vals := defaultValences[a.AtomicNum()-a.Charge]
	if len(vals) == 0 {
		return 0
	}
	used := g.explicitValence(i) + a.ExplicitH + g.aromaticPiFor(i, a)
	for _, v := range vals {
		if v >= used {
			return v - used
		}
	}
	return 0
}

// defaultHydrogens is the hydrogen count atom i would get if it were written
// without brackets.
func (g *Graph) defaultHydrogens(i int) int {
	a := g.atoms[i]
	a.NoImplicit = false
	a.ExplicitH = 0
	return g.computeImplicitH(i, a)
}

// ─────────────────────────────────────────────────────────────────────────────
// Rings
// ─────────────────────────────────────────────────────────────────────────────

// perceiveRings marks every non-bridge bond as a ring bond: its endpoints
// stay connected when the bond is removed.
func (g *Graph) perceiveRings() {
	n := len(g.atoms)
	disc := make([]int, n)
	low := make([]int, n)
	bridge := make([]bool, len(g.bonds))
	timer := 0

	var visit func(u, parentBond int)
	visit = func(u, parentBond int) {
		timer++
		disc[u], low[u] = timer, timer
		for _, bi := range g.adj[u] {
			if bi == parentBond {
				continue
			}
			v := g.bonds[bi].Other(u)
			if disc[v] == 0 {
				visit(v, bi)
				low[u] = min(low[u], low[v])
				if low[v] > disc[u] {
					bridge[bi] = true
				}
			} else {
				low[u] = min(low[u], disc[v])
			}
		}
	}
	for i := 0; i < n; i++ {
		if disc[i] == 0 {
			visit(i, -1)
		}
	}

	g.ringBond = make([]bool, len(g.bonds))
	g.ringAtom = make([]bool, n)
	for bi, b := range g.bonds {
		if !bridge[bi] {
			g.ringBond[bi] = true
			g.ringAtom[b.Begin] = true
			g.ringAtom[b.End] = true
		}
	}
}

// smallRings enumerates simple cycles of at most maxSize atoms. Each cycle is
// reported once, starting at its lowest atom index.
func (g *Graph) smallRings(maxSize int) [][]int {
	var rings [][]int
	onPath := make([]bool, len(g.atoms))
	path := make([]int, 0, maxSize)

	var walk func(start, u int)
	walk = func(start, u int) {
		for _, bi := range g.adj[u] {
			if !g.ringBond[bi] {
				continue
			}
			v := g.bonds[bi].Other(u)
			if v == start && len(path) >= 3 {
				if path[1] < path[len(path)-1] {
					rings = append(rings, append([]int(nil), path...))
				}
				continue
			}
			if v < start || onPath[v] || len(path) >= maxSize {
				continue
			}
			onPath[v] = true
			path = append(path, v)
			walk(start, v)
			path = path[:len(path)-1]
			onPath[v] = false
		}
	}
	for s := range g.atoms {
		if !g.ringAtom[s] {
			continue
		}
		path = append(path[:0], s)
		onPath[s] = true
		walk(s, s)
		onPath[s] = false
	}
	return rings
}

// ─────────────────────────────────────────────────────────────────────────────
// Aromaticity
// ─────────────────────────────────────────────────────────────────────────────

// ringElectrons returns the number of pi electrons atom i donates to ring.
// ok is false when the atom cannot take part in an aromatic ring.
func (g *Graph) ringElectrons(i int, ring map[int]bool) (electrons int, ok bool) {
	a := g.atoms[i]
	if !aromaticCapable[a.Element] {
		return 0, false
	}
	ringDouble, exoDouble := 0, 0
	for _, bi := range g.adj[i] {
		b := g.bonds[bi]
		switch b.Order {
		case BondTriple, BondAromatic:
			return 0, false
		case BondDouble:
			if ring[b.Other(i)] || g.ringBond[bi] {
				ringDouble++
			} else {
				exoDouble++
			}
		}
	}
	switch {
	case ringDouble == 1:
		return 1, true
	case ringDouble > 1:
		return 0, false
	case exoDouble > 0:
		return 0, true
	}

	z, deg := a.AtomicNum(), g.TotalDegree(i)
	switch {
	case a.Charge < 0 && (z == 6 || z == 7):
		return 2, true
	case z == 6 && a.Charge > 0:
		return 0, true
	case z == 5 && a.Charge == 0:
		return 0, true
	case (z == 7 || z == 15) && a.Charge == 0 && deg == 3:
		return 2, true
	case (z == 8 || z == 16 || z == 34) && a.Charge == 0 && deg == 2:
		return 2, true
	}
	return 0, false
}

// Aromatize converts Kekulé rings of five to seven atoms that satisfy the
// Hückel 4n+2 rule into aromatic form. Hydrogen counts of converted atoms are
// frozen as explicit counts. g is returned unchanged when no ring converts.
func (g *Graph) Aromatize() (*Graph, error) {
	aromAtoms := make(map[int]bool)
	aromBonds := make(map[int]bool)

	for _, ring := range g.smallRings(7) {
		if len(ring) < 5 {
			continue
		}
		members := make(map[int]bool, len(ring))
		already := false
		for _, i := range ring {
			members[i] = true
			if g.atoms[i].Aromatic {
				already = true
			}
		}
		if already {
			continue
		}
		total := 0
		valid := true
		for _, i := range ring {
			e, ok := g.ringElectrons(i, members)
			if !ok {
				valid = false
				break
			}
			total += e
		}
		if !valid || total < 2 || (total-2)%4 != 0 {
			continue
		}
		for k, i := range ring {
			aromAtoms[i] = true
			if bi, ok := g.BondBetween(i, ring[(k+1)%len(ring)]); ok {
				aromBonds[bi] = true
			}
		}
	}
	if len(aromAtoms) == 0 {
		return g, nil
	}

	atoms := g.Atoms()
	for i := range aromAtoms {
		atoms[i].ExplicitH = g.TotalH(i)
		atoms[i].NoImplicit = true
		atoms[i].Aromatic = true
	}
	bonds := g.Bonds()
	for bi := range aromBonds {
		bonds[bi].Order = BondAromatic
	}
	return NewGraph(atoms, bonds)
}

// ─────────────────────────────────────────────────────────────────────────────
// Hybridization and conjugation
// ─────────────────────────────────────────────────────────────────────────────

// hasLonePair reports neutral or anionic N, O and S atoms without multiple
// bonds that can donate into an adjacent pi system.
func (g *Graph) hasLonePair(i int) bool {
	a := g.atoms[i]
	switch a.AtomicNum() {
	case 7, 8, 16:
	default:
		return false
	}
	return a.Charge <= 0 && !g.hasMultipleExcept(i, -1) && g.TotalDegree(i) < 4
}

func (g *Graph) adjacentToPi(i int) bool {
	for _, bi := range g.adj[i] {
		if g.hasMultipleExcept(g.bonds[bi].Other(i), bi) {
			return true
		}
	}
	return false
}

func (g *Graph) perceiveHybridization(i int) Hybridization {
	a := g.atoms[i]
	z := a.AtomicNum()
	deg := g.TotalDegree(i)
	if z == 1 {
		return HybridS
	}
	if deg == 0 {
		return HybridUnspecified
	}
	if a.Aromatic {
		return HybridSP2
	}
	doubles, triples := 0, 0
	for _, bi := range g.adj[i] {
		switch g.bonds[bi].Order {
		case BondDouble:
			doubles++
		case BondTriple:
			triples++
		}
	}
	switch {
	case deg >= 6:
		return HybridSP3D2
	case deg == 5:
		return HybridSP3D
	case triples > 0 || (doubles >= 2 && deg == 2):
		return HybridSP
	case deg >= 4:
		return HybridSP3
	case doubles == 1:
		return HybridSP2
	case g.hasLonePair(i) && g.adjacentToPi(i):
		return HybridSP2
	case z == 6 && a.Charge > 0 && deg == 3:
		return HybridSP2
	case z == 5 && deg == 3:
		return HybridSP2
	}
	return HybridSP3
}

func (g *Graph) perceiveConjugation(bi int) bool {
	b := g.bonds[bi]
	switch b.Order {
	case BondAromatic:
		return true
	case BondDouble, BondTriple:
		for _, end := range [2]int{b.Begin, b.End} {
			for _, b2 := range g.adj[end] {
				if b2 == bi {
					continue
				}
				if g.bonds[b2].Order.IsMultiple() {
					return true
				}
				w := g.bonds[b2].Other(end)
				if g.hasMultipleExcept(w, b2) || g.hasLonePair(w) {
					return true
				}
			}
		}
		return false
	}
	pu := g.hasMultipleExcept(b.Begin, bi)
	pv := g.hasMultipleExcept(b.End, bi)
	return (pu && (pv || g.hasLonePair(b.End))) || (pv && g.hasLonePair(b.Begin))
}

//Personal.AI order the ending
