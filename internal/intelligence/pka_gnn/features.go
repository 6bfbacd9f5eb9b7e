package pka_gnn

import (
	"fmt"

	"github.com/turtacn/pkasolver/internal/domain/molecule"
	"github.com/turtacn/pkasolver/internal/intelligence/sites"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// ---------------------------------------------------------------------------
// Feature names
// ---------------------------------------------------------------------------

// NodeFeature names one block of the per-atom feature vector.
type NodeFeature string

const (
	NodeElement        NodeFeature = "element"
	NodeFormalCharge   NodeFeature = "formal_charge"
	NodeHybridization  NodeFeature = "hybridization"
	NodeTotalHs        NodeFeature = "total_num_Hs"
	NodeAromatic       NodeFeature = "aromatic_tag"
	NodeTotalValence   NodeFeature = "total_valence"
	NodeTotalDegree    NodeFeature = "total_degree"
	NodeInRing         NodeFeature = "is_in_ring"
	NodeReactionCenter NodeFeature = "reaction_center"
	NodeSMARTS         NodeFeature = "smarts"
)

// EdgeFeature names one block of the per-bond feature vector.
type EdgeFeature string

const (
	EdgeBondType   EdgeFeature = "bond_type"
	EdgeConjugated EdgeFeature = "is_conjugated"
	EdgeRotatable  EdgeFeature = "rotatable"
)

// Encoding tables. Values outside a table fall into its last bin.
var (
	elementBins       = []string{"C", "N", "O", "S", "P", "F", "Cl", "Br", "I"}
	formalChargeBins  = []int{-2, -1, 0, 1, 2}
	hybridizationBins = []molecule.Hybridization{
		molecule.HybridS, molecule.HybridSP, molecule.HybridSP2, molecule.HybridSP3,
		molecule.HybridSP3D, molecule.HybridSP3D2,
	}
	bondTypeBins = []molecule.BondOrder{
		molecule.BondSingle, molecule.BondDouble, molecule.BondTriple, molecule.BondAromatic,
	}
)

const (
	maxHBin       = 4
	maxValenceBin = 6
	maxDegreeBin  = 6
)

// DefaultNodeFeatures returns every node feature in canonical order.
func DefaultNodeFeatures() []NodeFeature {
	return []NodeFeature{
		NodeElement, NodeFormalCharge, NodeHybridization, NodeTotalHs, NodeAromatic,
		NodeTotalValence, NodeTotalDegree, NodeInRing, NodeReactionCenter, NodeSMARTS,
	}
}

// DefaultEdgeFeatures returns every edge feature in canonical order.
func DefaultEdgeFeatures() []EdgeFeature {
	return []EdgeFeature{EdgeBondType, EdgeConjugated, EdgeRotatable}
}

// ---------------------------------------------------------------------------
// Featurizer
// ---------------------------------------------------------------------------

// GraphInput is one featurized molecule. Every bond contributes two directed
// edges, i->j then j->i, sharing the bond's feature row.
type GraphInput struct {
	X        *Tensor
	Src      []int
	Dst      []int
	EdgeAttr *Tensor
}

// Featurizer turns molecular graphs into GraphInput tensors for a fixed
// selection of node and edge features.
type Featurizer struct {
	nodeFeatures []NodeFeature
	edgeFeatures []EdgeFeature
	locator      *sites.RuleLocator
	ruleIndex    map[string]int
	nodeDim      int
	edgeDim      int
}

// NewFeaturizer validates the feature selection. A nil locator uses the
// default rule set for the smarts block.
func NewFeaturizer(node []NodeFeature, edge []EdgeFeature, locator *sites.RuleLocator) (*Featurizer, error) {
	if len(node) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeFeatureUnknown, "at least one node feature is required")
	}
	if locator == nil {
		locator = sites.NewLocator()
	}
	f := &Featurizer{
		nodeFeatures: append([]NodeFeature(nil), node...),
		edgeFeatures: append([]EdgeFeature(nil), edge...),
		locator:      locator,
		ruleIndex:    make(map[string]int),
	}
	for i, name := range locator.RuleNames() {
		f.ruleIndex[name] = i
	}
	seen := make(map[string]bool)
	for _, nf := range node {
		if seen[string(nf)] {
			return nil, errors.NewValidationError(errors.ErrCodeFeatureUnknown, fmt.Sprintf("node feature %q listed twice", nf))
		}
		seen[string(nf)] = true
		w, err := f.nodeWidth(nf)
		if err != nil {
			return nil, err
		}
		f.nodeDim += w
	}
	for _, ef := range edge {
		if seen[string(ef)] {
			return nil, errors.NewValidationError(errors.ErrCodeFeatureUnknown, fmt.Sprintf("edge feature %q listed twice", ef))
		}
		seen[string(ef)] = true
		w, err := edgeWidth(ef)
		if err != nil {
			return nil, err
		}
		f.edgeDim += w
	}
	return f, nil
}

// ParseNodeFeatures converts configuration strings.
func ParseNodeFeatures(names []string) []NodeFeature {
	out := make([]NodeFeature, len(names))
	for i, n := range names {
		out[i] = NodeFeature(n)
	}
	return out
}

// ParseEdgeFeatures converts configuration strings.
func ParseEdgeFeatures(names []string) []EdgeFeature {
	out := make([]EdgeFeature, len(names))
	for i, n := range names {
		out[i] = EdgeFeature(n)
	}
	return out
}

// NodeDim is the width of each atom's feature row.
func (f *Featurizer) NodeDim() int { return f.nodeDim }

// EdgeDim is the width of each edge's feature row.
func (f *Featurizer) EdgeDim() int { return f.edgeDim }

// NodeFeatures returns the selected node features.
func (f *Featurizer) NodeFeatures() []NodeFeature {
	return append([]NodeFeature(nil), f.nodeFeatures...)
}

// EdgeFeatures returns the selected edge features.
func (f *Featurizer) EdgeFeatures() []EdgeFeature {
	return append([]EdgeFeature(nil), f.edgeFeatures...)
}

// RuleNames are the labels of the smarts block, in column order.
func (f *Featurizer) RuleNames() []string { return f.locator.RuleNames() }

func (f *Featurizer) nodeWidth(nf NodeFeature) (int, error) {
	switch nf {
	case NodeElement:
		return len(elementBins) + 1, nil
	case NodeFormalCharge:
		return len(formalChargeBins), nil
	case NodeHybridization:
		return len(hybridizationBins) + 1, nil
	case NodeTotalHs:
		return maxHBin + 1, nil
	case NodeTotalValence:
		return maxValenceBin + 1, nil
	case NodeTotalDegree:
		return maxDegreeBin + 1, nil
	case NodeAromatic, NodeInRing, NodeReactionCenter:
		return 1, nil
	case NodeSMARTS:
		return len(f.ruleIndex), nil
	}
	return 0, errors.NewValidationError(errors.ErrCodeFeatureUnknown, fmt.Sprintf("unknown node feature %q", nf))
}

func edgeWidth(ef EdgeFeature) (int, error) {
	switch ef {
	case EdgeBondType:
		return len(bondTypeBins), nil
	case EdgeConjugated, EdgeRotatable:
		return 1, nil
	}
	return 0, errors.NewValidationError(errors.ErrCodeFeatureUnknown, fmt.Sprintf("unknown edge feature %q", ef))
}

// Featurize encodes g with site marked as the reaction centre.
func (f *Featurizer) Featurize(g *molecule.Graph, site int) (*GraphInput, error) {
	if g == nil || g.NumAtoms() == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeMoleculeEmpty, "cannot featurize an empty graph")
	}
	if site < 0 || site >= g.NumAtoms() {
		return nil, errors.NewValidationError(errors.ErrCodeSiteOutOfRange,
			fmt.Sprintf("site %d outside 0..%d", site, g.NumAtoms()-1))
	}
	var matches map[int]string
	for _, nf := range f.nodeFeatures {
		if nf == NodeSMARTS {
			matches = f.locator.Matches(g)
		}
	}

	x := NewTensor(g.NumAtoms(), f.nodeDim)
	for i := 0; i < g.NumAtoms(); i++ {
		row := x.Row(i)
		off := 0
		for _, nf := range f.nodeFeatures {
			off = f.encodeNode(row, off, nf, g, i, site, matches)
		}
	}

	nb := g.NumBonds()
	in := &GraphInput{
		X:        x,
		Src:      make([]int, 0, 2*nb),
		Dst:      make([]int, 0, 2*nb),
		EdgeAttr: NewTensor(2*nb, f.edgeDim),
	}
	for bi := 0; bi < nb; bi++ {
		b := g.Bond(bi)
		in.Src = append(in.Src, b.Begin, b.End)
		in.Dst = append(in.Dst, b.End, b.Begin)
		fwd := in.EdgeAttr.Row(2 * bi)
		off := 0
		for _, ef := range f.edgeFeatures {
			off = encodeEdge(fwd, off, ef, g, bi)
		}
		copy(in.EdgeAttr.Row(2*bi+1), fwd)
	}
	return in, nil
}

func (f *Featurizer) encodeNode(row []float64, off int, nf NodeFeature, g *molecule.Graph, i, site int, matches map[int]string) int {
	a := g.Atom(i)
	switch nf {
	case NodeElement:
		k := len(elementBins)
		for j, el := range elementBins {
			if a.Element == el {
				k = j
				break
			}
		}
		row[off+k] = 1
		return off + len(elementBins) + 1
	case NodeFormalCharge:
		c := a.Charge
		if c < formalChargeBins[0] {
			c = formalChargeBins[0]
		}
		if c > formalChargeBins[len(formalChargeBins)-1] {
			c = formalChargeBins[len(formalChargeBins)-1]
		}
		row[off+c-formalChargeBins[0]] = 1
		return off + len(formalChargeBins)
	case NodeHybridization:
		k := len(hybridizationBins)
		for j, h := range hybridizationBins {
			if g.Hybridization(i) == h {
				k = j
				break
			}
		}
		row[off+k] = 1
		return off + len(hybridizationBins) + 1
	case NodeTotalHs:
		row[off+clampBin(g.TotalH(i), maxHBin)] = 1
		return off + maxHBin + 1
	case NodeAromatic:
		row[off] = boolFloat(a.Aromatic)
		return off + 1
	case NodeTotalValence:
		row[off+clampBin(g.TotalValence(i), maxValenceBin)] = 1
		return off + maxValenceBin + 1
	case NodeTotalDegree:
		row[off+clampBin(g.TotalDegree(i), maxDegreeBin)] = 1
		return off + maxDegreeBin + 1
	case NodeInRing:
		row[off] = boolFloat(g.InRing(i))
		return off + 1
	case NodeReactionCenter:
		row[off] = boolFloat(i == site)
		return off + 1
	case NodeSMARTS:
		if name, ok := matches[i]; ok {
			row[off+f.ruleIndex[name]] = 1
		}
		return off + len(f.ruleIndex)
	}
	return off
}

func encodeEdge(row []float64, off int, ef EdgeFeature, g *molecule.Graph, bi int) int {
	switch ef {
	case EdgeBondType:
		for j, o := range bondTypeBins {
			if g.Bond(bi).Order == o {
				row[off+j] = 1
			}
		}
		return off + len(bondTypeBins)
	case EdgeConjugated:
		row[off] = boolFloat(g.IsConjugated(bi))
		return off + 1
	case EdgeRotatable:
		row[off] = boolFloat(g.IsRotatable(bi))
		return off + 1
	}
	return off
}

func clampBin(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

//Personal.AI order the ending
