package pka_gnn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/turtacn/pkasolver/internal/domain/molecule"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// ---------------------------------------------------------------------------
// Samples
// ---------------------------------------------------------------------------

// Sample is one featurized conjugate pair. PKa is the regression target and
// is ignored at inference.
type Sample struct {
	Pair   molecule.ConjugatePair
	Prot   *GraphInput
	Deprot *GraphInput
	PKa    float64
}

// Sample featurizes both members of pair with the pair's site as the
// reaction centre.
func (f *Featurizer) Sample(pair molecule.ConjugatePair, pka float64) (Sample, error) {
	prot, err := f.Featurize(pair.Protonated, pair.Site)
	if err != nil {
		return Sample{}, errors.Wrap(err, errors.ErrCodeAIInputInvalid, "featurize protonated member")
	}
	deprot, err := f.Featurize(pair.Deprotonated, pair.Site)
	if err != nil {
		return Sample{}, errors.Wrap(err, errors.ErrCodeAIInputInvalid, "featurize deprotonated member")
	}
	return Sample{Pair: pair, Prot: prot, Deprot: deprot, PKa: pka}, nil
}

// ---------------------------------------------------------------------------
// Batches
// ---------------------------------------------------------------------------

// branchBatch is the disjoint union of one member of every pair in a batch.
// Seg maps each node to its graph.
type branchBatch struct {
	X         *Tensor
	Src       []int
	Dst       []int
	EdgeAttr  *Tensor
	Seg       []int
	NumGraphs int

	gcnSrc  []int
	gcnDst  []int
	gcnNorm []float64
}

// gcnEdges returns the edge list with one self loop per node and the
// symmetric normalization 1/sqrt(deg(src) deg(dst)).
func (b *branchBatch) gcnEdges() ([]int, []int, []float64) {
	if b.gcnNorm != nil {
		return b.gcnSrc, b.gcnDst, b.gcnNorm
	}
	n := b.X.Rows
	src := make([]int, 0, len(b.Src)+n)
	dst := make([]int, 0, len(b.Dst)+n)
	src = append(src, b.Src...)
	dst = append(dst, b.Dst...)
	for i := 0; i < n; i++ {
		src = append(src, i)
		dst = append(dst, i)
	}
	deg := make([]float64, n)
	for _, d := range dst {
		deg[d]++
	}
	norm := make([]float64, len(src))
	for e := range src {
		norm[e] = 1 / math.Sqrt(deg[src[e]]*deg[dst[e]])
	}
	b.gcnSrc, b.gcnDst, b.gcnNorm = src, dst, norm
	return src, dst, norm
}

func stackBranch(inputs []*GraphInput) (*branchBatch, error) {
	nodes, edges := 0, 0
	nodeDim, edgeDim := inputs[0].X.Cols, inputs[0].EdgeAttr.Cols
	for k, in := range inputs {
		if in.X.Cols != nodeDim || in.EdgeAttr.Cols != edgeDim {
			return nil, errors.NewValidationError(errors.ErrCodeAIInputInvalid,
				fmt.Sprintf("graph %d has feature widths %d/%d, expected %d/%d", k, in.X.Cols, in.EdgeAttr.Cols, nodeDim, edgeDim))
		}
		nodes += in.X.Rows
		edges += len(in.Src)
	}
	b := &branchBatch{
		X:         NewTensor(nodes, nodeDim),
		Src:       make([]int, 0, edges),
		Dst:       make([]int, 0, edges),
		EdgeAttr:  NewTensor(edges, edgeDim),
		Seg:       make([]int, 0, nodes),
		NumGraphs: len(inputs),
	}
	nodeOff, edgeOff := 0, 0
	for k, in := range inputs {
		copy(b.X.Data[nodeOff*nodeDim:], in.X.Data)
		copy(b.EdgeAttr.Data[edgeOff*edgeDim:], in.EdgeAttr.Data)
		for e := range in.Src {
			b.Src = append(b.Src, in.Src[e]+nodeOff)
			b.Dst = append(b.Dst, in.Dst[e]+nodeOff)
		}
		for i := 0; i < in.X.Rows; i++ {
			b.Seg = append(b.Seg, k)
		}
		nodeOff += in.X.Rows
		edgeOff += len(in.Src)
	}
	return b, nil
}

// Batch holds both branches of a set of samples and their targets.
type Batch struct {
	Prot   *branchBatch
	Deprot *branchBatch
	Y      []float64
	Size   int
}

// NewBatch stacks samples into one disjoint-union batch.
func NewBatch(samples []Sample) (*Batch, error) {
	if len(samples) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeAIInputInvalid, "empty batch")
	}
	prot := make([]*GraphInput, len(samples))
	deprot := make([]*GraphInput, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		if s.Prot == nil || s.Deprot == nil {
			return nil, errors.NewValidationError(errors.ErrCodeAIInputInvalid, fmt.Sprintf("sample %d is not featurized", i))
		}
		prot[i], deprot[i], y[i] = s.Prot, s.Deprot, s.PKa
	}
	pb, err := stackBranch(prot)
	if err != nil {
		return nil, err
	}
	db, err := stackBranch(deprot)
	if err != nil {
		return nil, err
	}
	return &Batch{Prot: pb, Deprot: db, Y: y, Size: len(samples)}, nil
}

// ---------------------------------------------------------------------------
// Loader
// ---------------------------------------------------------------------------

// Loader splits samples into batches, optionally reshuffling each pass with
// its own seeded source.
type Loader struct {
	samples   []Sample
	batchSize int
	shuffle   bool
	rng       *rand.Rand
}

// NewLoader returns a loader. batchSize <= 0 puts everything in one batch.
func NewLoader(samples []Sample, batchSize int, shuffle bool, seed int64) *Loader {
	if batchSize <= 0 {
		batchSize = len(samples)
	}
	return &Loader{
		samples:   samples,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Len is the number of samples.
func (l *Loader) Len() int { return len(l.samples) }

// Samples returns the samples in their stored order.
func (l *Loader) Samples() []Sample { return l.samples }

// Batches returns one pass over the data.
func (l *Loader) Batches() ([]*Batch, error) {
	if len(l.samples) == 0 {
		return nil, nil
	}
	order := make([]int, len(l.samples))
	for i := range order {
		order[i] = i
	}
	if l.shuffle {
		l.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	var out []*Batch
	for start := 0; start < len(order); start += l.batchSize {
		end := start + l.batchSize
		if end > len(order) {
			end = len(order)
		}
		chunk := make([]Sample, 0, end-start)
		for _, k := range order[start:end] {
			chunk = append(chunk, l.samples[k])
		}
		b, err := NewBatch(chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

//Personal.AI order the ending
