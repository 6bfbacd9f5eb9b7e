package pka_gnn

import (
	"math"
	"math/rand"
	"strconv"
)

// ---------------------------------------------------------------------------
// Parameter registry
// ---------------------------------------------------------------------------

// NamedTensor pairs a trainable tensor with its stable name.
type NamedTensor struct {
	Name   string
	Tensor *Tensor
}

// paramSet keeps parameters in creation order so that initialization and
// serialization are reproducible.
type paramSet struct {
	order  []string
	byName map[string]*Tensor
}

func newParamSet() *paramSet {
	return &paramSet{byName: make(map[string]*Tensor)}
}

func (ps *paramSet) add(name string, t *Tensor) *Tensor {
	if _, dup := ps.byName[name]; dup {
		panic("duplicate parameter " + name)
	}
	ps.order = append(ps.order, name)
	ps.byName[name] = t
	return t
}

func (ps *paramSet) list() []NamedTensor {
	out := make([]NamedTensor, len(ps.order))
	for i, n := range ps.order {
		out[i] = NamedTensor{Name: n, Tensor: ps.byName[n]}
	}
	return out
}

func uniformFill(t *Tensor, bound float64, rng *rand.Rand) {
	for i := range t.Data {
		t.Data[i] = (rng.Float64()*2 - 1) * bound
	}
}

// ---------------------------------------------------------------------------
// Linear
// ---------------------------------------------------------------------------

// Linear computes x W + b with W stored as in x out.
type Linear struct {
	Weight *Tensor
	Bias   *Tensor
}

// newLinear uses the U(-1/sqrt(in), 1/sqrt(in)) initialization for both
// weight and bias.
func newLinear(ps *paramSet, name string, in, out int, rng *rand.Rand) *Linear {
	bound := 1 / math.Sqrt(float64(in))
	w := ps.add(name+".weight", NewTensor(in, out))
	b := ps.add(name+".bias", NewTensor(1, out))
	uniformFill(w, bound, rng)
	uniformFill(b, bound, rng)
	return &Linear{Weight: w, Bias: b}
}

// Forward applies the layer.
func (l *Linear) Forward(tp *Tape, x *Tensor) *Tensor {
	return tp.AddRowVector(tp.MatMul(x, l.Weight), l.Bias)
}

// mlp is Lin -> ReLU -> Lin.
type mlp struct {
	first, second *Linear
}

func newMLP(ps *paramSet, name string, in, hidden, out int, rng *rand.Rand) *mlp {
	return &mlp{
		first:  newLinear(ps, name+".0", in, hidden, rng),
		second: newLinear(ps, name+".2", hidden, out, rng),
	}
}

func (m *mlp) forward(tp *Tape, x *Tensor) *Tensor {
	return m.second.Forward(tp, tp.ReLU(m.first.Forward(tp, x)))
}

// ---------------------------------------------------------------------------
// Graph convolutions
// ---------------------------------------------------------------------------

// graphLayer is one message-passing layer over a batched branch.
type graphLayer interface {
	forward(tp *Tape, x *Tensor, g *branchBatch) *Tensor
}

// gcnConv is the Kipf-Welling convolution with self loops and symmetric
// degree normalization: D^-1/2 (A+I) D^-1/2 X W + b.
type gcnConv struct {
	weight *Tensor
	bias   *Tensor
}

func newGCNConv(ps *paramSet, name string, in, out int, rng *rand.Rand) *gcnConv {
	w := ps.add(name+".weight", NewTensor(in, out))
	b := ps.add(name+".bias", NewTensor(1, out))
	uniformFill(w, math.Sqrt(6/float64(in+out)), rng)
	return &gcnConv{weight: w, bias: b}
}

func (c *gcnConv) forward(tp *Tape, x *Tensor, g *branchBatch) *Tensor {
	src, dst, norm := g.gcnEdges()
	h := tp.MatMul(x, c.weight)
	msg := tp.ScaleRows(tp.GatherRows(h, src), norm)
	return tp.AddRowVector(tp.ScatterAddRows(msg, dst, x.Rows), c.bias)
}

// nnConv is the edge-conditioned convolution: an edge network maps each
// edge's features to an in x out matrix applied to the source node, messages
// are summed at the target and a root weight plus bias is added.
type nnConv struct {
	in, out int
	edgeNet *mlp
	root    *Tensor
	bias    *Tensor
}

func newNNConv(ps *paramSet, name string, in, out int, edgeNet *mlp, rng *rand.Rand) *nnConv {
	root := ps.add(name+".root", NewTensor(in, out))
	bias := ps.add(name+".bias", NewTensor(1, out))
	bound := 1 / math.Sqrt(float64(in))
	uniformFill(root, bound, rng)
	uniformFill(bias, bound, rng)
	return &nnConv{in: in, out: out, edgeNet: edgeNet, root: root, bias: bias}
}

func (c *nnConv) forward(tp *Tape, x *Tensor, g *branchBatch) *Tensor {
	rootTerm := tp.AddRowVector(tp.MatMul(x, c.root), c.bias)
	if len(g.Src) == 0 {
		return rootTerm
	}
	w := c.edgeNet.forward(tp, g.EdgeAttr)
	msg := tp.EdgeMessages(tp.GatherRows(x, g.Src), w, c.out)
	return tp.Add(tp.ScatterAddRows(msg, g.Dst, x.Rows), rootTerm)
}

// ---------------------------------------------------------------------------
// Encoder
// ---------------------------------------------------------------------------

// encoder stacks graph layers with ReLU between them and none after the
// last.
type encoder struct {
	layers []graphLayer
}

func newGCNEncoder(ps *paramSet, name string, nodeDim, width, depth int, rng *rand.Rand) *encoder {
	e := &encoder{}
	in := nodeDim
	for l := 0; l < depth; l++ {
		e.layers = append(e.layers, newGCNConv(ps, name+".convs."+strconv.Itoa(l), in, width, rng))
		in = width
	}
	return e
}

// newNNConvEncoder builds one edge network for the first layer and a second
// one shared by every later layer.
func newNNConvEncoder(ps *paramSet, name string, nodeDim, edgeDim, width, depth int, rng *rand.Rand) *encoder {
	e := &encoder{}
	first := newMLP(ps, name+".nn1", edgeDim, width, nodeDim*width, rng)
	e.layers = append(e.layers, newNNConv(ps, name+".convs.0", nodeDim, width, first, rng))
	if depth > 1 {
		shared := newMLP(ps, name+".nn2", edgeDim, width, width*width, rng)
		for l := 1; l < depth; l++ {
			e.layers = append(e.layers, newNNConv(ps, name+".convs."+strconv.Itoa(l), width, width, shared, rng))
		}
	}
	return e
}

func (e *encoder) forward(tp *Tape, g *branchBatch) *Tensor {
	x := g.X
	for i, layer := range e.layers {
		x = layer.forward(tp, x, g)
		if i < len(e.layers)-1 {
			x = tp.ReLU(x)
		}
	}
	return x
}

// ---------------------------------------------------------------------------
// Pooling
// ---------------------------------------------------------------------------

// attentionPool weights raw node features with a per-graph softmax over a
// learned gate Lin(F,F) -> ReLU -> Lin(F,1) and sums them.
type attentionPool struct {
	gate *mlp
}

func newAttentionPool(ps *paramSet, name string, nodeDim int, rng *rand.Rand) *attentionPool {
	return &attentionPool{gate: newMLP(ps, name+".gate_nn", nodeDim, nodeDim, 1, rng)}
}

func (a *attentionPool) forward(tp *Tape, g *branchBatch) *Tensor {
	score := a.gate.forward(tp, g.X)
	weight := tp.SegmentSoftmax(score, g.Seg, g.NumGraphs)
	return tp.ScatterAddRows(tp.MulRowsByColumn(g.X, weight), g.Seg, g.NumGraphs)
}

func pool(tp *Tape, kind PoolKind, x *Tensor, g *branchBatch) *Tensor {
	if kind == PoolMax {
		return tp.SegmentMax(x, g.Seg, g.NumGraphs)
	}
	return tp.SegmentMean(x, g.Seg, g.NumGraphs)
}

// ---------------------------------------------------------------------------
// Head
// ---------------------------------------------------------------------------

// head is Dropout -> Lin(in,width) -> ReLU -> Lin(width,1).
type head struct {
	dropout float64
	lins    *mlp
}

func newHead(ps *paramSet, in, width int, dropout float64, rng *rand.Rand) *head {
	return &head{dropout: dropout, lins: newMLP(ps, "lins", in, width, 1, rng)}
}

func (h *head) forward(tp *Tape, x *Tensor, train bool, rng *rand.Rand) *Tensor {
	return h.lins.forward(tp, tp.Dropout(x, h.dropout, train, rng))
}

//Personal.AI order the ending
