package pka_gnn

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/turtacn/pkasolver/pkg/errors"
)

// ---------------------------------------------------------------------------
// Variants
// ---------------------------------------------------------------------------

// Variant names one regressor architecture.
type Variant string

const (
	VariantGCNProt           Variant = "gcn_prot"
	VariantGCNDeprot         Variant = "gcn_deprot"
	VariantNNConvProt        Variant = "nnconv_prot"
	VariantNNConvDeprot      Variant = "nnconv_deprot"
	VariantGCNPairSingleConv Variant = "gcn_pair_single_conv"
	VariantGCNPairTwoConv    Variant = "gcn_pair_two_conv"
	VariantNNConvPair        Variant = "nnconv_pair"
)

// PoolKind selects the per-graph readout.
type PoolKind int

const (
	PoolMean PoolKind = iota
	PoolMax
)

func (p PoolKind) String() string {
	switch p {
	case PoolMean:
		return "mean"
	case PoolMax:
		return "max"
	default:
		return "unknown"
	}
}

type convKind int

const (
	convGCN convKind = iota
	convNNConv
)

type branchKind int

const (
	branchProt branchKind = iota
	branchDeprot
	branchShared
	branchIndependent
)

type combineKind int

const (
	combineNone combineKind = iota
	combineSum
	combineConcat
)

type variantSpec struct {
	conv     convKind
	branches branchKind
	pool     PoolKind
	combine  combineKind
}

var variantSpecs = map[Variant]variantSpec{
	VariantGCNProt:           {convGCN, branchProt, PoolMax, combineNone},
	VariantGCNDeprot:         {convGCN, branchDeprot, PoolMax, combineNone},
	VariantNNConvProt:        {convNNConv, branchProt, PoolMean, combineNone},
	VariantNNConvDeprot:      {convNNConv, branchDeprot, PoolMean, combineNone},
	VariantGCNPairSingleConv: {convGCN, branchShared, PoolMean, combineSum},
	VariantGCNPairTwoConv:    {convGCN, branchIndependent, PoolMean, combineConcat},
	VariantNNConvPair:        {convNNConv, branchIndependent, PoolMean, combineConcat},
}

// Variants lists every known variant name, sorted.
func Variants() []Variant {
	out := make([]Variant, 0, len(variantSpecs))
	for v := range variantSpecs {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseVariant resolves a configured name.
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := variantSpecs[v]; !ok {
		return "", errors.NewValidationError(errors.ErrCodeAIVariantUnknown, fmt.Sprintf("unknown model variant %q", s))
	}
	return v, nil
}

// Pooling returns the readout used by the variant.
func (v Variant) Pooling() PoolKind { return variantSpecs[v].pool }

// Paired reports whether the variant reads both members of a pair.
func (v Variant) Paired() bool {
	b := variantSpecs[v].branches
	return b == branchShared || b == branchIndependent
}

// UsesEdgeFeatures reports whether the variant convolves with edge features.
func (v Variant) UsesEdgeFeatures() bool { return variantSpecs[v].conv == convNNConv }

// ---------------------------------------------------------------------------
// Hyperparameters
// ---------------------------------------------------------------------------

// Hyperparameters fully describe a regressor's architecture. Together with
// the featurizer widths they determine every parameter shape.
type Hyperparameters struct {
	Variant      Variant  `json:"variant" yaml:"variant"`
	Attention    bool     `json:"attention" yaml:"attention"`
	NumLayers    int      `json:"num_layers" yaml:"num_layers"`
	EmbeddingDim int      `json:"embedding_dim" yaml:"embedding_dim"`
	HeadDim      int      `json:"head_dim" yaml:"head_dim"`
	Dropout      float64  `json:"dropout" yaml:"dropout"`
	NodeFeatures []string `json:"node_features" yaml:"node_features"`
	EdgeFeatures []string `json:"edge_features" yaml:"edge_features"`
	Seed         int64    `json:"seed" yaml:"seed"`
}

// DefaultHyperparameters returns the reference architecture settings.
func DefaultHyperparameters() Hyperparameters {
	node := DefaultNodeFeatures()
	edge := DefaultEdgeFeatures()
	hp := Hyperparameters{
		Variant:      VariantGCNPairTwoConv,
		NumLayers:    3,
		EmbeddingDim: 96,
		HeadDim:      96,
		Dropout:      0.5,
		Seed:         42,
	}
	for _, f := range node {
		hp.NodeFeatures = append(hp.NodeFeatures, string(f))
	}
	for _, f := range edge {
		hp.EdgeFeatures = append(hp.EdgeFeatures, string(f))
	}
	return hp
}

// Validate checks the hyperparameters for consistency.
func (h Hyperparameters) Validate() error {
	if _, ok := variantSpecs[h.Variant]; !ok {
		return errors.NewValidationError(errors.ErrCodeAIVariantUnknown, fmt.Sprintf("unknown model variant %q", h.Variant))
	}
	if h.NumLayers <= 0 {
		return errors.NewValidationError(errors.ErrCodeValidation, "num_layers must be positive")
	}
	if h.EmbeddingDim <= 0 {
		return errors.NewValidationError(errors.ErrCodeValidation, "embedding_dim must be positive")
	}
	if h.HeadDim <= 0 {
		return errors.NewValidationError(errors.ErrCodeValidation, "head_dim must be positive")
	}
	if h.Dropout < 0 || h.Dropout >= 1 {
		return errors.NewValidationError(errors.ErrCodeValidation, "dropout must be in [0, 1)")
	}
	if len(h.NodeFeatures) == 0 {
		return errors.NewValidationError(errors.ErrCodeFeatureUnknown, "node_features must not be empty")
	}
	if h.Variant.UsesEdgeFeatures() && len(h.EdgeFeatures) == 0 {
		return errors.NewValidationError(errors.ErrCodeFeatureUnknown,
			fmt.Sprintf("variant %s needs at least one edge feature", h.Variant))
	}
	return nil
}

// Featurizer builds the featurizer matching the configured feature lists.
func (h Hyperparameters) Featurizer() (*Featurizer, error) {
	return NewFeaturizer(ParseNodeFeatures(h.NodeFeatures), ParseEdgeFeatures(h.EdgeFeatures), nil)
}

// ---------------------------------------------------------------------------
// Regressor
// ---------------------------------------------------------------------------

// Regressor maps a batch of conjugate pairs to one pKa estimate each. It is
// assembled from encoder, pooling and head parts selected by the variant.
type Regressor struct {
	hp      Hyperparameters
	spec    variantSpec
	nodeDim int
	edgeDim int

	params    *paramSet
	protEnc   *encoder
	deprotEnc *encoder
	attention *attentionPool
	head      *head
}

// NewRegressor initializes a regressor with weights drawn from hp.Seed.
func NewRegressor(hp Hyperparameters, nodeDim, edgeDim int) (*Regressor, error) {
	if err := hp.Validate(); err != nil {
		return nil, err
	}
	if nodeDim <= 0 {
		return nil, errors.NewValidationError(errors.ErrCodeValidation, "node feature width must be positive")
	}
	spec := variantSpecs[hp.Variant]
	if spec.conv == convNNConv && edgeDim <= 0 {
		return nil, errors.NewValidationError(errors.ErrCodeValidation, "edge feature width must be positive for nnconv")
	}
	rng := rand.New(rand.NewSource(hp.Seed))
	r := &Regressor{hp: hp, spec: spec, nodeDim: nodeDim, edgeDim: edgeDim, params: newParamSet()}

	build := func(name string) *encoder {
		if spec.conv == convNNConv {
			return newNNConvEncoder(r.params, name, nodeDim, edgeDim, hp.EmbeddingDim, hp.NumLayers, rng)
		}
		return newGCNEncoder(r.params, name, nodeDim, hp.EmbeddingDim, hp.NumLayers, rng)
	}
	switch spec.branches {
	case branchProt:
		r.protEnc = build("prot")
	case branchDeprot:
		r.deprotEnc = build("deprot")
	case branchShared:
		r.protEnc = build("shared")
		r.deprotEnc = r.protEnc
	case branchIndependent:
		r.protEnc = build("prot")
		r.deprotEnc = build("deprot")
	}
	if hp.Attention {
		r.attention = newAttentionPool(r.params, "attention", nodeDim, rng)
	}
	r.head = newHead(r.params, r.headInput(), hp.HeadDim, hp.Dropout, rng)
	return r, nil
}

func (r *Regressor) headInput() int {
	in := r.hp.EmbeddingDim
	att := r.nodeDim
	if r.spec.combine == combineConcat {
		in *= 2
		att *= 2
	}
	if r.hp.Attention {
		in += att
	}
	return in
}

// Hyperparameters returns the architecture description.
func (r *Regressor) Hyperparameters() Hyperparameters { return r.hp }

// NodeDim is the expected node feature width.
func (r *Regressor) NodeDim() int { return r.nodeDim }

// EdgeDim is the expected edge feature width.
func (r *Regressor) EdgeDim() int { return r.edgeDim }

// Parameters returns every trainable tensor in creation order.
func (r *Regressor) Parameters() []NamedTensor { return r.params.list() }

// ZeroGrad clears every parameter gradient.
func (r *Regressor) ZeroGrad() {
	for _, p := range r.params.list() {
		p.Tensor.ZeroGrad()
	}
}

// branch encodes, pools and optionally attends over one member.
func (r *Regressor) branch(tp *Tape, enc *encoder, g *branchBatch) (pooled, att *Tensor) {
	pooled = pool(tp, r.spec.pool, enc.forward(tp, g), g)
	if r.attention != nil {
		att = r.attention.forward(tp, g)
	}
	return pooled, att
}

// Forward returns a Size x 1 tensor of estimates. A nil tape runs inference
// without recording. Dropout is active only when train is set.
func (r *Regressor) Forward(tp *Tape, b *Batch, train bool, rng *rand.Rand) *Tensor {
	var x *Tensor
	switch r.spec.branches {
	case branchProt:
		p, ap := r.branch(tp, r.protEnc, b.Prot)
		x = withAttention(tp, p, ap)
	case branchDeprot:
		d, ad := r.branch(tp, r.deprotEnc, b.Deprot)
		x = withAttention(tp, d, ad)
	default:
		p, ap := r.branch(tp, r.protEnc, b.Prot)
		d, ad := r.branch(tp, r.deprotEnc, b.Deprot)
		if r.spec.combine == combineSum {
			x = tp.Add(p, d)
			if ap != nil {
				x = tp.ConcatCols(x, tp.Add(ap, ad))
			}
		} else {
			x = tp.ConcatCols(p, d)
			if ap != nil {
				x = tp.ConcatCols(x, ap, ad)
			}
		}
	}
	return r.head.forward(tp, x, train, rng)
}

func withAttention(tp *Tape, pooled, att *Tensor) *Tensor {
	if att == nil {
		return pooled
	}
	return tp.ConcatCols(pooled, att)
}

// Predict runs inference on b. It does not write to any gradient buffer and
// is safe for concurrent use.
func (r *Regressor) Predict(b *Batch) []float64 {
	out := r.Forward(nil, b, false, nil)
	return append([]float64(nil), out.Data...)
}

// ---------------------------------------------------------------------------
// Weights
// ---------------------------------------------------------------------------

// WeightTensor is the serialized form of one parameter.
type WeightTensor struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// Weights returns a deep copy of every parameter keyed by name.
func (r *Regressor) Weights() map[string]WeightTensor {
	out := make(map[string]WeightTensor, len(r.params.order))
	for _, p := range r.params.list() {
		out[p.Name] = WeightTensor{
			Rows: p.Tensor.Rows,
			Cols: p.Tensor.Cols,
			Data: append([]float64(nil), p.Tensor.Data...),
		}
	}
	return out
}

// LoadWeights overwrites every parameter. Names and shapes must match
// exactly.
func (r *Regressor) LoadWeights(w map[string]WeightTensor) error {
	if len(w) != len(r.params.order) {
		return errors.NewValidationError(errors.ErrCodeAIModelVersionMismatch,
			fmt.Sprintf("weights carry %d tensors, model has %d", len(w), len(r.params.order)))
	}
	for _, p := range r.params.list() {
		src, ok := w[p.Name]
		if !ok {
			return errors.NewValidationError(errors.ErrCodeAIModelVersionMismatch, fmt.Sprintf("missing weight %q", p.Name))
		}
		if src.Rows != p.Tensor.Rows || src.Cols != p.Tensor.Cols || len(src.Data) != len(p.Tensor.Data) {
			return errors.NewValidationError(errors.ErrCodeAIModelVersionMismatch,
				fmt.Sprintf("weight %q is %dx%d, model expects %dx%d", p.Name, src.Rows, src.Cols, p.Tensor.Rows, p.Tensor.Cols))
		}
	}
	for _, p := range r.params.list() {
		copy(p.Tensor.Data, w[p.Name].Data)
	}
	return nil
}

//Personal.AI order the ending
