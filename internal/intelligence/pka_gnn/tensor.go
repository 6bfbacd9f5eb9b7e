package pka_gnn

import (
	"fmt"
	"math"
	"math/rand"
)

// ---------------------------------------------------------------------------
// Tensor
// ---------------------------------------------------------------------------

// Tensor is a dense row-major matrix. Grad is allocated on first use by a
// recording Tape and has the same layout as Data.
type Tensor struct {
	Rows int
	Cols int
	Data []float64
	Grad []float64
}

// NewTensor returns a zero-filled rows x cols tensor.
func NewTensor(rows, cols int) *Tensor {
	return &Tensor{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// TensorFrom wraps data, which must hold rows*cols values.
func TensorFrom(rows, cols int, data []float64) (*Tensor, error) {
	if len(data) != rows*cols {
		return nil, fmt.Errorf("tensor %dx%d needs %d values, got %d", rows, cols, rows*cols, len(data))
	}
	return &Tensor{Rows: rows, Cols: cols, Data: data}, nil
}

// At returns element (r, c).
func (t *Tensor) At(r, c int) float64 { return t.Data[r*t.Cols+c] }

// Row returns a view of row r.
func (t *Tensor) Row(r int) []float64 { return t.Data[r*t.Cols : (r+1)*t.Cols] }

// Clone copies the values, not the gradient.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{Rows: t.Rows, Cols: t.Cols, Data: append([]float64(nil), t.Data...)}
}

// ZeroGrad clears the accumulated gradient.
func (t *Tensor) ZeroGrad() {
	for i := range t.Grad {
		t.Grad[i] = 0
	}
}

func (t *Tensor) grad() []float64 {
	if t.Grad == nil {
		t.Grad = make([]float64, len(t.Data))
	}
	return t.Grad
}

// ---------------------------------------------------------------------------
// Tape
// ---------------------------------------------------------------------------

// Tape records the backward closure of every op run through it. A nil *Tape
// is valid and runs ops in inference mode: nothing is recorded and no
// gradient buffers are touched, so concurrent readers can share weights.
type Tape struct {
	ops []func()
}

// NewTape returns an empty recording tape.
func NewTape() *Tape { return &Tape{} }

func (tp *Tape) recording() bool { return tp != nil }

func (tp *Tape) push(fn func()) { tp.ops = append(tp.ops, fn) }

// Len is the number of recorded ops.
func (tp *Tape) Len() int {
	if tp == nil {
		return 0
	}
	return len(tp.ops)
}

// Backward seeds the 1x1 loss with gradient one, replays the recorded ops in
// reverse and clears the tape.
func (tp *Tape) Backward(loss *Tensor) error {
	if tp == nil {
		return fmt.Errorf("backward on an inference tape")
	}
	if loss.Rows != 1 || loss.Cols != 1 {
		return fmt.Errorf("backward needs a scalar loss, got %dx%d", loss.Rows, loss.Cols)
	}
	loss.grad()[0] = 1
	for i := len(tp.ops) - 1; i >= 0; i-- {
		tp.ops[i]()
	}
	tp.ops = tp.ops[:0]
	return nil
}

// ---------------------------------------------------------------------------
// Dense ops
// ---------------------------------------------------------------------------

// MatMul returns a (n x k) times b (k x m).
func (tp *Tape) MatMul(a, b *Tensor) *Tensor {
	if a.Cols != b.Rows {
		panic(fmt.Sprintf("matmul shape mismatch %dx%d * %dx%d", a.Rows, a.Cols, b.Rows, b.Cols))
	}
	n, k, m := a.Rows, a.Cols, b.Cols
	out := NewTensor(n, m)
	for i := 0; i < n; i++ {
		ai := a.Data[i*k : (i+1)*k]
		oi := out.Data[i*m : (i+1)*m]
		for p, av := range ai {
			if av == 0 {
				continue
			}
			bp := b.Data[p*m : (p+1)*m]
			for j, bv := range bp {
				oi[j] += av * bv
			}
		}
	}
	if tp.recording() {
		tp.push(func() {
			if out.Grad == nil {
				return
			}
			ga, gb := a.grad(), b.grad()
			for i := 0; i < n; i++ {
				gi := out.Grad[i*m : (i+1)*m]
				ai := a.Data[i*k : (i+1)*k]
				for p := 0; p < k; p++ {
					bp := b.Data[p*m : (p+1)*m]
					gbp := gb[p*m : (p+1)*m]
					s := 0.0
					for j, g := range gi {
						s += g * bp[j]
						gbp[j] += ai[p] * g
					}
					ga[i*k+p] += s
				}
			}
		})
	}
	return out
}

// AddRowVector adds the 1 x m bias to every row of a.
func (tp *Tape) AddRowVector(a, bias *Tensor) *Tensor {
	if bias.Rows != 1 || bias.Cols != a.Cols {
		panic(fmt.Sprintf("bias shape %dx%d does not match %d columns", bias.Rows, bias.Cols, a.Cols))
	}
	out := a.Clone()
	m := a.Cols
	for i := 0; i < a.Rows; i++ {
		row := out.Data[i*m : (i+1)*m]
		for j := range row {
			row[j] += bias.Data[j]
		}
	}
	if tp.recording() {
		tp.push(func() {
			if out.Grad == nil {
				return
			}
			ga, gb := a.grad(), bias.grad()
			for i, g := range out.Grad {
				ga[i] += g
				gb[i%m] += g
			}
		})
	}
	return out
}

// Add returns the element-wise sum of equally shaped tensors.
func (tp *Tape) Add(a, b *Tensor) *Tensor {
	if a.Rows != b.Rows || a.Cols != b.Cols {
		panic(fmt.Sprintf("add shape mismatch %dx%d + %dx%d", a.Rows, a.Cols, b.Rows, b.Cols))
	}
	out := NewTensor(a.Rows, a.Cols)
	for i := range out.Data {
		out.Data[i] = a.Data[i] + b.Data[i]
	}
	if tp.recording() {
		tp.push(func() {
			if out.Grad == nil {
				return
			}
			ga, gb := a.grad(), b.grad()
			for i, g := range out.Grad {
				ga[i] += g
				gb[i] += g
			}
		})
	}
	return out
}

// ReLU clamps negative values to zero.
func (tp *Tape) ReLU(a *Tensor) *Tensor {
	out := NewTensor(a.Rows, a.Cols)
	for i, v := range a.Data {
		if v > 0 {
			out.Data[i] = v
		}
	}
	if tp.recording() {
		tp.push(func() {
			if out.Grad == nil {
				return
			}
			ga := a.grad()
			for i, g := range out.Grad {
				if a.Data[i] > 0 {
					ga[i] += g
				}
			}
		})
	}
	return out
}

// ConcatCols joins tensors with the same row count side by side.
func (tp *Tape) ConcatCols(ts ...*Tensor) *Tensor {
	rows, cols := ts[0].Rows, 0
	for _, t := range ts {
		if t.Rows != rows {
			panic(fmt.Sprintf("concat row mismatch %d vs %d", t.Rows, rows))
		}
		cols += t.Cols
	}
	out := NewTensor(rows, cols)
	offset := 0
	for _, t := range ts {
		for i := 0; i < rows; i++ {
			copy(out.Data[i*cols+offset:i*cols+offset+t.Cols], t.Row(i))
		}
		offset += t.Cols
	}
	if tp.recording() {
		tp.push(func() {
			if out.Grad == nil {
				return
			}
			offset := 0
			for _, t := range ts {
				gt := t.grad()
				for i := 0; i < rows; i++ {
					src := out.Grad[i*cols+offset : i*cols+offset+t.Cols]
					dst := gt[i*t.Cols : (i+1)*t.Cols]
					for j, g := range src {
						dst[j] += g
					}
				}
				offset += t.Cols
			}
		})
	}
	return out
}

// Dropout zeroes each element with probability p and rescales the survivors
// by 1/(1-p). It is the identity when train is false.
func (tp *Tape) Dropout(a *Tensor, p float64, train bool, rng *rand.Rand) *Tensor {
	if !train || p <= 0 {
		return a
	}
	scale := 1 / (1 - p)
	mask := make([]float64, len(a.Data))
	out := NewTensor(a.Rows, a.Cols)
	for i, v := range a.Data {
		if rng.Float64() >= p {
			mask[i] = scale
			out.Data[i] = v * scale
		}
	}
	if tp.recording() {
		tp.push(func() {
			if out.Grad == nil {
				return
			}
			ga := a.grad()
			for i, g := range out.Grad {
				ga[i] += g * mask[i]
			}
		})
	}
	return out
}

// MSE returns the 1x1 mean squared error between the n x 1 prediction and
// target.
func (tp *Tape) MSE(pred *Tensor, target []float64) *Tensor {
	if pred.Cols != 1 || pred.Rows != len(target) {
		panic(fmt.Sprintf("mse shape %dx%d against %d targets", pred.Rows, pred.Cols, len(target)))
	}
	n := float64(len(target))
	out := NewTensor(1, 1)
	for i, y := range target {
		d := pred.Data[i] - y
		out.Data[0] += d * d
	}
	out.Data[0] /= n
	if tp.recording() {
		tp.push(func() {
			if out.Grad == nil {
				return
			}
			gp := pred.grad()
			g := out.Grad[0]
			for i, y := range target {
				gp[i] += g * 2 * (pred.Data[i] - y) / n
			}
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Graph ops
// ---------------------------------------------------------------------------

// GatherRows returns the rows of a selected by idx, in order.
func (tp *Tape) GatherRows(a *Tensor, idx []int) *Tensor {
	c := a.Cols
	out := NewTensor(len(idx), c)
	for r, src := range idx {
		copy(out.Data[r*c:(r+1)*c], a.Row(src))
	}
	if tp.recording() {
		tp.push(func() {
			if out.Grad == nil {
				return
			}
			ga := a.grad()
			for r, src := range idx {
				gsrc := ga[src*c : (src+1)*c]
				for j, g := range out.Grad[r*c : (r+1)*c] {
					gsrc[j] += g
				}
			}
		})
	}
	return out
}

// ScatterAddRows sums row r of a into row idx[r] of an n-row result.
func (tp *Tape) ScatterAddRows(a *Tensor, idx []int, n int) *Tensor {
	c := a.Cols
	out := NewTensor(n, c)
	for r, dst := range idx {
		row := out.Data[dst*c : (dst+1)*c]
		for j, v := range a.Row(r) {
			row[j] += v
		}
	}
	if tp.recording() {
		tp.push(func() {
			if out.Grad == nil {
				return
			}
			ga := a.grad()
			for r, dst := range idx {
				gr := ga[r*c : (r+1)*c]
				for j, g := range out.Grad[dst*c : (dst+1)*c] {
					gr[j] += g
				}
			}
		})
	}
	return out
}

// ScaleRows multiplies row r of a by the constant s[r].
func (tp *Tape) ScaleRows(a *Tensor, s []float64) *Tensor {
	c := a.Cols
	out := NewTensor(a.Rows, c)
	for r := 0; r < a.Rows; r++ {
		for j, v := range a.Row(r) {
			out.Data[r*c+j] = v * s[r]
		}
	}
	if tp.recording() {
		tp.push(func() {
			if out.Grad == nil {
				return
			}
			ga := a.grad()
			for i, g := range out.Grad {
				ga[i] += g * s[i/c]
			}
		})
	}
	return out
}

// MulRowsByColumn multiplies row r of a by w[r], where w is n x 1 and both
// operands receive gradients.
func (tp *Tape) MulRowsByColumn(a, w *Tensor) *Tensor {
	if w.Cols != 1 || w.Rows != a.Rows {
		panic(fmt.Sprintf("row weights %dx%d for %d rows", w.Rows, w.Cols, a.Rows))
	}
	c := a.Cols
	out := NewTensor(a.Rows, c)
	for r := 0; r < a.Rows; r++ {
		for j, v := range a.Row(r) {
			out.Data[r*c+j] = v * w.Data[r]
		}
	}
	if tp.recording() {
		tp.push(func() {
			if out.Grad == nil {
				return
			}
			ga, gw := a.grad(), w.grad()
			for r := 0; r < a.Rows; r++ {
				for j := 0; j < c; j++ {
					g := out.Grad[r*c+j]
					ga[r*c+j] += g * w.Data[r]
					gw[r] += g * a.Data[r*c+j]
				}
			}
		})
	}
	return out
}

// SegmentSoftmax normalizes the n x 1 scores with a softmax inside each
// segment.
func (tp *Tape) SegmentSoftmax(a *Tensor, seg []int, numSeg int) *Tensor {
	maxv := make([]float64, numSeg)
	for i := range maxv {
		maxv[i] = math.Inf(-1)
	}
	for r, s := range seg {
		if a.Data[r] > maxv[s] {
			maxv[s] = a.Data[r]
		}
	}
	sum := make([]float64, numSeg)
	out := NewTensor(a.Rows, 1)
	for r, s := range seg {
		e := math.Exp(a.Data[r] - maxv[s])
		out.Data[r] = e
		sum[s] += e
	}
	for r, s := range seg {
		out.Data[r] /= sum[s]
	}
	if tp.recording() {
		tp.push(func() {
			if out.Grad == nil {
				return
			}
			dot := make([]float64, numSeg)
			for r, s := range seg {
				dot[s] += out.Grad[r] * out.Data[r]
			}
			ga := a.grad()
			for r, s := range seg {
				ga[r] += out.Data[r] * (out.Grad[r] - dot[s])
			}
		})
	}
	return out
}

// SegmentMean averages the rows of a belonging to each segment. Empty
// segments yield zero rows.
func (tp *Tape) SegmentMean(a *Tensor, seg []int, numSeg int) *Tensor {
	c := a.Cols
	counts := make([]float64, numSeg)
	for _, s := range seg {
		counts[s]++
	}
	out := NewTensor(numSeg, c)
	for r, s := range seg {
		row := out.Data[s*c : (s+1)*c]
		for j, v := range a.Row(r) {
			row[j] += v / counts[s]
		}
	}
	if tp.recording() {
		tp.push(func() {
			if out.Grad == nil {
				return
			}
			ga := a.grad()
			for r, s := range seg {
				for j := 0; j < c; j++ {
					ga[r*c+j] += out.Grad[s*c+j] / counts[s]
				}
			}
		})
	}
	return out
}

// SegmentMax takes the column-wise maximum of the rows in each segment. The
// gradient flows to the first row holding the maximum. Empty segments yield
// zero rows.
func (tp *Tape) SegmentMax(a *Tensor, seg []int, numSeg int) *Tensor {
	c := a.Cols
	out := NewTensor(numSeg, c)
	arg := make([]int, numSeg*c)
	for i := range arg {
		arg[i] = -1
	}
	for r, s := range seg {
		for j, v := range a.Row(r) {
			k := s*c + j
			if arg[k] < 0 || v > out.Data[k] {
				out.Data[k] = v
				arg[k] = r
			}
		}
	}
	if tp.recording() {
		tp.push(func() {
			if out.Grad == nil {
				return
			}
			ga := a.grad()
			for k, r := range arg {
				if r >= 0 {
					ga[r*c+k%c] += out.Grad[k]
				}
			}
		})
	}
	return out
}

// EdgeMessages applies a per-edge weight matrix: row e of w holds an
// in x out matrix in row-major order and row e of x is multiplied by it.
func (tp *Tape) EdgeMessages(x, w *Tensor, out int) *Tensor {
	in := x.Cols
	if w.Rows != x.Rows || w.Cols != in*out {
		panic(fmt.Sprintf("edge weights %dx%d for %d edges of %d->%d", w.Rows, w.Cols, x.Rows, in, out))
	}
	res := NewTensor(x.Rows, out)
	for e := 0; e < x.Rows; e++ {
		xe := x.Row(e)
		we := w.Row(e)
		re := res.Data[e*out : (e+1)*out]
		for i, xv := range xe {
			if xv == 0 {
				continue
			}
			wi := we[i*out : (i+1)*out]
			for o, wv := range wi {
				re[o] += xv * wv
			}
		}
	}
	if tp.recording() {
		tp.push(func() {
			if res.Grad == nil {
				return
			}
			gx, gw := x.grad(), w.grad()
			for e := 0; e < x.Rows; e++ {
				xe := x.Row(e)
				we := w.Row(e)
				ge := res.Grad[e*out : (e+1)*out]
				gxe := gx[e*in : (e+1)*in]
				gwe := gw[e*in*out : (e+1)*in*out]
				for i := 0; i < in; i++ {
					s := 0.0
					wi := we[i*out : (i+1)*out]
					gwi := gwe[i*out : (i+1)*out]
					for o, g := range ge {
						s += g * wi[o]
						gwi[o] += xe[i] * g
					}
					gxe[i] += s
				}
			}
		})
	}
	return res
}

//Personal.AI order the ending
