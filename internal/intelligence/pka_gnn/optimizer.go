package pka_gnn

import (
	"fmt"
	"math"

	"github.com/turtacn/pkasolver/pkg/errors"
)

// AdamWConfig holds the optimizer settings.
type AdamWConfig struct {
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
	Beta1        float64 `json:"beta1" yaml:"beta1"`
	Beta2        float64 `json:"beta2" yaml:"beta2"`
	Epsilon      float64 `json:"epsilon" yaml:"epsilon"`
	WeightDecay  float64 `json:"weight_decay" yaml:"weight_decay"`
}

// DefaultAdamWConfig returns lr 0.01, betas 0.9/0.999, eps 1e-8 and weight
// decay 0.01.
func DefaultAdamWConfig() AdamWConfig {
	return AdamWConfig{LearningRate: 0.01, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8, WeightDecay: 0.01}
}

// Validate checks the optimizer settings.
func (c AdamWConfig) Validate() error {
	if c.LearningRate <= 0 {
		return errors.NewValidationError(errors.ErrCodeValidation, "learning_rate must be positive")
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1 {
		return errors.NewValidationError(errors.ErrCodeValidation, "betas must be in [0, 1)")
	}
	if c.Epsilon <= 0 {
		return errors.NewValidationError(errors.ErrCodeValidation, "epsilon must be positive")
	}
	if c.WeightDecay < 0 {
		return errors.NewValidationError(errors.ErrCodeValidation, "weight_decay must not be negative")
	}
	return nil
}

// OptimizerState is the resumable part of AdamW: the step count and the
// first and second moment estimates per parameter.
type OptimizerState struct {
	Step int                  `json:"step"`
	M    map[string][]float64 `json:"m"`
	V    map[string][]float64 `json:"v"`
}

// AdamW implements Adam with decoupled weight decay.
type AdamW struct {
	cfg    AdamWConfig
	params []NamedTensor
	step   int
	m      map[string][]float64
	v      map[string][]float64
}

// NewAdamW binds the optimizer to params.
func NewAdamW(params []NamedTensor, cfg AdamWConfig) (*AdamW, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &AdamW{
		cfg:    cfg,
		params: params,
		m:      make(map[string][]float64, len(params)),
		v:      make(map[string][]float64, len(params)),
	}
	for _, p := range params {
		o.m[p.Name] = make([]float64, len(p.Tensor.Data))
		o.v[p.Name] = make([]float64, len(p.Tensor.Data))
	}
	return o, nil
}

// Config returns the settings.
func (o *AdamW) Config() AdamWConfig { return o.cfg }

// Step applies one update from the accumulated gradients. Parameters with no
// gradient are still decayed.
func (o *AdamW) Step() {
	o.step++
	c := o.cfg
	bc1 := 1 - math.Pow(c.Beta1, float64(o.step))
	bc2 := 1 - math.Pow(c.Beta2, float64(o.step))
	stepSize := c.LearningRate / bc1
	sqrtBC2 := math.Sqrt(bc2)
	for _, p := range o.params {
		data := p.Tensor.Data
		grad := p.Tensor.Grad
		m, v := o.m[p.Name], o.v[p.Name]
		for i := range data {
			data[i] *= 1 - c.LearningRate*c.WeightDecay
			g := 0.0
			if grad != nil {
				g = grad[i]
			}
			m[i] = c.Beta1*m[i] + (1-c.Beta1)*g
			v[i] = c.Beta2*v[i] + (1-c.Beta2)*g*g
			denom := math.Sqrt(v[i])/sqrtBC2 + c.Epsilon
			data[i] -= stepSize * m[i] / denom
		}
	}
}

// ZeroGrad clears every bound parameter's gradient.
func (o *AdamW) ZeroGrad() {
	for _, p := range o.params {
		p.Tensor.ZeroGrad()
	}
}

// State returns a deep copy of the moment estimates.
func (o *AdamW) State() OptimizerState {
	s := OptimizerState{
		Step: o.step,
		M:    make(map[string][]float64, len(o.m)),
		V:    make(map[string][]float64, len(o.v)),
	}
	for k, m := range o.m {
		s.M[k] = append([]float64(nil), m...)
	}
	for k, v := range o.v {
		s.V[k] = append([]float64(nil), v...)
	}
	return s
}

// LoadState restores a State snapshot taken from an optimizer bound to the
// same parameters.
func (o *AdamW) LoadState(s OptimizerState) error {
	for _, p := range o.params {
		m, okM := s.M[p.Name]
		v, okV := s.V[p.Name]
		if !okM || !okV || len(m) != len(p.Tensor.Data) || len(v) != len(p.Tensor.Data) {
			return errors.NewValidationError(errors.ErrCodeAIModelVersionMismatch,
				fmt.Sprintf("optimizer state does not match parameter %q", p.Name))
		}
	}
	for _, p := range o.params {
		copy(o.m[p.Name], s.M[p.Name])
		copy(o.v[p.Name], s.V[p.Name])
	}
	o.step = s.Step
	return nil
}

//Personal.AI order the ending
