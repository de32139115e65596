package libmegnet

import (
	"math"

	"github.com/pkg/errors"

	"github.com/mahendra-ramajayam/megnet/megnet"
)

// Activation selects the nonlinearity applied after a dense layer.
type Activation byte

const (
	ActLinear Activation = iota
	ActSoftplus2
	ActRelu
)

func (act Activation) String() string {
	switch act {
	case ActLinear:
		return "linear"
	case ActSoftplus2:
		return "softplus2"
	case ActRelu:
		return "relu"
	}
	return "???"
}

// softplus2 is log(1 + e^x) - log 2, shifted so that softplus2(0) == 0.
// Large x short-circuits to avoid overflow in Exp.
func softplus2(x float64) float64 {
	if x > 30 {
		return x - math.Ln2
	}
	return math.Log1p(math.Exp(x)) - math.Ln2
}

func (act Activation) apply(x float64) float64 {
	switch act {
	case ActSoftplus2:
		return softplus2(x)
	case ActRelu:
		if x < 0 {
			return 0
		}
	}
	return x
}

// DenseLayer is one affine map plus activation: act(x W + b). W is stored
// row-major with one row per input component, so OutWidth columns.
type DenseLayer struct {
	W    megnet.Matrix
	Bias megnet.Vector
	Act  Activation
}

// DenseFn chains dense layers into a megnet.VectorFn.
type DenseFn struct {
	Layers []DenseLayer

	scratch [2][]float64
}

// NewDenseFn validates that consecutive layer widths agree.
func NewDenseFn(layers []DenseLayer) (*DenseFn, error) {
	if len(layers) == 0 {
		return nil, errors.Wrap(megnet.ErrShapeMismatch, "dense fn with no layers")
	}
	for li := range layers {
		lay := &layers[li]
		if lay.W.Width != len(lay.Bias) {
			return nil, errors.Wrapf(megnet.ErrShapeMismatch,
				"layer %d: %d weight columns, %d bias terms", li, lay.W.Width, len(lay.Bias))
		}
		if li > 0 && layers[li-1].W.Width != lay.W.NumRows() {
			return nil, errors.Wrapf(megnet.ErrShapeMismatch,
				"layer %d: expects %d inputs, layer %d emits %d",
				li, lay.W.NumRows(), li-1, layers[li-1].W.Width)
		}
	}
	return &DenseFn{Layers: layers}, nil
}

func (fn *DenseFn) InWidth() int {
	return fn.Layers[0].W.NumRows()
}

func (fn *DenseFn) OutWidth() int {
	return fn.Layers[len(fn.Layers)-1].W.Width
}

// Apply appends the layered transform of src to dst.
func (fn *DenseFn) Apply(dst, src []float64) []float64 {
	cur := src
	for li := range fn.Layers {
		lay := &fn.Layers[li]
		last := li == len(fn.Layers)-1

		var out []float64
		if last {
			base := len(dst)
			dst = append(dst, lay.Bias...)
			out = dst[base:]
		} else {
			out = append(fn.scratch[li&1][:0], lay.Bias...)
			fn.scratch[li&1] = out
		}

		for xi, x := range cur {
			if x == 0 {
				continue
			}
			row := lay.W.Row(xi)
			for oi, w := range row {
				out[oi] += x * w
			}
		}
		for oi := range out {
			out[oi] = lay.Act.apply(out[oi])
		}
		cur = out
	}
	return dst
}

// Model is a complete property predictor: featurizer, stacked graph-update
// blocks, a pooled readout, and an output head mapping the readout row to the
// predicted values.
type Model struct {
	Name    string
	Feat    *Featurizer
	Blocks  []*megnet.Block
	Readout megnet.Readout
	Output  megnet.VectorFn

	// Cache, when set, memoizes single-structure predictions in the store,
	// keyed by model name plus the canonical structure encoding.
	Cache megnet.ModelStore
}

// Predict featurizes the structures, runs them through the update blocks as
// one batch, and returns one prediction vector per input, in input order.
// A degenerate structure fails the call unless the featurizer auto-excludes,
// in which case its slot in the result is nil.
func (m *Model) Predict(sts []*Structure) ([]megnet.Vector, error) {
	if len(sts) == 0 {
		return nil, megnet.ErrEmptyBatch
	}

	graphs, kept, err := m.Feat.FeaturizeAll(sts)
	if err != nil {
		return nil, err
	}
	if len(graphs) == 0 {
		return nil, errors.Wrap(megnet.ErrEmptyBatch, "all structures excluded")
	}

	batch, err := megnet.NewBatch(graphs)
	if err != nil {
		return nil, err
	}
	for _, blk := range m.Blocks {
		batch, err = blk.Forward(batch)
		if err != nil {
			return nil, err
		}
	}

	pooled, err := m.Readout.Reduce(batch)
	if err != nil {
		return nil, err
	}
	if m.Output.InWidth() != pooled.Width {
		return nil, errors.Wrapf(megnet.ErrShapeMismatch,
			"readout emits %d, output head expects %d", pooled.Width, m.Output.InWidth())
	}

	out := make([]megnet.Vector, len(sts))
	for ki, si := range kept {
		out[si] = megnet.Vector(m.Output.Apply(nil, pooled.Row(ki)))
	}
	return out, nil
}

func (m *Model) cacheKey(st *Structure) []byte {
	key := append([]byte(m.Name), 0)
	return st.AppendEncodingTo(key)
}

// PredictOne predicts a single structure, consulting the prediction cache
// when the model carries one. A structure re-submitted with sub-quantum
// coordinate jitter hits the cached entry.
func (m *Model) PredictOne(st *Structure) (megnet.Vector, error) {
	if st == nil {
		return nil, megnet.ErrNilStructure
	}

	var key []byte
	if m.Cache != nil {
		key = m.cacheKey(st)
		if val, ok := m.Cache.CachedPrediction(key); ok {
			return val, nil
		}
	}

	preds, err := m.Predict([]*Structure{st})
	if err != nil {
		return nil, err
	}
	if m.Cache != nil && !m.Cache.IsReadOnly() && preds[0] != nil {
		if err := m.Cache.CachePrediction(key, preds[0]); err != nil {
			return nil, err
		}
	}
	return preds[0], nil
}
