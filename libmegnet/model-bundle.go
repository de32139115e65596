package libmegnet

import (
	"github.com/pkg/errors"

	"github.com/mahendra-ramajayam/megnet/libmegnet/modeldef"
	"github.com/mahendra-ramajayam/megnet/megnet"
)

func matrixFromDef(t *modeldef.TensorDef) (megnet.Matrix, error) {
	if t == nil {
		return megnet.Matrix{}, errors.Wrap(megnet.ErrShapeMismatch, "missing tensor")
	}
	if int64(len(t.Vals)) != t.NumRows*t.Width {
		return megnet.Matrix{}, errors.Wrapf(megnet.ErrShapeMismatch,
			"tensor %dx%d carries %d values", t.NumRows, t.Width, len(t.Vals))
	}
	return megnet.Matrix{
		Vals:  append([]float64{}, t.Vals...),
		Width: int(t.Width),
	}, nil
}

func matrixToDef(m megnet.Matrix) *modeldef.TensorDef {
	return &modeldef.TensorDef{
		NumRows: int64(m.NumRows()),
		Width:   int64(m.Width),
		Vals:    append([]float64{}, m.Vals...),
	}
}

func fnFromDef(def *modeldef.VectorFnDef) (*DenseFn, error) {
	if def == nil {
		return nil, errors.Wrap(megnet.ErrShapeMismatch, "missing vector fn")
	}
	layers := make([]DenseLayer, 0, len(def.Layers))
	for _, layDef := range def.Layers {
		W, err := matrixFromDef(layDef.W)
		if err != nil {
			return nil, err
		}
		layers = append(layers, DenseLayer{
			W:    W,
			Bias: append(megnet.Vector{}, layDef.Bias...),
			Act:  Activation(layDef.Act),
		})
	}
	return NewDenseFn(layers)
}

func fnToDef(fn megnet.VectorFn) (*modeldef.VectorFnDef, error) {
	dense, ok := fn.(*DenseFn)
	if !ok {
		return nil, errors.Errorf("vector fn %T cannot be exported", fn)
	}
	def := &modeldef.VectorFnDef{
		Layers: make([]*modeldef.DenseLayerDef, 0, len(dense.Layers)),
	}
	for li := range dense.Layers {
		lay := &dense.Layers[li]
		def.Layers = append(def.Layers, &modeldef.DenseLayerDef{
			W:    matrixToDef(lay.W),
			Bias: append([]float64{}, lay.Bias...),
			Act:  int32(lay.Act),
		})
	}
	return def, nil
}

// ModelFromDef reconstructs a runnable model from its bundle.
func ModelFromDef(def *modeldef.ModelDef) (*Model, error) {
	if def.Feat == nil {
		return nil, errors.Wrap(megnet.ErrBadBasis, "bundle has no featurizer")
	}
	basis, err := NewGaussianBasis(def.Feat.Centers, def.Feat.Width)
	if err != nil {
		return nil, err
	}
	feat, err := NewFeaturizer(def.Feat.Cutoff, basis)
	if err != nil {
		return nil, err
	}
	feat.AutoExclude = def.Feat.AutoExclude
	if def.Feat.Embed != nil {
		if feat.Embed, err = matrixFromDef(def.Feat.Embed); err != nil {
			return nil, err
		}
	}
	if len(def.Feat.DefaultState) > 0 {
		feat.DefaultState = append(megnet.Vector{}, def.Feat.DefaultState...)
	}

	m := &Model{
		Name:    def.Name,
		Feat:    feat,
		Blocks:  make([]*megnet.Block, 0, len(def.Blocks)),
		Readout: &megnet.PoolReadout{Pool: megnet.PoolMethod(def.Readout)},
	}
	for _, blkDef := range def.Blocks {
		blk := &megnet.Block{
			Pool: megnet.PoolMethod(blkDef.Pool),
		}
		if blk.EdgeFn, err = fnFromDef(blkDef.EdgeFn); err != nil {
			return nil, err
		}
		if blk.NodeFn, err = fnFromDef(blkDef.NodeFn); err != nil {
			return nil, err
		}
		if blk.GlobalFn, err = fnFromDef(blkDef.GlobalFn); err != nil {
			return nil, err
		}
		m.Blocks = append(m.Blocks, blk)
	}

	if m.Output, err = fnFromDef(def.Output); err != nil {
		return nil, err
	}
	return m, nil
}

// Def exports the model as a bundle. Only pooled readouts and dense vector
// fns have a wire form.
func (m *Model) Def() (*modeldef.ModelDef, error) {
	pooled, ok := m.Readout.(*megnet.PoolReadout)
	if !ok {
		return nil, errors.Errorf("readout %T cannot be exported", m.Readout)
	}

	def := &modeldef.ModelDef{
		Name: m.Name,
		Feat: &modeldef.FeaturizerDef{
			Cutoff:       m.Feat.Cutoff,
			Centers:      append([]float64{}, m.Feat.Basis.Centers...),
			Width:        m.Feat.Basis.Width,
			Embed:        matrixToDef(m.Feat.Embed),
			DefaultState: append([]float64{}, m.Feat.DefaultState...),
			AutoExclude:  m.Feat.AutoExclude,
		},
		Readout: int32(pooled.Pool),
	}

	var err error
	for _, blk := range m.Blocks {
		blkDef := &modeldef.BlockDef{
			Pool: int32(blk.Pool),
		}
		if blkDef.EdgeFn, err = fnToDef(blk.EdgeFn); err != nil {
			return nil, err
		}
		if blkDef.NodeFn, err = fnToDef(blk.NodeFn); err != nil {
			return nil, err
		}
		if blkDef.GlobalFn, err = fnToDef(blk.GlobalFn); err != nil {
			return nil, err
		}
		def.Blocks = append(def.Blocks, blkDef)
	}

	if def.Output, err = fnToDef(m.Output); err != nil {
		return nil, err
	}
	return def, nil
}

// SaveTo marshals the model and stores the bundle under its name.
func (m *Model) SaveTo(store megnet.ModelStore) error {
	def, err := m.Def()
	if err != nil {
		return err
	}
	data, err := def.Marshal()
	if err != nil {
		return err
	}
	return store.SaveBundle(m.Name, data)
}

// LoadModel fetches and reconstructs a named bundle.
func LoadModel(store megnet.ModelStore, name string) (*Model, error) {
	data, err := store.LoadBundle(name)
	if err != nil {
		return nil, err
	}
	def := &modeldef.ModelDef{}
	if err := def.Unmarshal(data); err != nil {
		return nil, err
	}
	m, err := ModelFromDef(def)
	if err != nil {
		return nil, err
	}
	m.Cache = store
	return m, nil
}
