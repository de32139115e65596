// Package modeldef is the wire form of a trained model: every weight, basis
// center, and block layout needed to reconstruct a predictor. Messages use
// standard protobuf wire encoding with hand-rolled codecs so a bundle written
// here can be read by any protobuf tooling given the schema.
package modeldef

import (
	"github.com/mahendra-ramajayam/megnet/megnet"
)

// Activation codes carried on DenseLayerDef.Act.
const (
	ActLinear    = 0
	ActSoftplus2 = 1
	ActRelu      = 2
)

// TensorDef is a dense row-major matrix.
type TensorDef struct {
	NumRows int64
	Width   int64
	Vals    []float64
}

// DenseLayerDef is one affine layer: weights, bias, activation code.
type DenseLayerDef struct {
	W    *TensorDef
	Bias []float64
	Act  int32
}

// VectorFnDef is a stack of dense layers.
type VectorFnDef struct {
	Layers []*DenseLayerDef
}

// BlockDef is one graph-update stage.
type BlockDef struct {
	EdgeFn   *VectorFnDef
	NodeFn   *VectorFnDef
	GlobalFn *VectorFnDef
	Pool     int32 // megnet.PoolMethod
}

// FeaturizerDef captures how structures were encoded during training.
type FeaturizerDef struct {
	Cutoff       float64
	Centers      []float64
	Width        float64
	Embed        *TensorDef
	DefaultState []float64
	AutoExclude  bool
}

// ModelDef is a complete predictor bundle.
type ModelDef struct {
	Name    string
	Feat    *FeaturizerDef
	Blocks  []*BlockDef
	Readout int32 // megnet.PoolMethod
	Output  *VectorFnDef
}

var ErrUnmarshal = megnet.ErrUnmarshal
