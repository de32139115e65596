package modeldef

import (
	"testing"
)

func testDef() *ModelDef {
	return &ModelDef{
		Name: "megnet-2019.4.1",
		Feat: &FeaturizerDef{
			Cutoff:       4,
			Centers:      []float64{0, 0.5, 1, 1.5, 2},
			Width:        0.5,
			Embed:        &TensorDef{NumRows: 3, Width: 2, Vals: []float64{0, 0, 1, 2, 3, 4}},
			DefaultState: []float64{0, 0},
			AutoExclude:  true,
		},
		Blocks: []*BlockDef{{
			EdgeFn: &VectorFnDef{Layers: []*DenseLayerDef{{
				W:    &TensorDef{NumRows: 2, Width: 1, Vals: []float64{0.25, -0.5}},
				Bias: []float64{0.125},
				Act:  ActSoftplus2,
			}}},
			NodeFn:   &VectorFnDef{},
			GlobalFn: &VectorFnDef{},
			Pool:     1,
		}},
		Readout: 1,
		Output: &VectorFnDef{Layers: []*DenseLayerDef{{
			W:    &TensorDef{NumRows: 1, Width: 1, Vals: []float64{1}},
			Bias: []float64{0},
		}}},
	}
}

func TestModelDefRoundTrip(t *testing.T) {
	def := testDef()

	data, err := def.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got ModelDef
	if err := got.Unmarshal(data); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if got.Name != def.Name || got.Readout != 1 {
		t.Fatalf("header: %q %d", got.Name, got.Readout)
	}
	if got.Feat == nil || got.Feat.Cutoff != 4 || !got.Feat.AutoExclude {
		t.Fatalf("featurizer: %+v", got.Feat)
	}
	if len(got.Feat.Centers) != 5 || got.Feat.Centers[3] != 1.5 {
		t.Fatalf("centers: %v", got.Feat.Centers)
	}
	if got.Feat.Embed.NumRows != 3 || got.Feat.Embed.Vals[5] != 4 {
		t.Fatalf("embed: %+v", got.Feat.Embed)
	}

	if len(got.Blocks) != 1 {
		t.Fatalf("blocks: %d", len(got.Blocks))
	}
	blk := got.Blocks[0]
	if blk.Pool != 1 || len(blk.EdgeFn.Layers) != 1 {
		t.Fatalf("block: %+v", blk)
	}
	lay := blk.EdgeFn.Layers[0]
	if lay.Act != ActSoftplus2 || lay.W.Vals[1] != -0.5 || lay.Bias[0] != 0.125 {
		t.Fatalf("layer: %+v", lay)
	}

	// Empty nested fns survive as empty, not nil-pointer surprises.
	if blk.NodeFn == nil || len(blk.NodeFn.Layers) != 0 {
		t.Fatalf("empty fn: %+v", blk.NodeFn)
	}

	if got.Output.Layers[0].Act != ActLinear {
		t.Fatal("default activation must decode as linear")
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	var def ModelDef
	if err := def.Unmarshal([]byte{0x12, 0xFF, 0xFF}); err == nil {
		t.Fatal("truncated bytes-field length must fail")
	}
	if err := def.Unmarshal([]byte{0x80}); err == nil {
		t.Fatal("message cut mid key must fail, not decode as empty")
	}
}

func TestUnmarshalTruncated(t *testing.T) {
	buf, err := testDef().Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	// Any proper prefix that splits a field is an error, never a partial def.
	var def ModelDef
	if err := def.Unmarshal(buf[:len(buf)-1]); err == nil {
		t.Fatal("truncated message must fail to unmarshal")
	}
}
