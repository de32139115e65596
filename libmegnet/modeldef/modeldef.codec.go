package modeldef

import (
	"encoding/binary"
	"math"

	"github.com/gogo/protobuf/proto"
)

const (
	wireVarint  = 0
	wireFixed64 = 1
	wireBytes   = 2
)

func fieldKey(num, wire uint64) uint64 {
	return num<<3 | wire
}

func putFloats(b *proto.Buffer, num uint64, vals []float64) {
	if len(vals) == 0 {
		return
	}
	sub := proto.NewBuffer(make([]byte, 0, 8*len(vals)))
	for _, v := range vals {
		sub.EncodeFixed64(math.Float64bits(v))
	}
	b.EncodeVarint(fieldKey(num, wireBytes))
	b.EncodeRawBytes(sub.Bytes())
}

func getFloats(b *proto.Buffer) ([]float64, error) {
	raw, err := b.DecodeRawBytes(false)
	if err != nil || len(raw)%8 != 0 {
		return nil, ErrUnmarshal
	}
	sub := proto.NewBuffer(raw)
	vals := make([]float64, 0, len(raw)/8)
	for i := 0; i < len(raw)/8; i++ {
		bits, err := sub.DecodeFixed64()
		if err != nil {
			return nil, ErrUnmarshal
		}
		vals = append(vals, math.Float64frombits(bits))
	}
	return vals, nil
}

func putMsg(b *proto.Buffer, num uint64, sub []byte) {
	b.EncodeVarint(fieldKey(num, wireBytes))
	b.EncodeRawBytes(sub)
}

func skipField(b *proto.Buffer, wire uint64) error {
	var err error
	switch wire {
	case wireVarint:
		_, err = b.DecodeVarint()
	case wireFixed64:
		_, err = b.DecodeFixed64()
	case wireBytes:
		_, err = b.DecodeRawBytes(false)
	default:
		return ErrUnmarshal
	}
	if err != nil {
		return ErrUnmarshal
	}
	return nil
}

// checkWire verifies that data is a complete sequence of tagged fields, so
// the decode loops below can treat a failed key read as end of message.
// Truncation anywhere, a mid-varint cut included, fails here.
func checkWire(data []byte) error {
	for len(data) > 0 {
		key, n := binary.Uvarint(data)
		if n <= 0 {
			return ErrUnmarshal
		}
		data = data[n:]
		switch key & 7 {
		case wireVarint:
			_, n := binary.Uvarint(data)
			if n <= 0 {
				return ErrUnmarshal
			}
			data = data[n:]
		case wireFixed64:
			if len(data) < 8 {
				return ErrUnmarshal
			}
			data = data[8:]
		case wireBytes:
			ln, n := binary.Uvarint(data)
			if n <= 0 || ln > uint64(len(data)-n) {
				return ErrUnmarshal
			}
			data = data[uint64(n)+ln:]
		default:
			return ErrUnmarshal
		}
	}
	return nil
}

func (t *TensorDef) Marshal() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if t.NumRows != 0 {
		b.EncodeVarint(fieldKey(1, wireVarint))
		b.EncodeVarint(uint64(t.NumRows))
	}
	if t.Width != 0 {
		b.EncodeVarint(fieldKey(2, wireVarint))
		b.EncodeVarint(uint64(t.Width))
	}
	putFloats(b, 3, t.Vals)
	return b.Bytes(), nil
}

func (t *TensorDef) Unmarshal(data []byte) error {
	*t = TensorDef{}
	if err := checkWire(data); err != nil {
		return err
	}
	b := proto.NewBuffer(data)
	for {
		key, err := b.DecodeVarint()
		if err != nil {
			return nil
		}
		switch key {
		case fieldKey(1, wireVarint):
			v, err := b.DecodeVarint()
			if err != nil {
				return ErrUnmarshal
			}
			t.NumRows = int64(v)
		case fieldKey(2, wireVarint):
			v, err := b.DecodeVarint()
			if err != nil {
				return ErrUnmarshal
			}
			t.Width = int64(v)
		case fieldKey(3, wireBytes):
			if t.Vals, err = getFloats(b); err != nil {
				return err
			}
		default:
			if err := skipField(b, key&7); err != nil {
				return err
			}
		}
	}
}

func (lay *DenseLayerDef) Marshal() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if lay.W != nil {
		sub, err := lay.W.Marshal()
		if err != nil {
			return nil, err
		}
		putMsg(b, 1, sub)
	}
	putFloats(b, 2, lay.Bias)
	if lay.Act != 0 {
		b.EncodeVarint(fieldKey(3, wireVarint))
		b.EncodeVarint(uint64(lay.Act))
	}
	return b.Bytes(), nil
}

func (lay *DenseLayerDef) Unmarshal(data []byte) error {
	*lay = DenseLayerDef{}
	if err := checkWire(data); err != nil {
		return err
	}
	b := proto.NewBuffer(data)
	for {
		key, err := b.DecodeVarint()
		if err != nil {
			return nil
		}
		switch key {
		case fieldKey(1, wireBytes):
			raw, err := b.DecodeRawBytes(false)
			if err != nil {
				return ErrUnmarshal
			}
			lay.W = &TensorDef{}
			if err := lay.W.Unmarshal(raw); err != nil {
				return err
			}
		case fieldKey(2, wireBytes):
			if lay.Bias, err = getFloats(b); err != nil {
				return err
			}
		case fieldKey(3, wireVarint):
			v, err := b.DecodeVarint()
			if err != nil {
				return ErrUnmarshal
			}
			lay.Act = int32(v)
		default:
			if err := skipField(b, key&7); err != nil {
				return err
			}
		}
	}
}

func (fn *VectorFnDef) Marshal() ([]byte, error) {
	b := proto.NewBuffer(nil)
	for _, lay := range fn.Layers {
		sub, err := lay.Marshal()
		if err != nil {
			return nil, err
		}
		putMsg(b, 1, sub)
	}
	return b.Bytes(), nil
}

func (fn *VectorFnDef) Unmarshal(data []byte) error {
	*fn = VectorFnDef{}
	if err := checkWire(data); err != nil {
		return err
	}
	b := proto.NewBuffer(data)
	for {
		key, err := b.DecodeVarint()
		if err != nil {
			return nil
		}
		switch key {
		case fieldKey(1, wireBytes):
			raw, err := b.DecodeRawBytes(false)
			if err != nil {
				return ErrUnmarshal
			}
			lay := &DenseLayerDef{}
			if err := lay.Unmarshal(raw); err != nil {
				return err
			}
			fn.Layers = append(fn.Layers, lay)
		default:
			if err := skipField(b, key&7); err != nil {
				return err
			}
		}
	}
}

func (blk *BlockDef) Marshal() ([]byte, error) {
	b := proto.NewBuffer(nil)
	fns := []*VectorFnDef{blk.EdgeFn, blk.NodeFn, blk.GlobalFn}
	for fi, fn := range fns {
		if fn == nil {
			continue
		}
		sub, err := fn.Marshal()
		if err != nil {
			return nil, err
		}
		putMsg(b, uint64(fi+1), sub)
	}
	if blk.Pool != 0 {
		b.EncodeVarint(fieldKey(4, wireVarint))
		b.EncodeVarint(uint64(blk.Pool))
	}
	return b.Bytes(), nil
}

func (blk *BlockDef) Unmarshal(data []byte) error {
	*blk = BlockDef{}
	if err := checkWire(data); err != nil {
		return err
	}
	b := proto.NewBuffer(data)
	for {
		key, err := b.DecodeVarint()
		if err != nil {
			return nil
		}
		switch key {
		case fieldKey(1, wireBytes), fieldKey(2, wireBytes), fieldKey(3, wireBytes):
			raw, err := b.DecodeRawBytes(false)
			if err != nil {
				return ErrUnmarshal
			}
			fn := &VectorFnDef{}
			if err := fn.Unmarshal(raw); err != nil {
				return err
			}
			switch key >> 3 {
			case 1:
				blk.EdgeFn = fn
			case 2:
				blk.NodeFn = fn
			case 3:
				blk.GlobalFn = fn
			}
		case fieldKey(4, wireVarint):
			v, err := b.DecodeVarint()
			if err != nil {
				return ErrUnmarshal
			}
			blk.Pool = int32(v)
		default:
			if err := skipField(b, key&7); err != nil {
				return err
			}
		}
	}
}

func (feat *FeaturizerDef) Marshal() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if feat.Cutoff != 0 {
		b.EncodeVarint(fieldKey(1, wireFixed64))
		b.EncodeFixed64(math.Float64bits(feat.Cutoff))
	}
	putFloats(b, 2, feat.Centers)
	if feat.Width != 0 {
		b.EncodeVarint(fieldKey(3, wireFixed64))
		b.EncodeFixed64(math.Float64bits(feat.Width))
	}
	if feat.Embed != nil {
		sub, err := feat.Embed.Marshal()
		if err != nil {
			return nil, err
		}
		putMsg(b, 4, sub)
	}
	putFloats(b, 5, feat.DefaultState)
	if feat.AutoExclude {
		b.EncodeVarint(fieldKey(6, wireVarint))
		b.EncodeVarint(1)
	}
	return b.Bytes(), nil
}

func (feat *FeaturizerDef) Unmarshal(data []byte) error {
	*feat = FeaturizerDef{}
	if err := checkWire(data); err != nil {
		return err
	}
	b := proto.NewBuffer(data)
	for {
		key, err := b.DecodeVarint()
		if err != nil {
			return nil
		}
		switch key {
		case fieldKey(1, wireFixed64):
			bits, err := b.DecodeFixed64()
			if err != nil {
				return ErrUnmarshal
			}
			feat.Cutoff = math.Float64frombits(bits)
		case fieldKey(2, wireBytes):
			if feat.Centers, err = getFloats(b); err != nil {
				return err
			}
		case fieldKey(3, wireFixed64):
			bits, err := b.DecodeFixed64()
			if err != nil {
				return ErrUnmarshal
			}
			feat.Width = math.Float64frombits(bits)
		case fieldKey(4, wireBytes):
			raw, err := b.DecodeRawBytes(false)
			if err != nil {
				return ErrUnmarshal
			}
			feat.Embed = &TensorDef{}
			if err := feat.Embed.Unmarshal(raw); err != nil {
				return err
			}
		case fieldKey(5, wireBytes):
			if feat.DefaultState, err = getFloats(b); err != nil {
				return err
			}
		case fieldKey(6, wireVarint):
			v, err := b.DecodeVarint()
			if err != nil {
				return ErrUnmarshal
			}
			feat.AutoExclude = v != 0
		default:
			if err := skipField(b, key&7); err != nil {
				return err
			}
		}
	}
}

func (def *ModelDef) Marshal() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if len(def.Name) > 0 {
		b.EncodeVarint(fieldKey(1, wireBytes))
		b.EncodeRawBytes([]byte(def.Name))
	}
	if def.Feat != nil {
		sub, err := def.Feat.Marshal()
		if err != nil {
			return nil, err
		}
		putMsg(b, 2, sub)
	}
	for _, blk := range def.Blocks {
		sub, err := blk.Marshal()
		if err != nil {
			return nil, err
		}
		putMsg(b, 3, sub)
	}
	if def.Readout != 0 {
		b.EncodeVarint(fieldKey(4, wireVarint))
		b.EncodeVarint(uint64(def.Readout))
	}
	if def.Output != nil {
		sub, err := def.Output.Marshal()
		if err != nil {
			return nil, err
		}
		putMsg(b, 5, sub)
	}
	return b.Bytes(), nil
}

func (def *ModelDef) Unmarshal(data []byte) error {
	*def = ModelDef{}
	if err := checkWire(data); err != nil {
		return err
	}
	b := proto.NewBuffer(data)
	for {
		key, err := b.DecodeVarint()
		if err != nil {
			return nil
		}
		switch key {
		case fieldKey(1, wireBytes):
			raw, err := b.DecodeRawBytes(false)
			if err != nil {
				return ErrUnmarshal
			}
			def.Name = string(raw)
		case fieldKey(2, wireBytes):
			raw, err := b.DecodeRawBytes(false)
			if err != nil {
				return ErrUnmarshal
			}
			def.Feat = &FeaturizerDef{}
			if err := def.Feat.Unmarshal(raw); err != nil {
				return err
			}
		case fieldKey(3, wireBytes):
			raw, err := b.DecodeRawBytes(false)
			if err != nil {
				return ErrUnmarshal
			}
			blk := &BlockDef{}
			if err := blk.Unmarshal(raw); err != nil {
				return err
			}
			def.Blocks = append(def.Blocks, blk)
		case fieldKey(4, wireVarint):
			v, err := b.DecodeVarint()
			if err != nil {
				return ErrUnmarshal
			}
			def.Readout = int32(v)
		case fieldKey(5, wireBytes):
			raw, err := b.DecodeRawBytes(false)
			if err != nil {
				return ErrUnmarshal
			}
			def.Output = &VectorFnDef{}
			if err := def.Output.Unmarshal(raw); err != nil {
				return err
			}
		default:
			if err := skipField(b, key&7); err != nil {
				return err
			}
		}
	}
}
