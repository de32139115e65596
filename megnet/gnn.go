package megnet

import (
	"github.com/pkg/errors"
)

// Block is one full graph-network update: edge update, then node update, then
// global update, each through its own injected VectorFn.
//
// The stage order is fixed because the node update consumes updated edges and
// the global update consumes updated nodes and edges.
type Block struct {
	EdgeFn   VectorFn
	NodeFn   VectorFn
	GlobalFn VectorFn
	Pool     PoolMethod
}

// Forward runs one update pass over the batch and returns a new batch with
// the same node, edge, and structure counts. The input batch is not mutated,
// so intermediate representations stay inspectable, and the output is valid
// input for the next stacked Block.
func (blk *Block) Forward(b *Batch) (*Batch, error) {
	nodeW := b.NodeFeats.Width
	edgeW := b.EdgeFeats.Width
	globalW := b.Globals.Width

	// All width checks happen before any output is built.
	if want, got := 2*nodeW+edgeW+globalW, blk.EdgeFn.InWidth(); want != got {
		return nil, errors.Wrapf(ErrShapeMismatch, "edge updater wants %d, stage concat is %d", got, want)
	}
	edgeW2 := blk.EdgeFn.OutWidth()
	if want, got := nodeW+edgeW2+globalW, blk.NodeFn.InWidth(); want != got {
		return nil, errors.Wrapf(ErrShapeMismatch, "node updater wants %d, stage concat is %d", got, want)
	}
	nodeW2 := blk.NodeFn.OutWidth()
	if want, got := globalW+nodeW2+edgeW2, blk.GlobalFn.InWidth(); want != got {
		return nil, errors.Wrapf(ErrShapeMismatch, "global updater wants %d, stage concat is %d", got, want)
	}
	if blk.Pool != PoolMean && blk.Pool != PoolSum {
		return nil, ErrBadPoolMethod
	}

	Nn := b.NumNodes()
	Ne := b.NumEdges()
	K := b.NumStructs()

	scrap := make([]float64, 0, 4*(nodeW+edgeW+globalW))

	// Stage 1: edge update.
	newEdges := Matrix{Vals: make([]float64, 0, Ne*edgeW2), Width: edgeW2}
	for e := 0; e < Ne; e++ {
		in := scrap[:0]
		in = append(in, b.NodeFeats.Row(int(b.EdgeSrc[e]))...)
		in = append(in, b.NodeFeats.Row(int(b.EdgeDst[e]))...)
		in = append(in, b.EdgeFeats.Row(e)...)
		in = append(in, b.Globals.Row(int(b.EdgeOwner[e]))...)

		n0 := len(newEdges.Vals)
		newEdges.Vals = blk.EdgeFn.Apply(newEdges.Vals, in)
		if len(newEdges.Vals)-n0 != edgeW2 {
			return nil, errors.Wrapf(ErrShapeMismatch, "edge updater emitted %d values, not %d", len(newEdges.Vals)-n0, edgeW2)
		}
	}

	// Stage 2: node update, aggregating each node's incident updated edges.
	newNodes := Matrix{Vals: make([]float64, 0, Nn*nodeW2), Width: nodeW2}
	edgeAgg := make([]float64, edgeW2)
	for i := 0; i < Nn; i++ {
		incident := b.IncidentEdges(i)
		poolRows(edgeAgg, newEdges, incident, blk.Pool)

		in := scrap[:0]
		in = append(in, b.NodeFeats.Row(i)...)
		in = append(in, edgeAgg...)
		in = append(in, b.Globals.Row(int(b.NodeOwner[i]))...)

		n0 := len(newNodes.Vals)
		newNodes.Vals = blk.NodeFn.Apply(newNodes.Vals, in)
		if len(newNodes.Vals)-n0 != nodeW2 {
			return nil, errors.Wrapf(ErrShapeMismatch, "node updater emitted %d values, not %d", len(newNodes.Vals)-n0, nodeW2)
		}
	}

	// Stage 3: global update from per-structure node and edge aggregates.
	globalW2 := blk.GlobalFn.OutWidth()
	nodeAggs := NewMatrix(K, nodeW2)
	edgeAggs := NewMatrix(K, edgeW2)
	poolByOwner(nodeAggs, newNodes, b.NodeOwner, blk.Pool)
	poolByOwner(edgeAggs, newEdges, b.EdgeOwner, blk.Pool)

	newGlobals := Matrix{Vals: make([]float64, 0, K*globalW2), Width: globalW2}
	for k := 0; k < K; k++ {
		in := scrap[:0]
		in = append(in, b.Globals.Row(k)...)
		in = append(in, nodeAggs.Row(k)...)
		in = append(in, edgeAggs.Row(k)...)

		n0 := len(newGlobals.Vals)
		newGlobals.Vals = blk.GlobalFn.Apply(newGlobals.Vals, in)
		if len(newGlobals.Vals)-n0 != globalW2 {
			return nil, errors.Wrapf(ErrShapeMismatch, "global updater emitted %d values, not %d", len(newGlobals.Vals)-n0, globalW2)
		}
	}

	return b.withFeats(newNodes, newEdges, newGlobals), nil
}

// poolRows reduces the selected rows of src into dst. Zero selected rows
// pool to a zero vector, never an error.
func poolRows(dst []float64, src Matrix, rows []int32, method PoolMethod) {
	for i := range dst {
		dst[i] = 0
	}
	for _, r := range rows {
		row := src.Row(int(r))
		for i := range dst {
			dst[i] += row[i]
		}
	}
	if method == PoolMean && len(rows) > 0 {
		inv := 1 / float64(len(rows))
		for i := range dst {
			dst[i] *= inv
		}
	}
}

// poolByOwner reduces src rows into one dst row per owner tag. Owners with no
// rows keep a zero row.
func poolByOwner(dst Matrix, src Matrix, owner []int32, method PoolMethod) {
	dst.Zero()
	counts := make([]int32, dst.NumRows())
	for r, k := range owner {
		row := src.Row(r)
		out := dst.Row(int(k))
		for i := range out {
			out[i] += row[i]
		}
		counts[k]++
	}
	if method == PoolMean {
		for k, n := range counts {
			if n == 0 {
				continue
			}
			inv := 1 / float64(n)
			out := dst.Row(k)
			for i := range out {
				out[i] *= inv
			}
		}
	}
}

// PoolReadout is the reference Readout: per structure, it concatenates the
// pooled node rows, pooled edge rows, and the global row. Heavier readouts
// (set2set) plug in through the same interface using the owner tags.
type PoolReadout struct {
	Pool PoolMethod
}

func (ro PoolReadout) Reduce(b *Batch) (Matrix, error) {
	if ro.Pool != PoolMean && ro.Pool != PoolSum {
		return Matrix{}, ErrBadPoolMethod
	}
	K := b.NumStructs()
	nodeW := b.NodeFeats.Width
	edgeW := b.EdgeFeats.Width
	globalW := b.Globals.Width

	nodeAggs := NewMatrix(K, nodeW)
	edgeAggs := NewMatrix(K, edgeW)
	poolByOwner(nodeAggs, b.NodeFeats, b.NodeOwner, ro.Pool)
	poolByOwner(edgeAggs, b.EdgeFeats, b.EdgeOwner, ro.Pool)

	out := Matrix{Vals: make([]float64, 0, K*(nodeW+edgeW+globalW)), Width: nodeW + edgeW + globalW}
	for k := 0; k < K; k++ {
		out.Vals = append(out.Vals, nodeAggs.Row(k)...)
		out.Vals = append(out.Vals, edgeAggs.Row(k)...)
		out.Vals = append(out.Vals, b.Globals.Row(k)...)
	}
	return out, nil
}
