package megnet

import (
	"github.com/pkg/errors"
)

// Batch is the disjoint union of K raw graphs: all node rows in one arena,
// all edge rows in one arena, edge indices shifted into the concatenated node
// index space, plus owner tags mapping every node and edge back to the
// structure it came from.
//
// A Batch is built fresh per call and never mutated; update passes produce new
// feature arenas and share the index arrays, which are read-only after Init.
type Batch struct {
	NodeFeats Matrix  // Σ nodes x node width
	EdgeFeats Matrix  // Σ edges x edge width
	Globals   Matrix  // K x global width
	EdgeSrc   []int32 // shifted source node index per edge
	EdgeDst   []int32 // shifted target node index per edge
	NodeOwner []int32 // owning structure per node, non-decreasing
	EdgeOwner []int32 // owning structure per edge, non-decreasing

	// CSR incidence from node to the edges that touch it (either endpoint),
	// computed once and reused across every stacked update pass.
	nodeEdgeOfs []int32 // len = NumNodes()+1
	nodeEdges   []int32 // edge indices grouped by node
}

// NumStructs returns K, the number of structures batched.
func (b *Batch) NumStructs() int {
	return b.Globals.NumRows()
}

func (b *Batch) NumNodes() int {
	return b.NodeFeats.NumRows()
}

func (b *Batch) NumEdges() int {
	return len(b.EdgeSrc)
}

// IncidentEdges returns the indices of all edges touching node i.
func (b *Batch) IncidentEdges(i int) []int32 {
	return b.nodeEdges[b.nodeEdgeOfs[i]:b.nodeEdgeOfs[i+1]]
}

// NewBatch concatenates the given raw graphs into one disjoint-union Batch.
//
// Graphs are appended in order: node rows unchanged, edge indices shifted by
// the running node count, owner tags set to the graph's position. A single
// graph batches with offset 0; no special casing.
func NewBatch(graphs []*RawGraph) (*Batch, error) {
	if len(graphs) == 0 {
		return nil, ErrEmptyBatch
	}

	var nodeW, edgeW, globalW int
	totalNodes, totalEdges := 0, 0
	for k, g := range graphs {
		if g == nil {
			return nil, ErrNilStructure
		}
		if err := g.Validate(); err != nil {
			return nil, err
		}
		if k == 0 {
			nodeW = g.NodeFeats.Width
			edgeW = g.EdgeFeats.Width
			globalW = len(g.Global)
		} else if g.NodeFeats.Width != nodeW || g.EdgeFeats.Width != edgeW || len(g.Global) != globalW {
			return nil, errors.Wrapf(ErrShapeMismatch,
				"graph %d widths (%d,%d,%d) != (%d,%d,%d)", k,
				g.NodeFeats.Width, g.EdgeFeats.Width, len(g.Global), nodeW, edgeW, globalW)
		}
		totalNodes += g.NumNodes()
		totalEdges += g.NumEdges()
	}

	b := &Batch{
		NodeFeats: Matrix{Vals: make([]float64, 0, totalNodes*nodeW), Width: nodeW},
		EdgeFeats: Matrix{Vals: make([]float64, 0, totalEdges*edgeW), Width: edgeW},
		Globals:   Matrix{Vals: make([]float64, 0, len(graphs)*globalW), Width: globalW},
		EdgeSrc:   make([]int32, 0, totalEdges),
		EdgeDst:   make([]int32, 0, totalEdges),
		NodeOwner: make([]int32, 0, totalNodes),
		EdgeOwner: make([]int32, 0, totalEdges),
	}

	offset := int32(0)
	for k, g := range graphs {
		b.NodeFeats.Vals = append(b.NodeFeats.Vals, g.NodeFeats.Vals...)
		Nn := int32(g.NumNodes())
		for i := int32(0); i < Nn; i++ {
			b.NodeOwner = append(b.NodeOwner, int32(k))
		}

		b.EdgeFeats.Vals = append(b.EdgeFeats.Vals, g.EdgeFeats.Vals...)
		for i := range g.EdgeSrc {
			b.EdgeSrc = append(b.EdgeSrc, g.EdgeSrc[i]+offset)
			b.EdgeDst = append(b.EdgeDst, g.EdgeDst[i]+offset)
			b.EdgeOwner = append(b.EdgeOwner, int32(k))
		}

		b.Globals.Vals = append(b.Globals.Vals, g.Global...)
		offset += Nn
	}

	// Offset bookkeeping check.  A violation here is a defect in this
	// function, never a property of valid input.
	total := int32(b.NumNodes())
	for i := range b.EdgeSrc {
		if b.EdgeSrc[i] >= total || b.EdgeDst[i] >= total {
			return nil, errors.Wrapf(ErrIndexConsistency,
				"edge %d -> (%d,%d) of %d nodes", i, b.EdgeSrc[i], b.EdgeDst[i], total)
		}
	}

	b.buildIncidence()
	return b, nil
}

func (b *Batch) buildIncidence() {
	Nn := b.NumNodes()
	counts := make([]int32, Nn+1)
	for i := range b.EdgeSrc {
		counts[b.EdgeSrc[i]+1]++
		counts[b.EdgeDst[i]+1]++
	}
	for i := 0; i < Nn; i++ {
		counts[i+1] += counts[i]
	}
	b.nodeEdgeOfs = counts

	fill := make([]int32, Nn)
	b.nodeEdges = make([]int32, b.nodeEdgeOfs[Nn])
	for e := range b.EdgeSrc {
		for _, vi := range [2]int32{b.EdgeSrc[e], b.EdgeDst[e]} {
			b.nodeEdges[b.nodeEdgeOfs[vi]+fill[vi]] = int32(e)
			fill[vi]++
		}
	}
}

// withFeats returns a Batch sharing this one's index arrays but carrying the
// given feature arenas.
func (b *Batch) withFeats(nodes, edges, globals Matrix) *Batch {
	return &Batch{
		NodeFeats:   nodes,
		EdgeFeats:   edges,
		Globals:     globals,
		EdgeSrc:     b.EdgeSrc,
		EdgeDst:     b.EdgeDst,
		NodeOwner:   b.NodeOwner,
		EdgeOwner:   b.EdgeOwner,
		nodeEdgeOfs: b.nodeEdgeOfs,
		nodeEdges:   b.nodeEdges,
	}
}
