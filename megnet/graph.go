package megnet

import (
	"github.com/pkg/errors"
)

// RawGraph is one structure rendered as a graph: node feature rows, directed
// edge index pairs (both directions of every bond), per-edge features, and
// one global-state vector.
//
// RawGraphs are immutable once produced by a featurizer.
type RawGraph struct {
	Label     string  // originating structure label, for error reporting
	NodeFeats Matrix  // one row per atom
	EdgeSrc   []int32 // local source node index per edge
	EdgeDst   []int32 // local target node index per edge
	BondDists []float64
	EdgeFeats Matrix // one row per edge
	Global    Vector
}

func (g *RawGraph) NumNodes() int {
	return g.NodeFeats.NumRows()
}

func (g *RawGraph) NumEdges() int {
	return len(g.EdgeSrc)
}

// Validate checks the internal consistency of a raw graph.
func (g *RawGraph) Validate() error {
	Nn := g.NumNodes()
	Ne := g.NumEdges()

	if Nn == 0 {
		return errors.Wrap(ErrEmptyStructure, g.Label)
	}
	// Zero edges is consistent here; whether it is degenerate is the
	// featurizer's call.
	if Ne != len(g.EdgeDst) || Ne != g.EdgeFeats.NumRows() {
		return errors.Wrapf(ErrShapeMismatch, "%s: %d edge pairs, %d dst, %d feature rows",
			g.Label, Ne, len(g.EdgeDst), g.EdgeFeats.NumRows())
	}
	if len(g.BondDists) != 0 && len(g.BondDists) != Ne {
		return errors.Wrap(ErrShapeMismatch, g.Label)
	}
	for i := 0; i < Ne; i++ {
		if int(g.EdgeSrc[i]) >= Nn || int(g.EdgeDst[i]) >= Nn || g.EdgeSrc[i] < 0 || g.EdgeDst[i] < 0 {
			return errors.Wrapf(ErrIndexConsistency, "%s: edge %d references node (%d,%d) of %d",
				g.Label, i, g.EdgeSrc[i], g.EdgeDst[i], Nn)
		}
	}
	return nil
}
