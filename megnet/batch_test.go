package megnet

import (
	"testing"

	"github.com/pkg/errors"
)

// twoAtomGraph is A: 2 nodes, one bonded pair (both directions).
func twoAtomGraph() *RawGraph {
	return &RawGraph{
		Label:     "A",
		NodeFeats: Matrix{Vals: []float64{1, 0, 0, 1}, Width: 2},
		EdgeSrc:   []int32{0, 1},
		EdgeDst:   []int32{1, 0},
		BondDists: []float64{1.5, 1.5},
		EdgeFeats: Matrix{Vals: []float64{0.9, 0.9}, Width: 1},
		Global:    Vector{0, 0},
	}
}

// threeAtomGraph is B: a 3 node chain, 4 directed edges.
func threeAtomGraph() *RawGraph {
	return &RawGraph{
		Label:     "B",
		NodeFeats: Matrix{Vals: []float64{1, 1, 0, 1, 1, 0}, Width: 2},
		EdgeSrc:   []int32{0, 1, 1, 2},
		EdgeDst:   []int32{1, 0, 2, 1},
		BondDists: []float64{1.1, 1.1, 1.2, 1.2},
		EdgeFeats: Matrix{Vals: []float64{0.8, 0.8, 0.7, 0.7}, Width: 1},
		Global:    Vector{0, 0},
	}
}

func TestBatchAssembly(t *testing.T) {
	b, err := NewBatch([]*RawGraph{twoAtomGraph(), threeAtomGraph()})
	if err != nil {
		t.Fatalf("NewBatch failed: %v", err)
	}

	if b.NumStructs() != 2 || b.NumNodes() != 5 || b.NumEdges() != 6 {
		t.Fatalf("got K=%d, nodes=%d, edges=%d", b.NumStructs(), b.NumNodes(), b.NumEdges())
	}

	wantNodeOwner := []int32{0, 0, 1, 1, 1}
	for i, k := range wantNodeOwner {
		if b.NodeOwner[i] != k {
			t.Fatalf("node %d owner %d, want %d", i, b.NodeOwner[i], k)
		}
	}

	// B's edges shift by A's 2 nodes.
	wantSrc := []int32{0, 1, 2, 3, 3, 4}
	wantDst := []int32{1, 0, 3, 2, 4, 3}
	wantEdgeOwner := []int32{0, 0, 1, 1, 1, 1}
	for e := 0; e < 6; e++ {
		if b.EdgeSrc[e] != wantSrc[e] || b.EdgeDst[e] != wantDst[e] {
			t.Fatalf("edge %d is (%d,%d), want (%d,%d)", e, b.EdgeSrc[e], b.EdgeDst[e], wantSrc[e], wantDst[e])
		}
		if b.EdgeOwner[e] != wantEdgeOwner[e] {
			t.Fatalf("edge %d owner %d, want %d", e, b.EdgeOwner[e], wantEdgeOwner[e])
		}
	}

	// Node feature rows pass through unchanged, in order.
	if b.NodeFeats.Row(2)[0] != 1 || b.NodeFeats.Row(2)[1] != 1 {
		t.Fatalf("node 2 row corrupted: %v", b.NodeFeats.Row(2))
	}
}

func TestBatchIncidence(t *testing.T) {
	b, err := NewBatch([]*RawGraph{twoAtomGraph(), threeAtomGraph()})
	if err != nil {
		t.Fatalf("NewBatch failed: %v", err)
	}

	// The chain's middle node (batch node 3) touches all 4 of B's edges.
	incident := b.IncidentEdges(3)
	if len(incident) != 4 {
		t.Fatalf("node 3 has %d incident edges, want 4", len(incident))
	}
	for _, e := range incident {
		if b.EdgeSrc[e] != 3 && b.EdgeDst[e] != 3 {
			t.Fatalf("edge %d does not touch node 3", e)
		}
	}

	// End nodes of A touch both of A's edges.
	if len(b.IncidentEdges(0)) != 2 || len(b.IncidentEdges(1)) != 2 {
		t.Fatal("A's nodes should each touch 2 edges")
	}
}

func TestBatchOfOne(t *testing.T) {
	g := threeAtomGraph()
	b, err := NewBatch([]*RawGraph{g})
	if err != nil {
		t.Fatalf("NewBatch failed: %v", err)
	}

	if b.NumStructs() != 1 {
		t.Fatalf("K = %d, want 1", b.NumStructs())
	}

	// With offset 0, indices come through unshifted.
	for e := range g.EdgeSrc {
		if b.EdgeSrc[e] != g.EdgeSrc[e] || b.EdgeDst[e] != g.EdgeDst[e] {
			t.Fatalf("edge %d was shifted in a batch of one", e)
		}
	}
	for _, k := range b.NodeOwner {
		if k != 0 {
			t.Fatal("sole graph must own every node")
		}
	}
}

func TestBatchRejects(t *testing.T) {
	if _, err := NewBatch(nil); err != ErrEmptyBatch {
		t.Fatalf("empty batch: got %v", err)
	}

	// A nil graph errors no matter where it sits, first position included.
	if _, err := NewBatch([]*RawGraph{nil, twoAtomGraph()}); err != ErrNilStructure {
		t.Fatalf("nil first graph: got %v", err)
	}
	if _, err := NewBatch([]*RawGraph{twoAtomGraph(), nil}); err != ErrNilStructure {
		t.Fatalf("nil second graph: got %v", err)
	}

	// Mismatched node widths across graphs.
	narrow := twoAtomGraph()
	narrow.NodeFeats = Matrix{Vals: []float64{1, 0}, Width: 1}
	if _, err := NewBatch([]*RawGraph{narrow, threeAtomGraph()}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("width mismatch: got %v", err)
	}

	// Edge index beyond the graph's own node count.
	bad := twoAtomGraph()
	bad.EdgeDst[1] = 7
	if _, err := NewBatch([]*RawGraph{bad}); !errors.Is(err, ErrIndexConsistency) {
		t.Fatalf("bad index: got %v", err)
	}
}
