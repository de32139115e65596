package libmegnet

import (
	"math"
	"testing"

	"github.com/pkg/errors"

	"github.com/mahendra-ramajayam/megnet/megnet"
)

func TestMolecularBonds(t *testing.T) {
	// Water, experimental geometry.
	st := &Structure{
		Label: "H2O",
		Z:     []int32{8, 1, 1},
		Coords: [][3]float64{
			{0, 0, 0},
			{0.757, 0.586, 0},
			{-0.757, 0.586, 0},
		},
	}

	bonds, err := FindBonds(st, 1.5)
	if err != nil {
		t.Fatalf("FindBonds failed: %v", err)
	}

	// Both O-H pairs in both directions; the H-H separation is 1.514.
	if len(bonds) != 4 {
		t.Fatalf("got %d bonds, want 4", len(bonds))
	}

	wantOH := math.Sqrt(0.757*0.757 + 0.586*0.586)
	for _, b := range bonds {
		if b.Src != 0 && b.Dst != 0 {
			t.Fatalf("unexpected H-H bond %d-%d", b.Src, b.Dst)
		}
		if math.Abs(b.Dist-wantOH) > 1e-12 {
			t.Fatalf("bond %d-%d dist %v, want %v", b.Src, b.Dst, b.Dist, wantOH)
		}
	}

	// Same structure, same bond order.
	again, _ := FindBonds(st, 1.5)
	for i := range bonds {
		if bonds[i] != again[i] {
			t.Fatal("bond enumeration is not deterministic")
		}
	}

	// A wider cutoff picks up the H-H pair too.
	bonds, err = FindBonds(st, 1.6)
	if err != nil {
		t.Fatalf("FindBonds failed: %v", err)
	}
	if len(bonds) != 6 {
		t.Fatalf("got %d bonds at 1.6, want 6", len(bonds))
	}
}

func TestIsolatedAtom(t *testing.T) {
	st := &Structure{
		Label: "split",
		Z:     []int32{1, 1, 1},
		Coords: [][3]float64{
			{0, 0, 0},
			{1, 0, 0},
			{50, 0, 0}, // stranded
		},
	}

	_, err := FindBonds(st, 1.5)
	if !errors.Is(err, megnet.ErrDegenerateStructure) {
		t.Fatalf("got %v, want degenerate structure", err)
	}
}

func TestCoincidentAtoms(t *testing.T) {
	// A zero length bond is meaningless, so stacked atoms have no neighbors
	// and the pair surfaces as degenerate.
	st := &Structure{
		Label: "stacked",
		Z:     []int32{1, 1},
		Coords: [][3]float64{
			{0, 0, 0},
			{0, 0, 0},
		},
	}

	_, err := FindBonds(st, 1.5)
	if !errors.Is(err, megnet.ErrDegenerateStructure) {
		t.Fatalf("got %v, want degenerate structure", err)
	}
}

func TestPeriodicSelfBonds(t *testing.T) {
	// One atom in a cubic cell bonds only to its own images.
	st := &Structure{
		Label:   "Po",
		Z:       []int32{84},
		Coords:  [][3]float64{{0, 0, 0}},
		Lattice: NewCubicLattice(2),
	}

	bonds, err := FindBonds(st, 2.5)
	if err != nil {
		t.Fatalf("FindBonds failed: %v", err)
	}

	// Six face neighbors at 2; the face diagonals at 2*sqrt2 are out of range.
	if len(bonds) != 6 {
		t.Fatalf("got %d bonds, want 6", len(bonds))
	}
	for _, b := range bonds {
		if b.Src != 0 || b.Dst != 0 {
			t.Fatalf("self-image bond has indices %d-%d", b.Src, b.Dst)
		}
		if math.Abs(b.Dist-2) > 1e-12 {
			t.Fatalf("image dist %v, want 2", b.Dist)
		}
	}

	// Widen past the face diagonal: 6 + 12 images.
	bonds, _ = FindBonds(st, 2*math.Sqrt2+0.01)
	if len(bonds) != 18 {
		t.Fatalf("got %d bonds, want 18", len(bonds))
	}
}

func TestBadCutoff(t *testing.T) {
	st := &Structure{Label: "H", Z: []int32{1}, Coords: [][3]float64{{0, 0, 0}}}
	if _, err := FindBonds(st, 0); !errors.Is(err, megnet.ErrBadCutoff) {
		t.Fatalf("got %v, want bad cutoff", err)
	}
}

func TestDegenerateLattice(t *testing.T) {
	st := &Structure{
		Label:   "flat",
		Z:       []int32{6},
		Coords:  [][3]float64{{0, 0, 0}},
		Lattice: &Lattice{Vecs: [3][3]float64{{1, 0, 0}, {2, 0, 0}, {0, 0, 1}}},
	}
	if _, err := FindBonds(st, 2); !errors.Is(err, megnet.ErrBadLattice) {
		t.Fatalf("got %v, want bad lattice", err)
	}
}

func TestGaussianExpansion(t *testing.T) {
	basis, err := NewGaussianBasis([]float64{0, 1, 2}, 1)
	if err != nil {
		t.Fatalf("NewGaussianBasis failed: %v", err)
	}
	if basis.Dim() != 3 {
		t.Fatalf("dim %d, want 3", basis.Dim())
	}

	out := basis.Expand(nil, 1)
	want := []float64{math.Exp(-1), 1, math.Exp(-1)}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-15 {
			t.Fatalf("expansion %v, want %v", out, want)
		}
	}

	// Same distance, same config, bit identical output.
	again := basis.Expand(nil, 1)
	for i := range out {
		if math.Float64bits(out[i]) != math.Float64bits(again[i]) {
			t.Fatalf("expansion not deterministic: %v vs %v", out, again)
		}
	}

	if _, err := NewGaussianBasis(nil, 1); !errors.Is(err, megnet.ErrBadBasis) {
		t.Fatal("empty centers must be rejected")
	}
	if _, err := NewGaussianBasis([]float64{1}, 0); !errors.Is(err, megnet.ErrBadBasis) {
		t.Fatal("zero width must be rejected")
	}

	centers := LinspaceCenters(0, 5, 11)
	if len(centers) != 11 || centers[0] != 0 || centers[10] != 5 || centers[5] != 2.5 {
		t.Fatalf("linspace: %v", centers)
	}
}
