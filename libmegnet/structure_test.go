package libmegnet

import (
	"bytes"
	"math"
	"testing"
)

func TestZForSymbol(t *testing.T) {
	z, err := ZForSymbol("Fe")
	if err != nil || z != 26 {
		t.Fatalf("Fe: z=%d err=%v", z, err)
	}
	if _, err := ZForSymbol("Xx"); err == nil {
		t.Fatal("unknown symbol must fail")
	}
}

func TestFormula(t *testing.T) {
	st := &Structure{}
	st.AddAtom(1, [3]float64{0.757, 0.586, 0})
	st.AddAtom(8, [3]float64{0, 0, 0})
	st.AddAtom(1, [3]float64{-0.757, 0.586, 0})

	if f := st.Formula(); f != "H2 O1" {
		t.Fatalf("formula %q, want H2 O1", f)
	}
}

func TestParseStructure(t *testing.T) {
	st, err := ParseStructure("O 0 0 0; H 0.757 0.586 0; H -0.757 0.586 0")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if st.NumAtoms() != 3 || st.IsPeriodic() {
		t.Fatalf("got %d atoms, periodic=%v", st.NumAtoms(), st.IsPeriodic())
	}
	if st.Z[0] != 8 || st.Z[1] != 1 || st.Z[2] != 1 {
		t.Fatalf("species %v", st.Z)
	}
	if st.Coords[2][0] != -0.757 {
		t.Fatalf("negative coordinate lost: %v", st.Coords[2])
	}
}

func TestParseStructureCell(t *testing.T) {
	st, err := ParseStructure("Na 0 0 0; Cl 0.5 0.5 0.5 @ cell 5.6402 frac")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !st.IsPeriodic() {
		t.Fatal("cell clause must make the structure periodic")
	}
	if v := st.Lattice.Volume(); math.Abs(v-5.6402*5.6402*5.6402) > 1e-9 {
		t.Fatalf("volume %v", v)
	}
	// Fractional (0.5,0.5,0.5) in a cubic cell.
	want := 5.6402 / 2
	for i := 0; i < 3; i++ {
		if math.Abs(st.Coords[1][i]-want) > 1e-12 {
			t.Fatalf("Cl position %v", st.Coords[1])
		}
	}

	if _, err := ParseStructure("H 0 0 0 @ cell 1 2"); err == nil {
		t.Fatal("2-number cell must be rejected")
	}
}

func TestCanonicalEncoding(t *testing.T) {
	a, _ := ParseStructure("O 0 0 0; H 0.757 0.586 0; H -0.757 0.586 0")
	b, _ := ParseStructure("O 0 0 0; H 0.757 0.586 0; H -0.757 0.586 0")

	if !bytes.Equal(a.AppendEncodingTo(nil), b.AppendEncodingTo(nil)) {
		t.Fatal("identical structures must encode identically")
	}

	// Jitter below the coordinate quantum folds onto the same encoding.
	c := a.Clone()
	c.Coords[1][0] += coordQuantum / 4
	if !bytes.Equal(a.AppendEncodingTo(nil), c.AppendEncodingTo(nil)) {
		t.Fatal("sub-quantum jitter must not change the encoding")
	}

	// A real displacement must.
	d := a.Clone()
	d.Coords[1][0] += 0.01
	if bytes.Equal(a.AppendEncodingTo(nil), d.AppendEncodingTo(nil)) {
		t.Fatal("displaced structure encoded identically")
	}

	// Lattice participates.
	e := a.Clone()
	e.Lattice = NewCubicLattice(10)
	if bytes.Equal(a.AppendEncodingTo(nil), e.AppendEncodingTo(nil)) {
		t.Fatal("lattice must participate in the encoding")
	}
}

func TestStreamDropDupes(t *testing.T) {
	a, _ := ParseStructure("O 0 0 0; H 0.757 0.586 0; H -0.757 0.586 0")
	b := a.Clone()
	c, _ := ParseStructure("H 0 0 0; H 0.74 0 0")

	count := StreamStructures(a, b, c, a.Clone()).DropDupes().PullAll()
	if count != 2 {
		t.Fatalf("got %d unique structures, want 2", count)
	}
}

func TestStreamCollectOrder(t *testing.T) {
	a, _ := ParseStructure("H 0 0 0; H 0.74 0 0")
	b, _ := ParseStructure("N 0 0 0; N 1.1 0 0")

	sts := StreamStructures(a, b).Collect()
	if len(sts) != 2 || sts[0] != a || sts[1] != b {
		t.Fatal("stream must preserve order")
	}
}
