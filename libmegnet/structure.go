package libmegnet

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/mahendra-ramajayam/megnet/megnet"
)

// ElementSymbols maps atomic number to element symbol (one-based; index 0 is
// unused).
var ElementSymbols = [megnet.MaxZ + 1]string{"",
	"H", "He",
	"Li", "Be", "B", "C", "N", "O", "F", "Ne",
	"Na", "Mg", "Al", "Si", "P", "S", "Cl", "Ar",
	"K", "Ca", "Sc", "Ti", "V", "Cr", "Mn", "Fe", "Co", "Ni", "Cu", "Zn",
	"Ga", "Ge", "As", "Se", "Br", "Kr",
	"Rb", "Sr", "Y", "Zr", "Nb", "Mo", "Tc", "Ru", "Rh", "Pd", "Ag", "Cd",
	"In", "Sn", "Sb", "Te", "I", "Xe",
	"Cs", "Ba", "La", "Ce", "Pr", "Nd", "Pm", "Sm", "Eu", "Gd", "Tb", "Dy",
	"Ho", "Er", "Tm", "Yb", "Lu", "Hf", "Ta", "W", "Re", "Os", "Ir", "Pt",
	"Au", "Hg", "Tl", "Pb", "Bi", "Po", "At", "Rn",
	"Fr", "Ra", "Ac", "Th", "Pa", "U", "Np", "Pu", "Am", "Cm", "Bk", "Cf",
	"Es", "Fm", "Md", "No", "Lr",
}

var symbolToZ = func() map[string]int32 {
	m := make(map[string]int32, len(ElementSymbols))
	for z, sym := range ElementSymbols {
		if sym != "" {
			m[sym] = int32(z)
		}
	}
	return m
}()

// ZForSymbol returns the atomic number for an element symbol.
func ZForSymbol(sym string) (int32, error) {
	if z, ok := symbolToZ[sym]; ok {
		return z, nil
	}
	return 0, errors.Wrapf(megnet.ErrBadSpecies, "unknown element symbol %q", sym)
}

// Lattice holds the three cell vectors of a periodic structure, one per row,
// in Å.
type Lattice struct {
	Vecs [3][3]float64
}

// NewCubicLattice returns a cubic lattice with edge length a.
func NewCubicLattice(a float64) *Lattice {
	return &Lattice{Vecs: [3][3]float64{{a, 0, 0}, {0, a, 0}, {0, 0, a}}}
}

// NewOrthoLattice returns an orthorhombic lattice with edges a, b, c.
func NewOrthoLattice(a, b, c float64) *Lattice {
	return &Lattice{Vecs: [3][3]float64{{a, 0, 0}, {0, b, 0}, {0, 0, c}}}
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func norm(a [3]float64) float64 {
	return math.Sqrt(a[0]*a[0] + a[1]*a[1] + a[2]*a[2])
}

// Volume returns the cell volume.
func (lat *Lattice) Volume() float64 {
	bc := cross(lat.Vecs[1], lat.Vecs[2])
	v := lat.Vecs[0][0]*bc[0] + lat.Vecs[0][1]*bc[1] + lat.Vecs[0][2]*bc[2]
	return math.Abs(v)
}

func (lat *Lattice) Validate() error {
	if lat.Volume() < 1e-9 {
		return megnet.ErrBadLattice
	}
	return nil
}

// Cart converts fractional coordinates to Cartesian.
func (lat *Lattice) Cart(frac [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = frac[0]*lat.Vecs[0][i] + frac[1]*lat.Vecs[1][i] + frac[2]*lat.Vecs[2][i]
	}
	return out
}

// imageSpan returns how many lattice images each axis must contribute so that
// every neighbor within the cutoff is enumerated. The spacing along axis i is
// the cell volume over the area of the face spanned by the other two axes.
func (lat *Lattice) imageSpan(cutoff float64) [3]int {
	vol := lat.Volume()
	var span [3]int
	for i := 0; i < 3; i++ {
		face := cross(lat.Vecs[(i+1)%3], lat.Vecs[(i+2)%3])
		spacing := vol / norm(face)
		span[i] = int(math.Ceil(cutoff / spacing))
	}
	return span
}

// Structure is one molecule or crystal: atomic numbers, Cartesian positions,
// an optional periodic lattice, and an optional structure-level state vector.
type Structure struct {
	Label   string
	Z       []int32
	Coords  [][3]float64
	Lattice *Lattice      // nil denotes a finite molecule
	State   megnet.Vector // optional; a model seeds a default when empty
}

func (st *Structure) NumAtoms() int {
	return len(st.Z)
}

func (st *Structure) IsPeriodic() bool {
	return st.Lattice != nil
}

// AddAtom appends one atom.
func (st *Structure) AddAtom(z int32, pos [3]float64) {
	st.Z = append(st.Z, z)
	st.Coords = append(st.Coords, pos)
}

func (st *Structure) Validate() error {
	if st == nil {
		return megnet.ErrNilStructure
	}
	if len(st.Z) == 0 {
		return errors.Wrap(megnet.ErrEmptyStructure, st.Label)
	}
	if len(st.Z) != len(st.Coords) {
		return errors.Wrapf(megnet.ErrShapeMismatch, "%s: %d species, %d coords", st.Label, len(st.Z), len(st.Coords))
	}
	for i, z := range st.Z {
		if z < 1 || z > megnet.MaxZ {
			return errors.Wrapf(megnet.ErrBadSpecies, "%s: atom %d has Z=%d", st.Label, i, z)
		}
	}
	if st.Lattice != nil {
		if err := st.Lattice.Validate(); err != nil {
			return errors.Wrap(err, st.Label)
		}
	}
	return nil
}

func (st *Structure) Clone() *Structure {
	dst := &Structure{
		Label:  st.Label,
		Z:      append([]int32{}, st.Z...),
		Coords: append([][3]float64{}, st.Coords...),
		State:  st.State.Clone(),
	}
	if st.Lattice != nil {
		lat := *st.Lattice
		dst.Lattice = &lat
	}
	return dst
}

// Formula returns the composition in discovery order, e.g. "Na1 Cl1".
func (st *Structure) Formula() string {
	var order []int32
	counts := make(map[int32]int)
	for _, z := range st.Z {
		if counts[z] == 0 {
			order = append(order, z)
		}
		counts[z]++
	}
	b := strings.Builder{}
	for i, z := range order {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s%d", ElementSymbols[z], counts[z])
	}
	return b.String()
}

// coordQuantum is the grid coordinates are snapped to when encoding, so two
// structures equal to within float noise encode identically.
const coordQuantum = 1e-5

func appendQuantized(buf []byte, v float64) []byte {
	var scrap [binary.MaxVarintLen64]byte
	n := binary.PutVarint(scrap[:], int64(math.Round(v/coordQuantum)))
	return append(buf, scrap[:n]...)
}

// AppendEncodingTo appends a canonical binary encoding of this structure.
// Equal structures (to coordQuantum precision) produce equal encodings, which
// serve as dedupe and prediction-cache keys.
func (st *Structure) AppendEncodingTo(buf []byte) []byte {
	var scrap [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(scrap[:], uint64(len(st.Z)))
	buf = append(buf, scrap[:n]...)

	for i, z := range st.Z {
		n = binary.PutUvarint(scrap[:], uint64(z))
		buf = append(buf, scrap[:n]...)
		for _, c := range st.Coords[i] {
			buf = appendQuantized(buf, c)
		}
	}

	if st.Lattice == nil {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		for _, vec := range st.Lattice.Vecs {
			for _, c := range vec {
				buf = appendQuantized(buf, c)
			}
		}
	}

	for _, s := range st.State {
		buf = appendQuantized(buf, s)
	}
	return buf
}
