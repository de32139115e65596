package libmegnet

import (
	"github.com/alecthomas/participle/v2"
	"github.com/pkg/errors"

	"github.com/mahendra-ramajayam/megnet/megnet"
)

// A structure expression is a ';' separated atom list with an optional cell:
//
//	"O 0 0 0; H 0.757 0.586 0; H -0.757 0.586 0"
//	"Na 0 0 0; Cl 0.5 0.5 0.5 @ cell 5.6402 frac"
//
// The cell clause takes 1 (cubic), 3 (orthorhombic), or 9 (full lattice)
// numbers. With "frac" the atom coordinates are fractional in that cell.
type StructExpr struct {
	Atoms []*AtomExpr `parser:"@@ (';' @@)*"`
	Cell  *CellExpr   `parser:"('@' @@)?"`
}

type AtomExpr struct {
	Symbol string     `parser:"@Ident"`
	Coords []*NumExpr `parser:"@@ @@ @@"`
}

type CellExpr struct {
	Dims []*NumExpr `parser:"'cell' @@+"`
	Frac bool       `parser:"@'frac'?"`
}

type NumExpr struct {
	Neg   bool    `parser:"@'-'?"`
	Value float64 `parser:"@(Float | Int)"`
}

func (n *NumExpr) Val() float64 {
	if n.Neg {
		return -n.Value
	}
	return n.Value
}

var parseStructExpr = participle.MustBuild[StructExpr]()

func latticeFromCell(cell *CellExpr) (*Lattice, error) {
	switch len(cell.Dims) {
	case 1:
		return NewCubicLattice(cell.Dims[0].Val()), nil
	case 3:
		return NewOrthoLattice(cell.Dims[0].Val(), cell.Dims[1].Val(), cell.Dims[2].Val()), nil
	case 9:
		lat := &Lattice{}
		for i, dim := range cell.Dims {
			lat.Vecs[i/3][i%3] = dim.Val()
		}
		return lat, nil
	}
	return nil, errors.Wrapf(megnet.ErrBadLattice, "cell takes 1, 3, or 9 numbers, got %d", len(cell.Dims))
}

// ParseStructure builds a Structure from a structure expression.
func ParseStructure(expr string) (*Structure, error) {
	ast, err := parseStructExpr.ParseString("", expr)
	if err != nil {
		return nil, err
	}

	st := &Structure{
		Label: expr,
	}
	if ast.Cell != nil {
		st.Lattice, err = latticeFromCell(ast.Cell)
		if err != nil {
			return nil, err
		}
	}

	for _, atom := range ast.Atoms {
		z, err := ZForSymbol(atom.Symbol)
		if err != nil {
			return nil, err
		}
		pos := [3]float64{
			atom.Coords[0].Val(),
			atom.Coords[1].Val(),
			atom.Coords[2].Val(),
		}
		if ast.Cell != nil && ast.Cell.Frac {
			pos = st.Lattice.Cart(pos)
		}
		st.AddAtom(z, pos)
	}

	if err := st.Validate(); err != nil {
		return nil, err
	}
	return st, nil
}
