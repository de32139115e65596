package megnet

// Matrix is a dense row-major matrix whose rows all live in one flat arena.
// A zero Matrix with a positive Width is valid and has no rows.
type Matrix struct {
	Vals  []float64
	Width int
}

// NewMatrix returns a Matrix dimensioned rows x width, zero filled.
func NewMatrix(rows, width int) Matrix {
	return Matrix{
		Vals:  make([]float64, rows*width),
		Width: width,
	}
}

// NumRows returns how many complete rows this Matrix holds.
func (m Matrix) NumRows() int {
	if m.Width <= 0 {
		return 0
	}
	return len(m.Vals) / m.Width
}

// Row returns the i-th row as a slice of the arena (not a copy).
func (m Matrix) Row(i int) []float64 {
	i0 := i * m.Width
	return m.Vals[i0 : i0+m.Width]
}

// AppendRow appends a copy of the given row, which must be Width long.
func (m *Matrix) AppendRow(row []float64) {
	m.Vals = append(m.Vals, row[:m.Width]...)
}

// Clone returns an independent copy of this Matrix.
func (m Matrix) Clone() Matrix {
	dst := Matrix{
		Vals:  make([]float64, len(m.Vals)),
		Width: m.Width,
	}
	copy(dst.Vals, m.Vals)
	return dst
}

// Zero sets every element to 0, keeping dimensions.
func (m Matrix) Zero() {
	for i := range m.Vals {
		m.Vals[i] = 0
	}
}
