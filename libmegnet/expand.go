package libmegnet

import (
	"math"

	"github.com/pkg/errors"

	"github.com/mahendra-ramajayam/megnet/megnet"
)

// GaussianBasis maps a scalar bond distance to a fixed-width feature vector,
// one Gaussian per center:
//
//	g_k(d) = exp( -(d - c_k)^2 / w^2 )
type GaussianBasis struct {
	Centers []float64
	Width   float64
}

// NewGaussianBasis returns a basis over the given centers.
func NewGaussianBasis(centers []float64, width float64) (*GaussianBasis, error) {
	if len(centers) == 0 {
		return nil, errors.Wrap(megnet.ErrBadBasis, "no centers")
	}
	if width <= 0 {
		return nil, errors.Wrapf(megnet.ErrBadBasis, "width %v", width)
	}
	return &GaussianBasis{
		Centers: append([]float64{}, centers...),
		Width:   width,
	}, nil
}

// LinspaceCenters returns n centers evenly spaced over [lo, hi] inclusive.
func LinspaceCenters(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	centers := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range centers {
		centers[i] = lo + float64(i)*step
	}
	return centers
}

// Dim is the width of the expanded feature vector.
func (basis *GaussianBasis) Dim() int {
	return len(basis.Centers)
}

// Expand appends the expansion of dist to dst and returns the extended slice.
func (basis *GaussianBasis) Expand(dst []float64, dist float64) []float64 {
	inv := 1 / (basis.Width * basis.Width)
	for _, c := range basis.Centers {
		dc := dist - c
		dst = append(dst, math.Exp(-dc*dc*inv))
	}
	return dst
}
