package libmegnet

import (
	"math"

	"github.com/pkg/errors"

	"github.com/mahendra-ramajayam/megnet/megnet"
)

// Bond is one directed neighbor pair produced by FindBonds.
type Bond struct {
	Src  int32
	Dst  int32
	Dist float64
}

// FindBonds enumerates every directed neighbor pair with separation in
// (0, cutoff]. Both directions of a pair are emitted. Bonds are ordered by
// source atom, then target atom, then periodic image, so the same structure
// always yields the same bond list.
//
// For a periodic structure an atom can bond to its own images; the self pair
// at the zero image is the only one excluded. An atom with no neighbors makes
// the structure degenerate and returns ErrDegenerateStructure naming the atom.
func FindBonds(st *Structure, cutoff float64) ([]Bond, error) {
	if cutoff <= 0 {
		return nil, errors.Wrapf(megnet.ErrBadCutoff, "cutoff %v", cutoff)
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}

	var bonds []Bond
	var err error
	if st.IsPeriodic() {
		bonds, err = periodicBonds(st, cutoff)
	} else {
		bonds, err = molecularBonds(st, cutoff)
	}
	if err != nil {
		return nil, err
	}

	// Every atom must appear as a bond source at least once.
	degree := make([]int32, st.NumAtoms())
	for _, b := range bonds {
		degree[b.Src]++
	}
	for ai, d := range degree {
		if d == 0 {
			return nil, errors.Wrapf(megnet.ErrDegenerateStructure,
				"%s: atom %d (%s) has no neighbors within cutoff %v",
				st.Label, ai, ElementSymbols[st.Z[ai]], cutoff)
		}
	}
	return bonds, nil
}

func molecularBonds(st *Structure, cutoff float64) ([]Bond, error) {
	N := st.NumAtoms()
	cut2 := cutoff * cutoff
	bonds := make([]Bond, 0, N*4)

	for ai := 0; ai < N; ai++ {
		pa := st.Coords[ai]
		for aj := 0; aj < N; aj++ {
			if aj == ai {
				continue
			}
			pb := st.Coords[aj]
			dx := pb[0] - pa[0]
			dy := pb[1] - pa[1]
			dz := pb[2] - pa[2]
			d2 := dx*dx + dy*dy + dz*dz
			if d2 > cut2 {
				continue
			}
			d := math.Sqrt(d2)
			if d <= coordQuantum {
				// Coincident atoms are not neighbors.
				continue
			}
			bonds = append(bonds, Bond{
				Src:  int32(ai),
				Dst:  int32(aj),
				Dist: d,
			})
		}
	}
	return bonds, nil
}

func periodicBonds(st *Structure, cutoff float64) ([]Bond, error) {
	N := st.NumAtoms()
	lat := st.Lattice
	span := lat.imageSpan(cutoff)
	cut2 := cutoff * cutoff
	bonds := make([]Bond, 0, N*8)

	// Lattice translations in a fixed scan order so bond output is stable.
	var shifts [][3]float64
	for sa := -span[0]; sa <= span[0]; sa++ {
		for sb := -span[1]; sb <= span[1]; sb++ {
			for sc := -span[2]; sc <= span[2]; sc++ {
				var t [3]float64
				for k := 0; k < 3; k++ {
					t[k] = float64(sa)*lat.Vecs[0][k] +
						float64(sb)*lat.Vecs[1][k] +
						float64(sc)*lat.Vecs[2][k]
				}
				shifts = append(shifts, t)
			}
		}
	}

	for ai := 0; ai < N; ai++ {
		pa := st.Coords[ai]
		for aj := 0; aj < N; aj++ {
			pb := st.Coords[aj]
			for _, t := range shifts {
				dx := pb[0] + t[0] - pa[0]
				dy := pb[1] + t[1] - pa[1]
				dz := pb[2] + t[2] - pa[2]
				d2 := dx*dx + dy*dy + dz*dz
				if d2 > cut2 {
					continue
				}
				d := math.Sqrt(d2)
				if d <= coordQuantum {
					// The zero image of the atom itself.
					continue
				}
				bonds = append(bonds, Bond{
					Src:  int32(ai),
					Dst:  int32(aj),
					Dist: d,
				})
			}
		}
	}
	return bonds, nil
}
