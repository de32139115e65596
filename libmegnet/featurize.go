package libmegnet

import (
	"github.com/pkg/errors"

	"github.com/mahendra-ramajayam/megnet/megnet"
)

// Featurizer turns a Structure into a RawGraph: one node per atom carrying the
// embedding row for its atomic number, one directed edge per neighbor pair
// within the cutoff, and a basis expansion of each bond distance.
type Featurizer struct {
	Cutoff       float64
	Basis        *GaussianBasis
	Embed        megnet.Matrix // row z is the feature vector for atomic number z
	DefaultState megnet.Vector // seeds Structure.State when it is empty

	// AutoExclude makes FeaturizeAll drop degenerate structures instead of
	// failing the whole batch.
	AutoExclude bool
}

// NewFeaturizer returns a Featurizer with a one-hot element embedding and the
// standard two-component zero state.
func NewFeaturizer(cutoff float64, basis *GaussianBasis) (*Featurizer, error) {
	if cutoff <= 0 {
		return nil, errors.Wrapf(megnet.ErrBadCutoff, "cutoff %v", cutoff)
	}
	if basis == nil {
		return nil, errors.Wrap(megnet.ErrBadBasis, "nil basis")
	}
	return &Featurizer{
		Cutoff:       cutoff,
		Basis:        basis,
		Embed:        OneHotEmbedding(),
		DefaultState: make(megnet.Vector, megnet.DefaultStateWidth),
	}, nil
}

// OneHotEmbedding returns the identity embedding: row z is all zeros except
// for a one in column z. Row 0 is unused since atomic numbers start at 1.
func OneHotEmbedding() megnet.Matrix {
	m := megnet.NewMatrix(megnet.MaxZ+1, megnet.MaxZ+1)
	for z := 0; z <= megnet.MaxZ; z++ {
		m.Vals[z*(megnet.MaxZ+1)+z] = 1
	}
	return m
}

// Featurize encodes one structure.
func (feat *Featurizer) Featurize(st *Structure) (*megnet.RawGraph, error) {
	if st == nil {
		return nil, megnet.ErrNilStructure
	}

	bonds, err := FindBonds(st, feat.Cutoff)
	if err != nil {
		return nil, err
	}

	N := st.NumAtoms()
	E := len(bonds)

	g := &megnet.RawGraph{
		Label:     st.Label,
		NodeFeats: megnet.NewMatrix(0, feat.Embed.Width),
		EdgeSrc:   make([]int32, 0, E),
		EdgeDst:   make([]int32, 0, E),
		BondDists: make([]float64, 0, E),
		EdgeFeats: megnet.NewMatrix(0, feat.Basis.Dim()),
	}
	g.NodeFeats.Vals = make([]float64, 0, N*feat.Embed.Width)
	g.EdgeFeats.Vals = make([]float64, 0, E*feat.Basis.Dim())

	for ai := 0; ai < N; ai++ {
		g.NodeFeats.AppendRow(feat.Embed.Row(int(st.Z[ai])))
	}
	for _, b := range bonds {
		g.EdgeSrc = append(g.EdgeSrc, b.Src)
		g.EdgeDst = append(g.EdgeDst, b.Dst)
		g.BondDists = append(g.BondDists, b.Dist)
		g.EdgeFeats.Vals = feat.Basis.Expand(g.EdgeFeats.Vals, b.Dist)
	}

	if len(st.State) > 0 {
		g.Global = st.State.Clone()
	} else {
		g.Global = feat.DefaultState.Clone()
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// FeaturizeAll encodes each structure in order. When AutoExclude is set,
// degenerate structures are skipped and the returned index list says which
// inputs survived; otherwise the first failure aborts.
func (feat *Featurizer) FeaturizeAll(sts []*Structure) ([]*megnet.RawGraph, []int, error) {
	graphs := make([]*megnet.RawGraph, 0, len(sts))
	kept := make([]int, 0, len(sts))

	for si, st := range sts {
		g, err := feat.Featurize(st)
		if err != nil {
			if feat.AutoExclude && errors.Is(err, megnet.ErrDegenerateStructure) {
				continue
			}
			return nil, nil, err
		}
		graphs = append(graphs, g)
		kept = append(kept, si)
	}
	return graphs, kept, nil
}
