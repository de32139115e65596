package megnet

import "errors"

// Errors
var (
	ErrUnmarshal           = errors.New("unmarshal failed")
	ErrBadStoreParam       = errors.New("bad store param")
	ErrBundleNotFound      = errors.New("model bundle not found")
	ErrBadPoolMethod       = errors.New("bad pool method")
	ErrBadBasis            = errors.New("bad basis config")
	ErrBadCutoff           = errors.New("cutoff must be positive")
	ErrBadSpecies          = errors.New("bad atomic species")
	ErrBadLattice          = errors.New("bad or degenerate lattice")
	ErrDegenerateStructure = errors.New("structure has an atom with no neighbors under the cutoff")
	ErrEmptyStructure      = errors.New("structure has no atoms")
	ErrEmptyBatch          = errors.New("batch has no structures")
	ErrIndexConsistency    = errors.New("batched edge index out of range")
	ErrShapeMismatch       = errors.New("feature width or count mismatch")
	ErrNilStructure        = errors.New("nil structure")
)
