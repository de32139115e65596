package megnet

const (

	// MaxZ is the largest atomic number a node featurizer table may cover.
	MaxZ = 103

	// DefaultStateWidth is the width of the global-state vector seeded when a
	// structure carries no state of its own.
	DefaultStateWidth = 2
)

// Vector is a fixed-width feature vector.
type Vector []float64

// Zero sets every element of this Vector to 0.
func (v Vector) Zero() {
	for i := range v {
		v[i] = 0
	}
}

// Clone returns an independent copy of this Vector.
func (v Vector) Clone() Vector {
	dst := make(Vector, len(v))
	copy(dst, v)
	return dst
}

// PoolMethod selects how grouped feature rows are reduced to a single row.
type PoolMethod byte

const (
	PoolNil PoolMethod = iota
	PoolMean
	PoolSum
)

func (pm PoolMethod) String() string {
	return [...]string{"nil", "mean", "sum"}[pm]
}

// ParsePoolMethod maps a config string to a PoolMethod.
func ParsePoolMethod(str string) (PoolMethod, error) {
	switch str {
	case "mean":
		return PoolMean, nil
	case "sum":
		return PoolSum, nil
	}
	return PoolNil, ErrBadPoolMethod
}

// VectorFn is a learned fixed-width vector transformation.
//
// Implementations are supplied externally (typically dense layers loaded from
// a model bundle) and must be pure: same input, same output, no retained
// references to src or dst.
type VectorFn interface {

	// InWidth returns the exact input width Apply accepts.
	InWidth() int

	// OutWidth returns the exact output width Apply produces.
	OutWidth() int

	// Apply appends the transformed vector to dst and returns it.
	Apply(dst []float64, src []float64) []float64
}

// Readout reduces a batch to one fixed-width vector per structure, using the
// batch's owner tags. Implementations need no other knowledge of batching.
type Readout interface {

	// Reduce returns a Matrix with one row per structure in the batch.
	Reduce(b *Batch) (Matrix, error)
}

// ModelStore wraps a database of serialized model bundles plus a prediction
// cache. Values are opaque bytes; the bundle codec lives with the model.
type ModelStore interface {

	// Returns true if this store was opened for read-only access.
	IsReadOnly() bool

	// SaveBundle writes (or overwrites) the named bundle.
	SaveBundle(name string, def []byte) error

	// LoadBundle reads the named bundle, or ErrBundleNotFound.
	LoadBundle(name string) ([]byte, error)

	// ListBundles returns all bundle names in lexical order.
	ListBundles() ([]string, error)

	// CachePrediction stores a property vector for a canonical structure key.
	CachePrediction(key []byte, val []float64) error

	// CachedPrediction returns a previously cached property vector, if any.
	CachedPrediction(key []byte) ([]float64, bool)

	Close() error
}

// StoreOpts specifies params for opening a ModelStore.
type StoreOpts struct {
	DbPathName string // omit for an in-memory store
	ReadOnly   bool   // open in read-only mode
}

// OpenModelStore is a forward declared entry point, allowing ModelStore
// implementations to decouple from this package.
var OpenModelStore func(ctx StoreContext, opts StoreOpts) (ModelStore, error)

// StoreContext is a container for open / active ModelStore instances.
type StoreContext interface {

	// Attaches the given store to this context.
	AttachStore(st ModelStore)

	// Detaches the given store from this context.
	DetachStore(st ModelStore)

	// Signals all attached stores to close, then closes.
	Close()

	// Signals when Close() completed and all open stores have been closed.
	Done() <-chan struct{}
}
