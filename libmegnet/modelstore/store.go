package modelstore

import (
	"encoding/binary"
	"math"
	"runtime"

	"github.com/pkg/errors"

	"github.com/dgraph-io/badger/v3"

	"github.com/mahendra-ramajayam/megnet/megnet"
)

/***

Store database format:

	gStoreStateKey => StoreState (major, minor varints)

	'b', BundleName            => ModelDef bytes
	...

	'c', ModelName, 0x00, CanonicalStructureKey => packed float64 property vector
	...

Bundle names sort lexically under the 'b' prefix, so ListBundles is a single
prefix walk. The prediction cache is keyed per model by the canonical
structure encoding, so a structure re-submitted with jitter below the
coordinate quantum hits the same entry. Model.PredictOne consults and
refreshes the cache when the model was loaded from a store.

***/

var (
	gStoreStateKey = []byte{0x00, 0x00, 0x01}

	kBundlePrefix = byte('b')
	kCachePrefix  = byte('c')
)

const (
	majorVers = 2026
	minorVers = 1
)

type store struct {
	ctx      megnet.StoreContext
	readOnly bool
	db       *badger.DB
}

// OpenStore opens (or creates) a model store at the given path. An empty
// DbPathName opens an in-memory store.
func OpenStore(ctx megnet.StoreContext, opts megnet.StoreOpts) (megnet.ModelStore, error) {
	st := &store{
		ctx:      ctx,
		readOnly: opts.ReadOnly,
	}

	dbOpts := badger.DefaultOptions(opts.DbPathName)
	dbOpts.ReadOnly = opts.ReadOnly
	dbOpts.DetectConflicts = false // not needed so disable for performance
	dbOpts.Logger = nil
	dbOpts.MetricsEnabled = false

	// Badger for windows currently does not support read-only mode
	if runtime.GOOS == "windows" {
		dbOpts.ReadOnly = false
	}

	if len(opts.DbPathName) == 0 {
		if opts.ReadOnly {
			return nil, errors.Wrap(megnet.ErrBadStoreParam, "DbPathName must be specified for read-only store")
		}
		dbOpts.InMemory = true
	}

	var err error
	st.db, err = badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}

	// Once the db is open, the ctx is blocked until this store closes.
	ctx.AttachStore(st)

	err = st.checkState()
	if err != nil {
		st.Close()
		return nil, err
	}

	return st, nil
}

func init() {
	megnet.OpenModelStore = OpenStore
}

func (st *store) checkState() error {
	var major, minor uint64

	err := st.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(gStoreStateKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var n int
			major, n = binary.Uvarint(val)
			if n <= 0 {
				return megnet.ErrUnmarshal
			}
			minor, _ = binary.Uvarint(val[n:])
			return nil
		})
	})

	if err == badger.ErrKeyNotFound {
		if st.readOnly {
			return errors.Wrap(megnet.ErrBadStoreParam, "read-only store was never initialized")
		}
		var buf [16]byte
		n := binary.PutUvarint(buf[:], majorVers)
		n += binary.PutUvarint(buf[n:], minorVers)
		return st.db.Update(func(txn *badger.Txn) error {
			return txn.Set(gStoreStateKey, buf[:n])
		})
	}
	if err != nil {
		return err
	}

	if major != majorVers || minor != minorVers {
		return errors.Errorf("store version %d.%d is incompatible", major, minor)
	}
	return nil
}

func (st *store) IsReadOnly() bool {
	return st.readOnly
}

func (st *store) Close() error {
	if st.db != nil {
		st.db.Close()
		st.db = nil
		st.ctx.DetachStore(st)
		st.ctx = nil
	}
	return nil
}

func bundleKey(name string) []byte {
	key := make([]byte, 0, 1+len(name))
	key = append(key, kBundlePrefix)
	return append(key, name...)
}

func (st *store) SaveBundle(name string, def []byte) error {
	if len(name) == 0 {
		return errors.Wrap(megnet.ErrBadStoreParam, "bundle name is empty")
	}
	if st.readOnly {
		return errors.Wrap(megnet.ErrBadStoreParam, "store is read-only")
	}
	return st.db.Update(func(txn *badger.Txn) error {
		return txn.Set(bundleKey(name), def)
	})
}

func (st *store) LoadBundle(name string) ([]byte, error) {
	var def []byte
	err := st.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(bundleKey(name))
		if err != nil {
			return err
		}
		def, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, errors.Wrap(megnet.ErrBundleNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return def, nil
}

func (st *store) ListBundles() ([]string, error) {
	var names []string

	err := st.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: false,
			Prefix:         []byte{kBundlePrefix},
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			names = append(names, string(key[1:]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func cacheKey(structKey []byte) []byte {
	key := make([]byte, 0, 1+len(structKey))
	key = append(key, kCachePrefix)
	return append(key, structKey...)
}

func (st *store) CachePrediction(structKey []byte, val []float64) error {
	if st.readOnly {
		return errors.Wrap(megnet.ErrBadStoreParam, "store is read-only")
	}
	packed := make([]byte, 8*len(val))
	for i, v := range val {
		binary.LittleEndian.PutUint64(packed[8*i:], math.Float64bits(v))
	}
	return st.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cacheKey(structKey), packed)
	})
}

func (st *store) CachedPrediction(structKey []byte) ([]float64, bool) {
	var val []float64

	err := st.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(structKey))
		if err != nil {
			return err
		}
		return item.Value(func(packed []byte) error {
			if len(packed)%8 != 0 {
				return megnet.ErrUnmarshal
			}
			val = make([]float64, len(packed)/8)
			for i := range val {
				val[i] = math.Float64frombits(binary.LittleEndian.Uint64(packed[8*i:]))
			}
			return nil
		})
	})
	if err != nil {
		return nil, false
	}
	return val, true
}
