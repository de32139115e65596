package modelstore

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/mahendra-ramajayam/megnet/megnet"
)

func openTestStore(t *testing.T, pathname string) (megnet.ModelStore, megnet.StoreContext) {
	ctx := megnet.NewStoreContext()
	store, err := OpenStore(ctx, megnet.StoreOpts{DbPathName: pathname})
	require.NoError(t, err)
	return store, ctx
}

func TestBundleRoundTrip(t *testing.T) {
	store, ctx := openTestStore(t, "")
	defer func() {
		ctx.Close()
		<-ctx.Done()
	}()

	require.False(t, store.IsReadOnly())

	_, err := store.LoadBundle("missing")
	require.ErrorIs(t, err, megnet.ErrBundleNotFound)

	def := []byte{1, 2, 3, 4, 5}
	require.NoError(t, store.SaveBundle("formation-energy", def))
	require.NoError(t, store.SaveBundle("band-gap", []byte{9}))

	got, err := store.LoadBundle("formation-energy")
	require.NoError(t, err)
	require.Equal(t, def, got)

	// Overwrite is allowed.
	require.NoError(t, store.SaveBundle("formation-energy", []byte{7}))
	got, err = store.LoadBundle("formation-energy")
	require.NoError(t, err)
	require.Equal(t, []byte{7}, got)

	names, err := store.ListBundles()
	require.NoError(t, err)
	require.Equal(t, []string{"band-gap", "formation-energy"}, names)

	require.Error(t, store.SaveBundle("", def))
}

func TestPredictionCache(t *testing.T) {
	store, ctx := openTestStore(t, "")
	defer func() {
		ctx.Close()
		<-ctx.Done()
	}()

	key := []byte("canonical-structure-key")

	_, found := store.CachedPrediction(key)
	require.False(t, found)

	want := []float64{-3.25, 1.5}
	require.NoError(t, store.CachePrediction(key, want))

	got, found := store.CachedPrediction(key)
	require.True(t, found)
	require.Equal(t, want, got)
}

func TestOnDiskStore(t *testing.T) {
	dir := t.TempDir()

	store, ctx := openTestStore(t, dir)
	require.NoError(t, store.SaveBundle("m1", []byte{1}))
	ctx.Close()
	<-ctx.Done()

	// Reopen read-only and find the bundle.
	ctx2 := megnet.NewStoreContext()
	store2, err := OpenStore(ctx2, megnet.StoreOpts{DbPathName: dir, ReadOnly: true})
	require.NoError(t, err)
	require.True(t, store2.IsReadOnly())

	got, err := store2.LoadBundle("m1")
	require.NoError(t, err)
	require.Equal(t, []byte{1}, got)

	err = store2.SaveBundle("m2", []byte{2})
	require.True(t, errors.Is(err, megnet.ErrBadStoreParam))

	ctx2.Close()
	<-ctx2.Done()
}

func TestReadOnlyNeedsPath(t *testing.T) {
	ctx := megnet.NewStoreContext()
	_, err := OpenStore(ctx, megnet.StoreOpts{ReadOnly: true})
	require.True(t, errors.Is(err, megnet.ErrBadStoreParam))
	ctx.Close()
	<-ctx.Done()
}
