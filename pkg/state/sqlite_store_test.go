package state_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	groups "github.com/goliatone/go-groups"
	"github.com/goliatone/go-groups/pkg/state"
)

func newTestSQLiteStore(t *testing.T) (*state.SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "groups.db")
	store, err := state.NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestSQLiteStoreRoundTripKeepsNulls(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestSQLiteStore(t)

	ids := groups.IDList{groups.ValidID(3), groups.NullID(), groups.ValidID(-1), groups.ValidID(0)}
	meta, err := store.Save(ctx, "combat.groupedOverlay.myOverlays.ids", ids, state.Meta{Extra: map[string]string{"source": "test"}})
	require.NoError(t, err)
	assert.Equal(t, "1", meta.ETag)
	assert.False(t, meta.UpdatedAt.IsZero())

	loaded, loadedMeta, ok, err := store.Load(ctx, "combat.groupedOverlay.myOverlays.ids")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ids, loaded)
	assert.Equal(t, "1", loadedMeta.ETag)
	assert.Equal(t, "test", loadedMeta.Extra["source"])
	assert.True(t, meta.UpdatedAt.Equal(loadedMeta.UpdatedAt))
}

func TestSQLiteStoreMissingKey(t *testing.T) {
	store, _ := newTestSQLiteStore(t)

	ids, meta, ok, err := store.Load(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, ids)
	assert.Empty(t, meta.ETag)
}

func TestSQLiteStoreRevisionsAndETag(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestSQLiteStore(t)

	first, err := store.Save(ctx, "k", groups.IDs(1), state.Meta{})
	require.NoError(t, err)
	second, err := store.Save(ctx, "k", groups.IDs(1, 2), state.Meta{ETag: first.ETag})
	require.NoError(t, err)
	assert.Equal(t, "2", second.ETag)

	_, err = store.Save(ctx, "k", groups.IDs(9), state.Meta{ETag: first.ETag})
	require.ErrorIs(t, err, state.ErrETagMismatch)

	loaded, _, _, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, groups.IDs(1, 2), loaded)
}

func TestSQLiteStoreEmptyListIsStored(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestSQLiteStore(t)

	_, err := store.Save(ctx, "k", nil, state.Meta{})
	require.NoError(t, err)

	loaded, _, ok, err := store.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, loaded)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "groups.db")

	store, err := state.NewSQLiteStore(path)
	require.NoError(t, err)
	_, err = store.Save(ctx, "b", groups.IDs(4), state.Meta{})
	require.NoError(t, err)
	_, err = store.Save(ctx, "a", groups.IDs(5), state.Meta{})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := state.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, meta, ok, err := reopened.Load(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, groups.IDs(4), loaded)
	assert.Equal(t, "1", meta.ETag)

	keys, err := reopened.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestSQLiteStoreBacksResolver(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestSQLiteStore(t)
	host, d, r := newBadgeGroup(t, 2)
	resolver := state.Resolver{Store: store, Reconciler: r}

	_, _, err := resolver.AddElement(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, hostIDs(host))

	outcome, err := resolver.Resolve(ctx, d)
	require.NoError(t, err)
	assert.True(t, outcome.Completed())
	assert.Equal(t, []int{0, 1, 2}, outcome.InstalledIDs())
}

func TestSQLiteStoreHandEditedRowMatchesFileStore(t *testing.T) {
	ctx := context.Background()
	store, path := newTestSQLiteStore(t)
	_, err := store.Save(ctx, "k", groups.IDs(1), state.Meta{})
	require.NoError(t, err)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE group_ids SET ids = ? WHERE key = ?`, `[1, 2.5, "x", null, 3]`, "k")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	loaded, _, ok, err := store.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, groups.IDList{groups.ValidID(1), groups.NullID(), groups.NullID(), groups.NullID(), groups.ValidID(3)}, loaded)
}
