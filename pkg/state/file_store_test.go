package state_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	groups "github.com/goliatone/go-groups"
	"github.com/goliatone/go-groups/pkg/state"
)

func TestFormatForPath(t *testing.T) {
	cases := map[string]state.Format{
		"groups.json": state.FormatJSON,
		"groups.yaml": state.FormatYAML,
		"groups.YML":  state.FormatYAML,
		"groups.toml": state.FormatTOML,
	}
	for path, want := range cases {
		got, err := state.FormatForPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := state.FormatForPath("groups.ini")
	assert.Error(t, err)
	_, err = state.NewFileStore("groups")
	assert.Error(t, err)
}

func TestFileStoreRoundTripKeepsNulls(t *testing.T) {
	for _, ext := range []string{".json", ".yaml"} {
		t.Run(strings.TrimPrefix(ext, "."), func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "groups"+ext)
			store, err := state.NewFileStore(path)
			require.NoError(t, err)

			ids := groups.IDList{groups.ValidID(2), groups.NullID(), groups.ValidID(-3)}
			meta, err := store.Save(ctx, "combat.groupedOverlay.myOverlays.ids", ids, state.Meta{Extra: map[string]string{"by": "editor"}})
			require.NoError(t, err)
			assert.Equal(t, "1", meta.ETag)

			reopened, err := state.NewFileStore(path)
			require.NoError(t, err)
			loaded, loadedMeta, ok, err := reopened.Load(ctx, "combat.groupedOverlay.myOverlays.ids")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, ids, loaded)
			assert.Equal(t, "1", loadedMeta.ETag)
			assert.Equal(t, "editor", loadedMeta.Extra["by"])
			assert.True(t, meta.UpdatedAt.Equal(loadedMeta.UpdatedAt))
		})
	}
}

func TestFileStoreTOMLDropsNulls(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "groups.toml")
	store, err := state.NewFileStore(path)
	require.NoError(t, err)

	_, err = store.Save(ctx, "k", groups.IDList{groups.ValidID(1), groups.NullID(), groups.ValidID(4)}, state.Meta{})
	require.NoError(t, err)

	loaded, _, ok, err := store.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, groups.IDs(1, 4), loaded)
}

func TestFileStoreMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")
	store, err := state.NewFileStore(path)
	require.NoError(t, err)

	_, _, ok, err := store.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "load must not create the file")
}

func TestFileStoreETagMismatch(t *testing.T) {
	ctx := context.Background()
	store, err := state.NewFileStore(filepath.Join(t.TempDir(), "groups.yaml"))
	require.NoError(t, err)

	_, err = store.Save(ctx, "k", groups.IDs(1), state.Meta{})
	require.NoError(t, err)
	_, err = store.Save(ctx, "k", groups.IDs(2), state.Meta{})
	require.NoError(t, err)

	_, err = store.Save(ctx, "k", groups.IDs(3), state.Meta{ETag: "1"})
	require.ErrorIs(t, err, state.ErrETagMismatch)
}

func TestFileStoreKeepsOtherGroupsAndLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "groups.json")
	store, err := state.NewFileStore(path)
	require.NoError(t, err)

	_, err = store.Save(ctx, "z.groupedOverlay.b.ids", groups.IDs(1), state.Meta{})
	require.NoError(t, err)
	_, err = store.Save(ctx, "a.groupedOverlay.a.ids", groups.IDs(2), state.Meta{})
	require.NoError(t, err)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.groupedOverlay.a.ids", "z.groupedOverlay.b.ids"}, keys)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "groups.json", entries[0].Name())
}

func TestFileStoreNonIntegralEntriesLoadAsNull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"groups":{"k":{"ids":[1,2.5,"x"],"revision":1}}}`), 0o644))
	store, err := state.NewFileStore(path)
	require.NoError(t, err)

	ids, meta, ok, err := store.Load(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, groups.IDList{groups.ValidID(1), groups.NullID(), groups.NullID()}, ids)
	assert.Equal(t, "1", meta.ETag)
}

func TestFileStoreRejectsScalarIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"groups":{"k":{"ids":7,"revision":1}}}`), 0o644))
	store, err := state.NewFileStore(path)
	require.NoError(t, err)

	_, _, _, err = store.Load(context.Background(), "k")
	assert.Error(t, err)
}

func TestFileStoreReadsHandEditedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.yml")
	doc := "groups:\n  combat.groupedOverlay.myOverlays.ids:\n    ids: [0, null, 5]\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	store, err := state.NewFileStore(path)
	require.NoError(t, err)

	ids, meta, ok, err := store.Load(context.Background(), "combat.groupedOverlay.myOverlays.ids")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, groups.IDList{groups.ValidID(0), groups.NullID(), groups.ValidID(5)}, ids)
	assert.Empty(t, meta.ETag)
}
