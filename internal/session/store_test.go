// File: internal/session/store_test.go
package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer-cli/api/schemas"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return store
}

func sampleSnapshot(id string) schemas.SessionSnapshot {
	return schemas.SessionSnapshot{
		ID:      id,
		SeedURL: "https://x.example/",
		Graph: schemas.GraphSnapshot{
			Nodes: []schemas.PageNode{{ID: "n1", URL: "https://x.example/", CreatedAt: time.Now().UTC()}},
		},
		Frontier: schemas.FrontierSnapshot{
			VisitedRoutes: []string{"https://x.example/"},
			Routes: map[string][]schemas.ExploreQueueItem{
				"https://x.example/": {{
					ID:  "i1",
					URL: "https://x.example/",
					Element: schemas.ElementDescriptor{
						Text:        "Login",
						Coordinates: schemas.Coordinate{X: 10, Y: 20},
					},
					Parent: schemas.ParentRef{URL: "https://x.example/", NodeID: "n1"},
				}},
			},
		},
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleSnapshot("sess-1")))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", loaded.ID)
	assert.Equal(t, "https://x.example/", loaded.SeedURL)
	require.Len(t, loaded.Graph.Nodes, 1)
	require.Len(t, loaded.Frontier.Routes["https://x.example/"], 1)
	assert.Equal(t, "Login", loaded.Frontier.Routes["https://x.example/"][0].Element.Text)
	assert.False(t, loaded.SavedAt.IsZero())
}

func TestSaveOverwritesPrevious(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snap := sampleSnapshot("sess-1")
	require.NoError(t, store.Save(ctx, snap))

	snap.SeedURL = "https://y.example/"
	require.NoError(t, store.Save(ctx, snap))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "https://y.example/", loaded.SeedURL)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-1"}, ids)
}

func TestLoadMissingSession(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load(context.Background(), "nope")
	assert.ErrorContains(t, err, "not found")
}

func TestLoadCorruptSnapshot(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.dir, "bad.json"), []byte("{truncated"), 0o644))
	_, err := store.Load(context.Background(), "bad")
	assert.ErrorContains(t, err, "corrupt")
}

func TestListAndClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleSnapshot("b-sess")))
	require.NoError(t, store.Save(ctx, sampleSnapshot("a-sess")))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-sess", "b-sess"}, ids)

	require.NoError(t, store.Clear(ctx, "a-sess"))
	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b-sess"}, ids)

	// Clearing a session that is already gone is fine.
	assert.NoError(t, store.Clear(ctx, "a-sess"))
}

func TestInvalidSessionIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"", "../escape", "a/b", "a\\b"} {
		assert.Error(t, store.Save(ctx, schemas.SessionSnapshot{ID: id}), "id %q", id)
		_, err := store.Load(ctx, id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(context.Background(), sampleSnapshot("sess-1")))

	entries, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sess-1.json", entries[0].Name())
}
