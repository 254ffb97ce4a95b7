// File: internal/graph/store_test.go
package graph

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer-cli/api/schemas"
)

var testLogger *zap.Logger

func TestMain(m *testing.M) {
	// Nop logger keeps test output clean; switch to zap.NewDevelopment() when debugging.
	testLogger = zap.NewNop()
	os.Exit(m.Run())
}

func newTestEdge(id, src, dst string) schemas.NavigationEdge {
	return schemas.NavigationEdge{ID: id, SourceID: src, TargetID: dst, Label: "x", CreatedAt: time.Now().UTC()}
}

func TestDefaultNormalizer(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "strips fragment", in: "https://x.example/a#section", want: "https://x.example/a"},
		{name: "lowercases host", in: "https://X.Example/a", want: "https://x.example/a"},
		{name: "drops default https port", in: "https://x.example:443/a", want: "https://x.example/a"},
		{name: "drops default http port", in: "http://x.example:80/a", want: "http://x.example/a"},
		{name: "keeps custom port", in: "https://x.example:8443/a", want: "https://x.example:8443/a"},
		{name: "empty path becomes root", in: "https://x.example", want: "https://x.example/"},
		{name: "sorts query keys", in: "https://x.example/a?b=2&a=1", want: "https://x.example/a?a=1&b=2"},
		{name: "no scheme", in: "x.example/a", wantErr: true},
		{name: "garbage", in: "://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DefaultNormalizer(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpsertNodeIdempotence(t *testing.T) {
	s := NewStore(testLogger, nil)
	ctx := context.Background()

	id1, created, err := s.UpsertNode(ctx, "https://x.example/a", "")
	require.NoError(t, err)
	assert.True(t, created)

	// Equivalent URL spellings must resolve to the same node.
	id2, created, err := s.UpsertNode(ctx, "https://X.Example/a#frag", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)

	snap := s.Snapshot(ctx)
	assert.Len(t, snap.Nodes, 1)
}

func TestUpsertNodeScreenshotBackfill(t *testing.T) {
	s := NewStore(testLogger, nil)
	ctx := context.Background()

	id, _, err := s.UpsertNode(ctx, "https://x.example/a", "")
	require.NoError(t, err)

	_, _, err = s.UpsertNode(ctx, "https://x.example/a", "png-one")
	require.NoError(t, err)
	node, ok := s.Node(ctx, id)
	require.True(t, ok)
	assert.Equal(t, "png-one", node.Screenshot)

	// An existing screenshot is never overwritten.
	_, _, err = s.UpsertNode(ctx, "https://x.example/a", "png-two")
	require.NoError(t, err)
	node, _ = s.Node(ctx, id)
	assert.Equal(t, "png-one", node.Screenshot)
}

func TestAddEdgeDedupe(t *testing.T) {
	s := NewStore(testLogger, nil)
	ctx := context.Background()

	a, _, err := s.UpsertNode(ctx, "https://x.example/a", "")
	require.NoError(t, err)
	b, _, err := s.UpsertNode(ctx, "https://x.example/b", "")
	require.NoError(t, err)

	e1, created, err := s.AddEdge(ctx, a, b, "Login")
	require.NoError(t, err)
	assert.True(t, created)

	e2, created, err := s.AddEdge(ctx, a, b, "Login")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, e1, e2)

	// A different label between the same endpoints is a distinct, parallel edge.
	e3, created, err := s.AddEdge(ctx, a, b, "Sign up")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, e1, e3)

	assert.Len(t, s.Snapshot(ctx).Edges, 2)
}

func TestAddEdgeUnknownEndpoints(t *testing.T) {
	s := NewStore(testLogger, nil)
	ctx := context.Background()

	a, _, err := s.UpsertNode(ctx, "https://x.example/a", "")
	require.NoError(t, err)

	_, _, err = s.AddEdge(ctx, a, "missing", "x")
	assert.Error(t, err)
	_, _, err = s.AddEdge(ctx, "missing", a, "x")
	assert.Error(t, err)
}

func TestSetDiscoveredElements(t *testing.T) {
	s := NewStore(testLogger, nil)
	ctx := context.Background()

	id, _, err := s.UpsertNode(ctx, "https://x.example/a", "")
	require.NoError(t, err)

	require.NoError(t, s.SetDiscoveredElements(ctx, id, []string{"i1", "i2"}))
	node, _ := s.Node(ctx, id)
	assert.Equal(t, []string{"i1", "i2"}, node.DiscoveredElementIDs)

	assert.Error(t, s.SetDiscoveredElements(ctx, "missing", nil))
}

func TestSnapshotRestoreRoundtrip(t *testing.T) {
	s := NewStore(testLogger, nil)
	ctx := context.Background()

	a, _, err := s.UpsertNode(ctx, "https://x.example/a", "shot-a")
	require.NoError(t, err)
	b, _, err := s.UpsertNode(ctx, "https://x.example/b", "")
	require.NoError(t, err)
	_, _, err = s.AddEdge(ctx, a, b, "Login")
	require.NoError(t, err)

	snap := s.Snapshot(ctx)

	restored := NewStore(testLogger, nil)
	require.NoError(t, restored.Restore(ctx, snap))

	// Identity by URL survives the roundtrip, including edge dedupe state.
	id, created, err := restored.UpsertNode(ctx, "https://x.example/a", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a, id)

	_, created, err = restored.AddEdge(ctx, a, b, "Login")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestRestoreRejectsDanglingEdges(t *testing.T) {
	s := NewStore(testLogger, nil)
	ctx := context.Background()

	snap := s.Snapshot(ctx)
	snap.Edges = append(snap.Edges, newTestEdge("e1", "ghost-src", "ghost-dst"))
	assert.Error(t, s.Restore(ctx, snap))
}

func TestCustomNormalizer(t *testing.T) {
	// A policy that treats every URL on a host as one node.
	hostOnly := func(raw string) (string, error) { return "host", nil }
	s := NewStore(testLogger, hostOnly)
	ctx := context.Background()

	id1, created, err := s.UpsertNode(ctx, "https://x.example/a", "")
	require.NoError(t, err)
	assert.True(t, created)
	id2, created, err := s.UpsertNode(ctx, "https://x.example/completely/else", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)
}
