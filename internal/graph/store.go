// File: internal/graph/store.go
package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer-cli/api/schemas"
)

// Store is a fast, ephemeral, in-memory exploration graph. Pages are
// deduplicated by normalized URL; navigation edges are deduplicated by their
// (source, target, label) triple to keep session state bounded.
type Store struct {
	normalize Normalizer

	mu            sync.RWMutex
	nodes         map[string]schemas.PageNode // key: node ID
	byURL         map[string]string           // key: normalized URL, value: node ID
	edges         map[string]schemas.NavigationEdge
	edgeTriples   map[string]string   // key: source|target|label, value: edge ID
	outgoingEdges map[string][]string // key: node ID, value: edge IDs

	log *zap.Logger
}

// Ensures Store implements the GraphStore contract at compile time.
var _ schemas.GraphStore = (*Store)(nil)

// NewStore creates an empty graph store. A nil normalizer selects
// DefaultNormalizer.
func NewStore(logger *zap.Logger, normalize Normalizer) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if normalize == nil {
		normalize = DefaultNormalizer
	}
	return &Store{
		normalize:     normalize,
		nodes:         make(map[string]schemas.PageNode),
		byURL:         make(map[string]string),
		edges:         make(map[string]schemas.NavigationEdge),
		edgeTriples:   make(map[string]string),
		outgoingEdges: make(map[string][]string),
		log:           logger.Named("graph"),
	}
}

// UpsertNode returns the node id for url, creating the node if absent.
// Idempotent: a second call with the same normalized URL returns the same id,
// backfilling a missing screenshot when one is supplied.
func (s *Store) UpsertNode(ctx context.Context, rawURL string, screenshot string) (string, bool, error) {
	norm, err := s.normalize(rawURL)
	if err != nil {
		return "", false, fmt.Errorf("cannot normalize url: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byURL[norm]; ok {
		node := s.nodes[id]
		if node.Screenshot == "" && screenshot != "" {
			node.Screenshot = screenshot
			s.nodes[id] = node
			s.log.Debug("Backfilled node screenshot", zap.String("node_id", id), zap.String("url", norm))
		}
		return id, false, nil
	}

	node := schemas.PageNode{
		ID:         uuid.NewString(),
		URL:        norm,
		Screenshot: screenshot,
		CreatedAt:  time.Now().UTC(),
	}
	s.nodes[node.ID] = node
	s.byURL[norm] = node.ID
	s.log.Debug("Node created", zap.String("node_id", node.ID), zap.String("url", norm))
	return node.ID, true, nil
}

// AddEdge records a navigation edge. Identical (source, target, label) triples
// are deduplicated; the bool reports whether a new edge was created.
func (s *Store) AddEdge(ctx context.Context, sourceID, targetID, label string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[sourceID]; !ok {
		return "", false, fmt.Errorf("source node %q not found", sourceID)
	}
	if _, ok := s.nodes[targetID]; !ok {
		return "", false, fmt.Errorf("target node %q not found", targetID)
	}

	triple := sourceID + "|" + targetID + "|" + label
	if id, ok := s.edgeTriples[triple]; ok {
		return id, false, nil
	}

	edge := schemas.NavigationEdge{
		ID:        uuid.NewString(),
		SourceID:  sourceID,
		TargetID:  targetID,
		Label:     label,
		CreatedAt: time.Now().UTC(),
	}
	s.edges[edge.ID] = edge
	s.edgeTriples[triple] = edge.ID
	s.outgoingEdges[sourceID] = append(s.outgoingEdges[sourceID], edge.ID)
	s.log.Debug("Edge created",
		zap.String("edge_id", edge.ID),
		zap.String("from", sourceID),
		zap.String("to", targetID),
		zap.String("label", label))
	return edge.ID, true, nil
}

// SetDiscoveredElements records which frontier items were discovered on a node.
// Called once, when the node's element list is first enqueued.
func (s *Store) SetDiscoveredElements(ctx context.Context, nodeID string, itemIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[nodeID]
	if !ok {
		return fmt.Errorf("node %q not found", nodeID)
	}
	node.DiscoveredElementIDs = append([]string(nil), itemIDs...)
	s.nodes[nodeID] = node
	return nil
}

// NodeByURL looks a node up by URL. Unparseable URLs simply report absence.
func (s *Store) NodeByURL(ctx context.Context, rawURL string) (schemas.PageNode, bool) {
	norm, err := s.normalize(rawURL)
	if err != nil {
		return schemas.PageNode{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byURL[norm]
	if !ok {
		return schemas.PageNode{}, false
	}
	return s.nodes[id], true
}

// Node retrieves a node by id.
func (s *Store) Node(ctx context.Context, id string) (schemas.PageNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[id]
	return node, ok
}

// Snapshot returns a serializable copy of the graph, ordered by creation time
// for stable output.
func (s *Store) Snapshot(ctx context.Context) schemas.GraphSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := schemas.GraphSnapshot{
		Nodes: make([]schemas.PageNode, 0, len(s.nodes)),
		Edges: make([]schemas.NavigationEdge, 0, len(s.edges)),
	}
	for _, node := range s.nodes {
		snap.Nodes = append(snap.Nodes, node)
	}
	for _, edge := range s.edges {
		snap.Edges = append(snap.Edges, edge)
	}
	sort.Slice(snap.Nodes, func(i, j int) bool {
		if snap.Nodes[i].CreatedAt.Equal(snap.Nodes[j].CreatedAt) {
			return snap.Nodes[i].ID < snap.Nodes[j].ID
		}
		return snap.Nodes[i].CreatedAt.Before(snap.Nodes[j].CreatedAt)
	})
	sort.Slice(snap.Edges, func(i, j int) bool {
		if snap.Edges[i].CreatedAt.Equal(snap.Edges[j].CreatedAt) {
			return snap.Edges[i].ID < snap.Edges[j].ID
		}
		return snap.Edges[i].CreatedAt.Before(snap.Edges[j].CreatedAt)
	})
	return snap
}

// Restore replaces the graph content from a snapshot, rebuilding all indexes.
func (s *Store) Restore(ctx context.Context, snap schemas.GraphSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := make(map[string]schemas.PageNode, len(snap.Nodes))
	byURL := make(map[string]string, len(snap.Nodes))
	for _, node := range snap.Nodes {
		if node.ID == "" || node.URL == "" {
			return fmt.Errorf("snapshot node missing id or url")
		}
		nodes[node.ID] = node
		byURL[node.URL] = node.ID
	}

	edges := make(map[string]schemas.NavigationEdge, len(snap.Edges))
	triples := make(map[string]string, len(snap.Edges))
	outgoing := make(map[string][]string)
	for _, edge := range snap.Edges {
		if _, ok := nodes[edge.SourceID]; !ok {
			return fmt.Errorf("snapshot edge %q references unknown source %q", edge.ID, edge.SourceID)
		}
		if _, ok := nodes[edge.TargetID]; !ok {
			return fmt.Errorf("snapshot edge %q references unknown target %q", edge.ID, edge.TargetID)
		}
		edges[edge.ID] = edge
		triples[edge.SourceID+"|"+edge.TargetID+"|"+edge.Label] = edge.ID
		outgoing[edge.SourceID] = append(outgoing[edge.SourceID], edge.ID)
	}

	s.nodes = nodes
	s.byURL = byURL
	s.edges = edges
	s.edgeTriples = triples
	s.outgoingEdges = outgoing
	s.log.Info("Graph restored from snapshot", zap.Int("nodes", len(nodes)), zap.Int("edges", len(edges)))
	return nil
}
