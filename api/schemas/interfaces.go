// File: api/schemas/interfaces.go
// Description: Canonical interface contracts between the orchestrator and its
// collaborators. Implementations live under internal/; depending on this package
// keeps the dependency arrows pointing at the API boundary.
package schemas

import "context"

// BrowserDriver abstracts one browser automation backend. The driver variant
// (local headless browser or remote container) is selected once at session
// configuration time; the orchestrator never inspects which one it holds.
type BrowserDriver interface {
	// Initialize prepares the browsing session, optionally navigating to a
	// start URL when startURL is non-empty.
	Initialize(ctx context.Context, startURL string) error

	// CurrentURL reports the page the browser is on. An empty string with a
	// nil error means the driver cannot observe a URL right now; callers treat
	// that as "no observation", not a failure.
	CurrentURL(ctx context.Context) (string, error)

	// Screenshot captures the current viewport as PNG bytes. A nil slice with
	// a nil error means no screenshot is available.
	Screenshot(ctx context.Context) ([]byte, error)

	// PerformAction executes one browser action and reports the outcome.
	PerformAction(ctx context.Context, req ActionRequest) (ActionResponse, error)

	// HarvestElements collects the interactive elements of the current page.
	// Used as a fallback when a model turn carried no parsed element list.
	HarvestElements(ctx context.Context) ([]ParsedElement, error)

	// Cleanup releases all browser resources. Safe to call more than once.
	Cleanup(ctx context.Context) error
}

// ModelClient wraps one streaming call to a language model provider behind a
// uniform contract. StreamTurn returns immediately; events arrive on the
// returned channel, which is closed after exactly one terminal event.
type ModelClient interface {
	StreamTurn(ctx context.Context, req TurnRequest) (<-chan StreamEvent, error)
}

// GraphStore holds discovered page nodes and navigation edges, deduplicating
// pages by normalized URL.
type GraphStore interface {
	// UpsertNode returns the node id for url, creating the node if absent and
	// backfilling a missing screenshot if one is supplied. The bool reports
	// whether a new node was created.
	UpsertNode(ctx context.Context, url string, screenshot string) (string, bool, error)

	// AddEdge records a navigation from source to target. Edges with an
	// identical (source, target, label) triple are deduplicated; the bool
	// reports whether a new edge was created.
	AddEdge(ctx context.Context, sourceID, targetID, label string) (string, bool, error)

	// SetDiscoveredElements records which frontier items were discovered on a
	// node; called once, when the node's element list is first enqueued.
	SetDiscoveredElements(ctx context.Context, nodeID string, itemIDs []string) error

	// NodeByURL looks a node up by its (raw or normalized) URL.
	NodeByURL(ctx context.Context, url string) (PageNode, bool)

	// Snapshot returns a serializable copy of the graph.
	Snapshot(ctx context.Context) GraphSnapshot

	// Restore replaces the graph content from a snapshot.
	Restore(ctx context.Context, snap GraphSnapshot) error
}

// SnapshotStore persists session snapshots for resumability. All operations are
// best effort from the orchestrator's point of view: a failed Save is logged,
// never fatal.
type SnapshotStore interface {
	Save(ctx context.Context, snap SessionSnapshot) error
	Load(ctx context.Context, id string) (SessionSnapshot, error)
	List(ctx context.Context) ([]string, error)
	Clear(ctx context.Context, id string) error
}
