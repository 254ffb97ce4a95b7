// File: internal/explorer/events.go
// Description: Events the orchestrator fans out to its caller. One session
// emits zero or more progress events terminated by exactly one Completed or
// Failed event.
package explorer

// EventType discriminates session events.
type EventType string

const (
	// EventChunk forwards one model text delta unchanged.
	EventChunk EventType = "chunk"
	// EventRetry marks a model attempt boundary. Consumers rendering chunks
	// incrementally must discard what they accumulated for the current turn.
	EventRetry EventType = "retry"
	// EventTurnFinal marks the end of one model turn and carries its full text.
	EventTurnFinal EventType = "turn_final"
	// EventPageDiscovered reports a new node in the exploration graph.
	EventPageDiscovered EventType = "page_discovered"
	// EventEdgeDiscovered reports a new navigation edge.
	EventEdgeDiscovered EventType = "edge_discovered"
	// EventWarning reports a non-fatal condition, such as repeated driver
	// failures.
	EventWarning EventType = "warning"
	// EventCompleted is the successful terminal event: the frontier is
	// exhausted or a configured limit was reached.
	EventCompleted EventType = "completed"
	// EventFailed is the failed terminal event.
	EventFailed EventType = "failed"
)

// Event is one session progress report.
type Event struct {
	Type    EventType
	Delta   string
	Text    string
	URL     string
	Label   string
	Message string
	Err     error
}
