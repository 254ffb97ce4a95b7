// File: api/schemas/schemas.go
// Description: Canonical data types shared across the exploration pipeline. Keeping
// them in a single top-level package establishes a clean contract boundary and avoids
// import cycles between the orchestrator, the drivers and the model client.
package schemas

import "time"

// -- Protocol message parts --

// MessagePartType discriminates the members of the MessagePart union.
type MessagePartType string

const (
	PartText             MessagePartType = "text"
	PartFollowupQuestion MessagePartType = "followup_question"
	PartCompleteTask     MessagePartType = "complete_task"
	PartPerformAction    MessagePartType = "perform_action"
	PartActionResult     MessagePartType = "action_result"
)

// MessagePart is the tagged union produced by the protocol parser. A model
// response yields zero or more parts in document order.
type MessagePart interface {
	PartType() MessagePartType
}

// TextPart carries plain conversational text, including degraded unmatched tags.
type TextPart struct {
	Content string `json:"content"`
}

func (TextPart) PartType() MessagePartType { return PartText }

// FollowupQuestionPart is emitted when the model asks the user a question.
type FollowupQuestionPart struct {
	Question string `json:"question"`
}

func (FollowupQuestionPart) PartType() MessagePartType { return PartFollowupQuestion }

// CompleteTaskPart signals that the model considers the current task finished.
// Command is optional; the zero value means the tag carried no <command> field.
type CompleteTaskPart struct {
	Result  string `json:"result"`
	Command string `json:"command,omitempty"`
}

func (CompleteTaskPart) PartType() MessagePartType { return PartCompleteTask }

// PerformActionPart is a browser instruction extracted from a model response.
// All fields except Action are optional; absent fields are left at their zero
// value.
type PerformActionPart struct {
	Action       string `json:"action"`
	URL          string `json:"url,omitempty"`
	Coordinate   string `json:"coordinate,omitempty"`
	Text         string `json:"text,omitempty"`
	Key          string `json:"key,omitempty"`
	About        string `json:"about,omitempty"`
	MarkerNumber string `json:"marker_number,omitempty"`
}

func (PerformActionPart) PartType() MessagePartType { return PartPerformAction }

// ActionStatus is the outcome of a performed browser action.
type ActionStatus string

const (
	StatusSuccess ActionStatus = "success"
	StatusError   ActionStatus = "error"
)

// ActionResultPart reports the outcome of a previously issued action, optionally
// carrying a screenshot reference and the interactive elements parsed from the
// resulting page.
type ActionResultPart struct {
	Status     ActionStatus    `json:"status"`
	Message    string          `json:"message"`
	Screenshot string          `json:"screenshot,omitempty"`
	Elements   []ParsedElement `json:"parsed_elements,omitempty"`
}

func (ActionResultPart) PartType() MessagePartType { return PartActionResult }

// -- Page elements --

// Coordinate is a point in page viewport space.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ParsedElement is one interactive element discovered on a page, either by the
// model's page parser or by the driver-side harvest fallback. Coordinates is nil
// when the source could not locate the element on screen.
type ParsedElement struct {
	Text        string      `json:"text"`
	Coordinates *Coordinate `json:"coordinates,omitempty"`
	About       string      `json:"about,omitempty"`
}

// ElementDescriptor identifies a frontier element precisely enough for a
// directed action: it always carries both display text and coordinates.
type ElementDescriptor struct {
	Text        string     `json:"text"`
	Coordinates Coordinate `json:"coordinates"`
	About       string     `json:"about,omitempty"`
}

// -- Exploration graph --

// PageNode is a discovered page. Identity is the normalized URL; at most one
// node per URL exists within a session. Screenshot is base64 PNG data and may be
// backfilled after creation.
type PageNode struct {
	ID                   string    `json:"id"`
	URL                  string    `json:"url"`
	Screenshot           string    `json:"screenshot,omitempty"`
	DiscoveredElementIDs []string  `json:"discovered_element_ids,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// NavigationEdge records that acting on an element of the source page led the
// browser to the target page. Label is the descriptor text of that element.
type NavigationEdge struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

// GraphSnapshot is the serializable form of the exploration graph.
type GraphSnapshot struct {
	Nodes []PageNode       `json:"nodes"`
	Edges []NavigationEdge `json:"edges"`
}

// -- Frontier --

// ParentRef ties a frontier item back to the page it was discovered on.
type ParentRef struct {
	URL    string `json:"url"`
	NodeID string `json:"node_id"`
	ID     string `json:"id"`
}

// ExploreQueueItem is one not-yet-visited interactive element awaiting a
// directed action. Items are exclusively owned by the frontier manager's
// per-route queue; the orchestrator borrows a reference while one is in flight.
type ExploreQueueItem struct {
	ID      string            `json:"id"`
	URL     string            `json:"url"`
	Element ElementDescriptor `json:"element"`
	Parent  ParentRef         `json:"parent"`
}

// FrontierSnapshot is the serializable form of the frontier manager state.
type FrontierSnapshot struct {
	VisitedRoutes      []string                      `json:"visited_routes"`
	Routes             map[string][]ExploreQueueItem `json:"routes"`
	CurrentlyExploring *ExploreQueueItem             `json:"currently_exploring,omitempty"`
}

// SessionSnapshot is the durable form of one exploration session, written after
// every mutating step so a session can be resumed by id.
type SessionSnapshot struct {
	ID       string           `json:"id"`
	SeedURL  string           `json:"seed_url,omitempty"`
	Graph    GraphSnapshot    `json:"graph"`
	Frontier FrontierSnapshot `json:"frontier"`
	SavedAt  time.Time        `json:"saved_at"`
}

// -- Browser driver --

// ActionRequest instructs a driver to perform one browser action.
type ActionRequest struct {
	Action     string      `json:"action"`
	URL        string      `json:"url,omitempty"`
	Coordinate *Coordinate `json:"coordinate,omitempty"`
	Text       string      `json:"text,omitempty"`
	Key        string      `json:"key,omitempty"`
}

// ActionResponse is the driver's report for one performed action.
type ActionResponse struct {
	Status     ActionStatus `json:"status"`
	Message    string       `json:"message"`
	Screenshot []byte       `json:"screenshot,omitempty"`
}

// -- Model session client --

// PreambleKind selects which system preamble a turn uses.
type PreambleKind string

const (
	// PreambleExplore is the open-ended exploration preamble used on the first
	// turn of a page.
	PreambleExplore PreambleKind = "explore"
	// PreambleDirectedAction instructs the model to act on one specific element.
	// It is parameterized by the task text and the current page URL.
	PreambleDirectedAction PreambleKind = "directed_action"
)

// TurnRole is the author of a history entry.
type TurnRole string

const (
	RoleUser  TurnRole = "user"
	RoleModel TurnRole = "model"
)

// TurnMessage is one entry of the conversation history carried across turns on
// the same page.
type TurnMessage struct {
	Role    TurnRole `json:"role"`
	Content string   `json:"content"`
}

// TurnRequest is one full request to the model session client. Image, when
// non-nil, is PNG bytes embedded alongside Text in the same user turn.
type TurnRequest struct {
	Preamble   PreambleKind  `json:"preamble"`
	Task       string        `json:"task,omitempty"`
	CurrentURL string        `json:"current_url,omitempty"`
	History    []TurnMessage `json:"history,omitempty"`
	Text       string        `json:"text"`
	Image      []byte        `json:"image,omitempty"`
}

// StreamEventType discriminates model stream events.
type StreamEventType string

const (
	// StreamChunk carries one incremental text delta.
	StreamChunk StreamEventType = "chunk"
	// StreamRetry marks an attempt boundary: the previous attempt failed and is
	// being retried. Consumers must discard any text accumulated from it.
	StreamRetry StreamEventType = "retry"
	// StreamCompleted is the successful terminal event carrying the full
	// response text.
	StreamCompleted StreamEventType = "completed"
	// StreamError is the failed terminal event, emitted after the retry budget
	// is exhausted.
	StreamError StreamEventType = "error"
)

// StreamEvent is one event of a model turn stream. Exactly one terminal event
// (StreamCompleted or StreamError) closes every stream.
type StreamEvent struct {
	Type     StreamEventType `json:"type"`
	Delta    string          `json:"delta,omitempty"`
	Response string          `json:"response,omitempty"`
	Err      error           `json:"-"`
}
