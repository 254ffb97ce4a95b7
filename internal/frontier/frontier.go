// File: internal/frontier/frontier.go
// Description: Per-route queues of not-yet-visited interactive elements.
// Selection is breadth-first across routes: the oldest still-nonempty route in
// visit order is drained FIFO before any later route is touched.
package frontier

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer-cli/api/schemas"
)

// Manager owns the frontier. It is not goroutine safe: the orchestrator's
// single worker is the only mutator, per the session concurrency model.
type Manager struct {
	visitedRoutes []string
	routes        map[string][]schemas.ExploreQueueItem
	// currentlyExploring is non-nil exactly while a directed action for the
	// item is in flight, between issue and result.
	currentlyExploring *schemas.ExploreQueueItem

	log *zap.Logger
}

// NewManager creates an empty frontier manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		routes: make(map[string][]schemas.ExploreQueueItem),
		log:    logger.Named("frontier"),
	}
}

// EnqueueDiscovered registers a newly visited route and queues one frontier
// item per actionable element. Only valid once per route; the caller guards
// with Visited. Elements lacking display text or coordinates cannot be acted
// upon and are skipped with a diagnostic, never silently.
func (m *Manager) EnqueueDiscovered(route string, elements []schemas.ParsedElement, parent schemas.ParentRef) []schemas.ExploreQueueItem {
	if m.Visited(route) {
		m.log.Warn("Route already discovered, ignoring duplicate element list", zap.String("route", route))
		return nil
	}
	m.visitedRoutes = append(m.visitedRoutes, route)

	items := make([]schemas.ExploreQueueItem, 0, len(elements))
	dropped := 0
	for _, el := range elements {
		if el.Text == "" || el.Coordinates == nil {
			dropped++
			m.log.Debug("Dropping unactionable element",
				zap.String("route", route),
				zap.String("text", el.Text),
				zap.Bool("has_coordinates", el.Coordinates != nil))
			continue
		}
		items = append(items, schemas.ExploreQueueItem{
			ID:  uuid.NewString(),
			URL: route,
			Element: schemas.ElementDescriptor{
				Text:        el.Text,
				Coordinates: *el.Coordinates,
				About:       el.About,
			},
			Parent: parent,
		})
	}
	m.routes[route] = items

	if dropped > 0 {
		m.log.Warn("Skipped elements missing text or coordinates",
			zap.String("route", route),
			zap.Int("dropped", dropped),
			zap.Int("enqueued", len(items)))
	}
	m.log.Info("Route discovered",
		zap.String("route", route),
		zap.Int("frontier_items", len(items)))
	return items
}

// DequeueNext pops the next item in strict breadth-first order, or nil when
// every route's queue is exhausted.
func (m *Manager) DequeueNext() *schemas.ExploreQueueItem {
	for _, route := range m.visitedRoutes {
		queue := m.routes[route]
		if len(queue) == 0 {
			continue
		}
		item := queue[0]
		m.routes[route] = queue[1:]
		return &item
	}
	return nil
}

// MarkCurrentlyExploring sets the single in-flight pointer.
func (m *Manager) MarkCurrentlyExploring(item *schemas.ExploreQueueItem) {
	m.currentlyExploring = item
}

// ClearCurrentlyExploring clears the in-flight pointer.
func (m *Manager) ClearCurrentlyExploring() {
	m.currentlyExploring = nil
}

// CurrentlyExploring returns the in-flight item, or nil.
func (m *Manager) CurrentlyExploring() *schemas.ExploreQueueItem {
	return m.currentlyExploring
}

// Visited reports whether a route's element list was already discovered.
func (m *Manager) Visited(route string) bool {
	_, ok := m.routes[route]
	return ok
}

// Pending reports the total number of queued items across all routes.
func (m *Manager) Pending() int {
	n := 0
	for _, queue := range m.routes {
		n += len(queue)
	}
	return n
}

// VisitedRoutes returns the routes in first-visited order.
func (m *Manager) VisitedRoutes() []string {
	return append([]string(nil), m.visitedRoutes...)
}

// Snapshot returns the serializable frontier state.
func (m *Manager) Snapshot() schemas.FrontierSnapshot {
	snap := schemas.FrontierSnapshot{
		VisitedRoutes: append([]string(nil), m.visitedRoutes...),
		Routes:        make(map[string][]schemas.ExploreQueueItem, len(m.routes)),
	}
	for route, queue := range m.routes {
		snap.Routes[route] = append([]schemas.ExploreQueueItem(nil), queue...)
	}
	if m.currentlyExploring != nil {
		item := *m.currentlyExploring
		snap.CurrentlyExploring = &item
	}
	return snap
}

// Restore replaces the frontier state from a snapshot. A persisted in-flight
// item goes back to the front of its route's queue: its directed action never
// completed, so it is still unvisited.
func (m *Manager) Restore(snap schemas.FrontierSnapshot) {
	m.visitedRoutes = append([]string(nil), snap.VisitedRoutes...)
	m.routes = make(map[string][]schemas.ExploreQueueItem, len(snap.Routes))
	for route, queue := range snap.Routes {
		m.routes[route] = append([]schemas.ExploreQueueItem(nil), queue...)
	}
	// Routes listed in visit order but absent from the queue map still count
	// as visited with an empty queue.
	for _, route := range m.visitedRoutes {
		if _, ok := m.routes[route]; !ok {
			m.routes[route] = nil
		}
	}
	m.currentlyExploring = nil
	if snap.CurrentlyExploring != nil {
		item := *snap.CurrentlyExploring
		m.routes[item.URL] = append([]schemas.ExploreQueueItem{item}, m.routes[item.URL]...)
		m.log.Info("Requeued interrupted frontier item", zap.String("item_id", item.ID), zap.String("route", item.URL))
	}
}
