// File: internal/explorer/explorer.go
// Description: The exploration orchestrator. Composes the protocol parser, the
// model session client, the graph store and the frontier manager, and drives
// the explore/act/branch/terminate cycle against a browser driver.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/cartographer-cli/api/schemas"
	"github.com/xkilldash9x/cartographer-cli/internal/config"
	"github.com/xkilldash9x/cartographer-cli/internal/frontier"
	"github.com/xkilldash9x/cartographer-cli/internal/graph"
)

// State is the orchestrator's position in its turn cycle.
type State string

const (
	StateIdle              State = "idle"
	StateAwaitingModelTurn State = "awaiting_model_turn"
	StateProcessingExplore State = "processing_explore_turn"
	StateProcessingAction  State = "processing_action_turn"
)

var (
	// ErrSessionRunning is returned by Run when the session is already running.
	ErrSessionRunning = errors.New("exploration session already running")
	// ErrTurnInFlight is returned when a model turn is requested while another
	// is outstanding. The request is a no-op, not queued.
	ErrTurnInFlight = errors.New("model turn already in flight")

	errStopped = errors.New("session stopped")
)

// Explorer owns all mutable session state: the graph, the frontier, and the
// conversation. A single worker goroutine (the one inside Run) performs every
// mutation, so the stores need no external locking beyond their own.
type Explorer struct {
	cfg       config.ExplorerConfig
	logger    *zap.Logger
	model     schemas.ModelClient
	driver    schemas.BrowserDriver
	graph     schemas.GraphStore
	frontier  *frontier.Manager
	snapshots schemas.SnapshotStore
	normalize graph.Normalizer

	sessionID string
	seedURL   string

	running   *semaphore.Weighted
	turnGuard *semaphore.Weighted

	mu             sync.RWMutex
	state          State
	driverFailures int

	events   chan Event
	stopChan chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool
}

// New assembles an orchestrator for one exploration session.
func New(
	cfg config.ExplorerConfig,
	logger *zap.Logger,
	model schemas.ModelClient,
	driver schemas.BrowserDriver,
	graphStore schemas.GraphStore,
	frontierMgr *frontier.Manager,
	snapshots schemas.SnapshotStore,
	seedURL string,
) *Explorer {
	return &Explorer{
		cfg:       cfg,
		logger:    logger.Named("explorer"),
		model:     model,
		driver:    driver,
		graph:     graphStore,
		frontier:  frontierMgr,
		snapshots: snapshots,
		normalize: graph.DefaultNormalizer,
		sessionID: uuid.NewString(),
		seedURL:   seedURL,
		running:   semaphore.NewWeighted(1),
		turnGuard: semaphore.NewWeighted(1),
		state:     StateIdle,
		events:    make(chan Event, 256),
		stopChan:  make(chan struct{}),
	}
}

// SessionID identifies this session's durable snapshot.
func (e *Explorer) SessionID() string { return e.sessionID }

// Events is the session's progress stream. The caller must drain it until it is
// closed, which happens when Run returns.
func (e *Explorer) Events() <-chan Event { return e.events }

// State reports the orchestrator's current state.
func (e *Explorer) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Restore loads a persisted session into this orchestrator. Must be called
// before Run.
func (e *Explorer) Restore(ctx context.Context, snap schemas.SessionSnapshot) error {
	if err := e.graph.Restore(ctx, snap.Graph); err != nil {
		return fmt.Errorf("failed to restore graph: %w", err)
	}
	e.frontier.Restore(snap.Frontier)
	e.sessionID = snap.ID
	if snap.SeedURL != "" {
		e.seedURL = snap.SeedURL
	}
	e.logger.Info("Session restored",
		zap.String("session_id", snap.ID),
		zap.Int("visited_routes", len(snap.Frontier.VisitedRoutes)),
		zap.Int("pending_items", e.frontier.Pending()))
	return nil
}

// Stop requests a graceful halt. The in-flight turn's partial text is flipped
// to final, further chunk events are suppressed, and Run returns. Safe to call
// more than once and from any goroutine.
func (e *Explorer) Stop() {
	e.stopOnce.Do(func() {
		e.stopped.Store(true)
		close(e.stopChan)
		e.logger.Info("Stop requested")
	})
}

// Run executes the exploration session until the frontier is exhausted, a
// limit is hit, the session is stopped, or a terminal error occurs. Only one
// Run may be active per Explorer.
func (e *Explorer) Run(ctx context.Context) error {
	if !e.running.TryAcquire(1) {
		return ErrSessionRunning
	}
	defer e.running.Release(1)
	defer close(e.events)
	defer e.setState(StateIdle)

	if err := e.driver.Initialize(ctx, e.seedURL); err != nil {
		err = fmt.Errorf("failed to initialize browser driver: %w", err)
		e.emit(Event{Type: EventFailed, Err: err})
		return err
	}
	defer func() {
		if err := e.driver.Cleanup(context.WithoutCancel(ctx)); err != nil {
			e.logger.Warn("Driver cleanup failed", zap.Error(err))
		}
	}()

	err := e.loop(ctx)
	switch {
	case err == nil:
		e.emit(Event{Type: EventCompleted, Message: "exploration complete"})
		return nil
	case errors.Is(err, errStopped):
		e.emit(Event{Type: EventCompleted, Message: "session stopped"})
		return nil
	default:
		e.emit(Event{Type: EventFailed, Err: err})
		return err
	}
}

func (e *Explorer) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// emit forwards one event to the caller. Chunk events are suppressed once a
// stop has been requested.
func (e *Explorer) emit(ev Event) {
	if e.stopped.Load() && ev.Type == EventChunk {
		return
	}
	e.events <- ev
}

// runModelTurn streams one model turn to completion, forwarding chunks to the
// caller and accumulating the full response. At most one turn may be in flight;
// a concurrent caller gets ErrTurnInFlight without a second model call being
// made. The inactivity window bounds the wait for each next event.
func (e *Explorer) runModelTurn(ctx context.Context, req schemas.TurnRequest) (string, error) {
	if !e.turnGuard.TryAcquire(1) {
		return "", ErrTurnInFlight
	}
	defer e.turnGuard.Release(1)

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := e.model.StreamTurn(turnCtx, req)
	if err != nil {
		return "", err
	}

	var timerC <-chan time.Time
	var timer *time.Timer
	if e.cfg.IdleTimeout > 0 {
		timer = time.NewTimer(e.cfg.IdleTimeout)
		defer timer.Stop()
		timerC = timer.C
	}

	var sb strings.Builder
	for {
		select {
		case <-e.stopChan:
			cancel()
			// The partially rendered message becomes final; remaining stream
			// events are discarded by the drain.
			e.emit(Event{Type: EventTurnFinal, Text: sb.String()})
			go drainStream(stream)
			return "", errStopped

		case <-ctx.Done():
			cancel()
			go drainStream(stream)
			return "", ctx.Err()

		case <-timerC:
			cancel()
			go drainStream(stream)
			return "", fmt.Errorf("no stream data received within %s", e.cfg.IdleTimeout)

		case ev, ok := <-stream:
			if !ok {
				return "", errors.New("model stream closed without a terminal event")
			}
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(e.cfg.IdleTimeout)
			}
			switch ev.Type {
			case schemas.StreamChunk:
				sb.WriteString(ev.Delta)
				e.emit(Event{Type: EventChunk, Delta: ev.Delta})
			case schemas.StreamRetry:
				sb.Reset()
				e.emit(Event{Type: EventRetry})
			case schemas.StreamCompleted:
				e.emit(Event{Type: EventTurnFinal, Text: ev.Response})
				return ev.Response, nil
			case schemas.StreamError:
				return "", ev.Err
			}
		}
	}
}

// drainStream discards the remainder of an abandoned stream so its producer
// can observe cancellation and close the channel.
func drainStream(stream <-chan schemas.StreamEvent) {
	for range stream {
	}
}

// driverFailure counts consecutive driver problems and surfaces a warning once
// the configured threshold is crossed. The frontier loop itself keeps going.
func (e *Explorer) driverFailure(reason string, err error) {
	e.mu.Lock()
	e.driverFailures++
	failures := e.driverFailures
	e.mu.Unlock()

	e.logger.Warn("Browser driver failure", zap.String("reason", reason), zap.Int("consecutive", failures), zap.Error(err))
	if e.cfg.DriverWarnThreshold > 0 && failures == e.cfg.DriverWarnThreshold {
		e.emit(Event{
			Type:    EventWarning,
			Message: fmt.Sprintf("browser driver failed %d times in a row (last: %s)", failures, reason),
		})
	}
}

func (e *Explorer) driverRecovered() {
	e.mu.Lock()
	e.driverFailures = 0
	e.mu.Unlock()
}

// saveSnapshot persists the session best-effort; failures are logged, never
// fatal.
func (e *Explorer) saveSnapshot(ctx context.Context) {
	if e.snapshots == nil {
		return
	}
	snap := schemas.SessionSnapshot{
		ID:       e.sessionID,
		SeedURL:  e.seedURL,
		Graph:    e.graph.Snapshot(ctx),
		Frontier: e.frontier.Snapshot(),
	}
	if err := e.snapshots.Save(ctx, snap); err != nil {
		e.logger.Warn("Failed to persist session snapshot", zap.String("session_id", e.sessionID), zap.Error(err))
	}
}

func (e *Explorer) maxPagesReached(ctx context.Context) bool {
	if e.cfg.MaxPages <= 0 {
		return false
	}
	return len(e.graph.Snapshot(ctx).Nodes) >= e.cfg.MaxPages
}
