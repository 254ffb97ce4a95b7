// File: internal/explorer/turns.go
// Description: The per-turn transition logic: parse the model's response,
// record newly discovered pages, branch to the next frontier item or carry the
// conversation forward.
package explorer

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer-cli/api/schemas"
	"github.com/xkilldash9x/cartographer-cli/internal/protocol"
)

// loop drives turns until the frontier is exhausted, a limit is hit, or the
// session is stopped. A nil return means normal completion.
func (e *Explorer) loop(ctx context.Context) error {
	req, done := e.initialTurn(ctx)
	if done {
		return nil
	}

	var history []schemas.TurnMessage
	exchanges := 0
	for {
		select {
		case <-e.stopChan:
			return errStopped
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		e.setState(StateAwaitingModelTurn)
		text, err := e.runModelTurn(ctx, req)
		if err != nil {
			return err
		}
		if req.Preamble == schemas.PreambleExplore {
			e.setState(StateProcessingExplore)
		} else {
			e.setState(StateProcessingAction)
		}

		parts := protocol.Parse(text)
		complete := firstCompleteTask(parts)
		result := firstActionResult(parts)
		action := protocol.ExtractFirstAction(text)
		followup := firstFollowup(parts)

		discovered := false
		if complete != nil || (result != nil && result.Status == schemas.StatusSuccess) {
			discovered = e.recordPageIfNew(ctx, result)
		}

		if discovered || complete != nil {
			// The in-flight item's navigation has been attributed (or the task
			// ended without one). Branch to the next frontier item with a
			// fresh conversation.
			e.frontier.ClearCurrentlyExploring()
			e.saveSnapshot(ctx)

			if e.maxPagesReached(ctx) {
				e.logger.Info("Page limit reached, ending exploration", zap.Int("max_pages", e.cfg.MaxPages))
				return nil
			}
			next, exhausted := e.nextFrontierTurn(ctx)
			if exhausted {
				return nil
			}
			history = nil
			exchanges = 0
			req = next
			continue
		}

		// Ordinary exchange: execute the requested action (or answer filler)
		// and carry the growing history forward on the same conversation.
		exchanges++
		if e.cfg.MaxConversationTurns > 0 && exchanges >= e.cfg.MaxConversationTurns {
			// A model that never converges must not hold the session hostage;
			// abandon the conversation and advance the frontier.
			e.logger.Warn("Conversation turn cap reached, moving on",
				zap.Int("max_conversation_turns", e.cfg.MaxConversationTurns))
			e.emit(Event{Type: EventWarning, Message: "conversation turn cap reached, moving to the next frontier item"})
			e.frontier.ClearCurrentlyExploring()
			e.saveSnapshot(ctx)

			next, exhausted := e.nextFrontierTurn(ctx)
			if exhausted {
				return nil
			}
			history = nil
			exchanges = 0
			req = next
			continue
		}
		history = append(history, schemas.TurnMessage{Role: schemas.RoleModel, Content: text})

		var reply string
		var image []byte
		switch {
		case action != nil:
			resp := e.performAction(ctx, action)
			// A fresh element list keeps the model on observed coordinates
			// instead of invented ones.
			var elements []schemas.ParsedElement
			if resp.Status == schemas.StatusSuccess {
				if harvested, err := e.driver.HarvestElements(ctx); err == nil {
					elements = harvested
				}
			}
			reply = formatActionResult(resp, elements)
			image = resp.Screenshot
		case followup != nil:
			reply = followupNudge
		default:
			// Conversational filler: already forwarded to the caller, the
			// conversation continues without frontier mutation.
			reply = continueNudge
		}

		req = schemas.TurnRequest{
			Preamble:   req.Preamble,
			Task:       req.Task,
			CurrentURL: req.CurrentURL,
			History:    append([]schemas.TurnMessage(nil), history...),
			Text:       reply,
			Image:      image,
		}
		history = append(history, schemas.TurnMessage{Role: schemas.RoleUser, Content: reply})
	}
}

// initialTurn picks the session's first turn: a directed action when resuming a
// session with pending frontier work, otherwise an open-ended exploration of
// the seed page. done is true when a resumed frontier is already exhausted.
func (e *Explorer) initialTurn(ctx context.Context) (schemas.TurnRequest, bool) {
	if len(e.frontier.VisitedRoutes()) > 0 {
		return e.nextFrontierTurn(ctx)
	}

	url, err := e.driver.CurrentURL(ctx)
	if err != nil || url == "" {
		url = e.seedURL
	}
	req := schemas.TurnRequest{
		Preamble: schemas.PreambleExplore,
		Text:     exploreInstruction(url),
	}
	if shot, err := e.driver.Screenshot(ctx); err == nil && len(shot) > 0 {
		req.Image = shot
	}
	return req, false
}

// nextFrontierTurn dequeues the next frontier item, marks it in flight, and
// synthesizes its directed instruction. exhausted is true when no item remains
// on any route.
func (e *Explorer) nextFrontierTurn(ctx context.Context) (schemas.TurnRequest, bool) {
	item := e.frontier.DequeueNext()
	if item == nil {
		return schemas.TurnRequest{}, true
	}
	e.frontier.MarkCurrentlyExploring(item)
	e.saveSnapshot(ctx)

	currentURL, err := e.driver.CurrentURL(ctx)
	if err != nil {
		currentURL = ""
	}
	task := directedInstruction(item)
	return schemas.TurnRequest{
		Preamble:   schemas.PreambleDirectedAction,
		Task:       task,
		CurrentURL: currentURL,
		Text:       task,
	}, false
}

// recordPageIfNew asks the driver where the browser is and, when the URL names
// a route not yet visited, creates the node, attributes the navigation edge to
// the in-flight item, and enqueues the turn's discovered elements. Returns
// whether a new route was recorded. A driver that cannot report a URL yields no
// mutation at all.
func (e *Explorer) recordPageIfNew(ctx context.Context, result *schemas.ActionResultPart) bool {
	rawURL, err := e.driver.CurrentURL(ctx)
	if err != nil || rawURL == "" {
		e.driverFailure("current url unavailable", err)
		return false
	}
	e.driverRecovered()

	route := rawURL
	if normalized, err := e.normalize(rawURL); err == nil {
		route = normalized
	}
	if e.frontier.Visited(route) {
		return false
	}

	var screenshot string
	if shot, err := e.driver.Screenshot(ctx); err == nil && len(shot) > 0 {
		screenshot = base64.StdEncoding.EncodeToString(shot)
	}

	nodeID, created, err := e.graph.UpsertNode(ctx, rawURL, screenshot)
	if err != nil {
		e.logger.Warn("Failed to upsert page node", zap.String("url", rawURL), zap.Error(err))
		return false
	}
	if created {
		e.emit(Event{Type: EventPageDiscovered, URL: route})
		e.logger.Info("Page discovered", zap.String("url", route))
	}

	// Attribute the navigation to the element that caused it. Acting on a page
	// without leaving it creates no edge.
	if cur := e.frontier.CurrentlyExploring(); cur != nil && cur.Parent.NodeID != nodeID {
		if _, madeEdge, err := e.graph.AddEdge(ctx, cur.Parent.NodeID, nodeID, cur.Element.Text); err != nil {
			e.logger.Warn("Failed to add navigation edge", zap.String("target", route), zap.Error(err))
		} else if madeEdge {
			e.emit(Event{Type: EventEdgeDiscovered, URL: route, Label: cur.Element.Text})
		}
	}

	var elements []schemas.ParsedElement
	if result != nil {
		elements = result.Elements
	}
	if len(elements) == 0 {
		if harvested, err := e.driver.HarvestElements(ctx); err != nil {
			e.logger.Warn("Element harvest failed", zap.String("url", route), zap.Error(err))
		} else {
			elements = harvested
		}
	}

	items := e.frontier.EnqueueDiscovered(route, elements, schemas.ParentRef{
		URL:    route,
		NodeID: nodeID,
		ID:     uuid.NewString(),
	})
	if len(items) > 0 {
		ids := make([]string, len(items))
		for i, it := range items {
			ids[i] = it.ID
		}
		if err := e.graph.SetDiscoveredElements(ctx, nodeID, ids); err != nil {
			e.logger.Warn("Failed to record discovered elements", zap.String("url", route), zap.Error(err))
		}
	}

	e.saveSnapshot(ctx)
	return true
}

// performAction executes one model-issued browser action. Driver-level failures
// are folded into an error-status response so the model can react.
func (e *Explorer) performAction(ctx context.Context, part *schemas.PerformActionPart) schemas.ActionResponse {
	req := schemas.ActionRequest{
		Action:     part.Action,
		URL:        part.URL,
		Coordinate: parseCoordinate(part.Coordinate),
		Text:       part.Text,
		Key:        part.Key,
	}
	resp, err := e.driver.PerformAction(ctx, req)
	if err != nil {
		e.driverFailure("perform action", err)
		return schemas.ActionResponse{
			Status:  schemas.StatusError,
			Message: "the browser could not execute the action: " + err.Error(),
		}
	}
	e.driverRecovered()
	return resp
}

// parseCoordinate reads "x,y" (optionally parenthesized) into a Coordinate.
func parseCoordinate(s string) *schemas.Coordinate {
	s = strings.Trim(strings.TrimSpace(s), "()[]")
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return nil
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errX != nil || errY != nil {
		return nil
	}
	return &schemas.Coordinate{X: x, Y: y}
}

func firstCompleteTask(parts []schemas.MessagePart) *schemas.CompleteTaskPart {
	for _, p := range parts {
		if v, ok := p.(schemas.CompleteTaskPart); ok {
			return &v
		}
	}
	return nil
}

func firstActionResult(parts []schemas.MessagePart) *schemas.ActionResultPart {
	for _, p := range parts {
		if v, ok := p.(schemas.ActionResultPart); ok {
			return &v
		}
	}
	return nil
}

func firstFollowup(parts []schemas.MessagePart) *schemas.FollowupQuestionPart {
	for _, p := range parts {
		if v, ok := p.(schemas.FollowupQuestionPart); ok {
			return &v
		}
	}
	return nil
}
