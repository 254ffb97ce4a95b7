// File: internal/modelclient/client.go
// Description: Uniform streaming contract over model providers. One StreamTurn
// call yields chunk events as deltas arrive and exactly one terminal event.
// The whole turn is retried on transient failure; chunks of a failed attempt
// are disowned by an explicit retry marker, never re-surfaced as valid output.
package modelclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/cartographer-cli/api/schemas"
	"github.com/xkilldash9x/cartographer-cli/internal/config"
)

// attemptFunc performs one complete provider call, forwarding each text delta
// through emit as it arrives and returning the full response text.
type attemptFunc func(ctx context.Context, req schemas.TurnRequest, emit func(delta string)) (string, error)

// Client wraps a provider attempt with the retry, pacing and timeout policy.
type Client struct {
	cfg     config.ModelConfig
	logger  *zap.Logger
	attempt attemptFunc
	limiter *rate.Limiter
}

var _ schemas.ModelClient = (*Client)(nil)

// New constructs the model client selected by cfg.Provider.
func New(cfg config.ModelConfig, logger *zap.Logger) (*Client, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		backend, err := newGeminiBackend(cfg, logger)
		if err != nil {
			return nil, err
		}
		return newClient(cfg, logger, backend.attempt), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// newClient wires an attempt function into the retry policy. Split from New so
// tests can inject scripted attempts.
func newClient(cfg config.ModelConfig, logger *zap.Logger, attempt attemptFunc) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.TurnsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.TurnsPerMinute/60.0), 1)
	}
	return &Client{
		cfg:     cfg,
		logger:  logger.Named("model_client"),
		attempt: attempt,
		limiter: limiter,
	}
}

// StreamTurn runs one model turn. The returned channel carries zero or more
// chunk events, retry markers at attempt boundaries, and is closed after
// exactly one terminal event (completed or error). The turn as a whole is
// bounded by the configured timeout regardless of streaming progress.
func (c *Client) StreamTurn(ctx context.Context, req schemas.TurnRequest) (<-chan schemas.StreamEvent, error) {
	out := make(chan schemas.StreamEvent, 64)

	go func() {
		defer close(out)

		turnCtx := ctx
		if c.cfg.TurnTimeout > 0 {
			var cancel context.CancelFunc
			turnCtx, cancel = context.WithTimeout(ctx, c.cfg.TurnTimeout)
			defer cancel()
		}

		if err := c.limiter.Wait(turnCtx); err != nil {
			send(turnCtx, out, schemas.StreamEvent{Type: schemas.StreamError, Err: fmt.Errorf("turn aborted while pacing: %w", err)})
			return
		}

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 500 * time.Millisecond
		bo.MaxInterval = 15 * time.Second

		var lastErr error
		attempts := 0
		for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
			attempts = attempt
			if attempt > 1 {
				// Any chunks the consumer accumulated from the failed attempt
				// must be discarded before new ones arrive.
				if !send(turnCtx, out, schemas.StreamEvent{Type: schemas.StreamRetry}) {
					return
				}
				if !sleepCtx(turnCtx, bo.NextBackOff()) {
					lastErr = turnCtx.Err()
					break
				}
			}

			text, err := c.attempt(turnCtx, req, func(delta string) {
				send(turnCtx, out, schemas.StreamEvent{Type: schemas.StreamChunk, Delta: delta})
			})
			if err == nil {
				send(turnCtx, out, schemas.StreamEvent{Type: schemas.StreamCompleted, Response: text})
				return
			}
			lastErr = err

			var perm *backoff.PermanentError
			if errors.As(err, &perm) {
				lastErr = perm.Unwrap()
				c.logger.Error("Model turn failed permanently", zap.Int("attempt", attempt), zap.Error(lastErr))
				break
			}
			if turnCtx.Err() != nil {
				break
			}
			c.logger.Warn("Model turn attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.cfg.MaxAttempts),
				zap.Error(err))
		}

		send(turnCtx, out, schemas.StreamEvent{Type: schemas.StreamError, Err: fmt.Errorf("model turn failed after %d attempt(s): %w", attempts, lastErr)})
	}()

	return out, nil
}

// send delivers one event, preferring buffer space so terminal events still
// reach a live consumer after the turn context ends. It gives up only when the
// channel is full and the context is done, which is the signature of a
// consumer that abandoned the stream.
func send(ctx context.Context, out chan<- schemas.StreamEvent, ev schemas.StreamEvent) bool {
	select {
	case out <- ev:
		return true
	default:
	}
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// sleepCtx waits for d, reporting false when the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
