// File: internal/modelclient/gemini.go
package modelclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/cartographer-cli/api/schemas"
	"github.com/xkilldash9x/cartographer-cli/internal/config"
)

// geminiBackend drives single streaming calls against the Gemini API.
type geminiBackend struct {
	client *genai.Client
	cfg    config.ModelConfig
	logger *zap.Logger
}

func newGeminiBackend(cfg config.ModelConfig, logger *zap.Logger) (*geminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &geminiBackend{
		client: client,
		cfg:    cfg,
		logger: logger.Named("gemini"),
	}, nil
}

// attempt performs one streaming generation call, forwarding deltas as they
// arrive and returning the accumulated response text.
func (g *geminiBackend) attempt(ctx context.Context, req schemas.TurnRequest, emit func(delta string)) (string, error) {
	contents := buildContents(req)

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPreamble(req), genai.RoleUser),
		Temperature:       genai.Ptr(g.cfg.Temperature),
	}
	if g.cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(g.cfg.MaxTokens)
	}

	var full strings.Builder
	start := time.Now()

	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.cfg.Model, contents, genCfg) {
		if err != nil {
			return "", classifyGeminiError(err)
		}
		delta := responseText(resp)
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		emit(delta)
	}

	if full.Len() == 0 {
		// An empty stream with no error usually means the prompt was blocked.
		return "", backoff.Permanent(fmt.Errorf("gemini returned an empty response"))
	}

	g.logger.Debug("Gemini turn complete",
		zap.Duration("duration", time.Since(start)),
		zap.Int("response_chars", full.Len()))
	return full.String(), nil
}

// buildContents converts the uniform turn request into Gemini contents:
// the conversation history followed by the new user turn, with an inline PNG
// part when the turn carries an image.
func buildContents(req schemas.TurnRequest) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, msg := range req.History {
		role := genai.Role(genai.RoleUser)
		if msg.Role == schemas.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Text)}
	if len(req.Image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Image, "image/png"))
	}
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
	return contents
}

// responseText flattens the text parts of one stream chunk.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// classifyGeminiError decides whether an attempt is worth retrying. Quota and
// transient transport failures are; bad requests and blocked prompts are not.
func classifyGeminiError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "400"), strings.Contains(msg, "invalid"):
		return backoff.Permanent(fmt.Errorf("gemini rejected the request: %w", err))
	case strings.Contains(msg, "blocked"), strings.Contains(msg, "safety"):
		return backoff.Permanent(fmt.Errorf("gemini blocked the request: %w", err))
	default:
		return fmt.Errorf("gemini stream failed: %w", err)
	}
}
