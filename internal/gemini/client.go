// Package gemini wraps the Gemini generation endpoint with bounded
// retry-with-backoff on rate-limit responses.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// ErrRateLimited is returned after all retry attempts hit the backend's
// rate limit. Callers should tell the user to wait and try again.
var ErrRateLimited = errors.New("API rate limit exceeded. Please wait a minute and try again")

const (
	maxAttempts  = 3
	initialDelay = time.Second
)

// Citation is one grounding source returned alongside search-backed text.
type Citation struct {
	Title string
	URI   string
}

// Request describes one generation call. Parts carry the prompt text and
// any inline file payloads. Schema and UseSearch are mutually exclusive:
// the backend rejects a response schema combined with the search tool.
type Request struct {
	Parts       []*genai.Part
	Schema      *genai.Schema
	Temperature *float32
	UseSearch   bool
}

// Response is the decoded backend reply.
type Response struct {
	Text      string
	Citations []Citation
}

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// Client dispatches generation requests to a fixed model with retry on
// rate limiting. It holds no per-request state and is safe for sequential
// reuse across operations.
type Client struct {
	model    string
	generate generateFunc
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Client for the given API key and model name.
func New(ctx context.Context, apiKey, modelName string) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return &Client{
		model: modelName,
		generate: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return gc.Models.GenerateContent(ctx, model, contents, cfg)
		},
		sleep: sleepCtx,
	}, nil
}

// Generate sends one request, retrying up to maxAttempts times on rate-limit
// errors with exponential backoff (1s, 2s between attempts). Any other
// failure propagates immediately. All requests here are compute-only, so
// retrying is always safe.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	cfg := &genai.GenerateContentConfig{Temperature: req.Temperature}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = req.Schema
	}
	if req.UseSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: req.Parts}}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.generate(ctx, c.model, contents, cfg)
		if err == nil {
			return decodeResponse(resp)
		}
		if !isRateLimited(err) {
			return nil, fmt.Errorf("generate content: %w", err)
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		delay := initialDelay << (attempt - 1)
		slog.Warn("rate limit hit, retrying", "delay", delay, "attempt", attempt, "max_attempts", maxAttempts)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w (last error: %v)", ErrRateLimited, lastErr)
}

func decodeResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}
	out := &Response{Text: resp.Text()}
	gm := resp.Candidates[0].GroundingMetadata
	if gm != nil {
		for _, chunk := range gm.GroundingChunks {
			if chunk.Web == nil || chunk.Web.URI == "" || chunk.Web.Title == "" {
				continue
			}
			out.Citations = append(out.Citations, Citation{Title: chunk.Web.Title, URI: chunk.Web.URI})
		}
	}
	return out, nil
}

func isRateLimited(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
