// Package openrouter is a minimal chat-completions client for the
// OpenRouter API. It reports per-call cost by querying the generation
// details endpoint, falling back to a local estimate when that endpoint
// is unavailable.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/motorbase/dtckit/pkg/fn"
)

// DefaultBaseURL is the public OpenRouter API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Config holds client settings. APIKey and Model are required.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string

	// Referer and Title populate OpenRouter's attribution headers.
	Referer string
	Title   string

	Temperature float64
	MaxTokens   int

	// RequestTimeout bounds one completion call end to end.
	RequestTimeout time.Duration

	// CallsPerSecond paces requests. Zero means no pacing.
	CallsPerSecond float64

	// Fallback pricing (USD per million tokens) used when the generation
	// details endpoint does not answer.
	PromptCostPerM     float64
	CompletionCostPerM float64
}

func (c *Config) withDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 120 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage is the accounting footprint of one completion.
type Usage struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	NativeTokens     int
	Cost             float64
	CostEstimated    bool
}

// Completion is one model answer plus its usage.
type Completion struct {
	ID    string
	Text  string
	Usage Usage
}

// Client calls the OpenRouter chat completions API.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// New builds a client. The HTTP transport is traced.
func New(cfg Config, log *slog.Logger) *Client {
	cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	var limiter *rate.Limiter
	if cfg.CallsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.CallsPerSecond), 1)
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: limiter,
		log:     log.With("component", "openrouter"),
	}
}

// Model returns the configured model slug.
func (c *Client) Model() string { return c.cfg.Model }

// Complete sends a single user prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (Completion, error) {
	return c.Chat(ctx, []Message{{Role: "user", Content: prompt}})
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Chat sends a full message list and returns the first choice.
func (c *Client) Chat(ctx context.Context, messages []Message) (Completion, error) {
	if c.cfg.APIKey == "" {
		return Completion{}, fmt.Errorf("openrouter: api key not configured")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Completion{}, err
		}
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("openrouter: encode request: %w", err)
	}

	raw, err := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[[]byte] {
		return c.send(ctx, body)
	}).Unwrap()
	if err != nil {
		return Completion{}, err
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return Completion{}, fmt.Errorf("openrouter: decode response: %w", err)
	}
	if cr.Error != nil {
		return Completion{}, fmt.Errorf("openrouter: api error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return Completion{}, fmt.Errorf("openrouter: empty choices")
	}

	out := Completion{
		ID:   cr.ID,
		Text: cr.Choices[0].Message.Content,
		Usage: Usage{
			Model:            c.cfg.Model,
			PromptTokens:     cr.Usage.PromptTokens,
			CompletionTokens: cr.Usage.CompletionTokens,
			NativeTokens:     cr.Usage.TotalTokens,
		},
	}
	c.resolveCost(ctx, &out)
	c.log.Debug("completion",
		"model", c.cfg.Model,
		"prompt_tokens", out.Usage.PromptTokens,
		"completion_tokens", out.Usage.CompletionTokens,
		"cost_usd", out.Usage.Cost,
		"cost_estimated", out.Usage.CostEstimated)
	return out, nil
}

// send performs one POST to the completions endpoint. Transport failures
// and throttling or server statuses come back as Err so the retry wrapper
// takes another pass; other statuses return the body for the parse step,
// which surfaces the API's own error message.
func (c *Client) send(ctx context.Context, body []byte) fn.Result[[]byte] {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fn.Errf[[]byte]("openrouter: build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fn.Errf[[]byte]("openrouter: request failed: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fn.Errf[[]byte]("openrouter: read response: %v", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fn.Errf[[]byte]("openrouter: status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	return fn.Ok(raw)
}

type generationResponse struct {
	Data struct {
		TotalCost              float64 `json:"total_cost"`
		NativeTokensPrompt     int     `json:"native_tokens_prompt"`
		NativeTokensCompletion int     `json:"native_tokens_completion"`
	} `json:"data"`
}

// resolveCost fills in the completion's cost, preferring the generation
// details endpoint. Details can lag the completion, so missed lookups are
// retried briefly before falling back to the estimate.
func (c *Client) resolveCost(ctx context.Context, comp *Completion) {
	if comp.ID != "" {
		for attempt := 0; attempt < 3 && ctx.Err() == nil; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(500 * time.Millisecond):
				}
			}
			gen, err := c.generation(ctx, comp.ID)
			if err != nil {
				continue
			}
			comp.Usage.Cost = gen.Data.TotalCost
			if native := gen.Data.NativeTokensPrompt + gen.Data.NativeTokensCompletion; native > 0 {
				comp.Usage.NativeTokens = native
			}
			return
		}
		c.log.Debug("generation details unavailable, estimating cost", "id", comp.ID)
	}
	comp.Usage.Cost = c.estimateCost(comp.Usage)
	comp.Usage.CostEstimated = true
}

func (c *Client) generation(ctx context.Context, id string) (*generationResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/generation?id="+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generation lookup status %d", resp.StatusCode)
	}
	var gr generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, err
	}
	return &gr, nil
}

func (c *Client) estimateCost(u Usage) float64 {
	return float64(u.PromptTokens)/1e6*c.cfg.PromptCostPerM +
		float64(u.CompletionTokens)/1e6*c.cfg.CompletionCostPerM
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
