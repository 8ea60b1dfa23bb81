package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/symptomly/apiserver/config"
	"github.com/symptomly/apiserver/internal/logging"
	"github.com/symptomly/apiserver/types"
)

const (
	maxCompletionTokens = 1000
	completionTemp      = 0.3
	healthCheckTokens   = 5
)

// OpenAIClient talks to an OpenAI-compatible chat-completions endpoint.
type OpenAIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	retry      RetryConfig
	log        logging.Logger
}

// NewOpenAIClient constructs a client from config.
func NewOpenAIClient(cfg config.AnalysisConfig, log logging.Logger) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("analysis base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("analysis API key is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse analysis base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retry := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}

	return &OpenAIClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      model,
		retry:      retry,
		log:        log,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Analyze sends the rendered prompt to the provider and returns the
// generated text. Transient failures (transport errors, 429, 5xx) are
// retried with exponential backoff until the attempt budget runs out.
func (c *OpenAIClient) Analyze(ctx context.Context, input types.SymptomInput) (string, error) {
	prompt := buildPrompt(input)

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, attempt); err != nil {
				return "", err
			}
		}

		text, err := c.complete(ctx, prompt, maxCompletionTokens)
		if err == nil {
			if strings.TrimSpace(text) == "" {
				lastErr = errors.New("provider returned empty completion")
				continue
			}
			return text, nil
		}

		if errors.Is(err, ErrRejected) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", classifyContextErr(ctx.Err())
		}

		lastErr = err
		c.log.Warn(ctx, "analysis attempt failed", "attempt", attempt+1, "error", err)
	}

	if isTimeout(lastErr) {
		return "", fmt.Errorf("%w: %v", ErrTimeout, lastErr)
	}
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// Healthy issues a minimal completion to probe the provider.
func (c *OpenAIClient) Healthy(ctx context.Context) bool {
	_, err := c.complete(ctx, "Hello", healthCheckTokens)
	return err == nil
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: completionTemp,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		if retryableStatus(resp.StatusCode) {
			return "", fmt.Errorf("provider status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("%w: provider status %d", ErrRejected, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("completion response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// sleep waits out the backoff for the given attempt, or returns early
// when the caller's context ends.
func (c *OpenAIClient) sleep(ctx context.Context, attempt int) error {
	backoff := c.retry.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * c.retry.Multiplier)
	}
	if backoff > c.retry.MaxBackoff {
		backoff = c.retry.MaxBackoff
	}
	if c.retry.Jitter > 0 {
		delta := time.Duration(rand.Float64() * c.retry.Jitter * float64(backoff))
		backoff += delta
	}

	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return classifyContextErr(ctx.Err())
	case <-timer.C:
		return nil
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func classifyContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}
