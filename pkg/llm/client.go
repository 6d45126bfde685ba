package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Client struct {
	httpClient       *http.Client
	apiKey           string
	baseURL          string
	model            string
	maxTokens        int
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type Choice struct {
	Message Message `json:"message"`
}

type ChatResponse struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

type Option func(*Client)

func WithRetry(attempts int, base, max time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.retryMaxAttempts = attempts
		}
		if base > 0 {
			c.retryBaseDelay = base
		}
		if max > 0 {
			c.retryMaxDelay = max
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// NewClient talks to an OpenAI compatible /chat/completions endpoint.
func NewClient(baseURL, apiKey, model string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		httpClient:       &http.Client{Timeout: timeout},
		apiKey:           apiKey,
		baseURL:          strings.TrimRight(baseURL, "/"),
		model:            model,
		maxTokens:        400,
		retryMaxAttempts: 3,
		retryBaseDelay:   500 * time.Millisecond,
		retryMaxDelay:    4 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Chat sends the messages and returns the first choice content.
// Network errors, 429 and 5xx are retried with capped exponential backoff.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("llm api key is missing")
	}
	if c.model == "" {
		return "", errors.New("llm model cannot be empty")
	}
	payload, err := json.Marshal(ChatRequest{Model: c.model, Messages: messages, MaxTokens: c.maxTokens, Temperature: 0.3})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.baseURL + "/chat/completions"
	backoff := c.retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		out, wait, err := c.do(ctx, endpoint, payload)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if wait < 0 || attempt == c.retryMaxAttempts {
			break
		}
		if wait == 0 {
			wait = withJitter(backoff)
			if wait > c.retryMaxDelay {
				wait = c.retryMaxDelay
			}
			backoff *= 2
		}
		logrus.WithFields(logrus.Fields{"attempt": attempt, "wait": wait}).Warnf("llm request retry: %v", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}

// do performs one attempt. wait<0 means the error is permanent, wait>0 is a server requested delay.
func (c *Client) do(ctx context.Context, endpoint string, payload []byte) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", -1, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isRetryableNetErr(err) {
			return "", 0, fmt.Errorf("http request: %w", err)
		}
		return "", -1, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp)
		if apiErr.Retryable() {
			var wait time.Duration
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := parseRetryAfterSeconds(ra); err == nil && secs > 0 {
					wait = time.Duration(secs) * time.Second
				}
			}
			if wait > c.retryMaxDelay {
				wait = c.retryMaxDelay
			}
			return "", wait, apiErr
		}
		return "", -1, apiErr
	}
	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", -1, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", -1, errors.New("llm response has no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), 0, nil
}

func decodeAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: resp.Header.Get("X-Request-Id")}
	src := raw
	if v, ok := raw["error"].(map[string]any); ok {
		src = v
	}
	if msg, ok := src["message"].(string); ok {
		apiErr.Message = msg
	}
	if code, ok := src["code"].(string); ok {
		apiErr.Code = code
	}
	return apiErr
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// parseRetryAfterSeconds accepts integer seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// withJitter applies +/- 20% jitter.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(d) * f)
}
