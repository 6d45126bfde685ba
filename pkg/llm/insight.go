package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Insighter turns a typed training summary into a short prose explanation.
type Insighter interface {
	Insight(ctx context.Context, problemType string, summary interface{}) (string, error)
}

const systemPrompt = "You are a data analyst. Explain model results to a business user in at most five sentences. " +
	"Mention the most important metric and one practical next step. Do not invent numbers."

func (c *Client) Insight(ctx context.Context, problemType string, summary interface{}) (string, error) {
	body, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	// keep the prompt small; large result payloads are truncated
	if len(body) > 6000 {
		body = body[:6000]
	}
	return c.Chat(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Problem type: %s\nResults (JSON): %s", problemType, body)},
	})
}

// Disabled returns no insight; training treats it as advisory.
type Disabled struct{}

func (Disabled) Insight(context.Context, string, interface{}) (string, error) {
	return "", nil
}
