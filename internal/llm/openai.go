// Package llm is the reasoning-service client. The service is any
// OpenAI-compatible chat endpoint; replies follow a strict JSON contract
// carrying the answer text and the detected conversation language.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are a helpful, concise voice assistant for a small business.
Detect the language of the customer's latest message (English or Hindi) and answer in that language.
Respond with ONLY a JSON object, no markdown, of the form:
{"answer": "<your spoken answer>", "language": "<English|Hindi>"}
Keep answers short enough to speak aloud.`

// Reply is one reasoning response: the text to speak and the detected
// conversation language.
type Reply struct {
	Answer   string `json:"answer"`
	Language string `json:"language"`
}

// Message is one prior conversation turn handed back as context.
type Message struct {
	Role string // "user" or "assistant"
	Text string
}

// Client calls the reasoning service.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient constructs a reasoning client. baseURL may point at any
// OpenAI-compatible endpoint; empty means the default.
func NewClient(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

// Answer sends the latest user text plus the full turn history and returns
// the parsed reply. The session id is forwarded for request correlation.
func (c *Client) Answer(ctx context.Context, sessionID string, history []Message, latest string) (Reply, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: latest})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
		User:     sessionID,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("reasoning call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, fmt.Errorf("reasoning: empty choices")
	}
	return parseReply(resp.Choices[0].Message.Content)
}

// parseReply extracts the JSON contract from the raw model output,
// tolerating markdown code fences and surrounding prose.
func parseReply(raw string) (Reply, error) {
	txt := strings.TrimSpace(raw)
	if i := strings.Index(txt, "{"); i >= 0 {
		if j := strings.LastIndex(txt, "}"); j > i {
			txt = txt[i : j+1]
		}
	}
	var r Reply
	if err := json.Unmarshal([]byte(txt), &r); err != nil {
		return Reply{}, fmt.Errorf("reasoning: malformed reply: %w", err)
	}
	r.Answer = strings.TrimSpace(r.Answer)
	r.Language = strings.TrimSpace(r.Language)
	return r, nil
}
