package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"novadream/internal/domain"
)

// Client talks to the chat-completion backend. The reply is a plain text blob;
// any embedded action directives are extracted by the caller, and output that
// carries none is perfectly valid.
type Client struct {
	client     *openai.Client
	model      string
	maxRetries int
}

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	TimeoutMS  int
	MaxRetries int
}

func New(cfg Config) *Client {
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.TimeoutMS > 0 {
		conf.HTTPClient = &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Client{
		client:     openai.NewClientWithConfig(conf),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
	}
}

// systemPrompt teaches the assistant the directive grammar so replies can
// carry confirmable actions.
const systemPrompt = `You are the Nova Dream OS assistant, helping with tasks, projects, finances and notes.
When the user asks you to create something, embed an action directive in your reply using this exact format on its own line:
[[ACTION:CREATE_TASK|title=...|priority=low~medium~high|description=...|date=YYYY-MM-DD]]
[[ACTION:ADD_REVENUE|amount=...|segment=...|description=...|date=YYYY-MM-DD]]
[[ACTION:CREATE_PROJECT|title=...|segment=...|description=...]]
[[ACTION:CREATE_NOTE|title=...|content=...]]
Only include parameters you know. Values must not contain | or ] characters.
The user confirms each action before it runs, so propose directives freely alongside your normal reply.`

// Complete sends the conversation history plus the new user message and
// returns the assistant's raw reply text.
func (c *Client) Complete(ctx context.Context, history []domain.ChatMessage, userMessage string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	})

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(150*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    c.model,
			Messages: messages,
		})
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("chat response has no choices")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("chat completion: %w", lastErr)
}
