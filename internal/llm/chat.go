package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/hanbit-ai/chatmemory-go/internal/config"
	"github.com/hanbit-ai/chatmemory-go/internal/history"
)

// Chat generates completions from an ordered sequence of {role, content}
// turns. Both entry points suspend on the caller's context; upstream
// failures are wrapped in UpstreamError and surfaced, never suppressed.
type Chat struct {
	client Client
	cfg    config.LLMConfig
}

// NewChat wraps a client with the configured model parameters.
func NewChat(client Client, cfg config.LLMConfig) *Chat {
	return &Chat{client: client, cfg: cfg}
}

func (c *Chat) request(turns []history.Turn, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(t.Role),
			Content: t.Content,
		})
	}
	return openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Stream:      stream,
	}
}

// Generate returns the completed response text for the turns.
func (c *Chat) Generate(ctx context.Context, turns []history.Turn) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(turns, false))
	if err != nil {
		return "", &UpstreamError{Op: "generate", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &UpstreamError{Op: "generate", Err: fmt.Errorf("empty choices in response")}
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream sends each content chunk to out as it arrives and closes out when
// done. The first upstream failure aborts the stream and is returned
// wrapped; a cancelled context returns the cancellation cause.
func (c *Chat) Stream(ctx context.Context, turns []history.Turn, out chan<- string) error {
	defer close(out)

	stream, err := c.client.CreateChatCompletionStream(ctx, c.request(turns, true))
	if err != nil {
		return &UpstreamError{Op: "stream", Err: err}
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &UpstreamError{Op: "stream", Err: err}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			select {
			case out <- delta:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
