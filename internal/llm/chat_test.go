package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/hanbit-ai/chatmemory-go/internal/config"
	"github.com/hanbit-ai/chatmemory-go/internal/history"
)

type mockClient struct {
	resp openai.ChatCompletionResponse
	err  error
	got  openai.ChatCompletionRequest
}

func (m *mockClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.got = req
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	return m.resp, nil
}

func (m *mockClient) CreateChatCompletionStream(context.Context, openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error) {
	return nil, errors.New("not implemented")
}

var turns = []history.Turn{
	{Role: history.RoleSystem, Content: "You are a helpful assistant."},
	{Role: history.RoleUser, Content: "hi"},
}

func TestGenerate_MapsTurnsAndModelParams(t *testing.T) {
	mock := &mockClient{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "hello"}},
		},
	}}
	chat := NewChat(mock, config.LLMConfig{Model: "gpt-4o-mini", Temperature: 0.7, MaxTokens: 128})

	reply, err := chat.Generate(context.Background(), turns)
	require.NoError(t, err)
	require.Equal(t, "hello", reply)

	require.Equal(t, "gpt-4o-mini", mock.got.Model)
	require.Equal(t, 128, mock.got.MaxTokens)
	require.Len(t, mock.got.Messages, 2)
	require.Equal(t, "system", mock.got.Messages[0].Role)
	require.Equal(t, "hi", mock.got.Messages[1].Content)
}

func TestGenerate_WrapsUpstreamFailure(t *testing.T) {
	boom := errors.New("rate limited")
	chat := NewChat(&mockClient{err: boom}, config.LLMConfig{Model: "gpt"})

	_, err := chat.Generate(context.Background(), turns)
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.ErrorIs(t, err, boom)
	require.Equal(t, "generate", upstream.Op)
}

func TestGenerate_EmptyChoicesIsAnError(t *testing.T) {
	chat := NewChat(&mockClient{}, config.LLMConfig{Model: "gpt"})

	_, err := chat.Generate(context.Background(), turns)
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
}

// sseChunk renders one streaming chunk in the wire format of the
// completions API.
func sseChunk(content string) string {
	return fmt.Sprintf(`data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`+"\n\n", content)
}

func newStreamServer(t *testing.T, chunks []string) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			_, _ = fmt.Fprint(w, sseChunk(c))
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	clientCfg := openai.DefaultConfig("test-key")
	clientCfg.BaseURL = srv.URL
	return openai.NewClientWithConfig(clientCfg)
}

func TestStream_DeliversChunksInOrder(t *testing.T) {
	chat := NewChat(newStreamServer(t, []string{"Hel", "lo ", "there"}), config.LLMConfig{Model: "gpt"})

	out := make(chan string, 16)
	err := chat.Stream(context.Background(), turns, out)
	require.NoError(t, err)

	var b strings.Builder
	for c := range out {
		b.WriteString(c)
	}
	require.Equal(t, "Hello there", b.String())
}

func TestStream_ClosesChannelOnUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	clientCfg := openai.DefaultConfig("test-key")
	clientCfg.BaseURL = srv.URL
	chat := NewChat(openai.NewClientWithConfig(clientCfg), config.LLMConfig{Model: "gpt"})

	out := make(chan string, 1)
	err := chat.Stream(context.Background(), turns, out)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)

	_, open := <-out
	require.False(t, open, "out must be closed on failure")
}
