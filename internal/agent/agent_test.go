package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanbit-ai/chatmemory-go/internal/history"
	"github.com/hanbit-ai/chatmemory-go/internal/prompt"
)

type mockChat struct {
	reply string
	err   error
	got   []history.Turn
}

func (m *mockChat) Generate(_ context.Context, turns []history.Turn) (string, error) {
	m.got = turns
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

type mockMemory struct {
	appended [][]history.Message
	err      error
}

func (m *mockMemory) AppendBatchContext(_ context.Context, msgs []history.Message, _ history.Scope) error {
	if m.err != nil {
		return m.err
	}
	m.appended = append(m.appended, msgs)
	return nil
}

type fixedRecaller struct {
	turns []history.Turn
	err   error
}

func (f *fixedRecaller) HistoryWithTokenLimitContext(context.Context, history.Scope, int) ([]history.Turn, error) {
	return f.turns, f.err
}

var scope = history.Scope{UserID: "u1", OrgnID: "o1", SessionID: "s1"}

func newTemplate(mem prompt.Recaller) *prompt.Template {
	return &prompt.Template{
		Entries: []prompt.Entry{
			{Role: history.RoleSystem, Text: "You are a helpful assistant."},
			{Role: history.RoleUser, Text: "{message}"},
		},
		Memory: mem,
	}
}

func TestProcess_GeneratesAndPersistsExchange(t *testing.T) {
	chat := &mockChat{reply: "hello there"}
	mem := &mockMemory{}
	recall := &fixedRecaller{turns: []history.Turn{
		{Role: history.RoleUser, Content: "earlier"},
	}}

	a := New(chat, mem, newTemplate(recall))

	reply, err := a.Process(context.Background(), scope, "hi", nil)
	require.NoError(t, err)
	require.Equal(t, "hello there", reply)

	// Prompt carried recalled history first, then the rendered entries.
	require.Equal(t, []history.Turn{
		{Role: history.RoleUser, Content: "earlier"},
		{Role: history.RoleSystem, Content: "You are a helpful assistant."},
		{Role: history.RoleUser, Content: "hi"},
	}, chat.got)

	// The raw human turn and the reply were persisted as one batch.
	require.Len(t, mem.appended, 1)
	require.Equal(t, []history.Message{
		history.HumanMessage{Content: "hi"},
		history.AIMessage{Content: "hello there"},
	}, mem.appended[0])
}

func TestProcess_LLMFailurePersistsNothing(t *testing.T) {
	boom := errors.New("upstream down")
	chat := &mockChat{err: boom}
	mem := &mockMemory{}

	a := New(chat, mem, newTemplate(&fixedRecaller{}))

	_, err := a.Process(context.Background(), scope, "hi", nil)
	require.ErrorIs(t, err, boom)
	require.Empty(t, mem.appended)
}

func TestProcess_RecallFailureSurfaces(t *testing.T) {
	boom := errors.New("store uninitialized")
	chat := &mockChat{reply: "never used"}
	mem := &mockMemory{}

	a := New(chat, mem, newTemplate(&fixedRecaller{err: boom}))

	_, err := a.Process(context.Background(), scope, "hi", nil)
	require.ErrorIs(t, err, boom)
	require.Nil(t, chat.got)
	require.Empty(t, mem.appended)
}

func TestProcess_PersistFailureSurfaces(t *testing.T) {
	boom := errors.New("disk full")
	chat := &mockChat{reply: "generated fine"}
	mem := &mockMemory{err: boom}

	a := New(chat, mem, newTemplate(&fixedRecaller{}))

	_, err := a.Process(context.Background(), scope, "hi", nil)
	require.ErrorIs(t, err, boom)
}

func TestProcess_TemplateVarsReachThePrompt(t *testing.T) {
	chat := &mockChat{reply: "ok"}
	mem := &mockMemory{}
	tpl := &prompt.Template{
		Entries: []prompt.Entry{
			{Role: history.RoleSystem, Text: "Answer in {country}."},
			{Role: history.RoleUser, Text: "{message}"},
		},
	}

	a := New(chat, mem, tpl)

	_, err := a.Process(context.Background(), scope, "hi", map[string]any{"country": "japanese"})
	require.NoError(t, err)
	require.Equal(t, "Answer in japanese.", chat.got[0].Content)
}
