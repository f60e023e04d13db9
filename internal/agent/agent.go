// Package agent orchestrates one chat exchange: recall and render the
// prompt, generate a completion, persist the human/assistant pair as one
// atomic batch. The flow is driven by a finite state machine so each phase
// has exactly one entry action and failures land in a single error state.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qmuntal/stateless"

	"github.com/hanbit-ai/chatmemory-go/internal/history"
	"github.com/hanbit-ai/chatmemory-go/internal/logger"
	"github.com/hanbit-ai/chatmemory-go/internal/prompt"
)

// FSM States
type FSMState stateless.State

var (
	StateRecallingHistory FSMState = "RecallingHistory"
	StateAwaitingLLM      FSMState = "AwaitingLLMResponse"
	StatePersisting       FSMState = "PersistingExchange"
	StateDone             FSMState = "Done"  // Terminal: successful completion
	StateError            FSMState = "Error" // Terminal: error state
)

// FSM Triggers
type FSMTrigger stateless.Trigger

var (
	TriggerStart         FSMTrigger = "Start"
	TriggerPromptReady   FSMTrigger = "PromptReady"
	TriggerLLMResponded  FSMTrigger = "LLMResponded"
	TriggerPersisted     FSMTrigger = "ExchangePersisted"
	TriggerErrorOccurred FSMTrigger = "ErrorOccurred"
)

// Chat is the completion surface the agent needs.
type Chat interface {
	Generate(ctx context.Context, turns []history.Turn) (string, error)
}

// Memory is the store surface the agent needs.
type Memory interface {
	AppendBatchContext(ctx context.Context, msgs []history.Message, scope history.Scope) error
}

// Agent runs chat exchanges against one template, one completion client
// and one history store.
type Agent struct {
	chat     Chat
	memory   Memory
	template *prompt.Template
	log      *slog.Logger
}

// New creates a new agent.
func New(chat Chat, memory Memory, template *prompt.Template) *Agent {
	return &Agent{
		chat:     chat,
		memory:   memory,
		template: template,
		log:      logger.With("agent"),
	}
}

// Process runs one exchange to a terminal state and returns the
// assistant's reply. The raw input is what gets persisted as the human
// turn; vars additionally feed the template placeholders. A generation
// failure aborts before anything is written.
func (a *Agent) Process(ctx context.Context, scope history.Scope, input string, vars map[string]any) (string, error) {
	type exchange struct {
		turns   []history.Turn
		reply   string
		lastErr error
	}
	ex := &exchange{}

	merged := map[string]any{"message": input}
	for k, v := range vars {
		merged[k] = v
	}

	fsm := stateless.NewStateMachine(StateRecallingHistory)

	fsm.Configure(StateRecallingHistory).
		PermitReentry(TriggerStart). // the initial Fire lands here and runs OnEntry
		OnEntry(func(_ context.Context, _ ...any) error {
			a.log.Debug("FSM: entering RecallingHistory", "session_id", scope.SessionID)
			turns, err := a.template.Format(ctx, scope, merged)
			if err != nil {
				ex.lastErr = err
				return fsm.Fire(TriggerErrorOccurred)
			}
			ex.turns = turns
			return fsm.Fire(TriggerPromptReady)
		}).
		Permit(TriggerPromptReady, StateAwaitingLLM).
		Permit(TriggerErrorOccurred, StateError)

	fsm.Configure(StateAwaitingLLM).
		OnEntry(func(_ context.Context, _ ...any) error {
			a.log.Debug("FSM: entering AwaitingLLMResponse", "turns", len(ex.turns))
			reply, err := a.chat.Generate(ctx, ex.turns)
			if err != nil {
				ex.lastErr = err
				return fsm.Fire(TriggerErrorOccurred)
			}
			ex.reply = reply
			return fsm.Fire(TriggerLLMResponded)
		}).
		Permit(TriggerLLMResponded, StatePersisting).
		Permit(TriggerErrorOccurred, StateError)

	fsm.Configure(StatePersisting).
		OnEntry(func(_ context.Context, _ ...any) error {
			a.log.Debug("FSM: entering PersistingExchange")
			pair := []history.Message{
				history.HumanMessage{Content: input},
				history.AIMessage{Content: ex.reply},
			}
			if err := a.memory.AppendBatchContext(ctx, pair, scope); err != nil {
				ex.lastErr = err
				return fsm.Fire(TriggerErrorOccurred)
			}
			return fsm.Fire(TriggerPersisted)
		}).
		Permit(TriggerPersisted, StateDone).
		Permit(TriggerErrorOccurred, StateError)

	fsm.Configure(StateDone)
	fsm.Configure(StateError)

	// The start trigger re-enters the initial state, running its entry
	// action; transitions cascade synchronously from there.
	if err := fsm.FireCtx(ctx, TriggerStart); err != nil {
		if ex.lastErr != nil {
			return "", ex.lastErr
		}
		return "", fmt.Errorf("agent: start exchange: %w", err)
	}

	state, err := fsm.State(ctx)
	if err != nil {
		return "", fmt.Errorf("agent: read state: %w", err)
	}
	switch state {
	case StateDone:
		return ex.reply, nil
	case StateError:
		if ex.lastErr != nil {
			return "", ex.lastErr
		}
		return "", errors.New("agent: exchange failed without a recorded cause")
	default:
		return "", fmt.Errorf("agent: exchange ended in unexpected state %v", state)
	}
}
