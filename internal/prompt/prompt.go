// Package prompt assembles the message list for one completion request:
// history recalled under a token budget first, rendered template entries
// after.
package prompt

import (
	"context"
	"fmt"
	"io"

	"github.com/valyala/fasttemplate"

	"github.com/hanbit-ai/chatmemory-go/internal/history"
)

// DefaultMaxTokens bounds the recalled history when no budget is given.
const DefaultMaxTokens = 1000

// Recaller is the slice of the history store the template needs.
type Recaller interface {
	HistoryWithTokenLimitContext(ctx context.Context, scope history.Scope, maxTokens int) ([]history.Turn, error)
}

// Entry is one templated message. Text may contain {name} placeholders
// filled from the vars passed to Format.
type Entry struct {
	Role history.Role
	Text string
}

// Template renders a prompt. Recalled turns come back verbatim as the
// leading portion of the result; the template entries follow.
type Template struct {
	Entries   []Entry
	Memory    Recaller // optional; nil skips recall
	MaxTokens int      // recall budget; DefaultMaxTokens when zero
}

// Format returns the ordered message list for one completion request.
// Store failures propagate unchanged.
func (t *Template) Format(ctx context.Context, scope history.Scope, vars map[string]any) ([]history.Turn, error) {
	budget := t.MaxTokens
	if budget == 0 {
		budget = DefaultMaxTokens
	}

	var turns []history.Turn
	if t.Memory != nil {
		recalled, err := t.Memory.HistoryWithTokenLimitContext(ctx, scope, budget)
		if err != nil {
			return nil, err
		}
		turns = append(turns, recalled...)
	}

	for _, e := range t.Entries {
		rendered, err := render(e.Text, vars)
		if err != nil {
			return nil, err
		}
		turns = append(turns, history.Turn{Role: e.Role, Content: rendered})
	}
	return turns, nil
}

func render(text string, vars map[string]any) (string, error) {
	tpl, err := fasttemplate.NewTemplate(text, "{", "}")
	if err != nil {
		return "", fmt.Errorf("prompt: parse template: %w", err)
	}
	out, err := tpl.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		v, ok := vars[tag]
		if !ok {
			return 0, fmt.Errorf("prompt: no value for placeholder %q", tag)
		}
		return fmt.Fprintf(w, "%v", v)
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
