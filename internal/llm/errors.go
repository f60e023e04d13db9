package llm

import "fmt"

// UpstreamError wraps a failure from the chat-completion API together with
// the operation that hit it. Nothing here retries; callers decide.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm: %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
