package history

import "context"

// The non-blocking surface mirrors the blocking one operation for
// operation, but runs on the separately configured async engine and
// suspends on the caller's context at each store round trip. A call
// cancelled mid-flight still releases its session before returning.

// AppendContext persists one message as a single transaction.
func (s *Store) AppendContext(ctx context.Context, msg Message, scope Scope) error {
	return appendAll(ctx, s.asyncDB, []Message{msg}, scope)
}

// AppendBatchContext persists a non-empty ordered batch atomically.
func (s *Store) AppendBatchContext(ctx context.Context, msgs []Message, scope Scope) error {
	return appendAll(ctx, s.asyncDB, msgs, scope)
}

// HistoryContext returns every turn in the scope, oldest first.
func (s *Store) HistoryContext(ctx context.Context, scope Scope) ([]Turn, error) {
	return selectTurns(ctx, s.asyncDB, scope)
}

// HistoryWithTokenLimitContext returns the oldest-first prefix of the
// scoped history whose summed token cost stays within maxTokens.
func (s *Store) HistoryWithTokenLimitContext(ctx context.Context, scope Scope, maxTokens int) ([]Turn, error) {
	turns, err := selectTurns(ctx, s.asyncDB, scope)
	if err != nil {
		return nil, err
	}
	return s.truncate(turns, maxTokens)
}

// ClearHistoryContext deletes every row in the scope.
func (s *Store) ClearHistoryContext(ctx context.Context, scope Scope) error {
	return clearAll(ctx, s.asyncDB, scope)
}
