package history

import (
	"context"
	"database/sql"
	"fmt"
)

// Both execution modes funnel into the helpers below; business rules live
// here once. Every helper checks a connection out of the engine's pool for
// the duration of the call and releases it on every exit path.

const (
	insertSQL = `INSERT INTO chat_history (user_id, orgn_id, session_id, role, content)
		VALUES (?, ?, ?, ?, ?)`

	selectSQL = `SELECT role, content FROM chat_history
		WHERE user_id = ? AND orgn_id = ? AND session_id = ?
		ORDER BY timestamp ASC, id ASC`

	deleteSQL = `DELETE FROM chat_history
		WHERE user_id = ? AND orgn_id = ? AND session_id = ?`
)

// appendAll writes the batch inside one transaction. Any failure rolls the
// whole batch back and the original cause comes back inside a
// TransactionError.
func appendAll(ctx context.Context, db *sql.DB, msgs []Message, scope Scope) error {
	if db == nil {
		return ErrUninitialized
	}
	if len(msgs) == 0 {
		return fmt.Errorf("history: append batch: no messages")
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("history: acquire session: %w", err)
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin transaction: %w", err)
	}
	for _, msg := range msgs {
		rec := msg.Record(scope)
		if _, err := tx.ExecContext(ctx, insertSQL,
			rec.UserID, rec.OrgnID, rec.SessionID, string(rec.Role), rec.Content,
		); err != nil {
			_ = tx.Rollback()
			return &TransactionError{Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &TransactionError{Err: err}
	}
	return nil
}

func selectTurns(ctx context.Context, db *sql.DB, scope Scope) ([]Turn, error) {
	if db == nil {
		return nil, ErrUninitialized
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("history: acquire session: %w", err)
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, selectSQL, scope.UserID, scope.OrgnID, scope.SessionID)
	if err != nil {
		return nil, fmt.Errorf("history: query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	turns := []Turn{}
	for rows.Next() {
		var (
			role string
			t    Turn
		)
		if err := rows.Scan(&role, &t.Content); err != nil {
			return nil, fmt.Errorf("history: scan row: %w", err)
		}
		t.Role = Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: read rows: %w", err)
	}
	return turns, nil
}

func clearAll(ctx context.Context, db *sql.DB, scope Scope) error {
	if db == nil {
		return ErrUninitialized
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("history: acquire session: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, deleteSQL, scope.UserID, scope.OrgnID, scope.SessionID); err != nil {
		return fmt.Errorf("history: clear history: %w", err)
	}
	return nil
}

// truncate applies the prefix-greedy budget policy: accumulate oldest
// first while the running sum stays at or below maxTokens, stop at the
// first record that would overshoot. Later, smaller records are never
// slotted in. A budget of zero or less keeps nothing.
func (s *Store) truncate(turns []Turn, maxTokens int) ([]Turn, error) {
	if maxTokens <= 0 {
		return []Turn{}, nil
	}
	if s.counter == nil {
		return nil, fmt.Errorf("history: no token counter configured")
	}

	kept := []Turn{}
	total := 0
	for _, t := range turns {
		cost := s.counter.Count(t.Content)
		if total+cost > maxTokens {
			break
		}
		total += cost
		kept = append(kept, t)
	}
	return kept, nil
}
