package history

// chat_history is an on-disk contract shared with data written by earlier
// deployments; column names and types must not change.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS chat_history (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    TEXT NOT NULL,
		orgn_id    TEXT NOT NULL,
		session_id TEXT NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		timestamp  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_chat_history_scope
		ON chat_history (user_id, orgn_id, session_id, timestamp, id)`,
}
