package history

import "time"

// Role classifies who produced a turn. The persisted column is an open
// string; values written by other systems survive a round trip unchanged.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// RoleSystem appears in assembled prompts only; the store itself never
	// writes it.
	RoleSystem Role = "system"
)

// Known reports whether the role belongs to the closed set this package
// writes itself.
func (r Role) Known() bool {
	return r == RoleUser || r == RoleAssistant
}

// Scope is the (user, organization, session) triple that partitions all
// stored conversation data. It is always supplied by the caller, never
// inferred.
type Scope struct {
	UserID    string
	OrgnID    string
	SessionID string
}

// ChatRecord is one persisted turn of dialogue in the chat_history table.
// Records are immutable once written; ID and Timestamp are assigned by the
// store at insert time.
type ChatRecord struct {
	ID        int64
	UserID    string
	OrgnID    string
	SessionID string
	Role      Role
	Content   string
	Timestamp time.Time
}

// Turn is the {role, content} pair handed to prompt assembly.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Message is an in-memory dialogue turn that knows how to project itself
// into a ChatRecord for a given scope. Empty content is permitted; that is
// the caller's call.
type Message interface {
	Record(scope Scope) ChatRecord
}

// HumanMessage is a turn authored by the end user.
type HumanMessage struct {
	Content string
}

// Record projects the message into a scoped ChatRecord with the user role.
func (m HumanMessage) Record(scope Scope) ChatRecord {
	return newRecord(RoleUser, m.Content, scope)
}

// AIMessage is a turn authored by the assistant.
type AIMessage struct {
	Content string
}

// Record projects the message into a scoped ChatRecord with the assistant role.
func (m AIMessage) Record(scope Scope) ChatRecord {
	return newRecord(RoleAssistant, m.Content, scope)
}

func newRecord(role Role, content string, scope Scope) ChatRecord {
	return ChatRecord{
		UserID:    scope.UserID,
		OrgnID:    scope.OrgnID,
		SessionID: scope.SessionID,
		Role:      role,
		Content:   content,
	}
}
