package models

// Role identifies who produced a message inside the memory window.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in the recent-conversation window. Messages are
// immutable once appended and are only ever persisted as part of a batch.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
