package models

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one message of a transcript conversation.
type ChatTurn struct {
	Role    Role   `bson:"role" json:"role"`
	Content string `bson:"content" json:"content"`
}
