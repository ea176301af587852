package models

// Message roles as exchanged with the conversation backend and the UI.
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// Message is one conversation turn in the backend's wire shape:
// {"type":"human"|"ai","data":{"content":"..."}}.
type Message struct {
	Type string      `json:"type"`
	Data MessageData `json:"data"`
}

type MessageData struct {
	Content string `json:"content"`
}

// Human builds a human turn.
func Human(content string) Message {
	return Message{Type: RoleHuman, Data: MessageData{Content: content}}
}

// AI builds an assistant turn.
func AI(content string) Message {
	return Message{Type: RoleAI, Data: MessageData{Content: content}}
}
