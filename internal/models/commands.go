package models

// AppendIndex asks a move to place the message at the tail of the target
// bucket, which is what the plain status selector does.
const AppendIndex = -1

// MoveCommand moves a message to a status column at a position
type MoveCommand struct {
	MessageID    string `json:"messageId"`
	TargetStatus string `json:"targetStatus"`
	TargetIndex  int    `json:"targetIndex"`
}

// ToggleTagCommand toggles one tag on a message
type ToggleTagCommand struct {
	MessageID string `json:"messageId"`
	TagID     string `json:"tagId"`
}

// AppendResponseCommand appends a reply to a message thread
type AppendResponseCommand struct {
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
	Author    string `json:"author,omitempty"`
}
