package domain

import "time"

// ChatTurn is one role/content pair of an assistant conversation.
type ChatTurn struct {
	Role    string `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
}

const (
	TurnSystem    = "system"
	TurnUser      = "user"
	TurnAssistant = "assistant"
)

// Assessment accumulates a user's assistant conversation.
type Assessment struct {
	ID        string         `bson:"_id"`
	UserID    string         `bson:"user_id"`
	Data      AssessmentData `bson:"data"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type AssessmentData struct {
	Messages []ChatTurn `bson:"messages"`
}
