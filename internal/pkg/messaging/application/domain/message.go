package messaging

import (
	"errors"
	"strings"
	"time"
)

// Message is an immutable log entry in a conversation
type Message struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	SenderID       string    `json:"sender_id" db:"sender_id"`
	Text           string    `json:"text" db:"text"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	Sender         *Profile  `json:"sender,omitempty"` // joined sender profile; nil when the backend omitted it
}

func NewMessage(m Message) (*Message, error) {
	if m.ConversationID == "" || m.SenderID == "" {
		return nil, errors.New("conversation_id and sender_id are required")
	}

	m.Text = strings.TrimSpace(m.Text)
	if m.Text == "" {
		return nil, errors.New("message text cannot be empty")
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	return &m, nil
}
