package messaging

import "time"

// Conversation is the container for a direct message thread.
// Exactly two distinct members are expected; anything else is treated as
// corrupted data and rendered degraded, never fatal.
type Conversation struct {
	ID             string    `json:"id" db:"id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at" db:"last_activity_at"`
}

// Member captures per-user membership and the read-state watermark.
// Primary key: (ConversationID, UserID)
type Member struct {
	ConversationID string     `json:"conversation_id" db:"conversation_id"`
	UserID         string     `json:"user_id" db:"user_id"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty" db:"last_read_at"`
	JoinedAt       time.Time  `json:"joined_at" db:"joined_at"`
	Profile        *Profile   `json:"profile,omitempty"`
}

// Profile is the read-only projection of a user this core needs.
type Profile struct {
	ID        string `json:"id" db:"id"`
	Username  string `json:"username" db:"username"`
	AvatarURL string `json:"avatar_url" db:"avatar_url"`
}
