package repository

import (
	"context"
	"encoding/json"
	"time"

	messaging "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/domain"
)

// MemberRecord is a member row as the backend returns it. The joined profile
// relation arrives raw because its shape varies by query path; callers resolve
// it through messaging.NormalizeProfile.
type MemberRecord struct {
	messaging.Member
	ProfileRaw json.RawMessage
}

// MessageRecord is a message row with its raw joined sender relation.
type MessageRecord struct {
	messaging.Message
	SenderRaw json.RawMessage
}

// ThreadRecord is a full conversation fetch: the row, every member, and the
// complete history ordered ascending by created_at.
type ThreadRecord struct {
	Conversation messaging.Conversation
	Members      []MemberRecord
	Messages     []MessageRecord
}

// InboxRecord is a conversation summary for the directory: members plus the
// most recent message, if any.
type InboxRecord struct {
	Conversation messaging.Conversation
	Members      []MemberRecord
	LastMessage  *MessageRecord
}

// MessagingStore defines the remote data-service operations the messaging
// core consumes. Implementations must be concurrency-safe; all methods are
// context-aware so callers can bound them.
type MessagingStore interface {
	// ResolveDirectConversation invokes the backend's atomic create-or-get
	// primitive for an unordered user pair and returns its raw response.
	// The primitive answers either a bare identifier or a wrapper object;
	// normalization is the caller's job (messaging.NormalizeConversationID).
	ResolveDirectConversation(ctx context.Context, selfID, otherID string) (json.RawMessage, error)

	// FetchConversation returns the conversation, its members, and the full
	// message history ordered ascending by created_at.
	FetchConversation(ctx context.Context, conversationID string) (*ThreadRecord, error)

	// ListConversations returns every conversation userID is a member of,
	// each with its most recent message.
	ListConversations(ctx context.Context, userID string) ([]InboxRecord, error)

	// InsertMessage persists a message and returns the created record with
	// the joined sender profile.
	InsertMessage(ctx context.Context, conversationID, senderID, text string) (*MessageRecord, error)

	// FetchMessage re-fetches a single message by id with its joined sender;
	// used when a realtime event carries only a partial payload.
	FetchMessage(ctx context.Context, messageID string) (*MessageRecord, error)

	// UpdateMemberReadState writes the read-state watermark for one member.
	// Last write wins; no ordering guarantee beyond that.
	UpdateMemberReadState(ctx context.Context, conversationID, userID string, lastReadAt time.Time) error
}

// SocialStore exposes the read-only social graph and profile directory the
// eligibility gate and the inbox need.
type SocialStore interface {
	ListFollowing(ctx context.Context, userID string) ([]string, error)
	ListFollowers(ctx context.Context, userID string) ([]string, error)

	// GetProfiles resolves profiles for the given ids, newest profile first,
	// optionally restricted to usernames containing filter (case-insensitive).
	GetProfiles(ctx context.Context, ids []string, filter string, limit int) ([]messaging.Profile, error)

	GetProfile(ctx context.Context, userID string) (*messaging.Profile, error)
}
