package usecase

import (
	"context"
	"sort"
	"time"

	messaging "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/domain"
	repository "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/port"
	"github.com/sevenatma743-beep/streetconnect/pkg/apperr"
)

// ListInboxInput identifies the user whose conversation directory to load.
type ListInboxInput struct {
	UserID string
}

// InboxEntry is one directory row: the peer, the preview, and the unread flag.
// Invalid marks a conversation whose member count is not exactly two; it is
// surfaced degraded rather than dropped or fatal.
type InboxEntry struct {
	ConversationID string             `json:"conversation_id"`
	Peer           *messaging.Profile `json:"peer,omitempty"`
	LastMessage    *messaging.Message `json:"last_message,omitempty"`
	LastActivityAt time.Time          `json:"last_activity_at"`
	Unread         bool               `json:"unread"`
	Invalid        bool               `json:"invalid,omitempty"`
}

// ListInboxUseCase aggregates every conversation the user is a member of,
// sorted by recency: last message time, falling back to the conversation's
// own activity timestamp when no messages exist yet.
type ListInboxUseCase struct {
	Store repository.MessagingStore
}

func NewListInboxUseCase(store repository.MessagingStore) *ListInboxUseCase {
	return &ListInboxUseCase{Store: store}
}

func (uc *ListInboxUseCase) Execute(ctx context.Context, in ListInboxInput) ([]InboxEntry, error) {
	if in.UserID == "" {
		return nil, apperr.ErrMissingUser
	}

	records, err := uc.Store.ListConversations(ctx, in.UserID)
	if err != nil {
		return nil, apperr.ErrInboxLoad(err)
	}

	entries := make([]InboxEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, uc.buildEntry(rec, in.UserID))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastActivityAt.After(entries[j].LastActivityAt)
	})
	return entries, nil
}

func (uc *ListInboxUseCase) buildEntry(rec repository.InboxRecord, selfID string) InboxEntry {
	entry := InboxEntry{
		ConversationID: rec.Conversation.ID,
		LastActivityAt: rec.Conversation.LastActivityAt,
	}

	if len(rec.Members) != 2 {
		entry.Invalid = true
		return entry
	}

	var self messaging.Member
	for _, m := range rec.Members {
		member := memberFromRecord(m)
		if member.UserID == selfID {
			self = member
		} else {
			entry.Peer = member.Profile
		}
	}

	if rec.LastMessage != nil {
		msg := messageFromRecord(*rec.LastMessage)
		entry.LastMessage = &msg
		entry.LastActivityAt = msg.CreatedAt
		entry.Unread = messaging.Unread(msg, self.LastReadAt, selfID)
	}
	return entry
}
