package messaging

import (
	"errors"
	"sort"
	"time"
)

// Domain-level errors for thread behaviors
var (
	ErrThreadMismatch  = errors.New("messaging: conversation/message mismatch")
	ErrNotMember       = errors.New("messaging: user is not a member of the conversation")
	ErrCorruptedThread = errors.New("messaging: conversation does not have exactly two members")
)

// Thread is the domain aggregate for an open conversation: the conversation
// row, its members, and the in-memory message log.
//
// Notes:
//   - This aggregate is intentionally minimal and in-memory; the session layer
//     hydrates it from a history fetch before invoking its behaviors.
//   - The log keeps the dedup invariant: no two entries share an id, whatever
//     mix of history loads, confirmed sends, and realtime appends produced it.
//   - The log is re-sorted by CreatedAt after every append, so multi-device
//     concurrent sends never leave it out of order.
type Thread struct {
	Conversation Conversation
	Members      map[string]Member // keyed by userID
	messages     []Message
	index        map[string]struct{} // message IDs present in the log
}

// NewThread builds an aggregate from a conversation and its member rows.
func NewThread(conv Conversation, members []Member) *Thread {
	t := &Thread{
		Conversation: conv,
		Members:      make(map[string]Member, len(members)),
		index:        make(map[string]struct{}),
	}
	for _, m := range members {
		t.Members[m.UserID] = m
	}
	return t
}

// Valid reports whether the thread has the exact two-member shape of a direct
// conversation. Invalid threads are rendered degraded, not dropped.
func (t *Thread) Valid() bool {
	return t != nil && len(t.Members) == 2
}

// HasMember tells whether userID is part of this thread.
func (t *Thread) HasMember(userID string) bool {
	if t == nil || t.Members == nil {
		return false
	}
	_, ok := t.Members[userID]
	return ok
}

// Peer returns the member that is not selfID. For corrupted threads (member
// count != 2) it returns false.
func (t *Thread) Peer(selfID string) (Member, bool) {
	if !t.Valid() {
		return Member{}, false
	}
	for id, m := range t.Members {
		if id != selfID {
			return m, true
		}
	}
	return Member{}, false
}

// SeedHistory replaces the log with a history fetch, deduplicated by id and
// sorted ascending by CreatedAt.
func (t *Thread) SeedHistory(msgs []Message) {
	t.messages = t.messages[:0]
	t.index = make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, dup := t.index[m.ID]; dup {
			continue
		}
		t.index[m.ID] = struct{}{}
		t.messages = append(t.messages, m)
	}
	t.sortLog()
}

// Append adds a message to the log if it belongs to this conversation and is
// not already present. It reports whether the log changed.
func (t *Thread) Append(m Message) (bool, error) {
	if m.ConversationID != "" && t.Conversation.ID != "" && m.ConversationID != t.Conversation.ID {
		return false, ErrThreadMismatch
	}
	if _, dup := t.index[m.ID]; dup {
		return false, nil
	}
	t.index[m.ID] = struct{}{}
	t.messages = append(t.messages, m)
	t.sortLog()
	return true, nil
}

// Contains reports whether a message with the given id is already in the log.
func (t *Thread) Contains(messageID string) bool {
	_, ok := t.index[messageID]
	return ok
}

// Messages returns a copy of the ordered log.
func (t *Thread) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages in the log.
func (t *Thread) Len() int { return len(t.messages) }

// Latest returns the most recent message, if any.
func (t *Thread) Latest() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// MarkRead advances the in-memory watermark for userID. The persisted
// watermark is written by the read-state use case; this keeps the hydrated
// aggregate consistent with it.
func (t *Thread) MarkRead(userID string, at time.Time) {
	m, ok := t.Members[userID]
	if !ok {
		return
	}
	at = at.UTC()
	m.LastReadAt = &at
	t.Members[userID] = m
}

// UnreadFor applies the unread predicate for userID against the current log.
func (t *Thread) UnreadFor(userID string) bool {
	latest, ok := t.Latest()
	if !ok {
		return false
	}
	m, member := t.Members[userID]
	if !member {
		return false
	}
	return Unread(latest, m.LastReadAt, userID)
}

func (t *Thread) sortLog() {
	sort.SliceStable(t.messages, func(i, j int) bool {
		if t.messages[i].CreatedAt.Equal(t.messages[j].CreatedAt) {
			return t.messages[i].ID < t.messages[j].ID
		}
		return t.messages[i].CreatedAt.Before(t.messages[j].CreatedAt)
	})
}
