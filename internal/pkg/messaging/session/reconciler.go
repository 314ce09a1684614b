package session

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sevenatma743-beep/streetconnect/internal/infrastructure/changefeed"
	messaging "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/domain"
	"github.com/sevenatma743-beep/streetconnect/pkg/apperr"
)

// feedRecord is the partial message projection a change-feed insert carries.
type feedRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

// reconcile drains the subscription and folds each insert into the log.
// It runs until the subscription's event channel closes.
func (s *Session) reconcile(sub changefeed.Subscription) {
	defer close(s.done)
	for ev := range sub.Events() {
		s.handleInsert(ev)
	}
	if err := sub.Err(); err != nil {
		s.mu.Lock()
		open := s.state == StateOpen
		var conversationID string
		if s.thread != nil {
			conversationID = s.thread.Conversation.ID
		}
		s.mu.Unlock()
		if open {
			s.emitError(conversationID, apperr.Subscription("change feed ended", err))
		}
	}
}

func (s *Session) handleInsert(ev changefeed.InsertEvent) {
	var rec feedRecord
	if err := json.Unmarshal(ev.Record, &rec); err != nil || rec.ID == "" {
		s.deps.Log.Warn("unparseable feed record", zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return
	}
	conversationID := s.thread.Conversation.ID
	known := s.thread.Contains(rec.ID)
	s.mu.Unlock()

	if rec.ConversationID != "" && rec.ConversationID != conversationID {
		return
	}

	origin := OriginRemote
	if rec.SenderID == s.selfID {
		origin = OriginOwnEcho
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.FeedEvents.WithLabelValues(string(origin)).Inc()
	}

	// The echo of our own confirmed send is already in the log; dropping it
	// here is the dedup path that keeps sends from appearing twice. It still
	// hints a directory refresh: the send moved this conversation's preview.
	if known {
		s.emit(Event{
			Type:           EventInboxDirty,
			ConversationID: conversationID,
		})
		return
	}

	msg := s.hydrate(rec, origin)

	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return
	}
	appended, err := s.thread.Append(msg)
	if appended && origin == OriginRemote {
		s.thread.MarkRead(s.selfID, time.Now().UTC())
	}
	s.mu.Unlock()

	if err != nil || !appended {
		return
	}

	if origin == OriginRemote {
		// The user is looking at the conversation, so the new message is
		// immediately read.
		s.persistReadState(conversationID)
	}

	s.emit(Event{
		Type:           EventMessage,
		ConversationID: conversationID,
		Message:        &msg,
		Origin:         origin,
	})
	s.emit(Event{
		Type:           EventInboxDirty,
		ConversationID: conversationID,
	})
}

// hydrate resolves the full message for a feed record. Remote inserts are
// re-fetched so the log carries the sender profile; when the refetch fails
// the raw projection is used as-is rather than dropping the message.
func (s *Session) hydrate(rec feedRecord, origin Origin) messaging.Message {
	fallback := messaging.Message{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		SenderID:       rec.SenderID,
		Text:           rec.Text,
		CreatedAt:      rec.CreatedAt,
	}
	if origin == OriginOwnEcho {
		return fallback
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.deps.OpTimeout)
	defer cancel()
	msg, err := s.deps.Messages.Execute(ctx, rec.ID)
	if err != nil {
		if s.deps.Metrics != nil {
			s.deps.Metrics.RefetchFallbacks.Inc()
		}
		s.deps.Log.Warn("message refetch failed, using feed payload",
			zap.String("message_id", rec.ID),
			zap.Error(err))
		return fallback
	}
	return *msg
}
