package task

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	qport "github.com/sevenatma743-beep/streetconnect/internal/infrastructure/queue/port"
	"github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/usecase"
	repoAdapter "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/adapter"
	repository "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/port"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifyMessageTaskType is the queue task name for post-send notification
// fan-out within the messaging domain.
const NotifyMessageTaskType = "messaging:notify_message"

// NotifyMessageTaskPayload is the JSON payload transported via the queue.
// Kept decoupled from domain types to avoid tight coupling with JSON tags.
type NotifyMessageTaskPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
}

// EnqueueNotifyMessage schedules notification fan-out for a confirmed send.
// Enqueue failures are reported, not fatal; the message itself is already
// persisted.
func EnqueueNotifyMessage(ctx context.Context, client qport.Client, p NotifyMessageTaskPayload) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = client.Enqueue(ctx, qport.Task{Type: NotifyMessageTaskType, Payload: payload}, qport.EnqueueOption{
		Queue:     "messaging",
		MaxRetry:  10,
		UniqueTTL: time.Minute,
	})
	return err
}

// RegisterNotifyMessageTask binds the notification handler to the provided
// server.
func RegisterNotifyMessageTask(srv qport.Server, pool *pgxpool.Pool, log *zap.Logger) {
	store := repoAdapter.NewPgMessagingStore(pool)
	social := repoAdapter.NewPgSocialStore(pool)
	srv.Register(NotifyMessageTaskType, notifyMessageHandler(store, social, log))
}

// notifyMessageHandler refetches the message, resolves the sender profile,
// and logs the delivery intent; push-provider wiring hangs off this point.
func notifyMessageHandler(store repository.MessagingStore, social repository.SocialStore, log *zap.Logger) qport.Handler {
	return func(ctx context.Context, t qport.Task) error {
		var p NotifyMessageTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// malformed payload: do not retry indefinitely
			return err
		}

		uc := usecase.NewGetMessageUseCase(store)

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		msg, err := uc.Execute(ctx, p.MessageID)
		if err != nil {
			return err
		}

		senderName := ""
		if sender, err := social.GetProfile(ctx, msg.SenderID); err != nil {
			log.Warn("sender profile lookup failed",
				zap.String("sender_id", msg.SenderID),
				zap.Error(err))
		} else if sender != nil {
			senderName = sender.Username
		}

		log.Info("message notification",
			zap.String("message_id", msg.ID),
			zap.String("conversation_id", msg.ConversationID),
			zap.String("sender_id", msg.SenderID),
			zap.String("sender_username", senderName))
		return nil
	}
}
