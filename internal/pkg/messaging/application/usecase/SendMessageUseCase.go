package usecase

import (
	"context"
	"strings"

	messaging "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/domain"
	repository "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/port"
	"github.com/sevenatma743-beep/streetconnect/pkg/apperr"
)

// SendMessageInput carries the data needed to send a new message.
type SendMessageInput struct {
	ConversationID string
	SenderID       string
	Text           string
}

// SendMessageUseCase persists a message and returns the created record with
// the joined sender profile. Callers append to their local log only from the
// returned record, never optimistically, so a failed send can not leave a
// phantom entry.
type SendMessageUseCase struct {
	Store repository.MessagingStore
}

func NewSendMessageUseCase(store repository.MessagingStore) *SendMessageUseCase {
	return &SendMessageUseCase{Store: store}
}

func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*messaging.Message, error) {
	if in.ConversationID == "" {
		return nil, apperr.ErrMissingConversation
	}
	if in.SenderID == "" {
		return nil, apperr.ErrMissingUser
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, apperr.ErrEmptyMessage
	}

	rec, err := uc.Store.InsertMessage(ctx, in.ConversationID, in.SenderID, text)
	if err != nil {
		return nil, apperr.ErrMessageSend(err)
	}
	msg := messageFromRecord(*rec)
	return &msg, nil
}
