package usecase

import (
	"context"

	messaging "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/domain"
	repository "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/port"
	"github.com/sevenatma743-beep/streetconnect/pkg/apperr"
)

// GetMessageUseCase refetches a single message by id, sender profile joined.
// The realtime reconciler uses it to hydrate change-feed events whose raw
// payload lacks the sender.
type GetMessageUseCase struct {
	Store repository.MessagingStore
}

func NewGetMessageUseCase(store repository.MessagingStore) *GetMessageUseCase {
	return &GetMessageUseCase{Store: store}
}

func (uc *GetMessageUseCase) Execute(ctx context.Context, messageID string) (*messaging.Message, error) {
	if messageID == "" {
		return nil, apperr.InvalidArg("message id is required")
	}
	rec, err := uc.Store.FetchMessage(ctx, messageID)
	if err != nil {
		return nil, apperr.Load("failed to load message", err)
	}
	msg := messageFromRecord(*rec)
	return &msg, nil
}
