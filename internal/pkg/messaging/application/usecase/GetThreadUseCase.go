package usecase

import (
	"context"
	"errors"

	messaging "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/domain"
	repository "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/port"
	"github.com/sevenatma743-beep/streetconnect/pkg/apperr"
)

// GetThreadInput wraps the conversation identifier to hydrate.
type GetThreadInput struct {
	ConversationID string
}

// GetThreadUseCase fetches a conversation with its members and full history
// and hydrates the domain aggregate: members' profiles resolved through the
// normalization accessor, history deduplicated and sorted ascending.
type GetThreadUseCase struct {
	Store repository.MessagingStore
}

func NewGetThreadUseCase(store repository.MessagingStore) *GetThreadUseCase {
	return &GetThreadUseCase{Store: store}
}

func (uc *GetThreadUseCase) Execute(ctx context.Context, in GetThreadInput) (*messaging.Thread, error) {
	if in.ConversationID == "" {
		return nil, apperr.ErrMissingConversation
	}

	rec, err := uc.Store.FetchConversation(ctx, in.ConversationID)
	if err != nil {
		if errors.Is(err, apperr.ErrConversationGone) {
			return nil, err
		}
		return nil, apperr.ErrConversationLoad(err)
	}

	members := make([]messaging.Member, 0, len(rec.Members))
	for _, m := range rec.Members {
		members = append(members, memberFromRecord(m))
	}

	thread := messaging.NewThread(rec.Conversation, members)
	history := make([]messaging.Message, 0, len(rec.Messages))
	for _, m := range rec.Messages {
		history = append(history, messageFromRecord(m))
	}
	thread.SeedHistory(history)
	return thread, nil
}
