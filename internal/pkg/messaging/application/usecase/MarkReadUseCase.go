package usecase

import (
	"context"
	"time"

	repository "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/port"
	"github.com/sevenatma743-beep/streetconnect/pkg/apperr"
)

// MarkReadInput identifies whose read watermark to advance.
type MarkReadInput struct {
	ConversationID string
	UserID         string
	At             time.Time
}

// MarkReadUseCase advances a member's last-read watermark. The watermark only
// records when the member last looked at the conversation; it never touches
// the message log.
type MarkReadUseCase struct {
	Store repository.MessagingStore
}

func NewMarkReadUseCase(store repository.MessagingStore) *MarkReadUseCase {
	return &MarkReadUseCase{Store: store}
}

func (uc *MarkReadUseCase) Execute(ctx context.Context, in MarkReadInput) error {
	if in.ConversationID == "" {
		return apperr.ErrMissingConversation
	}
	if in.UserID == "" {
		return apperr.ErrMissingUser
	}
	at := in.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if err := uc.Store.UpdateMemberReadState(ctx, in.ConversationID, in.UserID, at); err != nil {
		return apperr.Wrap(apperr.CodeLoadFailure, "mark read", err)
	}
	return nil
}
