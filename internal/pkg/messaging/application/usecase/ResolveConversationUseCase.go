package usecase

import (
	"context"

	messaging "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/domain"
	repository "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/port"
	"github.com/sevenatma743-beep/streetconnect/pkg/apperr"
)

// ResolveConversationInput identifies the unordered user pair to resolve.
type ResolveConversationInput struct {
	SelfID  string
	OtherID string
}

// ResolveConversationUseCase maps a user pair to its canonical conversation id
// through the backend's atomic create-or-get primitive. The call is idempotent
// and race-safe on the backend side; this use case contributes input
// validation, response-shape normalization, and failure classification.
type ResolveConversationUseCase struct {
	Store repository.MessagingStore
}

func NewResolveConversationUseCase(store repository.MessagingStore) *ResolveConversationUseCase {
	return &ResolveConversationUseCase{Store: store}
}

// Execute returns the canonical conversation id for the pair.
//
// Failure classification: a failed call is a transport error (retryable); a
// response that normalizes to no identifier is a dedup protocol violation
// and is not retryable, since the backend answered, just not usefully.
func (uc *ResolveConversationUseCase) Execute(ctx context.Context, in ResolveConversationInput) (string, error) {
	if in.SelfID == "" || in.OtherID == "" {
		return "", apperr.ErrMissingUser
	}
	if in.SelfID == in.OtherID {
		return "", apperr.ErrSelfConversation
	}

	raw, err := uc.Store.ResolveDirectConversation(ctx, in.SelfID, in.OtherID)
	if err != nil {
		return "", apperr.Transport("create-or-get call failed", err)
	}

	id, ok := messaging.NormalizeConversationID(raw)
	if !ok {
		return "", apperr.ErrDedupNoID(string(raw))
	}
	return id, nil
}
