package usecase

import (
	"context"

	"go.uber.org/zap"

	cacheport "github.com/sevenatma743-beep/streetconnect/internal/infrastructure/cache/port"
	repository "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/port"
	"github.com/sevenatma743-beep/streetconnect/pkg/apperr"
)

// CheckEligibilityInput names the pair to test for a mutual follow.
type CheckEligibilityInput struct {
	SelfID  string
	OtherID string
}

// CheckEligibilityUseCase answers whether SelfID may open a conversation with
// OtherID. Eligibility requires a mutual follow; self-conversations are
// rejected outright.
type CheckEligibilityUseCase struct {
	mutuals *mutualResolver
}

func NewCheckEligibilityUseCase(social repository.SocialStore, cache cacheport.Cache, log *zap.Logger) *CheckEligibilityUseCase {
	return &CheckEligibilityUseCase{mutuals: newMutualResolver(social, cache, log)}
}

func (uc *CheckEligibilityUseCase) Execute(ctx context.Context, in CheckEligibilityInput) (bool, error) {
	if in.SelfID == "" || in.OtherID == "" {
		return false, apperr.ErrMissingUser
	}
	if in.SelfID == in.OtherID {
		return false, apperr.ErrSelfConversation
	}

	ids, err := uc.mutuals.Resolve(ctx, in.SelfID)
	if err != nil {
		return false, apperr.Load("failed to resolve mutual follows", err)
	}
	for _, id := range ids {
		if id == in.OtherID {
			return true, nil
		}
	}
	return false, nil
}
