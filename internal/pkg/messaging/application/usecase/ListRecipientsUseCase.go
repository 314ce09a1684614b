package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	cacheport "github.com/sevenatma743-beep/streetconnect/internal/infrastructure/cache/port"
	messaging "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/domain"
	repository "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/port"
	"github.com/sevenatma743-beep/streetconnect/pkg/apperr"
)

const defaultRecipientLimit = 20

// ListRecipientsInput selects whose candidates to list and how to filter them.
type ListRecipientsInput struct {
	SelfID string
	Filter string
	Limit  int
}

// ListRecipientsUseCase lists the users SelfID may start a conversation with:
// exactly those connected by a mutual follow, newest profile first, optionally
// narrowed by a username filter.
type ListRecipientsUseCase struct {
	mutuals *mutualResolver
	social  repository.SocialStore
}

func NewListRecipientsUseCase(social repository.SocialStore, cache cacheport.Cache, log *zap.Logger) *ListRecipientsUseCase {
	return &ListRecipientsUseCase{
		mutuals: newMutualResolver(social, cache, log),
		social:  social,
	}
}

func (uc *ListRecipientsUseCase) Execute(ctx context.Context, in ListRecipientsInput) ([]messaging.Profile, error) {
	if in.SelfID == "" {
		return nil, apperr.ErrMissingUser
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultRecipientLimit
	}

	ids, err := uc.mutuals.Resolve(ctx, in.SelfID)
	if err != nil {
		return nil, apperr.Load("failed to resolve recipient candidates", err)
	}
	if len(ids) == 0 {
		return []messaging.Profile{}, nil
	}

	profiles, err := uc.social.GetProfiles(ctx, ids, strings.TrimSpace(in.Filter), limit)
	if err != nil {
		return nil, apperr.Load("failed to load recipient profiles", err)
	}
	return profiles, nil
}
