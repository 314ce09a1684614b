package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	cacheport "github.com/sevenatma743-beep/streetconnect/internal/infrastructure/cache/port"
	repository "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/port"
)

const mutualsTTL = 5 * time.Minute

// mutualResolver computes the set of users connected to a given user by a
// mutual follow (both directions present in the graph). Results are cached
// briefly; a follow or unfollow takes at most mutualsTTL to become visible
// to the eligibility gate, which is acceptable for a messaging affordance.
type mutualResolver struct {
	social repository.SocialStore
	cache  cacheport.Cache
	log    *zap.Logger
}

func newMutualResolver(social repository.SocialStore, cache cacheport.Cache, log *zap.Logger) *mutualResolver {
	return &mutualResolver{social: social, cache: cache, log: log}
}

func mutualsCacheKey(userID string) string {
	return "messaging:mutuals:" + userID
}

// Resolve returns the sorted mutual-follow ids for userID.
func (r *mutualResolver) Resolve(ctx context.Context, userID string) ([]string, error) {
	if r.cache != nil {
		cached, err := r.cache.Get(ctx, mutualsCacheKey(userID))
		if err == nil {
			var ids []string
			if jsonErr := json.Unmarshal([]byte(cached), &ids); jsonErr == nil {
				return ids, nil
			}
		} else if !errors.Is(err, cacheport.ErrMiss) && r.log != nil {
			r.log.Warn("mutuals cache read failed", zap.Error(err))
		}
	}

	following, err := r.social.ListFollowing(ctx, userID)
	if err != nil {
		return nil, err
	}
	followers, err := r.social.ListFollowers(ctx, userID)
	if err != nil {
		return nil, err
	}

	followerSet := make(map[string]struct{}, len(followers))
	for _, id := range followers {
		followerSet[id] = struct{}{}
	}
	mutuals := make([]string, 0, len(following))
	for _, id := range following {
		if _, ok := followerSet[id]; ok {
			mutuals = append(mutuals, id)
		}
	}
	sort.Strings(mutuals)

	if r.cache != nil {
		if encoded, err := json.Marshal(mutuals); err == nil {
			if err := r.cache.Set(ctx, mutualsCacheKey(userID), string(encoded), mutualsTTL); err != nil && r.log != nil {
				r.log.Warn("mutuals cache write failed", zap.Error(err))
			}
		}
	}
	return mutuals, nil
}
