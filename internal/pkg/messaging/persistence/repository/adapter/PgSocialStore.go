package adapter

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	messaging "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/domain"
	repository "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/port"
)

// Follower counts are always derived from the follows table, never kept as
// stored counters, so concurrent follow/unfollow cannot double-count.
type PgSocialStore struct {
	pool *pgxpool.Pool
}

func NewPgSocialStore(pool *pgxpool.Pool) *PgSocialStore {
	return &PgSocialStore{pool: pool}
}

// Ensure interface compliance at compile time
var _ repository.SocialStore = (*PgSocialStore)(nil)

func (r *PgSocialStore) ListFollowing(ctx context.Context, userID string) ([]string, error) {
	return r.listEdge(ctx, "SELECT following_id::text FROM follows WHERE follower_id = $1::uuid", userID)
}

func (r *PgSocialStore) ListFollowers(ctx context.Context, userID string) ([]string, error) {
	return r.listEdge(ctx, "SELECT follower_id::text FROM follows WHERE following_id = $1::uuid", userID)
}

func (r *PgSocialStore) GetProfiles(ctx context.Context, ids []string, filter string, limit int) ([]messaging.Profile, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgSocialStore: nil pool")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 25
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, username, COALESCE(avatar_url, '')
		FROM profiles
		WHERE id = ANY($1::uuid[])
		  AND ($2 = '' OR username ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC
		LIMIT $3
	`, ids, filter, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []messaging.Profile
	for rows.Next() {
		var p messaging.Profile
		if err := rows.Scan(&p.ID, &p.Username, &p.AvatarURL); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return profiles, nil
}

func (r *PgSocialStore) GetProfile(ctx context.Context, userID string) (*messaging.Profile, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgSocialStore: nil pool")
	}
	var p messaging.Profile
	err := r.pool.QueryRow(ctx,
		"SELECT id::text, username, COALESCE(avatar_url, '') FROM profiles WHERE id = $1::uuid",
		userID,
	).Scan(&p.ID, &p.Username, &p.AvatarURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PgSocialStore) listEdge(ctx context.Context, sql string, userID string) ([]string, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgSocialStore: nil pool")
	}
	rows, err := r.pool.Query(ctx, sql, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ids, nil
}
