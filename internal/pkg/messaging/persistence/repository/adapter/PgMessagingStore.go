package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	messaging "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/domain"
	repository "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/port"
	"github.com/sevenatma743-beep/streetconnect/pkg/apperr"
)

type PgMessagingStore struct {
	pool *pgxpool.Pool
}

func NewPgMessagingStore(pool *pgxpool.Pool) *PgMessagingStore {
	return &PgMessagingStore{pool: pool}
}

// Ensure interface compliance at compile time
var _ repository.MessagingStore = (*PgMessagingStore)(nil)

// ResolveDirectConversation calls the server-side create-or-get function.
// The function is the transactional dedup primitive; this adapter treats its
// response as opaque JSON and leaves shape normalization to the caller.
func (r *PgMessagingStore) ResolveDirectConversation(ctx context.Context, selfID, otherID string) (json.RawMessage, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgMessagingStore: nil pool")
	}
	var raw []byte
	err := r.pool.QueryRow(ctx,
		"SELECT to_jsonb(create_or_get_direct_conversation($1::uuid, $2::uuid))",
		selfID, otherID,
	).Scan(&raw)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

func (r *PgMessagingStore) FetchConversation(ctx context.Context, conversationID string) (*repository.ThreadRecord, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgMessagingStore: nil pool")
	}

	var rec repository.ThreadRecord
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, created_at, last_activity_at
		FROM conversations
		WHERE id = $1::uuid
	`, conversationID).Scan(&rec.Conversation.ID, &rec.Conversation.CreatedAt, &rec.Conversation.LastActivityAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrConversationGone
	}
	if err != nil {
		return nil, err
	}

	rec.Members, err = r.loadMembers(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT m.id::text, m.conversation_id::text, m.sender_id::text, m.text, m.created_at,
		       (SELECT to_jsonb(p) FROM profiles p WHERE p.id = m.sender_id)
		FROM messages m
		WHERE m.conversation_id = $1::uuid
		ORDER BY m.created_at ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		rec.Messages = append(rec.Messages, *msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return &rec, nil
}

func (r *PgMessagingStore) ListConversations(ctx context.Context, userID string) ([]repository.InboxRecord, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgMessagingStore: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT c.id::text, c.created_at, c.last_activity_at
		FROM conversations c
		JOIN conversation_members me ON me.conversation_id = c.id
		WHERE me.user_id = $1::uuid
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []repository.InboxRecord
	for rows.Next() {
		var rec repository.InboxRecord
		if err := rows.Scan(&rec.Conversation.ID, &rec.Conversation.CreatedAt, &rec.Conversation.LastActivityAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	for i := range records {
		id := records[i].Conversation.ID
		if records[i].Members, err = r.loadMembers(ctx, id); err != nil {
			return nil, err
		}
		last, err := r.loadLastMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		records[i].LastMessage = last
	}
	return records, nil
}

func (r *PgMessagingStore) InsertMessage(ctx context.Context, conversationID, senderID, text string) (*repository.MessageRecord, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgMessagingStore: nil pool")
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender_id, text)
		VALUES ($1::uuid, $2::uuid, $3)
		RETURNING id::text, conversation_id::text, sender_id::text, text, created_at,
		          (SELECT to_jsonb(p) FROM profiles p WHERE p.id = sender_id)
	`, conversationID, senderID, text)
	return scanMessage(row)
}

func (r *PgMessagingStore) FetchMessage(ctx context.Context, messageID string) (*repository.MessageRecord, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgMessagingStore: nil pool")
	}
	row := r.pool.QueryRow(ctx, `
		SELECT m.id::text, m.conversation_id::text, m.sender_id::text, m.text, m.created_at,
		       (SELECT to_jsonb(p) FROM profiles p WHERE p.id = m.sender_id)
		FROM messages m
		WHERE m.id = $1::uuid
	`, messageID)
	return scanMessage(row)
}

func (r *PgMessagingStore) UpdateMemberReadState(ctx context.Context, conversationID, userID string, lastReadAt time.Time) error {
	if r == nil || r.pool == nil {
		return errors.New("PgMessagingStore: nil pool")
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE conversation_members
		SET last_read_at = $3
		WHERE conversation_id = $1::uuid AND user_id = $2::uuid
	`, conversationID, userID, lastReadAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgMessagingStore) loadMembers(ctx context.Context, conversationID string) ([]repository.MemberRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.conversation_id::text, m.user_id::text, m.last_read_at, m.joined_at,
		       (SELECT to_jsonb(p) FROM profiles p WHERE p.id = m.user_id)
		FROM conversation_members m
		WHERE m.conversation_id = $1::uuid
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []repository.MemberRecord
	for rows.Next() {
		var (
			m   repository.MemberRecord
			raw []byte
		)
		if err := rows.Scan(&m.ConversationID, &m.UserID, &m.LastReadAt, &m.JoinedAt, &raw); err != nil {
			return nil, err
		}
		m.ProfileRaw = json.RawMessage(raw)
		members = append(members, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return members, nil
}

func (r *PgMessagingStore) loadLastMessage(ctx context.Context, conversationID string) (*repository.MessageRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT m.id::text, m.conversation_id::text, m.sender_id::text, m.text, m.created_at,
		       (SELECT to_jsonb(p) FROM profiles p WHERE p.id = m.sender_id)
		FROM messages m
		WHERE m.conversation_id = $1::uuid
		ORDER BY m.created_at DESC
		LIMIT 1
	`, conversationID)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func scanMessage(row pgx.Row) (*repository.MessageRecord, error) {
	var (
		msg messaging.Message
		raw []byte
	)
	if err := row.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Text, &msg.CreatedAt, &raw); err != nil {
		return nil, err
	}
	return &repository.MessageRecord{Message: msg, SenderRaw: json.RawMessage(raw)}, nil
}
