package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	cacheport "github.com/sevenatma743-beep/streetconnect/internal/infrastructure/cache/port"
	messaging "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/domain"
	repository "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/port"
)

// fakeMessagingStore is an in-memory MessagingStore for use case tests.
type fakeMessagingStore struct {
	mu sync.Mutex

	resolveRaw  json.RawMessage
	resolveErr  error
	resolveArgs [][2]string

	threads map[string]*repository.ThreadRecord
	inbox   map[string][]repository.InboxRecord

	insertErr error
	inserted  []repository.MessageRecord
	messages  map[string]repository.MessageRecord

	readMarks map[string]time.Time
	readErr   error
}

func newFakeMessagingStore() *fakeMessagingStore {
	return &fakeMessagingStore{
		threads:   map[string]*repository.ThreadRecord{},
		inbox:     map[string][]repository.InboxRecord{},
		messages:  map[string]repository.MessageRecord{},
		readMarks: map[string]time.Time{},
	}
}

func (f *fakeMessagingStore) ResolveDirectConversation(_ context.Context, selfID, otherID string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveArgs = append(f.resolveArgs, [2]string{selfID, otherID})
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.resolveRaw, nil
}

func (f *fakeMessagingStore) FetchConversation(_ context.Context, conversationID string) (*repository.ThreadRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.threads[conversationID]
	if !ok {
		return nil, errNotFound
	}
	return rec, nil
}

func (f *fakeMessagingStore) ListConversations(_ context.Context, userID string) ([]repository.InboxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inbox[userID], nil
}

func (f *fakeMessagingStore) InsertMessage(_ context.Context, conversationID, senderID, text string) (*repository.MessageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	rec := repository.MessageRecord{
		Message: messaging.Message{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			SenderID:       senderID,
			Text:           text,
			CreatedAt:      time.Now().UTC(),
		},
	}
	f.inserted = append(f.inserted, rec)
	f.messages[rec.ID] = rec
	return &rec, nil
}

func (f *fakeMessagingStore) FetchMessage(_ context.Context, messageID string) (*repository.MessageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.messages[messageID]
	if !ok {
		return nil, errNotFound
	}
	return &rec, nil
}

func (f *fakeMessagingStore) UpdateMemberReadState(_ context.Context, conversationID, userID string, lastReadAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return f.readErr
	}
	f.readMarks[conversationID+"/"+userID] = lastReadAt
	return nil
}

var errNotFound = fakeErr("not found")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

// fakeSocialStore is an in-memory social graph keyed by user id.
type fakeSocialStore struct {
	following map[string][]string
	followers map[string][]string
	profiles  map[string]messaging.Profile

	listErr error
	calls   int
}

func newFakeSocialStore() *fakeSocialStore {
	return &fakeSocialStore{
		following: map[string][]string{},
		followers: map[string][]string{},
		profiles:  map[string]messaging.Profile{},
	}
}

func (f *fakeSocialStore) ListFollowing(_ context.Context, userID string) ([]string, error) {
	f.calls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.following[userID], nil
}

func (f *fakeSocialStore) ListFollowers(_ context.Context, userID string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.followers[userID], nil
}

func (f *fakeSocialStore) GetProfiles(_ context.Context, ids []string, filter string, limit int) ([]messaging.Profile, error) {
	var out []messaging.Profile
	for _, id := range ids {
		p, ok := f.profiles[id]
		if !ok {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(p.Username), strings.ToLower(filter)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSocialStore) GetProfile(_ context.Context, userID string) (*messaging.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, errNotFound
	}
	return &p, nil
}

// fakeCache is an in-memory Cache honoring the miss contract.
type fakeCache struct {
	mu     sync.Mutex
	values map[string]string
	gets   int
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	v, ok := f.values[key]
	if !ok {
		return "", cacheport.ErrMiss
	}
	return v, nil
}

func (f *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.values[key] = value
	return nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeCache) Ping(context.Context) error { return nil }
func (f *fakeCache) Close() error               { return nil }
