package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevenatma743-beep/streetconnect/internal/infrastructure/changefeed"
	messaging "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/domain"
	"github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/usecase"
	repository "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/port"
	"github.com/sevenatma743-beep/streetconnect/pkg/apperr"
)

const (
	selfID = "u-self"
	peerID = "u-peer"
	convID = "conv-1"
)

func baseTime() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

// sessionStore is a minimal in-memory MessagingStore for session tests.
type sessionStore struct {
	mu sync.Mutex

	thread     *repository.ThreadRecord
	messages   map[string]repository.MessageRecord
	readMarks  map[string]time.Time
	insertSeq     int
	insertGate    chan struct{}
	insertStarted chan struct{}
	insertErr     error
	fetchErr      error
}

func newSessionStore() *sessionStore {
	read := baseTime().Add(-time.Hour)
	return &sessionStore{
		thread: &repository.ThreadRecord{
			Conversation: messaging.Conversation{ID: convID, LastActivityAt: baseTime()},
			Members: []repository.MemberRecord{
				{Member: messaging.Member{ConversationID: convID, UserID: selfID, LastReadAt: &read}},
				{
					Member:     messaging.Member{ConversationID: convID, UserID: peerID},
					ProfileRaw: json.RawMessage(`{"id":"u-peer","username":"peer"}`),
				},
			},
			Messages: []repository.MessageRecord{
				{Message: messaging.Message{ID: "m-history", ConversationID: convID, SenderID: peerID, Text: "hello", CreatedAt: baseTime()}},
			},
		},
		messages:  map[string]repository.MessageRecord{},
		readMarks: map[string]time.Time{},
	}
}

func (s *sessionStore) ResolveDirectConversation(context.Context, string, string) (json.RawMessage, error) {
	return nil, fmt.Errorf("unused")
}

func (s *sessionStore) FetchConversation(_ context.Context, id string) (*repository.ThreadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.thread == nil || s.thread.Conversation.ID != id {
		return nil, fmt.Errorf("no such conversation")
	}
	return s.thread, nil
}

func (s *sessionStore) ListConversations(context.Context, string) ([]repository.InboxRecord, error) {
	return nil, nil
}

func (s *sessionStore) InsertMessage(_ context.Context, conversationID, senderID, text string) (*repository.MessageRecord, error) {
	if s.insertStarted != nil {
		close(s.insertStarted)
	}
	if s.insertGate != nil {
		<-s.insertGate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	s.insertSeq++
	rec := repository.MessageRecord{
		Message: messaging.Message{
			ID:             fmt.Sprintf("sent-%d", s.insertSeq),
			ConversationID: conversationID,
			SenderID:       senderID,
			Text:           text,
			CreatedAt:      baseTime().Add(time.Duration(s.insertSeq) * time.Minute),
		},
	}
	s.messages[rec.ID] = rec
	return &rec, nil
}

func (s *sessionStore) FetchMessage(_ context.Context, messageID string) (*repository.MessageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	rec, ok := s.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("no such message")
	}
	return &rec, nil
}

func (s *sessionStore) UpdateMemberReadState(_ context.Context, conversationID, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readMarks[conversationID+"/"+userID] = at
	return nil
}

func (s *sessionStore) readMark(conversationID, userID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.readMarks[conversationID+"/"+userID]
	return at, ok
}

// fakeFeed hands out channel-backed subscriptions and remembers them.
type fakeFeed struct {
	mu   sync.Mutex
	subs []*fakeSub
}

func (f *fakeFeed) SubscribeToInserts(_ context.Context, table, filter string) (changefeed.Subscription, error) {
	sub := &fakeSub{table: table, filter: filter, events: make(chan changefeed.InsertEvent, 16)}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	return sub, nil
}

func (f *fakeFeed) sub(i int) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[i]
}

func (f *fakeFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type fakeSub struct {
	table  string
	filter string
	events chan changefeed.InsertEvent

	mu     sync.Mutex
	closed bool
}

func (s *fakeSub) Events() <-chan changefeed.InsertEvent { return s.events }
func (s *fakeSub) Err() error                            { return nil }

func (s *fakeSub) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

func (s *fakeSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSub) pushInsert(t *testing.T, msg messaging.Message) {
	t.Helper()
	record, err := json.Marshal(msg)
	require.NoError(t, err)
	s.events <- changefeed.InsertEvent{Table: "messages", Record: record}
}

// eventRecorder collects sink events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) sink(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) ofType(typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (r *eventRecorder) waitFor(t *testing.T, typ EventType, n int) []Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if evs := r.ofType(typ); len(evs) >= n {
			return evs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %q events", n, typ)
	return nil
}

func newTestSession(store *sessionStore, feed *fakeFeed, rec *eventRecorder) *Session {
	return New(selfID, Deps{
		Threads:  usecase.NewGetThreadUseCase(store),
		Sender:   usecase.NewSendMessageUseCase(store),
		Reader:   usecase.NewMarkReadUseCase(store),
		Messages: usecase.NewGetMessageUseCase(store),
		Feed:     feed,
	}, rec.sink)
}

func TestOpenDeliversSnapshotAndMarksRead(t *testing.T) {
	store := newSessionStore()
	feed := &fakeFeed{}
	rec := &eventRecorder{}
	sess := newTestSession(store, feed, rec)
	defer sess.Close()

	require.NoError(t, sess.Open(context.Background(), convID))
	assert.Equal(t, StateOpen, sess.State())

	opened := rec.waitFor(t, EventOpened, 1)[0]
	assert.Equal(t, convID, opened.ConversationID)
	require.Len(t, opened.Messages, 1)
	assert.Equal(t, "m-history", opened.Messages[0].ID)
	require.NotNil(t, opened.Peer)
	assert.Equal(t, "peer", opened.Peer.Username)
	assert.False(t, opened.Degraded)

	_, marked := store.readMark(convID, selfID)
	assert.True(t, marked, "opening should advance the read watermark")

	require.Equal(t, 1, feed.count())
	assert.Equal(t, "messages", feed.sub(0).table)
	assert.Equal(t, "conversation_id=eq."+convID, feed.sub(0).filter)
}

func TestOpenIsSingleUse(t *testing.T) {
	store := newSessionStore()
	rec := &eventRecorder{}
	sess := newTestSession(store, &fakeFeed{}, rec)
	defer sess.Close()

	require.NoError(t, sess.Open(context.Background(), convID))
	err := sess.Open(context.Background(), convID)
	assert.ErrorIs(t, err, ErrSessionOpened)
}

func TestOpenRejectsNonMember(t *testing.T) {
	store := newSessionStore()
	store.thread.Members = store.thread.Members[1:] // drop self
	rec := &eventRecorder{}
	sess := newTestSession(store, &fakeFeed{}, rec)

	err := sess.Open(context.Background(), convID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	assert.Equal(t, StateClosed, sess.State())
}

func TestSendAppendsOnlyAfterConfirmation(t *testing.T) {
	store := newSessionStore()
	feed := &fakeFeed{}
	rec := &eventRecorder{}
	sess := newTestSession(store, feed, rec)
	defer sess.Close()
	require.NoError(t, sess.Open(context.Background(), convID))

	msg, err := sess.Send(context.Background(), "first")
	require.NoError(t, err)
	assert.Equal(t, "sent-1", msg.ID)

	sent := rec.waitFor(t, EventSent, 1)[0]
	assert.Equal(t, "sent-1", sent.Message.ID)

	snapshot := sess.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "sent-1", snapshot[1].ID)
}

func TestFailedSendLeavesLogUntouched(t *testing.T) {
	store := newSessionStore()
	rec := &eventRecorder{}
	sess := newTestSession(store, &fakeFeed{}, rec)
	defer sess.Close()
	require.NoError(t, sess.Open(context.Background(), convID))

	store.mu.Lock()
	store.insertErr = fmt.Errorf("backend down")
	store.mu.Unlock()

	_, err := sess.Send(context.Background(), "will fail")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeSendFailure, apperr.CodeOf(err))

	errs := rec.waitFor(t, EventError, 1)
	assert.True(t, errs[0].Retryable)
	assert.Len(t, sess.Snapshot(), 1, "no phantom entry after a failed send")
}

func TestSendInFlightGuard(t *testing.T) {
	store := newSessionStore()
	store.insertGate = make(chan struct{})
	store.insertStarted = make(chan struct{})
	rec := &eventRecorder{}
	sess := newTestSession(store, &fakeFeed{}, rec)
	defer sess.Close()
	require.NoError(t, sess.Open(context.Background(), convID))

	done := make(chan error, 1)
	go func() {
		_, err := sess.Send(context.Background(), "slow")
		done <- err
	}()

	// Second send while the first is still awaiting confirmation.
	<-store.insertStarted
	_, err := sess.Send(context.Background(), "eager")
	assert.ErrorIs(t, err, ErrSendInFlight)

	close(store.insertGate)
	require.NoError(t, <-done)
}

func TestOwnEchoDoesNotDuplicate(t *testing.T) {
	store := newSessionStore()
	feed := &fakeFeed{}
	rec := &eventRecorder{}
	sess := newTestSession(store, feed, rec)
	defer sess.Close()
	require.NoError(t, sess.Open(context.Background(), convID))

	msg, err := sess.Send(context.Background(), "mine")
	require.NoError(t, err)

	// Echo of the confirmed send, then a genuinely new remote insert.
	feed.sub(0).pushInsert(t, *msg)
	remote := messaging.Message{
		ID: "remote-1", ConversationID: convID, SenderID: peerID,
		Text: "reply", CreatedAt: baseTime().Add(10 * time.Minute),
	}
	store.mu.Lock()
	store.messages["remote-1"] = repository.MessageRecord{Message: remote}
	store.mu.Unlock()
	feed.sub(0).pushInsert(t, remote)

	msgs := rec.waitFor(t, EventMessage, 1)
	require.Len(t, msgs, 1, "echo must not surface as a message event")
	assert.Equal(t, "remote-1", msgs[0].Message.ID)
	assert.Equal(t, OriginRemote, msgs[0].Origin)

	snapshot := sess.Snapshot()
	ids := map[string]int{}
	for _, m := range snapshot {
		ids[m.ID]++
	}
	assert.Equal(t, 1, ids[msg.ID], "confirmed send appears exactly once")
	require.Len(t, snapshot, 3)
}

func TestRemoteInsertMarksReadAndFlagsInbox(t *testing.T) {
	store := newSessionStore()
	feed := &fakeFeed{}
	rec := &eventRecorder{}
	sess := newTestSession(store, feed, rec)
	defer sess.Close()
	require.NoError(t, sess.Open(context.Background(), convID))

	openMark, _ := store.readMark(convID, selfID)

	remote := messaging.Message{
		ID: "remote-1", ConversationID: convID, SenderID: peerID,
		Text: "reply", CreatedAt: baseTime().Add(10 * time.Minute),
	}
	store.mu.Lock()
	store.messages["remote-1"] = repository.MessageRecord{Message: remote}
	store.mu.Unlock()
	feed.sub(0).pushInsert(t, remote)

	rec.waitFor(t, EventMessage, 1)
	rec.waitFor(t, EventInboxDirty, 1)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mark, _ := store.readMark(convID, selfID)
		if mark.After(openMark) || !time.Now().Before(deadline) {
			assert.True(t, mark.After(openMark), "viewing a remote insert advances the watermark")
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSelfActivityFlagsDirectory(t *testing.T) {
	store := newSessionStore()
	feed := &fakeFeed{}
	rec := &eventRecorder{}
	sess := newTestSession(store, feed, rec)
	require.NoError(t, sess.Open(context.Background(), convID))

	// A confirmed send moves the conversation's preview.
	msg, err := sess.Send(context.Background(), "mine")
	require.NoError(t, err)
	dirty := rec.waitFor(t, EventInboxDirty, 1)
	assert.Equal(t, convID, dirty[0].ConversationID)

	// Its echo is deduplicated from the log but still hints a refresh.
	feed.sub(0).pushInsert(t, *msg)
	rec.waitFor(t, EventInboxDirty, 2)
	assert.Empty(t, rec.ofType(EventMessage), "echo must not surface as a message event")

	// Closing may have changed the unread state the directory shows.
	sess.Close()
	dirty = rec.waitFor(t, EventInboxDirty, 3)
	assert.Equal(t, convID, dirty[2].ConversationID)
}

func TestRemoteInsertFallsBackToFeedPayload(t *testing.T) {
	store := newSessionStore()
	feed := &fakeFeed{}
	rec := &eventRecorder{}
	sess := newTestSession(store, feed, rec)
	defer sess.Close()
	require.NoError(t, sess.Open(context.Background(), convID))

	store.mu.Lock()
	store.fetchErr = fmt.Errorf("refetch unavailable")
	store.mu.Unlock()

	remote := messaging.Message{
		ID: "remote-1", ConversationID: convID, SenderID: peerID,
		Text: "reply", CreatedAt: baseTime().Add(10 * time.Minute),
	}
	feed.sub(0).pushInsert(t, remote)

	msgs := rec.waitFor(t, EventMessage, 1)
	assert.Equal(t, "remote-1", msgs[0].Message.ID)
	assert.Equal(t, "reply", msgs[0].Message.Text)
	assert.Nil(t, msgs[0].Message.Sender, "fallback payload has no joined sender")
}

func TestCloseReleasesSubscription(t *testing.T) {
	store := newSessionStore()
	feed := &fakeFeed{}
	rec := &eventRecorder{}
	sess := newTestSession(store, feed, rec)
	require.NoError(t, sess.Open(context.Background(), convID))

	sess.Close()
	assert.Equal(t, StateClosed, sess.State())
	assert.True(t, feed.sub(0).isClosed())

	sess.Close() // idempotent
}

func TestSwitchingSessionsReleasesPreviousSubscription(t *testing.T) {
	store := newSessionStore()
	feed := &fakeFeed{}
	rec := &eventRecorder{}

	sessA := newTestSession(store, feed, rec)
	require.NoError(t, sessA.Open(context.Background(), convID))

	sessA.Close()
	sessB := newTestSession(store, feed, rec)
	require.NoError(t, sessB.Open(context.Background(), convID))
	defer sessB.Close()

	assert.True(t, feed.sub(0).isClosed(), "previous subscription released before the next opens")
	assert.False(t, feed.sub(1).isClosed())
}
