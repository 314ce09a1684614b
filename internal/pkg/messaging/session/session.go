package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sevenatma743-beep/streetconnect/internal/infrastructure/changefeed"
	messaging "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/domain"
	"github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/usecase"
	"github.com/sevenatma743-beep/streetconnect/pkg/apperr"
)

// State is the lifecycle position of a conversation session.
type State int32

const (
	StateClosed State = iota
	StateLoading
	StateOpen
)

var (
	ErrSessionNotOpen = apperr.InvalidArg("session is not open")
	ErrSessionOpened  = apperr.InvalidArg("session was already opened")
	ErrSendInFlight   = apperr.InvalidArg("a send is already in flight")
)

// Origin classifies where an appended message came from.
type Origin string

const (
	OriginOwnEcho Origin = "own_echo"
	OriginRemote  Origin = "remote"
)

// EventType names the outbound session events.
type EventType string

const (
	EventOpened     EventType = "opened"
	EventMessage    EventType = "message"
	EventSent       EventType = "sent"
	EventInboxDirty EventType = "inbox_dirty"
	EventError      EventType = "error"
)

// Event is one outbound notification from a session to its client.
type Event struct {
	Type           EventType           `json:"type"`
	ConversationID string              `json:"conversation_id,omitempty"`
	Messages       []messaging.Message `json:"messages,omitempty"`
	Peer           *messaging.Profile  `json:"peer,omitempty"`
	Message        *messaging.Message  `json:"message,omitempty"`
	Origin         Origin              `json:"origin,omitempty"`
	Degraded       bool                `json:"degraded,omitempty"`
	Code           apperr.Code         `json:"code,omitempty"`
	Error          string              `json:"error,omitempty"`
	Retryable      bool                `json:"retryable,omitempty"`
}

// Sink receives session events. Implementations must not block; the websocket
// connection buffers writes behind it.
type Sink func(Event)

// Deps bundles what a session needs to operate.
type Deps struct {
	Threads  *usecase.GetThreadUseCase
	Sender   *usecase.SendMessageUseCase
	Reader   *usecase.MarkReadUseCase
	Messages *usecase.GetMessageUseCase
	Feed     changefeed.Feed
	Log      *zap.Logger
	Metrics  *Metrics

	// OpTimeout bounds the session's internal store calls (read-state writes
	// and event refetches). Defaults to 5s.
	OpTimeout time.Duration
}

// Session drives one open conversation for one user: it hydrates the thread,
// holds the exclusive change-feed subscription for the conversation, accepts
// sends, and reconciles realtime inserts into the log.
//
// Lifecycle: Closed -> Loading -> Open -> Closed. A session opens exactly
// once; a client switching conversations closes this session and opens a
// fresh one, which is what keeps subscriptions exclusive per conversation.
type Session struct {
	selfID string
	deps   Deps
	sink   Sink

	mu      sync.Mutex
	state   State
	thread  *messaging.Thread
	sub     changefeed.Subscription
	cancel  context.CancelFunc
	sending bool
	done    chan struct{}
}

func New(selfID string, deps Deps, sink Sink) *Session {
	if deps.OpTimeout <= 0 {
		deps.OpTimeout = 5 * time.Second
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Session{
		selfID: selfID,
		deps:   deps,
		sink:   sink,
		done:   make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open hydrates the conversation and attaches the change-feed subscription.
// The loaded snapshot is delivered through the sink as an EventOpened; Open
// itself only reports whether the session reached the open state.
func (s *Session) Open(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return apperr.ErrMissingConversation
	}

	s.mu.Lock()
	if s.state != StateClosed {
		s.mu.Unlock()
		return ErrSessionOpened
	}
	s.state = StateLoading
	s.mu.Unlock()

	thread, err := s.deps.Threads.Execute(ctx, usecase.GetThreadInput{ConversationID: conversationID})
	if err != nil {
		s.abortOpen(conversationID, err)
		return err
	}
	if !thread.HasMember(s.selfID) {
		err := apperr.NotFound("conversation not found for user")
		s.abortOpen(conversationID, err)
		return err
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub, err := s.deps.Feed.SubscribeToInserts(subCtx, "messages", "conversation_id=eq."+conversationID)
	if err != nil {
		cancel()
		wrapped := apperr.ErrFeedAttach(err)
		s.abortOpen(conversationID, wrapped)
		return wrapped
	}

	// Opening the conversation is reading it.
	s.persistReadState(conversationID)
	thread.MarkRead(s.selfID, time.Now().UTC())

	s.mu.Lock()
	if s.state != StateLoading {
		// Closed while loading; release the subscription we just acquired.
		s.mu.Unlock()
		cancel()
		sub.Close()
		return ErrSessionNotOpen
	}
	s.thread = thread
	s.sub = sub
	s.cancel = cancel
	s.state = StateOpen
	s.mu.Unlock()

	if s.deps.Metrics != nil {
		s.deps.Metrics.SessionsOpen.Inc()
	}
	go s.reconcile(sub)

	peer, _ := thread.Peer(s.selfID)
	s.emit(Event{
		Type:           EventOpened,
		ConversationID: conversationID,
		Messages:       thread.Messages(),
		Peer:           peer.Profile,
		Degraded:       !thread.Valid(),
	})
	return nil
}

// Send persists a message and appends the confirmed record to the log. The
// log is only touched after the backend confirms; a failed send leaves it
// exactly as it was. One send may be in flight at a time.
func (s *Session) Send(ctx context.Context, text string) (*messaging.Message, error) {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return nil, ErrSessionNotOpen
	}
	if s.sending {
		s.mu.Unlock()
		return nil, ErrSendInFlight
	}
	s.sending = true
	conversationID := s.thread.Conversation.ID
	s.mu.Unlock()

	msg, err := s.deps.Sender.Execute(ctx, usecase.SendMessageInput{
		ConversationID: conversationID,
		SenderID:       s.selfID,
		Text:           text,
	})

	s.mu.Lock()
	s.sending = false
	if err == nil && s.state == StateOpen {
		_, _ = s.thread.Append(*msg)
	}
	s.mu.Unlock()

	if err != nil {
		s.emitError(conversationID, err)
		return nil, err
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.MessagesSent.Inc()
	}
	s.emit(Event{
		Type:           EventSent,
		ConversationID: conversationID,
		Message:        msg,
	})
	// A confirmed send changes this conversation's directory preview.
	s.emit(Event{
		Type:           EventInboxDirty,
		ConversationID: conversationID,
	})
	return msg, nil
}

// Snapshot returns a copy of the current message log, or nil when not open.
func (s *Session) Snapshot() []messaging.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return nil
	}
	return s.thread.Messages()
}

// Close releases the change-feed subscription and ends the session. It is
// idempotent and safe to call from any state.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	wasOpen := s.state == StateOpen
	sub := s.sub
	cancel := s.cancel
	var conversationID string
	if s.thread != nil {
		conversationID = s.thread.Conversation.ID
	}
	s.state = StateClosed
	s.sub = nil
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		sub.Close()
		<-s.done
	}
	if wasOpen {
		if s.deps.Metrics != nil {
			s.deps.Metrics.SessionsOpen.Dec()
		}
		// Closing updated the watermark on open; the directory's unread
		// state for this conversation may have changed.
		s.emit(Event{
			Type:           EventInboxDirty,
			ConversationID: conversationID,
		})
	}
}

func (s *Session) abortOpen(conversationID string, err error) {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	s.emitError(conversationID, err)
}

// persistReadState writes the watermark, best effort. A failed write only
// delays the unread flag; it never blocks the session.
func (s *Session) persistReadState(conversationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.OpTimeout)
	defer cancel()
	if err := s.deps.Reader.Execute(ctx, usecase.MarkReadInput{
		ConversationID: conversationID,
		UserID:         s.selfID,
	}); err != nil {
		s.deps.Log.Warn("read-state write failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
	}
}

func (s *Session) emit(ev Event) {
	if s.sink != nil {
		s.sink(ev)
	}
}

func (s *Session) emitError(conversationID string, err error) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.Errors.WithLabelValues(string(apperr.CodeOf(err))).Inc()
	}
	s.emit(Event{
		Type:           EventError,
		ConversationID: conversationID,
		Code:           apperr.CodeOf(err),
		Error:          err.Error(),
		Retryable:      apperr.Retryable(err),
	})
}
