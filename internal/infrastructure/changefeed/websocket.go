package changefeed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait       = 10 * time.Second
	pingPeriod      = 30 * time.Second
	readWait        = 60 * time.Second
	eventBufferSize = 64
)

// Dialer connects to the data service's realtime gateway over websocket and
// exposes it as a Feed. Each subscription owns its own connection; dropped
// connections are re-dialed with bounded exponential backoff and the
// subscribe frame is replayed. Consumers deduplicate by message id, so
// redelivery across reconnects is harmless.
type Dialer struct {
	url        string
	minBackoff time.Duration
	maxBackoff time.Duration
	log        *zap.Logger
}

func NewDialer(url string, minBackoff, maxBackoff time.Duration, log *zap.Logger) *Dialer {
	if minBackoff <= 0 {
		minBackoff = 500 * time.Millisecond
	}
	if maxBackoff < minBackoff {
		maxBackoff = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dialer{url: url, minBackoff: minBackoff, maxBackoff: maxBackoff, log: log}
}

// Ensure interface compliance at compile time
var _ Feed = (*Dialer)(nil)

type subscribeFrame struct {
	Type   string `json:"type"`
	Event  string `json:"event"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

type eventFrame struct {
	Type   string          `json:"type"`
	Table  string          `json:"table"`
	Record json.RawMessage `json:"record"`
}

// SubscribeToInserts dials the gateway and registers for insert events on
// table rows matching filter. The initial dial failure is returned to the
// caller; failures after that are retried internally until Close or context
// cancellation.
func (d *Dialer) SubscribeToInserts(ctx context.Context, table, filter string) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	ws, err := d.dial(ctx, table, filter)
	if err != nil {
		cancel()
		return nil, err
	}

	sub := &wsSubscription{
		events: make(chan InsertEvent, eventBufferSize),
		cancel: cancel,
	}
	go d.run(ctx, ws, table, filter, sub)
	return sub, nil
}

func (d *Dialer) dial(ctx context.Context, table, filter string) (*websocket.Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, d.url, nil)
	if err != nil {
		return nil, err
	}

	frame := subscribeFrame{Type: "subscribe", Event: "INSERT", Table: table, Filter: filter}
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(frame); err != nil {
		_ = ws.Close()
		return nil, err
	}
	return ws, nil
}

// run pumps events from the gateway into the subscription channel, reconnecting
// on failure until the context is canceled.
func (d *Dialer) run(ctx context.Context, ws *websocket.Conn, table, filter string, sub *wsSubscription) {
	defer close(sub.events)

	backoff := d.minBackoff
	for {
		err := d.pump(ctx, ws, table, sub)
		_ = ws.Close()

		if ctx.Err() != nil {
			return
		}
		d.log.Warn("changefeed connection lost, reconnecting",
			zap.String("table", table),
			zap.String("filter", filter),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > d.maxBackoff {
			backoff = d.maxBackoff
		}

		next, err := d.dial(ctx, table, filter)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sub.setErr(err)
			continue
		}
		backoff = d.minBackoff
		ws = next
	}
}

// pump reads frames from one connection until it fails or the context ends.
func (d *Dialer) pump(ctx context.Context, ws *websocket.Conn, table string, sub *wsSubscription) error {
	_ = ws.SetReadDeadline(time.Now().Add(readWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readWait))
	})

	// Keepalive pings on a side goroutine; closing the socket on context
	// cancellation also unblocks the pending ReadMessage below.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ctx.Done():
				_ = ws.Close()
				return
			case <-ticker.C:
				_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		_ = ws.SetReadDeadline(time.Now().Add(readWait))

		var frame eventFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			d.log.Debug("changefeed: dropping malformed frame", zap.Error(err))
			continue
		}
		if frame.Type != "insert" {
			continue
		}
		if frame.Table != "" && frame.Table != table {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub.events <- InsertEvent{Table: frame.Table, Record: frame.Record}:
		}
	}
}

type wsSubscription struct {
	events chan InsertEvent
	cancel context.CancelFunc

	mu   sync.Mutex
	err  error
	once sync.Once
}

func (s *wsSubscription) Events() <-chan InsertEvent { return s.events }

func (s *wsSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *wsSubscription) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *wsSubscription) Close() {
	s.once.Do(s.cancel)
}
