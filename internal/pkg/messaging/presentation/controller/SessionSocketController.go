package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	qport "github.com/sevenatma743-beep/streetconnect/internal/infrastructure/queue/port"
	"github.com/sevenatma743-beep/streetconnect/internal/infrastructure/realtime"
	"github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/task"
	"github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/session"
)

// SessionSocketController handles the websocket endpoint that drives
// conversation sessions. Inbound frames select and operate the session;
// outbound traffic is the session's own event stream.
type SessionSocketController struct {
	hub             *session.Hub
	queue           qport.Client
	log             *zap.Logger
	inflightTimeout time.Duration
}

func NewSessionSocketController(hub *session.Hub, queue qport.Client, log *zap.Logger, sendTimeout time.Duration) *SessionSocketController {
	return &SessionSocketController{
		hub:             hub,
		queue:           queue,
		log:             log,
		inflightTimeout: normalizeTimeout(sendTimeout, defaultSendTimeout),
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now; plug a proper checker when auth is added.
		return true
	},
}

type inboundFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Text           string `json:"text,omitempty"`
}

type ackFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
}

const defaultReadTimeout = 60 * time.Second

// Handle upgrades HTTP connections to websocket and processes frames until
// the client disconnects.
func (ctl *SessionSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; just log and return.
			return
		}

		conn := realtime.NewConnection(userID, ws)
		conn.Start()
		client := ctl.hub.Attach(userID, conn)
		defer ctl.hub.Detach(client)

		ws.SetReadLimit(1 << 20) // 1MB payload cap
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		_ = conn.SendJSON(ackFrame{Type: "connected"})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, "bad_request", "invalid payload")
				continue
			}

			switch frame.Type {
			case "open":
				ctl.handleOpen(c, client, conn, frame)
			case "send":
				ctl.handleSend(c, client, conn, frame, userID)
			case "close":
				client.CloseConversation()
				_ = conn.SendJSON(ackFrame{Type: "closed", ConversationID: frame.ConversationID})
			default:
				ctl.replyError(conn, "unsupported_type", "unknown frame type")
			}
		}
	}
}

func (ctl *SessionSocketController) handleOpen(c *gin.Context, client *session.Client, conn *realtime.Connection, frame inboundFrame) {
	if frame.ConversationID == "" {
		ctl.replyError(conn, "bad_request", "conversation_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	// Failures surface through the session's own error events.
	if err := client.OpenConversation(ctx, frame.ConversationID); err != nil {
		ctl.log.Debug("session open failed",
			zap.String("conversation_id", frame.ConversationID),
			zap.Error(err))
	}
}

func (ctl *SessionSocketController) handleSend(c *gin.Context, client *session.Client, conn *realtime.Connection, frame inboundFrame, userID string) {
	if frame.Text == "" {
		ctl.replyError(conn, "bad_request", "text is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	msg, err := client.Send(ctx, frame.Text)
	if err != nil {
		// Session errors already reached the client; guard frames have not.
		if errors.Is(err, session.ErrSessionNotOpen) || errors.Is(err, session.ErrSendInFlight) {
			ctl.replyError(conn, "bad_request", err.Error())
		}
		return
	}

	if ctl.queue != nil {
		if err := task.EnqueueNotifyMessage(ctx, ctl.queue, task.NotifyMessageTaskPayload{
			MessageID:      msg.ID,
			ConversationID: msg.ConversationID,
			SenderID:       userID,
		}); err != nil {
			ctl.log.Warn("notify enqueue failed",
				zap.String("message_id", msg.ID),
				zap.Error(err))
		}
	}
}

func (ctl *SessionSocketController) replyError(conn *realtime.Connection, code string, message string) {
	_ = conn.SendJSON(gin.H{"type": "error", "code": code, "error": message})
}
