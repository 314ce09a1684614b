package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cacheport "github.com/sevenatma743-beep/streetconnect/internal/infrastructure/cache/port"
	qport "github.com/sevenatma743-beep/streetconnect/internal/infrastructure/queue/port"
	"github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/presentation/controller"
	"github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/session"
)

// Timeouts carries the operation deadlines controllers bound their work by.
// Zero values fall back to controller defaults.
type Timeouts struct {
	Request time.Duration
	Send    time.Duration
}

// RegisterRoutes registers messaging endpoints under the given router group.
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, pool *pgxpool.Pool, cache cacheport.Cache, queue qport.Client, hub *session.Hub, log *zap.Logger, timeouts Timeouts) {
	resolveCtl := controller.NewResolveConversationController(pool, cache, log, timeouts.Request)
	inboxCtl := controller.NewInboxController(pool, timeouts.Request)
	recipientsCtl := controller.NewRecipientsController(pool, cache, log, timeouts.Request)
	eligibilityCtl := controller.NewCheckEligibilityController(pool, cache, log, timeouts.Request)
	socketCtl := controller.NewSessionSocketController(hub, queue, log, timeouts.Send)

	// POST /api/v1/messaging/conversations -> create-or-get a direct conversation
	g.POST("/messaging/conversations", resolveCtl.Handle())

	// GET /api/v1/messaging/inbox -> conversation directory for a user
	g.GET("/messaging/inbox", inboxCtl.Handle())

	// GET /api/v1/messaging/recipients -> who the user may message
	g.GET("/messaging/recipients", recipientsCtl.Handle())

	// GET /api/v1/messaging/recipients/:otherId/eligibility -> mutual-follow check
	g.GET("/messaging/recipients/:otherId/eligibility", eligibilityCtl.Handle())

	// GET /api/v1/messaging/ws -> websocket endpoint for conversation sessions
	g.GET("/messaging/ws", socketCtl.Handle())
}
