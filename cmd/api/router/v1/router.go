package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cacheport "github.com/sevenatma743-beep/streetconnect/internal/infrastructure/cache/port"
	qport "github.com/sevenatma743-beep/streetconnect/internal/infrastructure/queue/port"
	httpHandler "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/presentation/http"
	"github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/session"
)

// RegisterRoutes mounts all version 1 API routes under /api/v1
func RegisterRoutes(r *gin.Engine, pool *pgxpool.Pool, cache cacheport.Cache, queue qport.Client, hub *session.Hub, log *zap.Logger, timeouts httpHandler.Timeouts) {
	v1 := r.Group("/api/v1")
	httpHandler.RegisterRoutes(v1, pool, cache, queue, hub, log, timeouts)
}
