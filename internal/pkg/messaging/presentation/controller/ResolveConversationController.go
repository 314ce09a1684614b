package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cacheport "github.com/sevenatma743-beep/streetconnect/internal/infrastructure/cache/port"
	"github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/usecase"
	"github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/adapter"
	"github.com/sevenatma743-beep/streetconnect/pkg/apperr"
)

// ResolveConversationController handles the create-or-get conversation
// endpoint. One controller per endpoint.

type ResolveConversationController struct {
	ResolveUC     *usecase.ResolveConversationUseCase
	EligibilityUC *usecase.CheckEligibilityUseCase
	Timeout       time.Duration
}

func NewResolveConversationController(pool *pgxpool.Pool, cache cacheport.Cache, log *zap.Logger, timeout time.Duration) *ResolveConversationController {
	store := adapter.NewPgMessagingStore(pool)
	social := adapter.NewPgSocialStore(pool)
	return &ResolveConversationController{
		ResolveUC:     usecase.NewResolveConversationUseCase(store),
		EligibilityUC: usecase.NewCheckEligibilityUseCase(social, cache, log),
		Timeout:       normalizeTimeout(timeout, defaultRequestTimeout),
	}
}

type resolveConversationRequest struct {
	SelfID  string `json:"self_id" binding:"required"`
	OtherID string `json:"other_id" binding:"required"`
}

func (h *ResolveConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resolveConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()

		eligible, err := h.EligibilityUC.Execute(ctx, usecase.CheckEligibilityInput{
			SelfID:  req.SelfID,
			OtherID: req.OtherID,
		})
		if err != nil {
			replyError(c, err)
			return
		}
		if !eligible {
			c.JSON(http.StatusForbidden, gin.H{
				"error": apperr.ErrNotEligible.Error(),
				"code":  apperr.CodeOf(apperr.ErrNotEligible),
			})
			return
		}

		id, err := h.ResolveUC.Execute(ctx, usecase.ResolveConversationInput{
			SelfID:  req.SelfID,
			OtherID: req.OtherID,
		})
		if err != nil {
			replyError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"conversation_id": id})
	}
}
