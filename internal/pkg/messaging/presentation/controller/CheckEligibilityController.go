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
)

// CheckEligibilityController answers whether a pair may open a conversation.

type CheckEligibilityController struct {
	UC      *usecase.CheckEligibilityUseCase
	Timeout time.Duration
}

func NewCheckEligibilityController(pool *pgxpool.Pool, cache cacheport.Cache, log *zap.Logger, timeout time.Duration) *CheckEligibilityController {
	social := adapter.NewPgSocialStore(pool)
	return &CheckEligibilityController{
		UC:      usecase.NewCheckEligibilityUseCase(social, cache, log),
		Timeout: normalizeTimeout(timeout, defaultRequestTimeout),
	}
}

func (h *CheckEligibilityController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		otherID := c.Param("otherId")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()

		eligible, err := h.UC.Execute(ctx, usecase.CheckEligibilityInput{
			SelfID:  userID,
			OtherID: otherID,
		})
		if err != nil {
			replyError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"eligible": eligible})
	}
}
