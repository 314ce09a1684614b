package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cacheport "github.com/sevenatma743-beep/streetconnect/internal/infrastructure/cache/port"
	"github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/usecase"
	"github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/adapter"
)

// RecipientsController handles the eligible-recipient listing endpoint.

type RecipientsController struct {
	UC      *usecase.ListRecipientsUseCase
	Timeout time.Duration
}

func NewRecipientsController(pool *pgxpool.Pool, cache cacheport.Cache, log *zap.Logger, timeout time.Duration) *RecipientsController {
	social := adapter.NewPgSocialStore(pool)
	return &RecipientsController{
		UC:      usecase.NewListRecipientsUseCase(social, cache, log),
		Timeout: normalizeTimeout(timeout, defaultRequestTimeout),
	}
}

func (h *RecipientsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		limit := 0
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
				return
			}
			limit = parsed
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()

		profiles, err := h.UC.Execute(ctx, usecase.ListRecipientsInput{
			SelfID: userID,
			Filter: c.Query("q"),
			Limit:  limit,
		})
		if err != nil {
			replyError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"recipients": profiles})
	}
}
