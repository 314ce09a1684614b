package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/usecase"
	"github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/adapter"
)

// InboxController handles the conversation directory endpoint.

type InboxController struct {
	UC      *usecase.ListInboxUseCase
	Timeout time.Duration
}

func NewInboxController(pool *pgxpool.Pool, timeout time.Duration) *InboxController {
	store := adapter.NewPgMessagingStore(pool)
	return &InboxController{
		UC:      usecase.NewListInboxUseCase(store),
		Timeout: normalizeTimeout(timeout, defaultRequestTimeout),
	}
}

func (h *InboxController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()

		entries, err := h.UC.Execute(ctx, usecase.ListInboxInput{UserID: userID})
		if err != nil {
			replyError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"conversations": entries})
	}
}
