package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/auth"
	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/metrics"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/usecase"
)

// SendMessageController handles the send-message endpoint only (one controller per endpoint)
type SendMessageController struct {
	UC      *usecase.SendMessageUseCase
	Timeout time.Duration
}

func NewSendMessageController(uc *usecase.SendMessageUseCase, timeout time.Duration) *SendMessageController {
	return &SendMessageController{UC: uc, Timeout: orDefaultTimeout(timeout)}
}

// sendMessageRequest is the DTO for the HTTP request body
type sendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// Handle returns a gin handler that persists a message and fans it out to live subscribers
func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")
		if conversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId is required"})
			return
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		in := usecase.SendMessageInput{
			ConversationID: conversationID,
			SenderID:       auth.UserID(c),
			Body:           req.Body,
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()
		msg, err := h.UC.Execute(ctx, in)
		if err != nil {
			writeUseCaseError(c, err)
			return
		}

		metrics.MessagesSent.WithLabelValues("http").Inc()
		c.JSON(http.StatusCreated, msg)
	}
}
