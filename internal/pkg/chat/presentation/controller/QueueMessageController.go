package controller

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/auth"
	queueport "github.com/axai-kaizoku/partout-sub001/internal/infrastructure/queue/port"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/task"
)

// QueueMessageController enqueues a message send for background processing.
// The outcome reaches the sender's tabs as a message_sent or message_failed frame.
type QueueMessageController struct {
	Q       queueport.Client
	Timeout time.Duration
}

func NewQueueMessageController(client queueport.Client, timeout time.Duration) *QueueMessageController {
	return &QueueMessageController{Q: client, Timeout: orDefaultTimeout(timeout)}
}

type queueMessageRequest struct {
	Body      string `json:"body" binding:"required"`
	ClientRef string `json:"client_ref"`
}

// Handle returns a gin handler that enqueues a background task to send a message
func (h *QueueMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.Q == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "message queue is not configured"})
			return
		}

		conversationID := c.Param("conversationId")
		if conversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId is required"})
			return
		}

		var req queueMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if strings.TrimSpace(req.Body) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "body must not be blank"})
			return
		}

		senderID := auth.UserID(c)
		t, err := task.NewSendMessageTask(task.SendMessageTaskPayload{
			ConversationID: conversationID,
			SenderID:       senderID,
			Body:           req.Body,
			ClientRef:      req.ClientRef,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode task payload"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()

		opts := queueport.EnqueueOption{Queue: task.SendMessageQueue, MaxRetry: 20}
		id, err := h.Q.Enqueue(ctx, t, opts)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to enqueue message"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"status":          "queued",
			"task_id":         id,
			"conversation_id": conversationID,
			"client_ref":      req.ClientRef,
		})
	}
}
