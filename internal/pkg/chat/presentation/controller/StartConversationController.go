package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/auth"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/usecase"
)

// StartConversationController handles the conversation creation endpoint
// One controller per endpoint
type StartConversationController struct {
	UC      *usecase.StartConversationUseCase
	Timeout time.Duration
}

func NewStartConversationController(uc *usecase.StartConversationUseCase, timeout time.Duration) *StartConversationController {
	return &StartConversationController{UC: uc, Timeout: orDefaultTimeout(timeout)}
}

type startConversationRequest struct {
	SellerID string `json:"seller_id"`
	PartID   string `json:"part_id" binding:"required"`
}

// Handle starts, or returns the existing, conversation between the caller and a seller.
func (h *StartConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req startConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		in := usecase.StartConversationInput{BuyerID: auth.UserID(c), SellerID: req.SellerID, PartID: req.PartID}
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()
		conv, created, err := h.UC.Execute(ctx, in)
		if err != nil {
			writeUseCaseError(c, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{
			"conversation": conv,
			"created":      created,
		})
	}
}
