package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/auth"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/usecase"
)

// ListParticipantsController returns buyer and seller profiles of a conversation.
type ListParticipantsController struct {
	UC      *usecase.ListParticipantsUseCase
	Timeout time.Duration
}

func NewListParticipantsController(uc *usecase.ListParticipantsUseCase, timeout time.Duration) *ListParticipantsController {
	return &ListParticipantsController{UC: uc, Timeout: orDefaultTimeout(timeout)}
}

func (h *ListParticipantsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()

		participants, err := h.UC.Execute(ctx, usecase.ListParticipantsInput{
			ConversationID: c.Param("conversationId"),
			UserID:         auth.UserID(c),
		})
		if err != nil {
			writeUseCaseError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"participants": participants})
	}
}
