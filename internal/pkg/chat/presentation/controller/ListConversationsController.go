package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/auth"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/usecase"
)

// ListConversationsController serves the caller's conversation list.
type ListConversationsController struct {
	UC      *usecase.ListConversationsUseCase
	Timeout time.Duration
}

func NewListConversationsController(uc *usecase.ListConversationsUseCase, timeout time.Duration) *ListConversationsController {
	return &ListConversationsController{UC: uc, Timeout: orDefaultTimeout(timeout)}
}

func (h *ListConversationsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
		defer cancel()

		sums, err := h.UC.Execute(ctx, usecase.ListConversationsInput{UserID: auth.UserID(c)})
		if err != nil {
			writeUseCaseError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": sums, "count": len(sums)})
	}
}
