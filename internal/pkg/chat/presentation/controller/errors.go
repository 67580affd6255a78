package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/usecase"
)

const defaultRequestTimeout = 3 * time.Second

// errorCode maps a use case error onto the code shared by HTTP and websocket replies.
func errorCode(err error) string {
	switch {
	case errors.Is(err, usecase.ErrPersistence):
		return "internal_error"
	case errors.Is(err, chat.ErrNotParticipant):
		return "forbidden"
	case errors.Is(err, chat.ErrConversationNotFound):
		return "not_found"
	default:
		return "bad_request"
	}
}

func statusFor(code string) int {
	switch code {
	case "internal_error":
		return http.StatusInternalServerError
	case "forbidden":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// publicMessage hides infrastructure details from callers.
func publicMessage(code string, err error) string {
	if code == "internal_error" {
		return "unexpected persistence error"
	}
	return err.Error()
}

func writeUseCaseError(c *gin.Context, err error) {
	code := errorCode(err)
	c.JSON(statusFor(code), gin.H{"error": publicMessage(code, err), "code": code})
}

func orDefaultTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultRequestTimeout
	}
	return d
}
