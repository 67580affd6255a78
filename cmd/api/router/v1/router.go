package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/auth"
	httpHandler "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/presentation/http"
)

// RegisterRoutes mounts all version 1 API routes under /api/v1
func RegisterRoutes(r *gin.Engine, verifier *auth.Verifier, deps httpHandler.Deps) {
	v1 := r.Group("/api/v1")
	v1.Use(auth.Middleware(verifier, deps.Log))
	// Pass storage, realtime and queue dependencies down to the HTTP layer
	httpHandler.RegisterRoutes(v1, deps)
}
