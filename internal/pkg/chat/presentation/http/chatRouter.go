package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cacheport "github.com/axai-kaizoku/partout-sub001/internal/infrastructure/cache/port"
	qport "github.com/axai-kaizoku/partout-sub001/internal/infrastructure/queue/port"
	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/realtime"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/live"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/usecase"
	repository "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/persistence/repository/port"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/presentation/controller"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/notification"
)

// Deps carries what the chat endpoints need. Queue, Cache and Publisher may be nil.
type Deps struct {
	Repo             repository.ChatRepository
	Directory        repository.DirectoryRepository
	Publisher        usecase.EventPublisher
	Source           live.Source
	Router           *realtime.Router
	Registry         *notification.Registry
	Queue            qport.Client
	Cache            cacheport.Cache
	AllowedOrigins   []string
	NotificationIcon string
	RequestTimeout   time.Duration
	Log              *zap.Logger
}

// RegisterRoutes registers chat-related HTTP endpoints under the given router group
// It constructs per-endpoint controllers and binds them directly to routes.
// The group is expected to run the auth middleware.
func RegisterRoutes(g *gin.RouterGroup, deps Deps) {
	sendUC := usecase.NewSendMessageUseCase(deps.Repo, deps.Publisher, deps.Log)
	getUC := usecase.NewGetMessageUseCase(deps.Repo)
	openUC := usecase.NewOpenConversationUseCase(deps.Repo)

	startCtl := controller.NewStartConversationController(usecase.NewStartConversationUseCase(deps.Repo, deps.Directory), deps.RequestTimeout)
	listCtl := controller.NewListConversationsController(usecase.NewListConversationsUseCase(deps.Repo), deps.RequestTimeout)
	getMsgCtl := controller.NewGetMessageController(getUC, deps.RequestTimeout)
	sendMsgCtl := controller.NewSendMessageController(sendUC, deps.RequestTimeout)
	queueMsgCtl := controller.NewQueueMessageController(deps.Queue, deps.RequestTimeout)
	participantsCtl := controller.NewListParticipantsController(usecase.NewListParticipantsUseCase(deps.Repo, deps.Directory), deps.RequestTimeout)
	socketCtl := controller.NewChatSocketController(controller.ChatSocketDeps{
		Router:           deps.Router,
		Source:           deps.Source,
		Registry:         deps.Registry,
		Cache:            deps.Cache,
		SendMessage:      sendUC,
		OpenConversation: openUC,
		GetMessage:       getUC,
		AllowedOrigins:   deps.AllowedOrigins,
		NotificationIcon: deps.NotificationIcon,
		Log:              deps.Log,
	})

	// GET /api/v1/conversations -> caller's conversation list
	g.GET("/conversations", listCtl.Handle())

	// POST /api/v1/conversations -> start (or reuse) a conversation about a part
	g.POST("/conversations", startCtl.Handle())

	// GET /api/v1/conversations/:conversationId/messages -> fetch a page of messages
	g.GET("/conversations/:conversationId/messages", getMsgCtl.Handle())

	// POST /api/v1/conversations/:conversationId/messages -> send a message
	g.POST("/conversations/:conversationId/messages", sendMsgCtl.Handle())

	// POST /api/v1/conversations/:conversationId/messages/queued -> send through the background queue
	g.POST("/conversations/:conversationId/messages/queued", queueMsgCtl.Handle())

	// GET /api/v1/conversations/:conversationId/participants -> buyer and seller profiles
	g.GET("/conversations/:conversationId/participants", participantsCtl.Handle())

	// GET /api/v1/ws -> websocket session, one per tab
	g.GET("/ws", socketCtl.Handle())
}
