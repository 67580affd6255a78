package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/auth"
	cacheport "github.com/axai-kaizoku/partout-sub001/internal/infrastructure/cache/port"
	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/metrics"
	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/realtime"
	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/live"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/usecase"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/notification"
)

// ChatSocketDeps wires the websocket endpoint. Cache is optional.
type ChatSocketDeps struct {
	Router           *realtime.Router
	Source           live.Source
	Registry         *notification.Registry
	Cache            cacheport.Cache
	SendMessage      *usecase.SendMessageUseCase
	OpenConversation *usecase.OpenConversationUseCase
	GetMessage       *usecase.GetMessageUseCase
	AllowedOrigins   []string
	NotificationIcon string
	Log              *zap.Logger
}

// ChatSocketController handles the websocket endpoint: one session per browser tab.
type ChatSocketController struct {
	deps              ChatSocketDeps
	log               *zap.Logger
	upgrader          websocket.Upgrader
	inflightTimeout   time.Duration
	permissionTimeout time.Duration
}

func NewChatSocketController(deps ChatSocketDeps) *ChatSocketController {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatSocketController{
		deps: deps,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(deps.AllowedOrigins),
		},
		inflightTimeout:   5 * time.Second,
		permissionTimeout: time.Minute,
	}
}

// originChecker accepts same-host requests, requests without an Origin header,
// and the configured origins. A "*" entry allows everything.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return strings.EqualFold(strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"), r.Host)
	}
}

type inboundFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Body           string `json:"body,omitempty"`
	ClientRef      string `json:"client_ref,omitempty"`
	Visible        *bool  `json:"visible,omitempty"`
	Path           string `json:"path,omitempty"`
	State          string `json:"state,omitempty"`
	Tag            string `json:"tag,omitempty"`
}

// frame covers the small server frames; unused fields are omitted.
type frame struct {
	Type           string `json:"type"`
	SessionID      string `json:"session_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	ClientRef      string `json:"client_ref,omitempty"`
	Permission     string `json:"permission,omitempty"`
	Granted        *bool  `json:"granted,omitempty"`
	Tag            string `json:"tag,omitempty"`
	URL            string `json:"url,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type openedFrame struct {
	Type           string         `json:"type"`
	ConversationID string         `json:"conversation_id"`
	Messages       []chat.Message `json:"messages"`
}

type messageFrame struct {
	Type      string       `json:"type"`
	ClientRef string       `json:"client_ref,omitempty"`
	Message   chat.Message `json:"message"`
}

type notificationFrame struct {
	Type         string                    `json:"type"`
	Notification notification.Notification `json:"notification"`
}

const (
	defaultReadTimeout = 60 * time.Second
	historyPageSize    = 50
)

// Handle upgrades HTTP connections to websocket and processes frames until the client disconnects.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.UserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrMissingToken.Error()})
			return
		}

		ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; just log and return.
			ctl.log.Debug("websocket upgrade failed", zap.Error(err))
			return
		}

		conn := realtime.NewConnection(userID, ws)
		ctl.deps.Router.Attach(conn)
		defer func() {
			ctl.deps.Router.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		session := newTabSession(conn,
			notification.ParsePermission(c.Query("permission")),
			notification.Presence{Visible: c.Query("visible") != "false", Path: c.Query("path")},
		)

		trayOpts := []notification.TrayOption{notification.WithLogger(ctl.log)}
		if ctl.deps.Cache != nil {
			trayOpts = append(trayOpts, notification.WithCache(ctl.deps.Cache, userID))
		}
		dispatcher := notification.NewDispatcher(
			notification.NewGate(session, ctl.log),
			session,
			notification.NewTray(session, trayOpts...),
			ctl.deps.NotificationIcon,
			ctl.log,
		)
		defer dispatcher.Close()
		if ctl.deps.Registry != nil {
			unregister := ctl.deps.Registry.Register(userID, dispatcher)
			defer unregister()
		}

		window := live.NewSubscriber(ctl.deps.Source, func(m chat.Message) {
			_ = conn.SendJSON(messageFrame{Type: "message", Message: m})
		}, ctl.log)
		defer window.Close()

		ws.SetReadLimit(1 << 20) // 1MB payload cap
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		_ = conn.SendJSON(frame{Type: "connected", SessionID: conn.ID, Permission: string(session.Permission())})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				ctl.log.Debug("websocket read failed", zap.String("user_id", userID), zap.Error(err))
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))

			var in inboundFrame
			if err := json.Unmarshal(data, &in); err != nil {
				ctl.replyError(conn, "bad_request", "invalid payload")
				continue
			}

			switch in.Type {
			case "open":
				ctl.handleOpen(c, conn, window, in)
			case "close_conversation":
				window.Sync("", false)
				_ = conn.SendJSON(frame{Type: "closed"})
			case "message":
				ctl.handleMessage(c, conn, in)
			case "presence":
				ctl.handlePresence(session, dispatcher, in)
			case "permission":
				session.reportPermission(notification.ParsePermission(in.State))
				dispatcher.Gate().Refresh()
			case "request_permission":
				go ctl.handleRequestPermission(conn, dispatcher)
			case "notification_click":
				if in.Tag == "" {
					ctl.replyError(conn, "bad_request", "tag is required")
					continue
				}
				dispatcher.Click(in.Tag)
			case "ping":
				_ = conn.SendJSON(frame{Type: "pong"})
			default:
				ctl.replyError(conn, "unsupported_type", "unknown frame type")
			}
		}
	}
}

func (ctl *ChatSocketController) handleOpen(c *gin.Context, conn *realtime.Connection, window *live.Subscriber, in inboundFrame) {
	if in.ConversationID == "" {
		ctl.replyError(conn, "bad_request", "conversation_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	if _, err := ctl.deps.OpenConversation.Execute(ctx, usecase.OpenConversationInput{
		ConversationID: in.ConversationID,
		UserID:         conn.UserID,
	}); err != nil {
		window.Sync("", false)
		ctl.handleUseCaseError(conn, err)
		return
	}

	history, err := ctl.deps.GetMessage.Execute(ctx, usecase.GetMessageInput{
		ConversationID: in.ConversationID,
		UserID:         conn.UserID,
		Limit:          historyPageSize,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}

	window.Sync(in.ConversationID, true)
	_ = conn.SendJSON(openedFrame{Type: "opened", ConversationID: in.ConversationID, Messages: history})
}

func (ctl *ChatSocketController) handleMessage(c *gin.Context, conn *realtime.Connection, in inboundFrame) {
	if in.ConversationID == "" {
		ctl.replyError(conn, "bad_request", "conversation_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	msg, err := ctl.deps.SendMessage.Execute(ctx, usecase.SendMessageInput{
		ConversationID: in.ConversationID,
		SenderID:       conn.UserID,
		Body:           in.Body,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}

	metrics.MessagesSent.WithLabelValues("socket").Inc()
	_ = conn.SendJSON(messageFrame{Type: "message_sent", ClientRef: in.ClientRef, Message: *msg})
}

func (ctl *ChatSocketController) handlePresence(session *tabSession, dispatcher *notification.Dispatcher, in inboundFrame) {
	p := session.Presence()
	if in.Visible != nil {
		p.Visible = *in.Visible
	}
	if in.Path != "" {
		p.Path = in.Path
	}
	if session.setPresence(p) {
		// Permission may have changed in browser settings while hidden.
		dispatcher.Gate().Refresh()
	}
}

func (ctl *ChatSocketController) handleRequestPermission(conn *realtime.Connection, dispatcher *notification.Dispatcher) {
	ctx, cancel := context.WithTimeout(context.Background(), ctl.permissionTimeout)
	defer cancel()

	granted := dispatcher.Gate().Request(ctx)
	_ = conn.SendJSON(frame{
		Type:       "permission_result",
		Permission: string(dispatcher.Gate().Current()),
		Granted:    &granted,
	})
}

func (ctl *ChatSocketController) handleUseCaseError(conn *realtime.Connection, err error) {
	code := errorCode(err)
	if code == "internal_error" {
		ctl.log.Error("chat socket use case failed", zap.String("user_id", conn.UserID), zap.Error(err))
	}
	ctl.replyError(conn, code, publicMessage(code, err))
}

func (ctl *ChatSocketController) replyError(conn *realtime.Connection, code string, message string) {
	_ = conn.SendJSON(errorFrame{
		Type:  "error",
		Code:  code,
		Error: message,
	})
}
