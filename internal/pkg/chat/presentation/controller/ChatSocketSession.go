package controller

import (
	"context"
	"sync"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/realtime"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/notification"
)

// tabSession is the server-side mirror of one browser tab. It answers for the
// tab's notification permission, its presence and its notification display,
// all over the tab's websocket.
type tabSession struct {
	conn *realtime.Connection

	mu         sync.Mutex
	permission notification.Permission
	presence   notification.Presence
	pending    chan notification.Permission
}

var (
	_ notification.PermissionProvider = (*tabSession)(nil)
	_ notification.PresenceProvider   = (*tabSession)(nil)
	_ notification.Display            = (*tabSession)(nil)
)

func newTabSession(conn *realtime.Connection, permission notification.Permission, presence notification.Presence) *tabSession {
	return &tabSession{conn: conn, permission: permission, presence: presence}
}

func (s *tabSession) Permission() notification.Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

// RequestPermission asks the tab to prompt and waits for its permission frame.
func (s *tabSession) RequestPermission(ctx context.Context) (notification.Permission, error) {
	s.mu.Lock()
	if s.pending == nil {
		s.pending = make(chan notification.Permission, 1)
	}
	reply := s.pending
	s.mu.Unlock()

	if err := s.conn.SendJSON(frame{Type: "permission_request"}); err != nil {
		return "", err
	}

	select {
	case p := <-reply:
		return p, nil
	case <-s.conn.Done():
		return "", realtime.ErrConnectionClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// reportPermission records the state the tab reported and wakes a pending request.
func (s *tabSession) reportPermission(p notification.Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permission = p
	if s.pending != nil {
		select {
		case s.pending <- p:
		default:
		}
		s.pending = nil
	}
}

func (s *tabSession) Presence() notification.Presence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence
}

// setPresence stores p and reports whether the tab just became visible.
func (s *tabSession) setPresence(p notification.Presence) (becameVisible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	becameVisible = !s.presence.Visible && p.Visible
	s.presence = p
	return becameVisible
}

func (s *tabSession) Show(n notification.Notification) error {
	return s.conn.SendJSON(notificationFrame{Type: "notification", Notification: n})
}

func (s *tabSession) Close(tag string) error {
	return s.conn.SendJSON(frame{Type: "notification_close", Tag: tag})
}

func (s *tabSession) Focus() error {
	return s.conn.SendJSON(frame{Type: "focus"})
}

func (s *tabSession) Navigate(url string) error {
	return s.conn.SendJSON(frame{Type: "navigate", URL: url})
}
