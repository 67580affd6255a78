package realtime

import (
	"sync"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/metrics"
)

// CloseSessionReplaced is sent to the oldest tab when a user exceeds the tab limit.
const CloseSessionReplaced = 4001

// Router tracks websocket sessions per user. A user may hold several tabs,
// each with its own Connection, up to maxPerUser.
type Router struct {
	mu           sync.RWMutex
	maxPerUser   int
	seq          uint64
	sessions     map[string]*Connection            // sessionID -> connection
	attachedAt   map[string]uint64                 // sessionID -> attach order
	userSessions map[string]map[string]*Connection // userID -> sessionID -> connection
}

// NewRouter constructs a Router. maxPerUser <= 0 means unlimited tabs.
func NewRouter(maxPerUser int) *Router {
	return &Router{
		maxPerUser:   maxPerUser,
		sessions:     make(map[string]*Connection),
		attachedAt:   make(map[string]uint64),
		userSessions: make(map[string]map[string]*Connection),
	}
}

// Attach registers conn and starts its write loop. When the user is at the
// tab limit the oldest session is detached and closed after the swap.
func (r *Router) Attach(conn *Connection) {
	var evicted *Connection

	r.mu.Lock()
	tabs := r.userSessions[conn.UserID]
	if tabs == nil {
		tabs = make(map[string]*Connection)
		r.userSessions[conn.UserID] = tabs
	}
	if r.maxPerUser > 0 && len(tabs) >= r.maxPerUser {
		evicted = r.oldestLocked(tabs)
		if evicted != nil {
			r.detachLocked(evicted.ID)
		}
	}

	r.seq++
	r.sessions[conn.ID] = conn
	r.attachedAt[conn.ID] = r.seq
	tabs[conn.ID] = conn
	r.mu.Unlock()

	conn.Start()
	metrics.Sessions.Inc()

	if evicted != nil {
		evicted.Close(CloseSessionReplaced, "session replaced")
	}
}

// Detach removes conn if it is still tracked.
func (r *Router) Detach(conn *Connection) {
	r.mu.Lock()
	r.detachLocked(conn.ID)
	r.mu.Unlock()
}

// NotifyUser delivers payload to every open tab of userID and reports how many accepted it.
func (r *Router) NotifyUser(userID string, payload []byte) int {
	r.mu.RLock()
	tabs := make([]*Connection, 0, len(r.userSessions[userID]))
	for _, conn := range r.userSessions[userID] {
		tabs = append(tabs, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range tabs {
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// Count returns the number of tracked sessions.
func (r *Router) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// UserCount returns the number of open tabs for userID.
func (r *Router) UserCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userSessions[userID])
}

// Close terminates all tracked connections and clears router state.
func (r *Router) Close() {
	r.mu.Lock()
	sessions := make([]*Connection, 0, len(r.sessions))
	for _, conn := range r.sessions {
		sessions = append(sessions, conn)
	}
	r.sessions = make(map[string]*Connection)
	r.attachedAt = make(map[string]uint64)
	r.userSessions = make(map[string]map[string]*Connection)
	r.mu.Unlock()

	metrics.Sessions.Sub(float64(len(sessions)))
	for _, conn := range sessions {
		conn.Close(1001, "router shutdown")
	}
}

func (r *Router) detachLocked(sessionID string) {
	conn, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)
	delete(r.attachedAt, sessionID)
	metrics.Sessions.Dec()

	if tabs, ok := r.userSessions[conn.UserID]; ok {
		delete(tabs, sessionID)
		if len(tabs) == 0 {
			delete(r.userSessions, conn.UserID)
		}
	}
}

func (r *Router) oldestLocked(tabs map[string]*Connection) *Connection {
	var (
		oldest *Connection
		first  uint64
	)
	for id, conn := range tabs {
		if at := r.attachedAt[id]; oldest == nil || at < first {
			oldest, first = conn, at
		}
	}
	return oldest
}
