package notification

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/metrics"
)

// Permission mirrors the tab's notification permission.
type Permission string

const (
	PermissionDefault     Permission = "default"
	PermissionGranted     Permission = "granted"
	PermissionDenied      Permission = "denied"
	PermissionUnsupported Permission = "unsupported" // tab has no notification API
)

// ParsePermission maps a reported state onto a Permission; unknown values read as default.
func ParsePermission(s string) Permission {
	switch p := Permission(strings.ToLower(strings.TrimSpace(s))); p {
	case PermissionGranted, PermissionDenied, PermissionUnsupported:
		return p
	default:
		return PermissionDefault
	}
}

// PermissionProvider is the tab-side capability behind the gate.
type PermissionProvider interface {
	// Permission returns the last known state without prompting.
	Permission() Permission
	// RequestPermission may prompt the user and returns the resulting state.
	RequestPermission(ctx context.Context) (Permission, error)
}

// Gate decides whether notifications may be shown and when to prompt.
// A denial is final from the gate's point of view: once the provider reports
// denied, Request returns false without prompting again.
type Gate struct {
	provider PermissionProvider
	log      *zap.Logger

	requestMu sync.Mutex // one prompt at a time

	mu      sync.RWMutex
	current Permission
}

func NewGate(provider PermissionProvider, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{provider: provider, log: log, current: provider.Permission()}
}

// Current reflects the provider state as of construction or the last Refresh/Request.
func (g *Gate) Current() Permission {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

// Granted is shorthand for Current() == PermissionGranted.
func (g *Gate) Granted() bool {
	return g.Current() == PermissionGranted
}

// Refresh re-reads the provider. Call it when the tab becomes visible again so
// changes made through browser settings are picked up.
func (g *Gate) Refresh() Permission {
	p := g.provider.Permission()
	g.set(p)
	return p
}

// Request returns true when notifications are allowed, prompting only when the
// state is still undecided. Provider errors count as not granted.
func (g *Gate) Request(ctx context.Context) bool {
	g.requestMu.Lock()
	defer g.requestMu.Unlock()

	switch g.Current() {
	case PermissionGranted:
		return true
	case PermissionDenied, PermissionUnsupported:
		metrics.PermissionPrompts.WithLabelValues("skipped").Inc()
		return false
	}

	p, err := g.provider.RequestPermission(ctx)
	if err != nil {
		metrics.PermissionPrompts.WithLabelValues("error").Inc()
		g.log.Debug("permission request failed", zap.Error(err))
		return false
	}
	p = ParsePermission(string(p))
	g.set(p)
	metrics.PermissionPrompts.WithLabelValues(string(p)).Inc()
	return p == PermissionGranted
}

func (g *Gate) set(p Permission) {
	g.mu.Lock()
	g.current = p
	g.mu.Unlock()
}
