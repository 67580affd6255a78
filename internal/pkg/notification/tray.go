package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	cacheport "github.com/axai-kaizoku/partout-sub001/internal/infrastructure/cache/port"
)

// AutoCloseAfter is how long a notification stays up before it is closed.
const AutoCloseAfter = 5 * time.Second

// Timer is the subset of *time.Timer the tray needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules fn after d. time.AfterFunc satisfies it.
type AfterFunc func(d time.Duration, fn func()) Timer

func realAfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// TrayOption configures a Tray.
type TrayOption func(*Tray)

// WithAfterFunc swaps the timer source, mostly for tests.
func WithAfterFunc(f AfterFunc) TrayOption {
	return func(t *Tray) { t.after = f }
}

// WithCache records live tags under notification:<scope>:<tag>.
func WithCache(c cacheport.Cache, scope string) TrayOption {
	return func(t *Tray) {
		t.cache = c
		t.scope = scope
	}
}

// WithLogger sets the tray logger.
func WithLogger(log *zap.Logger) TrayOption {
	return func(t *Tray) { t.log = log }
}

type trayEntry struct {
	n     Notification
	timer Timer
}

// Tray tracks what is on screen, at most one notification per tag.
type Tray struct {
	display Display
	after   AfterFunc
	cache   cacheport.Cache
	scope   string
	log     *zap.Logger

	// render orders display calls with the bookkeeping that caused them;
	// it is always taken before mu.
	render sync.Mutex
	mu     sync.Mutex
	live   map[string]trayEntry
	closed bool
}

func NewTray(display Display, opts ...TrayOption) *Tray {
	t := &Tray{
		display: display,
		after:   realAfterFunc,
		log:     zap.NewNop(),
		live:    make(map[string]trayEntry),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}
	return t
}

// Show puts n on screen, replacing any notification with the same tag.
// It reports whether an existing one was replaced.
// A failed display leaves no entry behind for the tag.
func (t *Tray) Show(n Notification) (replaced bool, err error) {
	t.render.Lock()
	defer t.render.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false, fmt.Errorf("notification: tray closed")
	}
	if prev, ok := t.live[n.Tag]; ok {
		prev.timer.Stop()
		replaced = true
	}
	id, tag := n.ID, n.Tag
	t.live[tag] = trayEntry{
		n:     n,
		timer: t.after(AutoCloseAfter, func() { t.expire(tag, id) }),
	}
	t.mu.Unlock()

	t.remember(tag)
	if err := t.display.Show(n); err != nil {
		t.mu.Lock()
		if e, ok := t.live[tag]; ok && e.n.ID == id {
			e.timer.Stop()
			delete(t.live, tag)
		}
		t.mu.Unlock()
		t.forget(tag)
		return false, err
	}
	return replaced, nil
}

// Dismiss closes the notification for tag, if any.
func (t *Tray) Dismiss(tag string) bool {
	t.render.Lock()
	defer t.render.Unlock()

	t.mu.Lock()
	entry, ok := t.live[tag]
	if ok {
		entry.timer.Stop()
		delete(t.live, tag)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	t.close(tag)
	return true
}

// Get returns the notification currently shown for tag.
func (t *Tray) Get(tag string) (Notification, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.live[tag]
	return e.n, ok
}

// Live is the number of notifications on screen.
func (t *Tray) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// Close stops all timers and forgets everything without touching the display.
func (t *Tray) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for tag, e := range t.live {
		e.timer.Stop()
		delete(t.live, tag)
	}
	t.closed = true
}

// expire fires from the auto-close timer; a replaced notification is left alone.
func (t *Tray) expire(tag, id string) {
	t.render.Lock()
	defer t.render.Unlock()

	t.mu.Lock()
	e, ok := t.live[tag]
	if !ok || e.n.ID != id {
		t.mu.Unlock()
		return
	}
	delete(t.live, tag)
	t.mu.Unlock()

	t.close(tag)
}

func (t *Tray) close(tag string) {
	if err := t.display.Close(tag); err != nil {
		t.log.Debug("closing notification failed", zap.String("tag", tag), zap.Error(err))
	}
	t.forget(tag)
}

func (t *Tray) cacheKey(tag string) string {
	return fmt.Sprintf("notification:%s:%s", t.scope, tag)
}

func (t *Tray) remember(tag string) {
	if t.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := t.cache.Set(ctx, t.cacheKey(tag), "1", AutoCloseAfter); err != nil {
		t.log.Debug("recording notification tag failed", zap.String("tag", tag), zap.Error(err))
	}
}

func (t *Tray) forget(tag string) {
	if t.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := t.cache.Del(ctx, t.cacheKey(tag)); err != nil {
		t.log.Debug("clearing notification tag failed", zap.String("tag", tag), zap.Error(err))
	}
}
