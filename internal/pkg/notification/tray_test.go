package notification_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	cacheport "github.com/axai-kaizoku/partout-sub001/internal/infrastructure/cache/port"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/notification"
)

type memCache struct {
	mu   sync.Mutex
	vals map[string]string
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{vals: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.vals[key]
	if !ok {
		return "", cacheport.ErrMiss
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *memCache) Del(_ context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := c.vals[k]; ok {
			delete(c.vals, k)
			n++
		}
	}
	return n, nil
}

func (c *memCache) Ping(context.Context) error { return nil }
func (c *memCache) Close() error               { return nil }

func TestTrayRecordsLiveTags(t *testing.T) {
	cache := newMemCache()
	clock := &fakeClock{}
	tray := notification.NewTray(&fakeDisplay{},
		notification.WithAfterFunc(clock.AfterFunc),
		notification.WithCache(cache, "user-1"),
	)

	if _, err := tray.Show(notification.Build(sample, "")); err != nil {
		t.Fatalf("show: %v", err)
	}
	key := "notification:user-1:abc"
	if _, err := cache.Get(context.Background(), key); err != nil {
		t.Fatalf("expected tag to be recorded: %v", err)
	}
	if cache.ttls[key] != 5*time.Second {
		t.Fatalf("expected 5s ttl, got %v", cache.ttls[key])
	}

	clock.fire(0)
	if _, err := cache.Get(context.Background(), key); err != cacheport.ErrMiss {
		t.Fatalf("expected tag to be cleared on expiry, got %v", err)
	}
}

func TestTrayDismissUnknownTag(t *testing.T) {
	display := &fakeDisplay{}
	tray := notification.NewTray(display, notification.WithAfterFunc((&fakeClock{}).AfterFunc))
	if tray.Dismiss("nope") {
		t.Fatalf("expected dismiss of unknown tag to report false")
	}
	if len(display.log()) != 0 {
		t.Fatalf("expected no display calls, got %v", display.log())
	}
}

func TestTrayClosedRejectsShow(t *testing.T) {
	tray := notification.NewTray(&fakeDisplay{}, notification.WithAfterFunc((&fakeClock{}).AfterFunc))
	tray.Close()
	if _, err := tray.Show(notification.Build(sample, "")); err == nil {
		t.Fatalf("expected closed tray to reject show")
	}
}

// gatedDisplay blocks Show for notifications whose body is held until released.
type gatedDisplay struct {
	fakeDisplay
	hold    string
	entered chan struct{}
	release chan struct{}
}

func (d *gatedDisplay) Show(n notification.Notification) error {
	if n.Body == d.hold {
		close(d.entered)
		<-d.release
	}
	return d.fakeDisplay.Show(n)
}

func TestTraySameTagRendersInShowOrder(t *testing.T) {
	display := &gatedDisplay{hold: "old", entered: make(chan struct{}), release: make(chan struct{})}
	tray := notification.NewTray(display, notification.WithAfterFunc((&fakeClock{}).AfterFunc))

	older := notification.Notification{ID: "1", Tag: "abc", Body: "old"}
	newer := notification.Notification{ID: "2", Tag: "abc", Body: "new"}

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = tray.Show(older)
	}()
	<-display.entered

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		_, _ = tray.Show(newer)
	}()

	select {
	case <-secondDone:
		t.Fatalf("expected the second show to wait for the first render")
	case <-time.After(50 * time.Millisecond):
	}
	close(display.release)
	<-firstDone
	<-secondDone

	got, ok := tray.Get("abc")
	if !ok || got.Body != "new" {
		t.Fatalf("expected tray to track the newer notification, got %+v", got)
	}
	shown := display.shown
	if len(shown) != 2 || shown[len(shown)-1].Body != "new" {
		t.Fatalf("expected the newer notification rendered last, got %+v", shown)
	}
}

func TestTrayFailedShowLeavesNothingBehind(t *testing.T) {
	cache := newMemCache()
	clock := &fakeClock{}
	display := &fakeDisplay{showErr: errors.New("tab gone")}
	tray := notification.NewTray(display,
		notification.WithAfterFunc(clock.AfterFunc),
		notification.WithCache(cache, "user-1"),
	)

	if _, err := tray.Show(notification.Build(sample, "")); err == nil {
		t.Fatalf("expected display error")
	}
	if tray.Live() != 0 {
		t.Fatalf("expected no live entry after a failed show")
	}
	if !clock.timers[0].stopped {
		t.Fatalf("expected the auto-close timer to be stopped")
	}
	if _, err := cache.Get(context.Background(), "notification:user-1:abc"); err != cacheport.ErrMiss {
		t.Fatalf("expected tag record cleared, got %v", err)
	}

	display.mu.Lock()
	display.showErr = nil
	display.mu.Unlock()
	replaced, err := tray.Show(notification.Build(sample, ""))
	if err != nil || replaced {
		t.Fatalf("expected a fresh show, got replaced=%v err=%v", replaced, err)
	}
}
