package adapter_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	cacheport "github.com/axai-kaizoku/partout-sub001/internal/infrastructure/cache/port"
	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
	"github.com/axai-kaizoku/partout-sub001/internal/repository/adapter"
)

type countingDirectory struct {
	profiles int
	parts    int
}

func (d *countingDirectory) GetProfile(_ context.Context, userID string) (chat.Profile, error) {
	d.profiles++
	return chat.Profile{UserID: userID, DisplayName: "Jane"}, nil
}

func (d *countingDirectory) GetPart(_ context.Context, partID string) (chat.Part, error) {
	d.parts++
	return chat.Part{ID: partID, Title: "Brake Pads", SellerID: "seller"}, nil
}

type mapCache struct {
	mu     sync.Mutex
	vals   map[string]string
	getErr error
}

func (c *mapCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", c.getErr
	}
	v, ok := c.vals[key]
	if !ok {
		return "", cacheport.ErrMiss
	}
	return v, nil
}

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vals == nil {
		c.vals = map[string]string{}
	}
	c.vals[key] = value
	return nil
}

func (c *mapCache) Del(_ context.Context, keys ...string) (int64, error) { return 0, nil }
func (c *mapCache) Ping(context.Context) error                           { return nil }
func (c *mapCache) Close() error                                         { return nil }

func TestCachedDirectoryReadsThrough(t *testing.T) {
	src := &countingDirectory{}
	repo := adapter.NewCachedDirectoryRepository(src, &mapCache{}, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := repo.GetProfile(ctx, "buyer")
		if err != nil || p.DisplayName != "Jane" {
			t.Fatalf("get profile: %+v %v", p, err)
		}
		part, err := repo.GetPart(ctx, "part-1")
		if err != nil || part.Title != "Brake Pads" {
			t.Fatalf("get part: %+v %v", part, err)
		}
	}
	if src.profiles != 1 || src.parts != 1 {
		t.Fatalf("expected one source read each, got profiles=%d parts=%d", src.profiles, src.parts)
	}
}

func TestCachedDirectoryFallsBackOnCacheError(t *testing.T) {
	src := &countingDirectory{}
	repo := adapter.NewCachedDirectoryRepository(src, &mapCache{getErr: errors.New("redis down")}, time.Minute, nil)

	for i := 0; i < 2; i++ {
		if _, err := repo.GetProfile(context.Background(), "buyer"); err != nil {
			t.Fatalf("get profile: %v", err)
		}
	}
	if src.profiles != 2 {
		t.Fatalf("expected every read to hit the source, got %d", src.profiles)
	}
}
