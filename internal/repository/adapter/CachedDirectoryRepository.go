package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	cacheport "github.com/axai-kaizoku/partout-sub001/internal/infrastructure/cache/port"
	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
	repository "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/persistence/repository/port"
)

// CachedDirectoryRepository puts a read-through cache in front of profile and
// part lookups.
type CachedDirectoryRepository struct {
	next  repository.DirectoryRepository
	cache cacheport.Cache
	ttl   time.Duration
	log   *zap.Logger
}

var _ repository.DirectoryRepository = (*CachedDirectoryRepository)(nil)

func NewCachedDirectoryRepository(next repository.DirectoryRepository, cache cacheport.Cache, ttl time.Duration, log *zap.Logger) *CachedDirectoryRepository {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDirectoryRepository{next: next, cache: cache, ttl: ttl, log: log}
}

func (r *CachedDirectoryRepository) GetProfile(ctx context.Context, userID string) (chat.Profile, error) {
	var p chat.Profile
	key := "directory:profile:" + userID
	if r.load(ctx, key, &p) {
		return p, nil
	}
	p, err := r.next.GetProfile(ctx, userID)
	if err != nil {
		return p, err
	}
	r.store(ctx, key, p)
	return p, nil
}

func (r *CachedDirectoryRepository) GetPart(ctx context.Context, partID string) (chat.Part, error) {
	var p chat.Part
	key := "directory:part:" + partID
	if r.load(ctx, key, &p) {
		return p, nil
	}
	p, err := r.next.GetPart(ctx, partID)
	if err != nil {
		return p, err
	}
	r.store(ctx, key, p)
	return p, nil
}

// load reports a usable hit; cache failures fall through to the source.
func (r *CachedDirectoryRepository) load(ctx context.Context, key string, dst any) bool {
	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cacheport.ErrMiss) {
			r.log.Debug("directory cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		r.log.Debug("directory cache entry unreadable", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (r *CachedDirectoryRepository) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, string(raw), r.ttl); err != nil {
		r.log.Debug("directory cache write failed", zap.String("key", key), zap.Error(err))
	}
}
