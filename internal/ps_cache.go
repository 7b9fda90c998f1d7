package internal

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var CHANNEL_GLOBAL_CACHE = "GLOBAL_CACHE"

type CacheMessageType string

const (
	CacheInvalidateCategory   CacheMessageType = "category.invalidate"
	CacheInvalidateCategories CacheMessageType = "categories.invalidate"
)

type CacheMessage struct {
	Type      CacheMessageType `json:"type"`
	Payload   string           `json:"payload"`
	Timestamp int64            `json:"timestamp"`
}

// Publisher is the part of a redis client CachePublisher needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// CachePublisher announces committed taxonomy changes to the cache
// subscribers on CHANNEL_GLOBAL_CACHE.
type CachePublisher struct {
	client Publisher
	logger *zap.Logger
}

func NewCachePublisher(client Publisher, logger *zap.Logger) *CachePublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachePublisher{client: client, logger: logger}
}

// InvalidateCategories sends one message per changed category and one for
// the tree as a whole, since any change can reshape the forest.
func (p *CachePublisher) InvalidateCategories(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if err := p.PublishCacheMessage(ctx, CacheInvalidateCategory, id); err != nil {
			return err
		}
	}
	return p.PublishCacheMessage(ctx, CacheInvalidateCategories, strings.Join(ids, ","))
}

// PublishCacheMessage publishes a cache invalidation message to Redis pub/sub as JSON
func (p *CachePublisher) PublishCacheMessage(ctx context.Context, messageType CacheMessageType, payload string) error {
	cacheMessage := CacheMessage{
		Type:      messageType,
		Payload:   payload,
		Timestamp: time.Now().Unix(),
	}

	messageJSON, err := json.Marshal(cacheMessage)
	if err != nil {
		return errors.Wrap(err, "marshal cache message")
	}

	if err := p.client.Publish(ctx, CHANNEL_GLOBAL_CACHE, string(messageJSON)).Err(); err != nil {
		return errors.Wrap(err, "publish cache message")
	}

	p.logger.Debug("published cache message", zap.ByteString("message", messageJSON))
	return nil
}
