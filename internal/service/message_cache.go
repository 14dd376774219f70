package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vibely-go-api/internal/dto"
)

const lastMessageTTL = 30 * time.Minute

// MessageCache keeps the latest message per chat for directory previews.
type MessageCache interface {
	Store(ctx context.Context, chatID string, preview dto.MessagePreview)
	LastMany(ctx context.Context, chatIDs []string) map[string]dto.MessagePreview
}

type redisMessageCache struct {
	redis  *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewMessageCache builds a Redis-backed last-message cache. A nil client disables caching.
func NewMessageCache(redisClient *redis.Client, channelBase string, logger zerolog.Logger) MessageCache {
	if channelBase == "" {
		channelBase = "vibely"
	}
	return &redisMessageCache{
		redis:  redisClient,
		prefix: channelBase + ":chat:last",
		logger: logger.With().Str("component", "message_cache").Logger(),
	}
}

func (c *redisMessageCache) key(chatID string) string {
	return fmt.Sprintf("%s:%s", c.prefix, chatID)
}

func (c *redisMessageCache) Store(ctx context.Context, chatID string, preview dto.MessagePreview) {
	if c.redis == nil {
		return
	}

	payload, err := json.Marshal(preview)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to marshal message preview for cache")
		return
	}

	if err := c.redis.Set(ctx, c.key(chatID), payload, lastMessageTTL).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to cache message preview")
	}
}

func (c *redisMessageCache) LastMany(ctx context.Context, chatIDs []string) map[string]dto.MessagePreview {
	result := make(map[string]dto.MessagePreview, len(chatIDs))
	if c.redis == nil || len(chatIDs) == 0 {
		return result
	}

	keys := make([]string, len(chatIDs))
	for i, id := range chatIDs {
		keys[i] = c.key(id)
	}

	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to read message previews")
		return result
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var preview dto.MessagePreview
		if err := json.Unmarshal([]byte(raw), &preview); err != nil {
			c.logger.Warn().Err(err).Msg("failed to unmarshal cached message preview")
			continue
		}
		result[chatIDs[i]] = preview
	}
	return result
}
