// Package cache 提供基于 Redis 的房间状态次级存储。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mikhail-2byte/Dnd-version2/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenTTL 是房间 token 缓存的过期时间，24 小时未被触碰即失效。
const TokenTTL = 24 * time.Hour

// CachedToken 是写入缓存的 token 快照。
type CachedToken struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	ImageURL string    `json:"image_url"`
}

// TokenCache 把每局游戏的 token 集合存为一个 Redis hash，
// field 是 token id，value 是 JSON。缓存只是优化，丢失后从数据库重建。
type TokenCache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *TokenCache {
	return &TokenCache{rdb: rdb}
}

// Dial 按 REDIS_URL 建立 Redis 连接。
func Dial(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

func tokensKey(gameID uuid.UUID) string {
	return fmt.Sprintf("game:%s:tokens", gameID)
}

// Replace 全量覆盖一局游戏的 token 缓存：先删后写，再续 TTL。
// 从不做增量修补，避免缓存停留在看似合理的半新半旧状态。
func (c *TokenCache) Replace(ctx context.Context, gameID uuid.UUID, tokens []models.Token) error {
	key := tokensKey(gameID)
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	for _, t := range tokens {
		ct := CachedToken{ID: t.ID, Name: t.Name, X: t.X, Y: t.Y}
		if t.ImageURL != nil {
			ct.ImageURL = *t.ImageURL
		}
		b, err := json.Marshal(ct)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, key, t.ID.String(), b)
	}
	pipe.Expire(ctx, key, TokenTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Read 读取一局游戏缓存的 token 集合。hash 为空视为 miss，
// 返回 (nil, nil)，由调用方回源数据库重建。
func (c *TokenCache) Read(ctx context.Context, gameID uuid.UUID) ([]CachedToken, error) {
	data, err := c.rdb.HGetAll(ctx, tokensKey(gameID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	out := make([]CachedToken, 0, len(data))
	for _, raw := range data {
		var ct CachedToken
		if err := json.Unmarshal([]byte(raw), &ct); err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, nil
}
