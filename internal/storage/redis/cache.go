package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"mailsight/backend/internal/domain"
)

// Cache Redis 缓存实现，承担像素热路径缓存、统计缓存与打开事件的发布订阅
type Cache struct {
	client *redis.Client
	ctx    context.Context
}

// NewCache 创建 Redis 缓存实例
func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx := context.Background()

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{
		client: client,
		ctx:    ctx,
	}, nil
}

// ========== 像素缓存 ==========

// CachePixel 缓存像素信息（按代码索引，加速热路径点查询）
func (c *Cache) CachePixel(pixel *domain.TrackingPixel, ttl time.Duration) error {
	key := fmt.Sprintf("pixel:%s", pixel.PixelCode)
	data, err := json.Marshal(pixel)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

// GetCachedPixel 获取缓存的像素信息
func (c *Cache) GetCachedPixel(code string) (*domain.TrackingPixel, error) {
	key := fmt.Sprintf("pixel:%s", code)
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("pixel not found in cache")
		}
		return nil, err
	}

	var pixel domain.TrackingPixel
	if err := json.Unmarshal([]byte(data), &pixel); err != nil {
		return nil, err
	}

	return &pixel, nil
}

// InvalidatePixel 删除缓存的像素信息
func (c *Cache) InvalidatePixel(code string) error {
	key := fmt.Sprintf("pixel:%s", code)
	return c.client.Del(c.ctx, key).Err()
}

// ========== 统计缓存 ==========

// CacheDashboardStats 缓存用户的仪表盘统计
func (c *Cache) CacheDashboardStats(stats *domain.DashboardStats, ttl time.Duration) error {
	key := fmt.Sprintf("dashboard:%s", stats.UserID)
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

// GetCachedDashboardStats 获取缓存的仪表盘统计
func (c *Cache) GetCachedDashboardStats(userID string) (*domain.DashboardStats, error) {
	key := fmt.Sprintf("dashboard:%s", userID)
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("dashboard stats not found in cache")
		}
		return nil, err
	}

	var stats domain.DashboardStats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, err
	}

	return &stats, nil
}

// InvalidateDashboardStats 删除缓存的仪表盘统计（打开事件后调用）
func (c *Cache) InvalidateDashboardStats(userID string) error {
	key := fmt.Sprintf("dashboard:%s", userID)
	return c.client.Del(c.ctx, key).Err()
}

// ========== 发布订阅 ==========

// readEventChannelPrefix 打开事件频道前缀，每个用户一个频道
const readEventChannelPrefix = "read_event:"

// PublishReadEvent 发布打开事件通知（按用户维度的频道）
func (c *Cache) PublishReadEvent(userID string, log *domain.ReadLog) error {
	data, err := json.Marshal(log)
	if err != nil {
		return err
	}
	return c.client.Publish(c.ctx, readEventChannelPrefix+userID, data).Err()
}

// SubscribeReadEvents 订阅全部用户的打开事件频道。
// 多实例部署时，各实例把收到的事件转发给自己持有的
// WebSocket 连接。
func (c *Cache) SubscribeReadEvents() *redis.PubSub {
	return c.client.PSubscribe(c.ctx, readEventChannelPrefix+"*")
}

// ParseReadEventChannel 从打开事件频道名中取出用户 ID
func ParseReadEventChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, readEventChannelPrefix) {
		return "", false
	}
	userID := strings.TrimPrefix(channel, readEventChannelPrefix)
	return userID, userID != ""
}

// DecodeReadEvent 解析打开事件频道的消息载荷
func DecodeReadEvent(payload []byte) (*domain.ReadLog, error) {
	var log domain.ReadLog
	if err := json.Unmarshal(payload, &log); err != nil {
		return nil, err
	}
	return &log, nil
}

// ========== 工具方法 ==========

// Health 检查 Redis 连接健康状态
func (c *Cache) Health() error {
	return c.client.Ping(c.ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Cache) Close() error {
	return c.client.Close()
}
