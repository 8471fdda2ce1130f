package cache

import (
	"sync"
	"time"
)

// Cache 进程内 TTL 缓存。
//
// 无 Redis 部署时由它给像素代码的热路径点查询兜底。
// 读取走 sync.Map 无锁，过期条目由后台循环回收。
type Cache struct {
	entries    sync.Map
	defaultTTL time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// New 创建进程内缓存并启动回收循环。
func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}

	c := &Cache{
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
	}
	go c.reapLoop(time.Minute)
	return c
}

// Get 获取缓存值，过期条目视为不存在并顺手删除。
func (c *Cache) Get(key string) (interface{}, bool) {
	val, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}

	e := val.(*entry)
	if time.Now().After(e.expiresAt) {
		c.entries.Delete(key)
		return nil, false
	}
	return e.value, true
}

// Set 以默认 TTL 写入缓存值。
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL 以指定 TTL 写入缓存值。
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.entries.Store(key, &entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
}

// Delete 删除缓存值。
func (c *Cache) Delete(key string) {
	c.entries.Delete(key)
}

// Close 停止回收循环。
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// reapLoop 定期清理过期条目。
func (c *Cache) reapLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.entries.Range(func(key, value interface{}) bool {
				if now.After(value.(*entry).expiresAt) {
					c.entries.Delete(key)
				}
				return true
			})
		}
	}
}
