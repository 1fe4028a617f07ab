package cache

import (
	"strings"
	"sync"
	"time"

	"kl8-predictor/internal/logger"
)

// MemoryItem 内存缓存项
type MemoryItem struct {
	Value     interface{}
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired 检查是否过期
func (item *MemoryItem) IsExpired(now time.Time) bool {
	return now.After(item.ExpiresAt)
}

// MemoryCache 内存缓存实现，值按引用保存，调用方不得修改取出的值
type MemoryCache struct {
	mutex   sync.RWMutex
	items   map[string]*MemoryItem
	maxSize int
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache 创建新的内存缓存，cleanupInterval为0时不启动清理协程
func NewMemoryCache(maxSize int, cleanupInterval time.Duration) *MemoryCache {
	cache := &MemoryCache{
		items:   make(map[string]*MemoryItem),
		maxSize: maxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go cache.startCleanup(cleanupInterval)
	}

	logger.Debug("Memory cache initialized")
	return cache
}

// Set 设置缓存值
func (m *MemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()
	if _, exists := m.items[key]; !exists && m.maxSize > 0 && len(m.items) >= m.maxSize {
		m.evictOldest()
	}
	m.items[key] = &MemoryItem{
		Value:     value,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	logger.Debugf("Memory cache set: %s", key)
}

// Get 获取缓存值，过期视为未命中
func (m *MemoryCache) Get(key string) (interface{}, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	item, exists := m.items[key]
	if !exists {
		return nil, false
	}
	if item.IsExpired(m.now()) {
		delete(m.items, key)
		return nil, false
	}

	logger.Debugf("Memory cache hit: %s", key)
	return item.Value, true
}

// Delete 删除缓存
func (m *MemoryCache) Delete(key string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.items[key]; exists {
		delete(m.items, key)
		logger.Debugf("Memory cache deleted: %s", key)
	}
}

// DeletePattern 删除匹配模式的缓存，返回删除个数
func (m *MemoryCache) DeletePattern(pattern string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	count := 0
	for key := range m.items {
		if matchPattern(pattern, key) {
			delete(m.items, key)
			count++
		}
	}

	if count > 0 {
		logger.Debugf("Memory cache deleted by pattern: %s, count: %d", pattern, count)
	}
	return count
}

// GetTTL 获取缓存剩余过期时间
func (m *MemoryCache) GetTTL(key string) (time.Duration, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	item, exists := m.items[key]
	if !exists {
		return 0, false
	}
	return max(item.ExpiresAt.Sub(m.now()), 0), true
}

// Clear 清空所有缓存
func (m *MemoryCache) Clear() {
	m.mutex.Lock()
	m.items = make(map[string]*MemoryItem)
	m.mutex.Unlock()
	logger.Debug("Memory cache cleared")
}

// Size 获取缓存大小
func (m *MemoryCache) Size() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.items)
}

// Stats 获取缓存统计信息
func (m *MemoryCache) Stats() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	now := m.now()
	var validItems, expiredItems int
	for _, item := range m.items {
		if item.IsExpired(now) {
			expiredItems++
		} else {
			validItems++
		}
	}

	return map[string]interface{}{
		"total_size":    len(m.items),
		"valid_items":   validItems,
		"expired_items": expiredItems,
		"max_size":      m.maxSize,
	}
}

// Close 停止清理协程
func (m *MemoryCache) Close() {
	m.once.Do(func() { close(m.stop) })
}

// startCleanup 启动定期清理过期缓存
func (m *MemoryCache) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.cleanupExpired()
		}
	}
}

// cleanupExpired 清理过期的缓存项
func (m *MemoryCache) cleanupExpired() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()
	count := 0
	for key, item := range m.items {
		if item.IsExpired(now) {
			delete(m.items, key)
			count++
		}
	}

	if count > 0 {
		logger.Debugf("Memory cache cleanup: removed %d expired items", count)
	}
	return count
}

// evictOldest 淘汰最旧的缓存项，调用方持有写锁
func (m *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, item := range m.items {
		if oldestKey == "" || item.CreatedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.CreatedAt
		}
	}

	if oldestKey != "" {
		delete(m.items, oldestKey)
		logger.Debugf("Memory cache evicted oldest: %s", oldestKey)
	}
}

// matchPattern 支持 "*" 和末尾通配的前缀匹配
func matchPattern(pattern, key string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(key, prefix)
	}
	return pattern == key
}
