package cache

import (
	"fmt"
	"sync"
	"time"

	"kl8-predictor/internal/database"
	"kl8-predictor/internal/draw"
	"kl8-predictor/internal/logger"
	"kl8-predictor/internal/report"
)

const (
	keyDraws        = "draws:all"
	keyLatestReport = "report:latest"
	// defaultMaxItems 内存缓存最大条目数
	defaultMaxItems = 1000
)

// ReportBuilder 基于开奖数据生成预测报告
type ReportBuilder func(set *draw.Set) (*report.PredictionReport, error)

// CacheManager 开奖数据和预测报告的缓存管理器
type CacheManager struct {
	memory     *MemoryCache
	store      database.DrawStore
	defaultTTL time.Duration
	loadMu     sync.Mutex
}

// NewCacheManager 创建新的缓存管理器
func NewCacheManager(store database.DrawStore, defaultTTL time.Duration) *CacheManager {
	manager := &CacheManager{
		memory:     NewMemoryCache(defaultMaxItems, 5*time.Minute),
		store:      store,
		defaultTTL: defaultTTL,
	}

	logger.Infof("Cache manager initialized, ttl %v", defaultTTL)
	return manager
}

// Close 关闭缓存管理器
func (cm *CacheManager) Close() error {
	cm.memory.Close()
	logger.Info("Cache manager closed")
	return nil
}

// Draws 获取全部开奖数据，未命中时从存储加载
func (cm *CacheManager) Draws() (*draw.Set, error) {
	if v, ok := cm.memory.Get(keyDraws); ok {
		return v.(*draw.Set), nil
	}

	cm.loadMu.Lock()
	defer cm.loadMu.Unlock()

	// 等锁期间可能已被其他调用加载
	if v, ok := cm.memory.Get(keyDraws); ok {
		return v.(*draw.Set), nil
	}

	set, err := cm.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load draws: %w", err)
	}
	cm.memory.Set(keyDraws, set, cm.defaultTTL)
	return set, nil
}

// SaveDraws 写入存储并失效相关缓存
func (cm *CacheManager) SaveDraws(records []draw.Record) error {
	if err := cm.store.Save(records); err != nil {
		return err
	}
	cm.OnNewDraws()
	return nil
}

// OnNewDraws 新开奖数据事件处理
func (cm *CacheManager) OnNewDraws() {
	removed := cm.memory.DeletePattern("draws:*") + cm.memory.DeletePattern("report:*")
	logger.Debugf("Cache invalidated for new draws, %d entries removed", removed)
}

// Prediction 获取指定组数的预测报告，未命中时调用build生成
func (cm *CacheManager) Prediction(groups int, build ReportBuilder) (*report.PredictionReport, error) {
	key := fmt.Sprintf("report:groups:%d", groups)
	if v, ok := cm.memory.Get(key); ok {
		return v.(*report.PredictionReport), nil
	}

	set, err := cm.Draws()
	if err != nil {
		return nil, err
	}
	r, err := build(set)
	if err != nil {
		return nil, err
	}
	cm.memory.Set(key, r, cm.defaultTTL)
	return r, nil
}

// SetLatestReport 记录最近一次推送的预测报告
func (cm *CacheManager) SetLatestReport(r *report.PredictionReport) {
	cm.memory.Set(keyLatestReport, r, cm.defaultTTL)
}

// LatestReport 最近一次推送的预测报告
func (cm *CacheManager) LatestReport() (*report.PredictionReport, bool) {
	v, ok := cm.memory.Get(keyLatestReport)
	if !ok {
		return nil, false
	}
	return v.(*report.PredictionReport), true
}

// GetStats 获取缓存统计信息
func (cm *CacheManager) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"memory_cache": cm.memory.Stats(),
		"default_ttl":  cm.defaultTTL.String(),
	}
}
