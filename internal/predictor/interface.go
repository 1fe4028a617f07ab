package predictor

import (
	"fmt"
	"math/rand"
	"sort"

	"kl8-predictor/internal/config"
	"kl8-predictor/internal/draw"
)

// Predictor 预测算法接口
type Predictor interface {
	// GetName 获取算法名称
	GetName() string

	// GetVersion 获取算法版本
	GetVersion() string

	// GetRequiredHistorySize 获取所需的历史数据大小
	GetRequiredHistorySize() int

	// ValidateInput 验证输入数据
	ValidateInput(set *draw.Set) error

	// Train 基于训练集构建一次性的预测模型，rng为nil时使用时间种子
	Train(set *draw.Set, rng *rand.Rand) (Model, error)
}

// Model 训练好的预测模型
type Model interface {
	// Predict 预测count个号码，升序返回
	Predict(count int) ([]int, error)
}

// Manager 预测器管理器
type Manager struct {
	predictors map[string]Predictor
	current    Predictor
}

// NewManager 创建预测器管理器，默认注册 composite 和 random
func NewManager(weights config.Weights) *Manager {
	manager := &Manager{
		predictors: make(map[string]Predictor),
	}

	manager.Register(NewCompositePredictor(weights))
	manager.Register(RandomPredictor{})
	_ = manager.SetCurrent("composite")

	return manager
}

// Register 注册预测器
func (m *Manager) Register(p Predictor) {
	m.predictors[p.GetName()] = p
}

// Get 按名称获取预测器
func (m *Manager) Get(name string) (Predictor, error) {
	p, exists := m.predictors[name]
	if !exists {
		return nil, fmt.Errorf("%w: predictor not found: %s", draw.ErrInvalidArgument, name)
	}
	return p, nil
}

// SetCurrent 设置当前预测器
func (m *Manager) SetCurrent(name string) error {
	p, err := m.Get(name)
	if err != nil {
		return err
	}
	m.current = p
	return nil
}

// Current 获取当前预测器
func (m *Manager) Current() Predictor {
	return m.current
}

// Available 可用的预测器名称（升序）
func (m *Manager) Available() []string {
	names := make([]string, 0, len(m.predictors))
	for name := range m.predictors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Train 使用当前预测器训练
func (m *Manager) Train(set *draw.Set, rng *rand.Rand) (Model, error) {
	if m.current == nil {
		return nil, fmt.Errorf("no current predictor set")
	}
	return m.current.Train(set, rng)
}
