package predictor

import (
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"time"

	"kl8-predictor/internal/analysis"
	"kl8-predictor/internal/config"
	"kl8-predictor/internal/draw"
	"kl8-predictor/internal/logger"
)

const (
	// TopPoolSize 候选池大小，预测号码从得分最高的20个号码中抽取
	TopPoolSize = 20
	// DefaultPickCount 默认预测号码个数
	DefaultPickCount = 10
	// RecentWindowDays 近期频率窗口
	RecentWindowDays = 30
)

// Engine 综合评分引擎
//
// 构造时对训练集完成全部分析，之后只读；随机源仅用于组合生成、抖动和抽样。
// 同一个 Engine 不能被多个 goroutine 同时使用。
type Engine struct {
	set     *draw.Set
	weights config.Weights
	rng     *rand.Rand

	allTime  analysis.Table
	recent   analysis.Table
	periodic analysis.Periodic
	pattern  analysis.Pattern
	trend    analysis.Trends
}

// Option 引擎选项
type Option func(*Engine)

// WithRand 指定随机源
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = rng
	}
}

// WithWeights 指定评分权重
func WithWeights(w config.Weights) Option {
	return func(e *Engine) {
		e.weights = w
	}
}

// NewEngine 基于训练集创建评分引擎
func NewEngine(set *draw.Set, opts ...Option) *Engine {
	e := &Engine{
		set:     set,
		weights: config.DefaultWeights(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	e.allTime = analysis.Frequency(set, analysis.FrequencyOptions{Weighted: true})
	e.recent = analysis.Frequency(set, analysis.FrequencyOptions{WindowDays: RecentWindowDays})
	e.periodic = analysis.AnalyzePeriodic(set, time.Time{})
	e.pattern = analysis.AnalyzePattern(set, analysis.DefaultPatternWindowDays)
	e.trend = analysis.AnalyzeTrend(set)

	logger.Debugf("Engine prepared over %d draws, next draw date %s",
		set.Len(), e.periodic.TargetDate.Format("2006-01-02"))
	return e
}

// Periodic 同期分析结果
func (e *Engine) Periodic() analysis.Periodic {
	return e.periodic
}

// Pattern 组合模式分析结果
func (e *Engine) Pattern() analysis.Pattern {
	return e.pattern
}

// Trends 走势分析结果
func (e *Engine) Trends() analysis.Trends {
	return e.trend
}

// Score 计算每个号码的综合得分，每次调用都会重新生成组合并施加抖动
func (e *Engine) Score() analysis.Table {
	var scores analysis.Table
	w := e.weights
	pairNumbers := e.pattern.CommonPairNumbers()
	favorOdd := e.periodic.FavorsOdd()

	for n := draw.MinNumber; n <= draw.MaxNumber; n++ {
		score := e.allTime[n]*w.AllTime + e.recent[n]*w.Recent
		score += (e.periodic.DayRate(n) + e.periodic.WeekdayRate(n)) / 2 * w.Periodic

		// 组合模式
		if pairNumbers[n] {
			score += w.CommonPair
		}
		if w.Combination > 0 {
			for _, combo := range GenerateCombinations(e.rng, n, e.pattern.Sum) {
				score += w.Combination * float64(len(combo)) / draw.NumbersPerDraw
			}
		}

		// 走势
		switch e.trend.Of(n) {
		case analysis.Heating:
			score += w.Heating
		case analysis.Stable:
			score += w.Stable
		case analysis.Volatile:
			score += w.Volatile
		}

		if e.periodic.InOverlap(n) {
			score += w.Overlap
		}
		if (n%2 == 1) == favorOdd {
			score += w.Parity
		}
		scores[n] = score
	}

	if j := w.JitterFraction; j > 0 {
		for n := draw.MinNumber; n <= draw.MaxNumber; n++ {
			scores[n] *= 1 - j + 2*j*e.rng.Float64()
		}
	}
	return scores
}

// Rank 按得分降序排列号码，得分相同时号码小的在前
func Rank(scores analysis.Table) []int {
	numbers := make([]int, 0, draw.MaxNumber)
	for n := draw.MinNumber; n <= draw.MaxNumber; n++ {
		numbers = append(numbers, n)
	}
	sort.SliceStable(numbers, func(i, j int) bool {
		return scores[numbers[i]] > scores[numbers[j]]
	})
	return numbers
}

// Predict 从得分前20的号码中无放回随机抽取count个，升序返回
func (e *Engine) Predict(count int) ([]int, error) {
	if count <= 0 || count > TopPoolSize {
		return nil, fmt.Errorf("%w: pick count %d outside 1..%d", draw.ErrInvalidArgument, count, TopPoolSize)
	}
	if e.set.Empty() {
		return nil, fmt.Errorf("%w: cannot predict from an empty draw set: %w",
			draw.ErrInvalidArgument, draw.ErrInsufficientHistory)
	}

	pool := Rank(e.Score())[:TopPoolSize]
	picks := make([]int, 0, count)
	for _, idx := range e.rng.Perm(TopPoolSize)[:count] {
		picks = append(picks, pool[idx])
	}
	slices.Sort(picks)
	return picks, nil
}

// CompositePredictor 综合评分预测器
type CompositePredictor struct {
	name    string
	version string
	weights config.Weights
}

// NewCompositePredictor 创建综合评分预测器
func NewCompositePredictor(weights config.Weights) *CompositePredictor {
	return &CompositePredictor{
		name:    "composite",
		version: "v1.0",
		weights: weights,
	}
}

// GetName 获取算法名称
func (cp *CompositePredictor) GetName() string {
	return cp.name
}

// GetVersion 获取算法版本
func (cp *CompositePredictor) GetVersion() string {
	return cp.version
}

// GetRequiredHistorySize 获取所需的历史数据大小
func (cp *CompositePredictor) GetRequiredHistorySize() int {
	return 1
}

// ValidateInput 验证输入数据
func (cp *CompositePredictor) ValidateInput(set *draw.Set) error {
	if set.Len() < cp.GetRequiredHistorySize() {
		return fmt.Errorf("%w: need %d draws, got %d",
			draw.ErrInsufficientHistory, cp.GetRequiredHistorySize(), set.Len())
	}
	return nil
}

// Train 基于训练集构建评分引擎
func (cp *CompositePredictor) Train(set *draw.Set, rng *rand.Rand) (Model, error) {
	if err := cp.ValidateInput(set); err != nil {
		return nil, err
	}
	return NewEngine(set, WithRand(rng), WithWeights(cp.weights)), nil
}

// RandomPredictor 均匀随机选号，作为回测的对照组
type RandomPredictor struct{}

// GetName 获取算法名称
func (RandomPredictor) GetName() string {
	return "random"
}

// GetVersion 获取算法版本
func (RandomPredictor) GetVersion() string {
	return "v1.0"
}

// GetRequiredHistorySize 获取所需的历史数据大小
func (RandomPredictor) GetRequiredHistorySize() int {
	return 0
}

// ValidateInput 随机选号不依赖历史
func (RandomPredictor) ValidateInput(*draw.Set) error {
	return nil
}

// Train 返回使用rng的随机模型
func (RandomPredictor) Train(_ *draw.Set, rng *rand.Rand) (Model, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return randomModel{rng: rng}, nil
}

type randomModel struct {
	rng *rand.Rand
}

func (m randomModel) Predict(count int) ([]int, error) {
	if count <= 0 || count > TopPoolSize {
		return nil, fmt.Errorf("%w: pick count %d outside 1..%d", draw.ErrInvalidArgument, count, TopPoolSize)
	}
	picks := make([]int, 0, count)
	for _, idx := range m.rng.Perm(draw.MaxNumber)[:count] {
		picks = append(picks, idx+draw.MinNumber)
	}
	slices.Sort(picks)
	return picks, nil
}
