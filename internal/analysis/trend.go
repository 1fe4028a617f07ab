package analysis

import (
	"math"

	"kl8-predictor/internal/draw"
)

const (
	// TrendRecentDays 近期窗口
	TrendRecentDays = 3
	// TrendPreviousDays 前期窗口（包含近期窗口）
	TrendPreviousDays = 6
)

// Trend 号码走势分类
type Trend int

const (
	Stable Trend = iota
	Heating
	Cooling
	Volatile
)

func (t Trend) String() string {
	switch t {
	case Heating:
		return "heating"
	case Cooling:
		return "cooling"
	case Stable:
		return "stable"
	default:
		return "volatile"
	}
}

// MarshalText 序列化为名称
func (t Trend) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Trends 每个号码的走势分类，四类互斥且覆盖1..80
type Trends struct {
	Class      [draw.MaxNumber + 1]Trend   `json:"-"`
	ChangeRate [draw.MaxNumber + 1]float64 `json:"-"`
	Heating    []int                       `json:"cold_to_hot"`
	Cooling    []int                       `json:"hot_to_cold"`
	Stable     []int                       `json:"stable_numbers"`
	Volatile   []int                       `json:"volatile_numbers"`
}

// Of 号码的走势分类
func (t *Trends) Of(n int) Trend {
	return t.Class[n]
}

// Classify 按变化率分类
func Classify(changeRate float64) Trend {
	switch {
	case changeRate <= -0.5:
		return Cooling
	case changeRate >= 0.5:
		return Heating
	case math.Abs(changeRate) < 0.2:
		return Stable
	default:
		return Volatile
	}
}

// AnalyzeTrend 比较近3天与之前窗口的出现次数，给每个号码分类
func AnalyzeTrend(set *draw.Set) Trends {
	recent := Frequency(set, FrequencyOptions{WindowDays: TrendRecentDays})
	previous := Frequency(set, FrequencyOptions{WindowDays: TrendPreviousDays})

	t := Trends{
		Heating:  []int{},
		Cooling:  []int{},
		Stable:   []int{},
		Volatile: []int{},
	}
	for n := draw.MinNumber; n <= draw.MaxNumber; n++ {
		recentCount := recent[n]
		previousOnly := previous[n] - recentCount
		rate := (recentCount - previousOnly) / (previousOnly + 1)

		class := Classify(rate)
		t.Class[n] = class
		t.ChangeRate[n] = rate
		switch class {
		case Heating:
			t.Heating = append(t.Heating, n)
		case Cooling:
			t.Cooling = append(t.Cooling, n)
		case Stable:
			t.Stable = append(t.Stable, n)
		default:
			t.Volatile = append(t.Volatile, n)
		}
	}
	return t
}
