package analysis

import (
	"github.com/montanaflynn/stats"

	"kl8-predictor/internal/draw"
)

const (
	// DefaultPatternWindowDays 组合模式分析默认窗口
	DefaultPatternWindowDays = 30

	consecutiveTopN = 5
	pairTopN        = 10
	zoneTopN        = 5
)

// Pair 无序号码对，A < B
type Pair struct {
	A int `json:"a"`
	B int `json:"b"`
}

// ZoneCounts 每期号码落在四个分区的个数
type ZoneCounts [draw.ZoneCount]int

// SumStats 每期和值的分布
type SumStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Within 和值是否落在均值±1个标准差内
func (s SumStats) Within(sum float64) bool {
	d := sum - s.Mean
	if d < 0 {
		d = -d
	}
	return d <= s.Std
}

// GapStats 每期最大间隔的分布
type GapStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Pattern 组合模式分析快照
type Pattern struct {
	WindowDays      int                  `json:"window_days"`
	DrawCount       int                  `json:"draw_count"`
	ConsecutivePair []Ranked[Pair]       `json:"common_consecutive_pairs"`
	CommonPairs     []Ranked[Pair]       `json:"common_number_pairs"`
	Sum             SumStats             `json:"sum_range_stats"`
	MaxGap          GapStats             `json:"max_gap_stats"`
	Zones           []Ranked[ZoneCounts] `json:"common_zone_combinations"`
}

// CommonPairNumbers 出现在高频号码对中的号码集合
func (p *Pattern) CommonPairNumbers() map[int]bool {
	out := make(map[int]bool, len(p.CommonPairs)*2)
	for _, r := range p.CommonPairs {
		out[r.Key.A] = true
		out[r.Key.B] = true
	}
	return out
}

// AnalyzePattern 分析窗口内开奖号码的组合模式，windowDays<=0 时使用默认30天
func AnalyzePattern(set *draw.Set, windowDays int) Pattern {
	if windowDays <= 0 {
		windowDays = DefaultPatternWindowDays
	}
	data := set.Window(windowDays)

	consecutive := newCounter[Pair]()
	pairs := newCounter[Pair]()
	zones := newCounter[ZoneCounts]()
	sums := make(stats.Float64Data, 0, data.Len())
	maxGaps := make(stats.Float64Data, 0, data.Len())

	for _, r := range data.Records() {
		nums := r.Numbers
		for i := 0; i+1 < len(nums); i++ {
			if nums[i+1] == nums[i]+1 {
				consecutive.add(Pair{A: nums[i], B: nums[i+1]})
			}
		}
		for i := 0; i < len(nums); i++ {
			for j := i + 1; j < len(nums); j++ {
				pairs.add(Pair{A: nums[i], B: nums[j]})
			}
		}

		sums = append(sums, float64(r.Sum()))

		maxGap := 0
		for _, g := range gaps(nums) {
			maxGap = max(maxGap, g)
		}
		maxGaps = append(maxGaps, float64(maxGap))

		var zc ZoneCounts
		for _, n := range nums {
			zc[draw.Zone(n)]++
		}
		zones.add(zc)
	}

	return Pattern{
		WindowDays:      windowDays,
		DrawCount:       data.Len(),
		ConsecutivePair: consecutive.top(consecutiveTopN),
		CommonPairs:     pairs.top(pairTopN),
		Sum:             summarizeSums(sums),
		MaxGap:          summarizeGaps(maxGaps),
		Zones:           zones.top(zoneTopN),
	}
}

// summarizeSums 空数据时各项为0
func summarizeSums(data stats.Float64Data) SumStats {
	if data.Len() == 0 {
		return SumStats{}
	}
	mean, _ := data.Mean()
	std, _ := data.StandardDeviationPopulation()
	lo, _ := data.Min()
	hi, _ := data.Max()
	return SumStats{Mean: mean, Std: std, Min: lo, Max: hi}
}

func summarizeGaps(data stats.Float64Data) GapStats {
	if data.Len() == 0 {
		return GapStats{}
	}
	mean, _ := data.Mean()
	std, _ := data.StandardDeviationPopulation()
	return GapStats{Mean: mean, Std: std}
}
