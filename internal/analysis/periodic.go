package analysis

import (
	"time"

	"kl8-predictor/internal/draw"
)

// PeriodicTopN 同期分析排名个数
const PeriodicTopN = 10

// Periodic 历史同期分析结果
type Periodic struct {
	TargetDate    time.Time    `json:"target_date"`
	TargetDay     int          `json:"target_day"`
	TargetWeekday time.Weekday `json:"target_weekday"`

	SameDayFreq      map[int]int `json:"same_day_freq"`
	SameWeekdayFreq  map[int]int `json:"same_weekday_freq"`
	SameDayCount     int         `json:"same_day_count"`
	SameWeekdayCount int         `json:"same_weekday_count"`

	TopDayNumbers     []Ranked[int] `json:"top_day_numbers"`
	TopWeekdayNumbers []Ranked[int] `json:"top_weekday_numbers"`
	DayAverage        float64       `json:"day_avg_freq"`
	WeekdayAverage    float64       `json:"weekday_avg_freq"`

	// 以下字段基于同日期子集中最近的一期
	Overlap        []int               `json:"overlap_numbers"`
	OddCount       int                 `json:"odd_count"`
	EvenCount      int                 `json:"even_count"`
	Gaps           []int               `json:"number_gaps"`
	Zones          [draw.ZoneCount]int `json:"zone_distribution"`
	MaxConsecutive int                 `json:"max_consecutive"`
}

// DayRate 号码在同日期子集中的归一化出现率
func (p *Periodic) DayRate(n int) float64 {
	return float64(p.SameDayFreq[n]) / float64(max(p.SameDayCount, 1))
}

// WeekdayRate 号码在同星期子集中的归一化出现率
func (p *Periodic) WeekdayRate(n int) float64 {
	return float64(p.SameWeekdayFreq[n]) / float64(max(p.SameWeekdayCount, 1))
}

// FavorsOdd 参考期奇数个数超过10时偏向奇数，否则偏向偶数
func (p *Periodic) FavorsOdd() bool {
	return p.OddCount > draw.NumbersPerDraw/2
}

// InOverlap 号码是否在最近两期同日期开奖的重合号码中
func (p *Periodic) InOverlap(n int) bool {
	for _, o := range p.Overlap {
		if o == n {
			return true
		}
	}
	return false
}

// NextDrawDate 默认目标日期：最新开奖日期的后一天
func NextDrawDate(set *draw.Set) time.Time {
	return set.MaxDate().AddDate(0, 0, 1)
}

// AnalyzePeriodic 分析目标日期的历史同期数据，target为零值时使用下一开奖日
func AnalyzePeriodic(set *draw.Set, target time.Time) Periodic {
	if target.IsZero() {
		target = NextDrawDate(set)
	}
	target = draw.TruncateDay(target)

	sameDay := set.Filter(func(r draw.Record) bool { return r.Date.Day() == target.Day() })
	sameWeekday := set.Filter(func(r draw.Record) bool { return r.Date.Weekday() == target.Weekday() })

	dayCounter := countNumbers(sameDay)
	weekdayCounter := countNumbers(sameWeekday)

	p := Periodic{
		TargetDate:        target,
		TargetDay:         target.Day(),
		TargetWeekday:     target.Weekday(),
		SameDayFreq:       dayCounter.counts,
		SameWeekdayFreq:   weekdayCounter.counts,
		SameDayCount:      sameDay.Len(),
		SameWeekdayCount:  sameWeekday.Len(),
		TopDayNumbers:     dayCounter.top(PeriodicTopN),
		TopWeekdayNumbers: weekdayCounter.top(PeriodicTopN),
		DayAverage:        float64(dayCounter.total()) / float64(max(len(dayCounter.counts), 1)),
		WeekdayAverage:    float64(weekdayCounter.total()) / float64(max(len(weekdayCounter.counts), 1)),
		Overlap:           []int{},
		Gaps:              []int{},
	}

	if sameDay.Len() >= 2 {
		p.Overlap = intersect(sameDay.At(0).Numbers, sameDay.At(1).Numbers)
	}

	if ref, ok := sameDay.Latest(); ok {
		for _, n := range ref.Numbers {
			if n%2 == 1 {
				p.OddCount++
			}
			p.Zones[draw.Zone(n)]++
		}
		p.EvenCount = len(ref.Numbers) - p.OddCount
		p.Gaps = gaps(ref.Numbers)
		p.MaxConsecutive = longestRun(ref.Numbers)
	}

	return p
}

func countNumbers(set *draw.Set) *counter[int] {
	c := newCounter[int]()
	for i := 0; i < set.Len(); i++ {
		for _, n := range set.At(i).Numbers {
			c.add(n)
		}
	}
	return c
}

// intersect 两个升序号码列表的交集（升序）
func intersect(a, b []int) []int {
	out := []int{}
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

// gaps 升序号码的相邻间隔
func gaps(sorted []int) []int {
	out := make([]int, 0, len(sorted))
	for i := 0; i+1 < len(sorted); i++ {
		out = append(out, sorted[i+1]-sorted[i])
	}
	return out
}

// longestRun 最长连号长度
func longestRun(sorted []int) int {
	if len(sorted) == 0 {
		return 0
	}
	best, run := 1, 1
	for i := 0; i+1 < len(sorted); i++ {
		if sorted[i+1] == sorted[i]+1 {
			run++
		} else {
			run = 1
		}
		best = max(best, run)
	}
	return best
}
