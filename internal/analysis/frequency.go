// Package analysis 开奖历史的统计分析：频率、同期、组合模式、走势。
//
// 所有分析函数都是纯函数：输入一个不可变的 draw.Set，返回新的结果，不保留任何跨调用状态。
package analysis

import (
	"kl8-predictor/internal/draw"
)

// Table 号码(1..80)到权重的映射，下标0不使用
type Table [draw.MaxNumber + 1]float64

// Get 获取号码权重
func (t *Table) Get(n int) float64 {
	if n < draw.MinNumber || n > draw.MaxNumber {
		return 0
	}
	return t[n]
}

// Total 所有号码权重之和
func (t *Table) Total() float64 {
	total := 0.0
	for n := draw.MinNumber; n <= draw.MaxNumber; n++ {
		total += t[n]
	}
	return total
}

// FrequencyOptions 频率分析参数
type FrequencyOptions struct {
	// WindowDays 从最新开奖日期往前的天数，0表示全部历史
	WindowDays int
	// Weighted 按距离最新日期的天数加权 1/(age+1)
	Weighted bool
}

// Frequency 统计窗口内每个号码的出现频率
func Frequency(set *draw.Set, opts FrequencyOptions) Table {
	var table Table
	data := set.Window(opts.WindowDays)
	if data.Empty() {
		return table
	}

	latest := data.MaxDate()
	for _, r := range data.Records() {
		weight := 1.0
		if opts.Weighted {
			age := draw.DaysBetween(r.Date, latest)
			weight = 1.0 / float64(age+1)
		}
		for _, n := range r.Numbers {
			table[n] += weight
		}
	}
	return table
}

// ColdNumbers 窗口内从未出现的号码（升序）
func ColdNumbers(set *draw.Set, windowDays int) []int {
	freq := Frequency(set, FrequencyOptions{WindowDays: windowDays})
	var cold []int
	for n := draw.MinNumber; n <= draw.MaxNumber; n++ {
		if freq[n] == 0 {
			cold = append(cold, n)
		}
	}
	return cold
}
