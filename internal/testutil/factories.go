// Package testutil 提供测试用的开奖数据工厂
package testutil

import (
	"fmt"
	"time"

	"kl8-predictor/internal/draw"
)

// BaseDate 合成数据的起始日期
var BaseDate = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

// SyntheticNumbers 第i期的确定性号码：20个互不相同的号码
func SyntheticNumbers(i int) []int {
	nums := make([]int, draw.NumbersPerDraw)
	for j := 0; j < draw.NumbersPerDraw; j++ {
		nums[j] = (i*7+j*4)%draw.MaxNumber + 1
	}
	return nums
}

// MustRecord 创建记录，失败时panic
func MustRecord(issue int, date time.Time, numbers []int) draw.Record {
	r, err := draw.NewRecord(issue, date, numbers)
	if err != nil {
		panic(fmt.Sprintf("testutil: %v", err))
	}
	return r
}

// ConsecutiveDays 生成n期连续日期的确定性历史（第0期最早）
func ConsecutiveDays(n int) *draw.Set {
	records := make([]draw.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, MustRecord(2024001+i, BaseDate.AddDate(0, 0, i), SyntheticNumbers(i)))
	}
	return draw.MustNewSet(records)
}

// Range 返回[from,to]的整数序列
func Range(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for n := from; n <= to; n++ {
		out = append(out, n)
	}
	return out
}
