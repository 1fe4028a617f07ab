package report

import (
	"fmt"
	"strings"
	"time"

	"kl8-predictor/internal/analysis"
	"kl8-predictor/internal/backtest"
	"kl8-predictor/internal/predictor"
)

const disclaimer = "注意：本预测仅供参考，购彩需理性，请注意控制投注金额。"

var weekdayLabels = [...]string{"日", "一", "二", "三", "四", "五", "六"}

// FormatNumbers 两位数字、空格分隔
func FormatNumbers(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("%02d", n)
	}
	return strings.Join(parts, " ")
}

func formatRanked(ranked []analysis.Ranked[int]) string {
	if len(ranked) == 0 {
		return "无"
	}
	parts := make([]string, len(ranked))
	for i, r := range ranked {
		parts[i] = fmt.Sprintf("%02d(%d)", r.Key, r.Count)
	}
	return strings.Join(parts, " ")
}

func orNone(nums []int) string {
	if len(nums) == 0 {
		return "无"
	}
	return FormatNumbers(nums)
}

// RenderStrategies 渲染玩法期望值列表
func RenderStrategies(strategies []predictor.Strategy) string {
	var builder strings.Builder
	for i, s := range strategies {
		builder.WriteString(fmt.Sprintf("%d. %s  期望值: %s 元\n", i+1, s.Name, s.ExpectedValue.StringFixed(2)))
	}
	return builder.String()
}

// RenderPrediction 渲染预测报告
func RenderPrediction(r *PredictionReport) string {
	var builder strings.Builder

	builder.WriteString("=== 快乐8预测报告 ===\n")
	builder.WriteString(fmt.Sprintf("预测时间: %s\n", r.PredictedAt.Format("2006-01-02 15:04:05")))
	builder.WriteString(fmt.Sprintf("上期开奖: %s 第%d期\n", r.LastDrawDate.Format("2006-01-02"), r.LastIssue))
	builder.WriteString(fmt.Sprintf("上期号码: %s\n", FormatNumbers(r.LastNumbers)))
	builder.WriteString(fmt.Sprintf("下期开奖: %s\n\n", r.NextDrawDate.Format("2006-01-02")))

	builder.WriteString("预测号码:\n")
	for i, g := range r.Groups {
		builder.WriteString(fmt.Sprintf("第%d组: %s\n", i+1, FormatNumbers(g)))
	}

	builder.WriteString("\n推荐玩法:\n")
	builder.WriteString(RenderStrategies(r.Strategies))

	p := r.Periodic
	builder.WriteString(fmt.Sprintf("\n历史同期 (每月%d日 %d期, 星期%s %d期):\n",
		p.TargetDay, p.SameDayCount, weekdayLabels[p.TargetWeekday], p.SameWeekdayCount))
	builder.WriteString(fmt.Sprintf("  同日高频: %s\n", formatRanked(p.TopDayNumbers)))
	builder.WriteString(fmt.Sprintf("  同星期高频: %s\n", formatRanked(p.TopWeekdayNumbers)))
	builder.WriteString(fmt.Sprintf("  重叠号码: %s\n", orNone(p.Overlap)))
	builder.WriteString(fmt.Sprintf("  奇偶比: %d:%d  分区: %d/%d/%d/%d  最长连号: %d\n",
		p.OddCount, p.EvenCount, p.Zones[0], p.Zones[1], p.Zones[2], p.Zones[3], p.MaxConsecutive))
	builder.WriteString(fmt.Sprintf("近%d天未出现: %s\n\n", ColdWindowDays, orNone(r.ColdNumbers)))

	builder.WriteString(disclaimer)
	return builder.String()
}

// RenderBacktest 渲染回测报告，detail 为 true 时输出每期明细
func RenderBacktest(r *backtest.Report, detail bool) string {
	var builder strings.Builder
	s := r.Summary

	builder.WriteString("=== 快乐8预测算法测试报告 ===\n")
	builder.WriteString(fmt.Sprintf("运行编号: %s\n", r.RunID))
	builder.WriteString(fmt.Sprintf("预测算法: %s\n", r.Predictor))
	builder.WriteString(fmt.Sprintf("测试时间: %s\n", r.StartedAt.Format("2006-01-02 15:04:05")))
	builder.WriteString(fmt.Sprintf("测试期数: %d期\n", s.TrialCount))

	if detail {
		builder.WriteString("\n详细命中统计:\n")
		builder.WriteString(strings.Repeat("-", 50) + "\n")
		for _, t := range r.Trials {
			builder.WriteString(fmt.Sprintf("\n日期: %s 第%d期 (训练%d期)\n", t.Date.Format("2006-01-02"), t.Issue, t.TrainingSize))
			builder.WriteString(fmt.Sprintf("实际开奖: %s\n", FormatNumbers(t.Actual)))
			for i, p := range t.Predictions {
				builder.WriteString(fmt.Sprintf("第%d组 %s (命中: %d个)\n", i+1, FormatNumbers(p.Numbers), p.Hits))
			}
			builder.WriteString(fmt.Sprintf("最大命中: %d个, 平均命中: %.1f个\n", t.MaxHits, t.AvgHits))
		}
	}

	builder.WriteString("\n=== 统计摘要 ===\n")
	builder.WriteString(fmt.Sprintf("总预测组数: %d组\n", s.TotalPredictions))
	builder.WriteString(fmt.Sprintf("平均每期最大命中数: %.2f\n", s.AvgMaxHits))
	builder.WriteString(fmt.Sprintf("总体平均命中数: %.2f\n", s.AvgHits))
	builder.WriteString("\n命中分布:\n")
	for hits, count := range s.Distribution {
		builder.WriteString(fmt.Sprintf("%d个号码命中: %d次 (%.1f%%)\n", hits, count, s.Share(hits)*100))
	}
	builder.WriteString(fmt.Sprintf("\n命中%d个及以上号码概率: %.1f%%\n", backtest.HitThreshold, s.HitRateAtLeast5*100))

	if len(r.Warnings) > 0 {
		builder.WriteString("\n警告:\n")
		for _, w := range r.Warnings {
			builder.WriteString("- " + w + "\n")
		}
	}

	builder.WriteString("\n" + disclaimer)
	return builder.String()
}

// elapsed 回测耗时
func elapsed(r *backtest.Report) time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
