package telegram

import (
	"fmt"
	"strings"

	"kl8-predictor/internal/database"
	"kl8-predictor/internal/draw"
	"kl8-predictor/internal/predictor"
	"kl8-predictor/internal/report"
)

const welcomeText = `🎮 欢迎使用快乐8预测机器人！

📝 可用命令:
/predict - 查看最新预测号码
/latest - 查看最近开奖
/strategy - 查看推荐玩法
/history - 查看预测记录
/stats - 查看命中统计
/help - 帮助信息

🔔 有新开奖时机器人会自动推送预测结果`

const helpText = `📖 命令帮助:

/start - 开始使用
/predict - 基于全部历史生成下期预测
/latest - 最近5期开奖号码
/strategy - 按期望值排序的前3种玩法
/history - 最近10组预测及开奖验证结果
/stats - 已验证预测的命中统计
/help - 显示本帮助

💡 也可以直接发送: 预测、最新、玩法、历史、统计

⚠️ 预测结果仅供参考，购彩需理性`

// latestDraws /latest 展示的期数
const latestDraws = 5

// formatPredictionMessage 预测报告消息
func formatPredictionMessage(r *report.PredictionReport) string {
	return "🔮 " + report.RenderPrediction(r)
}

// formatBroadcast 新开奖推送消息
func formatBroadcast(r *report.PredictionReport) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📊 第%d期已开奖: %s\n\n", r.LastIssue, report.FormatNumbers(r.LastNumbers)))
	builder.WriteString(report.RenderPrediction(r))
	return builder.String()
}

// formatStrategyMessage 推荐玩法消息
func formatStrategyMessage(r *report.PredictionReport) string {
	if len(r.Strategies) == 0 {
		return "暂无玩法数据"
	}
	return "🎯 推荐玩法\n\n" + report.RenderStrategies(r.Strategies)
}

// formatLatestDraws 最近开奖消息
func formatLatestDraws(set *draw.Set, limit int) string {
	if set.Empty() {
		return "暂无开奖数据"
	}

	var builder strings.Builder
	builder.WriteString("📈 最近开奖\n\n")
	for i := 0; i < min(limit, set.Len()); i++ {
		r := set.At(i)
		builder.WriteString(fmt.Sprintf("第%d期 %s\n%s\n", r.Issue, r.Date.Format("2006-01-02"), report.FormatNumbers(r.Numbers)))
	}
	return builder.String()
}

// formatHistoryMessage 预测记录消息
func formatHistoryMessage(predictions []database.Prediction) string {
	if len(predictions) == 0 {
		return "暂无预测记录"
	}

	var builder strings.Builder
	builder.WriteString("📜 最近预测\n\n")
	for _, p := range predictions {
		status := "⏳ 待开奖"
		if p.Verified() {
			status = fmt.Sprintf("✅ 命中%d个", *p.Hits)
			if p.ActualIssue != nil {
				status += fmt.Sprintf(" (第%d期)", *p.ActualIssue)
			}
		}
		builder.WriteString(fmt.Sprintf("%s %s\n%s\n", p.TargetDate.Format("2006-01-02"), status, p.PredictedNum))
	}
	return builder.String()
}

// formatStatsMessage 命中统计消息，命中分布从高到低只列出出现过的档位
func formatStatsMessage(results []predictor.ValidationResult) string {
	if len(results) == 0 {
		return "暂无已验证的预测"
	}

	stats := predictor.Summarize(results)
	var builder strings.Builder
	builder.WriteString("📈 命中统计\n\n")
	builder.WriteString(fmt.Sprintf("已验证: %d组\n", stats.TotalPredictions))
	builder.WriteString(fmt.Sprintf("总命中: %d\n", stats.TotalHits))
	builder.WriteString(fmt.Sprintf("平均命中: %.2f\n", stats.AverageHits))
	builder.WriteString(fmt.Sprintf("最高命中: %d\n\n", stats.MaxHits))
	builder.WriteString("命中分布:\n")
	for hits := predictor.MaxHits; hits >= 0; hits-- {
		if count := stats.Distribution[hits]; count > 0 {
			builder.WriteString(fmt.Sprintf("%d个: %d组\n", hits, count))
		}
	}
	return builder.String()
}
