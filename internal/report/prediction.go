// Package report 组装预测报告和回测报告，并渲染为文本或导出为表格。
package report

import (
	"fmt"
	"time"

	"kl8-predictor/internal/analysis"
	"kl8-predictor/internal/draw"
	"kl8-predictor/internal/predictor"
)

const (
	// TopStrategies 报告中列出的玩法个数
	TopStrategies = 3
	// ColdWindowDays 冷号统计窗口
	ColdWindowDays = 7
)

// PredictionReport 预测报告
type PredictionReport struct {
	Predicted    []int                `json:"predicted_numbers"`
	Groups       [][]int              `json:"groups"`
	Strategies   []predictor.Strategy `json:"best_strategies"`
	PredictedAt  time.Time            `json:"prediction_time"`
	NextDrawDate time.Time            `json:"next_draw_date"`
	LastDrawDate time.Time            `json:"last_draw_date"`
	LastIssue    int                  `json:"last_issue"`
	LastNumbers  []int                `json:"last_draw_numbers"`
	Periodic     analysis.Periodic    `json:"historical_data"`
	ColdNumbers  []int                `json:"cold_numbers"`
}

// BuildOptions 报告参数
type BuildOptions struct {
	Groups    int       // 预测组数，至少1组
	PickCount int       // 每组号码个数
	Now       time.Time // 报告时间，零值取当前时间
}

// BuildPrediction 基于训练好的引擎生成预测报告，第一组即为报告的预测号码
func BuildPrediction(set *draw.Set, engine *predictor.Engine, opts BuildOptions) (*PredictionReport, error) {
	latest, ok := set.Latest()
	if !ok {
		return nil, fmt.Errorf("%w: no draws to report on", draw.ErrInsufficientHistory)
	}
	if opts.Groups <= 0 {
		opts.Groups = 1
	}
	if opts.PickCount == 0 {
		opts.PickCount = predictor.DefaultPickCount
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	groups := make([][]int, 0, opts.Groups)
	for i := 0; i < opts.Groups; i++ {
		picks, err := engine.Predict(opts.PickCount)
		if err != nil {
			return nil, fmt.Errorf("failed to predict group %d: %w", i+1, err)
		}
		groups = append(groups, picks)
	}

	strategies := predictor.RankStrategies(set)
	if len(strategies) > TopStrategies {
		strategies = strategies[:TopStrategies]
	}

	periodic := engine.Periodic()
	return &PredictionReport{
		Predicted:    groups[0],
		Groups:       groups,
		Strategies:   strategies,
		PredictedAt:  opts.Now,
		NextDrawDate: periodic.TargetDate,
		LastDrawDate: latest.Date,
		LastIssue:    latest.Issue,
		LastNumbers:  latest.Numbers,
		Periodic:     periodic,
		ColdNumbers:  analysis.ColdNumbers(set, ColdWindowDays),
	}, nil
}
