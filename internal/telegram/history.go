package telegram

import (
	"kl8-predictor/internal/database"
	"kl8-predictor/internal/draw"
	"kl8-predictor/internal/logger"
	"kl8-predictor/internal/predictor"
)

const (
	// historyLimit /history 展示的预测组数
	historyLimit = 10
	// statsLimit /stats 统计的最近预测组数
	statsLimit = 200
)

// PredictionHistory 预测记录查询，仅MySQL存储提供
type PredictionHistory interface {
	GetLatestPredictions(limit int) ([]database.Prediction, error)
}

// verifiedResults 已开奖验证的预测转换为验证结果，号码无法解析的记录跳过
func verifiedResults(predictions []database.Prediction) []predictor.ValidationResult {
	results := make([]predictor.ValidationResult, 0, len(predictions))
	for _, p := range predictions {
		if !p.Verified() || p.ActualIssue == nil || p.ActualNum == nil {
			continue
		}

		predicted, err := draw.ParseNumbers(p.PredictedNum)
		if err != nil {
			logger.Warnf("Prediction %d has malformed numbers: %v", p.ID, err)
			continue
		}
		actualNumbers, err := draw.ParseNumbers(*p.ActualNum)
		if err != nil {
			logger.Warnf("Prediction %d has malformed draw numbers: %v", p.ID, err)
			continue
		}
		actual, err := draw.NewRecord(*p.ActualIssue, p.TargetDate, actualNumbers)
		if err != nil {
			logger.Warnf("Prediction %d: %v", p.ID, err)
			continue
		}
		results = append(results, predictor.Validate(predicted, actual))
	}
	return results
}
