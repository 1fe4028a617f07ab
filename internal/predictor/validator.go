package predictor

import (
	"kl8-predictor/internal/draw"
)

// MaxHits 命中数上限（最多预测10个号码参与统计）
const MaxHits = 10

// ValidationResult 单组预测的验证结果
type ValidationResult struct {
	Issue            int   `json:"issue"`
	PredictedNumbers []int `json:"predicted_numbers"`
	ActualNumbers    []int `json:"actual_numbers"`
	MatchedNumbers   []int `json:"matched_numbers"`
	Hits             int   `json:"hits"`
	PredictedSum     int   `json:"predicted_sum"`
	ActualSum        int   `json:"actual_sum"`
}

// Validate 对比预测号码和实际开奖
func Validate(predicted []int, actual draw.Record) ValidationResult {
	result := ValidationResult{
		Issue:            actual.Issue,
		PredictedNumbers: predicted,
		ActualNumbers:    actual.Numbers,
		MatchedNumbers:   []int{},
		ActualSum:        actual.Sum(),
	}

	for _, n := range predicted {
		result.PredictedSum += n
		if actual.Contains(n) {
			result.MatchedNumbers = append(result.MatchedNumbers, n)
		}
	}
	result.Hits = len(result.MatchedNumbers)
	return result
}

// Statistics 一批验证结果的统计
type Statistics struct {
	TotalPredictions int              `json:"total_predictions"`
	TotalHits        int              `json:"total_hits"`
	MaxHits          int              `json:"max_hits"`
	AverageHits      float64          `json:"average_hits"`
	Distribution     [MaxHits + 1]int `json:"distribution"`
}

// Summarize 统计命中情况，超过10个的命中数计入最后一档
func Summarize(results []ValidationResult) Statistics {
	var stats Statistics
	for _, r := range results {
		stats.TotalPredictions++
		stats.TotalHits += r.Hits
		stats.MaxHits = max(stats.MaxHits, r.Hits)
		stats.Distribution[min(r.Hits, MaxHits)]++
	}
	if stats.TotalPredictions > 0 {
		stats.AverageHits = float64(stats.TotalHits) / float64(stats.TotalPredictions)
	}
	return stats
}
