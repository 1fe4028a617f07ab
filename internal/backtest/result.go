package backtest

import (
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"kl8-predictor/internal/predictor"
)

// HitThreshold 统计"命中5个及以上"的阈值
const HitThreshold = 5

// Prediction 一组预测及其命中数
type Prediction struct {
	Numbers []int `json:"numbers"`
	Hits    int   `json:"hits"`
}

// Trial 单期回测结果
type Trial struct {
	Issue          int          `json:"issue"`
	Date           time.Time    `json:"date"`
	Actual         []int        `json:"actual_numbers"`
	TrainingSize   int          `json:"training_size"`
	TrainingLatest time.Time    `json:"training_latest"`
	Predictions    []Prediction `json:"predictions"`
	MaxHits        int          `json:"max_hits"`
	AvgHits        float64      `json:"avg_hits"`
}

// Summary 回测汇总
type Summary struct {
	TrialCount       int                        `json:"trial_count"`
	TotalPredictions int                        `json:"total_predictions"`
	AvgMaxHits       float64                    `json:"avg_max_hits"`
	AvgHits          float64                    `json:"avg_hits"`
	Distribution     [predictor.MaxHits + 1]int `json:"hit_distribution"`
	HitRateAtLeast5  float64                    `json:"hit_rate_at_least_5"`
}

// Share 命中数为hits的预测占比
func (s Summary) Share(hits int) float64 {
	if s.TotalPredictions == 0 || hits < 0 || hits > predictor.MaxHits {
		return 0
	}
	return float64(s.Distribution[hits]) / float64(s.TotalPredictions)
}

// Report 一次回测运行的完整结果
type Report struct {
	RunID      uuid.UUID `json:"run_id"`
	Predictor  string    `json:"predictor"`
	Options    Options   `json:"options"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Trials     []Trial   `json:"trials"`
	Summary    Summary   `json:"summary"`
	Warnings   []string  `json:"warnings"`
}

func newTrial(predictions []Prediction) Trial {
	t := Trial{Predictions: predictions}
	if len(predictions) == 0 {
		return t
	}
	total := 0
	for _, p := range predictions {
		total += p.Hits
		t.MaxHits = max(t.MaxHits, p.Hits)
	}
	t.AvgHits = float64(total) / float64(len(predictions))
	return t
}

// summarize 汇总所有期的命中情况
func summarize(trials []Trial) Summary {
	var s Summary
	maxima := make(stats.Float64Data, 0, len(trials))
	averages := make(stats.Float64Data, 0, len(trials))
	atLeast := 0

	for _, t := range trials {
		s.TrialCount++
		maxima = append(maxima, float64(t.MaxHits))
		averages = append(averages, t.AvgHits)
		for _, p := range t.Predictions {
			s.TotalPredictions++
			s.Distribution[min(p.Hits, predictor.MaxHits)]++
			if p.Hits >= HitThreshold {
				atLeast++
			}
		}
	}
	if s.TrialCount == 0 {
		return s
	}

	s.AvgMaxHits, _ = maxima.Mean()
	s.AvgHits, _ = averages.Mean()
	if s.TotalPredictions > 0 {
		s.HitRateAtLeast5 = float64(atLeast) / float64(s.TotalPredictions)
	}
	return s
}
