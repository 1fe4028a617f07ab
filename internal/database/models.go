package database

import (
	"time"

	"kl8-predictor/internal/draw"
)

// DrawStore 开奖数据存储
type DrawStore interface {
	// Load 读取全部开奖记录
	Load() (*draw.Set, error)

	// Save 写入开奖记录，期号已存在时覆盖
	Save(records []draw.Record) error
}

// DrawRow 开奖数据表模型
type DrawRow struct {
	ID        int64     `json:"id" db:"id"`
	Issue     int       `json:"issue" db:"issue"`
	DrawDate  time.Time `json:"draw_date" db:"draw_date"`
	Numbers   string    `json:"numbers" db:"numbers"` // 逗号分隔
	SumValue  int       `json:"sum_value" db:"sum_value"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Record 转换为校验后的开奖记录
func (r DrawRow) Record() (draw.Record, error) {
	numbers, err := draw.ParseNumbers(r.Numbers)
	if err != nil {
		return draw.Record{}, err
	}
	return draw.NewRecord(r.Issue, r.DrawDate, numbers)
}

// Prediction 预测记录模型
type Prediction struct {
	ID           int64      `json:"id" db:"id"`
	TargetDate   time.Time  `json:"target_date" db:"target_date"`
	PredictedNum string     `json:"predicted_num" db:"predicted_num"`
	Predictor    string     `json:"predictor" db:"predictor"`
	ActualIssue  *int       `json:"actual_issue" db:"actual_issue"`
	ActualNum    *string    `json:"actual_num" db:"actual_num"`
	Hits         *int       `json:"hits" db:"hits"`
	PredictedAt  time.Time  `json:"predicted_at" db:"predicted_at"`
	VerifiedAt   *time.Time `json:"verified_at" db:"verified_at"`
}

// Verified 是否已开奖验证
func (p *Prediction) Verified() bool {
	return p.Hits != nil
}

// BacktestRun 回测运行记录
type BacktestRun struct {
	ID               string    `json:"id" db:"id"` // uuid
	Predictor        string    `json:"predictor" db:"predictor"`
	Trials           int       `json:"trials" db:"trials"`
	TotalPredictions int       `json:"total_predictions" db:"total_predictions"`
	AvgMaxHits       float64   `json:"avg_max_hits" db:"avg_max_hits"`
	AvgHits          float64   `json:"avg_hits" db:"avg_hits"`
	HitRate          float64   `json:"hit_rate" db:"hit_rate"`
	FullResults      []byte    `json:"full_results" db:"full_results"`
	StartedAt        time.Time `json:"started_at" db:"started_at"`
	FinishedAt       time.Time `json:"finished_at" db:"finished_at"`
}
