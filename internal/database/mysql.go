package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"kl8-predictor/internal/backtest"
	"kl8-predictor/internal/config"
	"kl8-predictor/internal/draw"
	"kl8-predictor/internal/logger"

	_ "github.com/go-sql-driver/mysql"
)

const dateLayout = "2006-01-02"

// MySQLDB MySQL数据库客户端
type MySQLDB struct {
	db *sql.DB
}

// NewMySQLDB 创建新的MySQL数据库连接
func NewMySQLDB(cfg *config.Database) (*MySQLDB, error) {
	db, err := sql.Open("mysql", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// 测试连接
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	mysqlDB := NewMySQLDBWithConn(db)

	// 自动创建表结构
	if err := mysqlDB.createTablesIfNotExists(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return mysqlDB, nil
}

// NewMySQLDBWithConn 使用已有连接创建客户端（不建表）
func NewMySQLDBWithConn(db *sql.DB) *MySQLDB {
	return &MySQLDB{db: db}
}

// Close 关闭数据库连接
func (m *MySQLDB) Close() error {
	return m.db.Close()
}

// Load 读取全部开奖记录，损坏的行跳过并记录警告
func (m *MySQLDB) Load() (*draw.Set, error) {
	query := `SELECT issue, draw_date, numbers FROM draws ORDER BY draw_date DESC, issue DESC`

	rows, err := m.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query draws: %w", err)
	}
	defer rows.Close()

	var records []draw.Record
	for rows.Next() {
		var row DrawRow
		if err := rows.Scan(&row.Issue, &row.DrawDate, &row.Numbers); err != nil {
			return nil, fmt.Errorf("failed to scan draw: %w", err)
		}
		record, err := row.Record()
		if err != nil {
			logger.Warnf("Skipping malformed draw %d: %v", row.Issue, err)
			continue
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading draw rows: %w", err)
	}

	logger.Debugf("Loaded %d draws from mysql", len(records))
	return draw.NewSet(records)
}

// Save 在一个事务内写入开奖记录
func (m *MySQLDB) Save(records []draw.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO draws (issue, draw_date, numbers, sum_value)
			  VALUES (?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
			  draw_date = VALUES(draw_date),
			  numbers = VALUES(numbers),
			  sum_value = VALUES(sum_value),
			  updated_at = CURRENT_TIMESTAMP`

	for _, r := range records {
		if _, err := tx.Exec(query, r.Issue, r.Date.Format(dateLayout), draw.FormatNumbers(r.Numbers), r.Sum()); err != nil {
			return fmt.Errorf("failed to save draw %d: %w", r.Issue, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit draws: %w", err)
	}

	logger.Debugf("Saved %d draws to mysql", len(records))
	return nil
}

// LatestIssue 最新期号，无数据时返回0
func (m *MySQLDB) LatestIssue() (int, error) {
	var issue int
	err := m.db.QueryRow(`SELECT issue FROM draws ORDER BY draw_date DESC, issue DESC LIMIT 1`).Scan(&issue)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get latest issue: %w", err)
	}
	return issue, nil
}

// CheckNewIssue 检查期号是否尚未入库
func (m *MySQLDB) CheckNewIssue(issue int) (bool, error) {
	var count int
	err := m.db.QueryRow("SELECT COUNT(*) FROM draws WHERE issue = ?", issue).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check new issue: %w", err)
	}
	return count == 0, nil
}

// SavePrediction 保存预测记录
func (m *MySQLDB) SavePrediction(p *Prediction) error {
	query := `INSERT INTO predictions (target_date, predicted_num, predictor, predicted_at)
			  VALUES (?, ?, ?, ?)`

	result, err := m.db.Exec(query, p.TargetDate.Format(dateLayout), p.PredictedNum, p.Predictor, p.PredictedAt)
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	p.ID = id
	logger.Debugf("Saved prediction for %s", p.TargetDate.Format(dateLayout))
	return nil
}

// GetPendingPredictions 获取目标日期不晚于date且尚未验证的预测
func (m *MySQLDB) GetPendingPredictions(date time.Time) ([]Prediction, error) {
	query := `SELECT id, target_date, predicted_num, predictor, actual_issue, actual_num, hits, predicted_at, verified_at
			  FROM predictions
			  WHERE hits IS NULL AND target_date <= ?
			  ORDER BY predicted_at DESC`
	return m.queryPredictions(query, date.Format(dateLayout))
}

// GetLatestPredictions 获取最新的预测记录
func (m *MySQLDB) GetLatestPredictions(limit int) ([]Prediction, error) {
	query := `SELECT id, target_date, predicted_num, predictor, actual_issue, actual_num, hits, predicted_at, verified_at
			  FROM predictions
			  ORDER BY predicted_at DESC
			  LIMIT ?`
	return m.queryPredictions(query, limit)
}

func (m *MySQLDB) queryPredictions(query string, args ...interface{}) ([]Prediction, error) {
	rows, err := m.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var predictions []Prediction
	for rows.Next() {
		var p Prediction
		err := rows.Scan(&p.ID, &p.TargetDate, &p.PredictedNum, &p.Predictor,
			&p.ActualIssue, &p.ActualNum, &p.Hits, &p.PredictedAt, &p.VerifiedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading prediction rows: %w", err)
	}
	return predictions, nil
}

// UpdatePredictionResult 写入预测的开奖验证结果
func (m *MySQLDB) UpdatePredictionResult(id int64, actual draw.Record, hits int) error {
	query := `UPDATE predictions
			  SET actual_issue = ?, actual_num = ?, hits = ?, verified_at = NOW()
			  WHERE id = ?`

	_, err := m.db.Exec(query, actual.Issue, draw.FormatNumbers(actual.Numbers), hits, id)
	if err != nil {
		return fmt.Errorf("failed to update prediction result: %w", err)
	}

	logger.Debugf("Updated prediction %d: issue %d, hits %d", id, actual.Issue, hits)
	return nil
}

// SaveBacktestRun 保存回测汇总及完整结果
func (m *MySQLDB) SaveBacktestRun(r *backtest.Report) error {
	full, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest report: %w", err)
	}

	run := BacktestRun{
		ID:               r.RunID.String(),
		Predictor:        r.Predictor,
		Trials:           r.Summary.TrialCount,
		TotalPredictions: r.Summary.TotalPredictions,
		AvgMaxHits:       r.Summary.AvgMaxHits,
		AvgHits:          r.Summary.AvgHits,
		HitRate:          r.Summary.HitRateAtLeast5,
		FullResults:      full,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
	}

	query := `INSERT INTO backtest_runs
			  (id, predictor, trials, total_predictions, avg_max_hits, avg_hits, hit_rate, full_results, started_at, finished_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = m.db.Exec(query, run.ID, run.Predictor, run.Trials, run.TotalPredictions,
		run.AvgMaxHits, run.AvgHits, run.HitRate, run.FullResults, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to save backtest run: %w", err)
	}

	logger.Infof("Saved backtest run %s", run.ID)
	return nil
}

// createTablesIfNotExists 自动创建表结构
func (m *MySQLDB) createTablesIfNotExists() error {
	tables := []struct {
		name string
		ddl  string
	}{
		{name: "draws", ddl: `CREATE TABLE IF NOT EXISTS draws (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			issue INT UNIQUE NOT NULL COMMENT '期号',
			draw_date DATE NOT NULL COMMENT '开奖日期',
			numbers VARCHAR(80) NOT NULL COMMENT '开奖号码',
			sum_value INT NOT NULL COMMENT '和值',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP COMMENT '记录创建时间',
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP COMMENT '记录更新时间',
			INDEX idx_draw_date (draw_date)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci COMMENT='开奖数据表'`},
		{name: "predictions", ddl: `CREATE TABLE IF NOT EXISTS predictions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			target_date DATE NOT NULL COMMENT '目标开奖日期',
			predicted_num VARCHAR(80) NOT NULL COMMENT '预测号码',
			predictor VARCHAR(50) NOT NULL DEFAULT 'composite' COMMENT '预测算法',
			actual_issue INT DEFAULT NULL COMMENT '实际期号',
			actual_num VARCHAR(80) DEFAULT NULL COMMENT '实际开奖号码',
			hits INT DEFAULT NULL COMMENT '命中个数',
			predicted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP COMMENT '预测时间',
			verified_at TIMESTAMP NULL COMMENT '验证时间',
			INDEX idx_target_date (target_date),
			INDEX idx_hits (hits)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci COMMENT='预测记录表'`},
		{name: "backtest_runs", ddl: `CREATE TABLE IF NOT EXISTS backtest_runs (
			id CHAR(36) PRIMARY KEY,
			predictor VARCHAR(50) NOT NULL COMMENT '预测算法',
			trials INT NOT NULL COMMENT '回测期数',
			total_predictions INT NOT NULL COMMENT '预测组数',
			avg_max_hits DOUBLE NOT NULL COMMENT '平均每期最大命中',
			avg_hits DOUBLE NOT NULL COMMENT '总体平均命中',
			hit_rate DOUBLE NOT NULL COMMENT '命中5个及以上比例',
			full_results JSON NOT NULL COMMENT '完整结果',
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci COMMENT='回测记录表'`},
	}

	for _, t := range tables {
		if _, err := m.db.Exec(t.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
	}
	return nil
}
