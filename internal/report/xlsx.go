package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"kl8-predictor/internal/backtest"
)

const (
	summarySheet = "Summary"
	trialsSheet  = "Trials"
)

// ExportBacktestXLSX 将回测报告导出为xlsx：Summary 汇总、Trials 每组预测一行
func ExportBacktestXLSX(r *backtest.Report, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(trialsSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	s := r.Summary
	summary := [][]interface{}{
		{"run_id", r.RunID.String()},
		{"predictor", r.Predictor},
		{"started_at", r.StartedAt.Format("2006-01-02 15:04:05")},
		{"elapsed", elapsed(r).String()},
		{"trials", s.TrialCount},
		{"total_predictions", s.TotalPredictions},
		{"avg_max_hits", s.AvgMaxHits},
		{"avg_hits", s.AvgHits},
		{"hit_rate_at_least_5", s.HitRateAtLeast5},
		{},
		{"hits", "count", "share"},
	}
	for hits, count := range s.Distribution {
		summary = append(summary, []interface{}{hits, count, s.Share(hits)})
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return err
	}

	trials := [][]interface{}{
		{"issue", "date", "actual", "group", "predicted", "hits", "trial_max", "trial_avg"},
	}
	for _, t := range r.Trials {
		for i, p := range t.Predictions {
			trials = append(trials, []interface{}{
				t.Issue, t.Date.Format("2006-01-02"), FormatNumbers(t.Actual),
				i + 1, FormatNumbers(p.Numbers), p.Hits, t.MaxHits, t.AvgHits,
			})
		}
	}
	if err := writeRows(f, trialsSheet, trials); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to write %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}
