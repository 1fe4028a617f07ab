// Package backtest 按时间回放开奖历史，衡量预测方法的命中情况。
//
// 每一期只使用严格早于该期开奖日期的数据训练，各期之间互不共享可变状态，
// 因此可以并行执行；每期使用独立的随机源（基础种子 + 期序号），结果可复现。
package backtest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"kl8-predictor/internal/config"
	"kl8-predictor/internal/draw"
	"kl8-predictor/internal/logger"
	"kl8-predictor/internal/predictor"
)

// Options 回测参数
type Options struct {
	Trials              int   `json:"trials"`
	PredictionsPerTrial int   `json:"predictions_per_trial"`
	PicksPerPrediction  int   `json:"picks_per_prediction"`
	Workers             int   `json:"workers"`
	Seed                int64 `json:"seed"` // 0 表示使用时间种子
}

// DefaultOptions 默认回测参数：每期5组，每组10个号码
func DefaultOptions(trials int) Options {
	return Options{
		Trials:              trials,
		PredictionsPerTrial: 5,
		PicksPerPrediction:  predictor.DefaultPickCount,
		Workers:             1,
		Seed:                1,
	}
}

// OptionsFromConfig 从配置构造回测参数
func OptionsFromConfig(cfg config.Backtest) Options {
	return Options{
		Trials:              cfg.Trials,
		PredictionsPerTrial: cfg.PredictionsPerTrial,
		PicksPerPrediction:  cfg.PicksPerPrediction,
		Workers:             cfg.Workers,
		Seed:                cfg.Seed,
	}
}

func (o Options) validate() error {
	if o.Trials <= 0 {
		return fmt.Errorf("%w: trials must be positive, got %d", draw.ErrInvalidArgument, o.Trials)
	}
	if o.PredictionsPerTrial <= 0 {
		return fmt.Errorf("%w: predictions per trial must be positive, got %d",
			draw.ErrInvalidArgument, o.PredictionsPerTrial)
	}
	if o.PicksPerPrediction <= 0 || o.PicksPerPrediction > predictor.MaxHits {
		return fmt.Errorf("%w: picks per prediction must be in 1..%d, got %d",
			draw.ErrInvalidArgument, predictor.MaxHits, o.PicksPerPrediction)
	}
	return nil
}

// Harness 回测执行器
type Harness struct {
	predictor predictor.Predictor
	opts      Options
}

// NewHarness 创建回测执行器
func NewHarness(p predictor.Predictor, opts Options) *Harness {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Harness{
		predictor: p,
		opts:      opts,
	}
}

type trialOutcome struct {
	trial   Trial
	skipped bool
	warning string
}

// Run 对最近 Trials 期逐期回测
//
// 历史不足 Trials+1 期时回测期数收缩为 len-1 并记录警告；训练集为空的期跳过并记录警告。
func (h *Harness) Run(ctx context.Context, set *draw.Set) (*Report, error) {
	if err := h.opts.validate(); err != nil {
		return nil, err
	}
	if set.Len() < 2 {
		return nil, fmt.Errorf("%w: backtest needs at least 2 draws, got %d",
			draw.ErrInsufficientHistory, set.Len())
	}

	opts := h.opts
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	report := &Report{
		RunID:     uuid.New(),
		Predictor: h.predictor.GetName(),
		Options:   opts,
		StartedAt: time.Now(),
		Trials:    []Trial{},
		Warnings:  []string{},
	}

	trials := opts.Trials
	if trials > set.Len()-1 {
		trials = set.Len() - 1
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"requested %d trials but only %d draws available, running %d", opts.Trials, set.Len(), trials))
	}

	log := logger.WithFields(logrus.Fields{
		"run_id":    report.RunID.String(),
		"predictor": report.Predictor,
		"trials":    trials,
	})
	log.Info("Backtest started")

	outcomes := make([]trialOutcome, trials)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := 0; i < trials; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = h.runTrial(set, i, rand.New(rand.NewSource(opts.Seed+int64(i))))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("backtest aborted: %w", err)
	}

	for _, o := range outcomes {
		if o.warning != "" {
			report.Warnings = append(report.Warnings, o.warning)
		}
		if !o.skipped {
			report.Trials = append(report.Trials, o.trial)
		}
	}
	for _, w := range report.Warnings {
		log.Warn(w)
	}

	report.Summary = summarize(report.Trials)
	report.FinishedAt = time.Now()
	log.WithFields(logrus.Fields{
		"completed":    report.Summary.TrialCount,
		"avg_max_hits": report.Summary.AvgMaxHits,
		"avg_hits":     report.Summary.AvgHits,
		"elapsed":      report.FinishedAt.Sub(report.StartedAt).String(),
	}).Info("Backtest completed")

	return report, nil
}

// runTrial 以第i新的一期为测试目标，仅用更早日期的数据训练
func (h *Harness) runTrial(set *draw.Set, i int, rng *rand.Rand) trialOutcome {
	target := set.At(i)
	training := set.Before(target.Date)
	if training.Empty() {
		return trialOutcome{
			skipped: true,
			warning: fmt.Sprintf("no history before %s (issue %d), trial skipped",
				target.Date.Format("2006-01-02"), target.Issue),
		}
	}

	model, err := h.predictor.Train(training, rng)
	if err != nil {
		return trialOutcome{
			skipped: true,
			warning: fmt.Sprintf("issue %d: %v, trial skipped", target.Issue, err),
		}
	}

	predictions := make([]Prediction, 0, h.opts.PredictionsPerTrial)
	for j := 0; j < h.opts.PredictionsPerTrial; j++ {
		picks, err := model.Predict(h.opts.PicksPerPrediction)
		if err != nil {
			return trialOutcome{
				skipped: true,
				warning: fmt.Sprintf("issue %d prediction %d: %v, trial skipped", target.Issue, j+1, err),
			}
		}
		predictions = append(predictions, Prediction{
			Numbers: picks,
			Hits:    predictor.Validate(picks, target).Hits,
		})
	}

	trial := newTrial(predictions)
	trial.Issue = target.Issue
	trial.Date = target.Date
	trial.Actual = target.Numbers
	trial.TrainingSize = training.Len()
	trial.TrainingLatest = training.MaxDate()
	return trialOutcome{trial: trial}
}
