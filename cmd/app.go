package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"kl8-predictor/internal/api"
	"kl8-predictor/internal/cache"
	"kl8-predictor/internal/config"
	"kl8-predictor/internal/database"
	"kl8-predictor/internal/draw"
	"kl8-predictor/internal/logger"
	"kl8-predictor/internal/predictor"
	"kl8-predictor/internal/report"
	"kl8-predictor/internal/telegram"
)

// predictionLedger 预测记录存储，仅MySQL存储提供
type predictionLedger interface {
	SavePrediction(p *database.Prediction) error
	GetPendingPredictions(date time.Time) ([]database.Prediction, error)
	UpdatePredictionResult(id int64, actual draw.Record, hits int) error
}

type broadcaster interface {
	Broadcast(r *report.PredictionReport) error
}

// App 守护进程：轮询开奖数据、验证预测、生成并推送新预测
type App struct {
	config       *config.Config
	closeStore   func() error
	cacheManager *cache.CacheManager
	source       api.DrawDataSource
	ledger       predictionLedger
	broadcaster  broadcaster
	telegramBot  *telegram.Bot
	now          func() time.Time

	stopChannel chan struct{}
	wg          sync.WaitGroup

	// 错误状态跟踪（避免重复日志）
	lastAPIError string
}

// NewApp 创建应用程序实例
func NewApp(cfg *config.Config) (*App, error) {
	store, closeStore, err := database.OpenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	logger.Infof("Using %s draw store", cfg.Store.Driver)

	cacheManager := cache.NewCacheManager(store, cfg.App.CacheTTL)
	app := &App{
		config:       cfg,
		closeStore:   closeStore,
		cacheManager: cacheManager,
		source:       api.NewClient(&cfg.API),
		now:          time.Now,
		stopChannel:  make(chan struct{}),
	}
	if ledger, ok := store.(predictionLedger); ok {
		app.ledger = ledger
	}

	if cfg.Telegram.Token != "" {
		history, _ := store.(telegram.PredictionHistory)
		bot, err := telegram.NewBot(&cfg.Telegram, cacheManager, app.buildReport, cfg.Predictor.Groups, history)
		if err != nil {
			closeStore()
			return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
		}
		app.telegramBot = bot
		app.broadcaster = bot
	} else {
		logger.Warn("Telegram token not configured, broadcasting disabled")
	}

	return app, nil
}

// buildReport 用当前配置生成预测报告
func (a *App) buildReport(set *draw.Set) (*report.PredictionReport, error) {
	now := a.now()
	engine := predictor.NewEngine(set,
		predictor.WithWeights(a.config.Predictor.Weights),
		predictor.WithRand(rand.New(rand.NewSource(now.UnixNano()))))
	return report.BuildPrediction(set, engine, report.BuildOptions{
		Groups:    a.config.Predictor.Groups,
		PickCount: a.config.Predictor.PickCount,
		Now:       now,
	})
}

// Start 启动应用程序
func (a *App) Start(ctx context.Context) error {
	if err := a.processDataUpdate(ctx); err != nil {
		logger.Warnf("Initial data sync failed: %v", err)
	}

	if a.telegramBot != nil {
		a.telegramBot.Start()
	}

	a.wg.Add(1)
	go a.dataMonitorLoop(ctx)

	logger.Infof("Monitoring KL8 draws every %v", a.config.App.PollingInterval)
	return nil
}

// Stop 停止应用程序
func (a *App) Stop() error {
	close(a.stopChannel)

	if a.telegramBot != nil {
		a.telegramBot.Stop()
	}
	a.wg.Wait()

	if err := a.cacheManager.Close(); err != nil {
		logger.Errorf("Failed to close cache manager: %v", err)
	}
	if err := a.closeStore(); err != nil {
		logger.Errorf("Failed to close store: %v", err)
	}

	logger.Info("Application stopped")
	return nil
}

// dataMonitorLoop 数据监控循环
func (a *App) dataMonitorLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.App.PollingInterval)
	defer ticker.Stop()

	consecutiveErrors := 0
	for {
		select {
		case <-ticker.C:
			if err := a.processDataUpdate(ctx); err != nil {
				consecutiveErrors++
				// 只在第一次错误和每30次错误时记录
				if consecutiveErrors == 1 || consecutiveErrors%30 == 0 {
					logger.Warnf("Data update failed (%d in a row): %v", consecutiveErrors, err)
				}
				continue
			}
			if consecutiveErrors > 0 {
				logger.Infof("Data source recovered after %d failures", consecutiveErrors)
				consecutiveErrors = 0
			}
		case <-a.stopChannel:
			return
		case <-ctx.Done():
			return
		}
	}
}

// processDataUpdate 拉取新开奖，有新数据时验证旧预测并生成新预测
func (a *App) processDataUpdate(ctx context.Context) error {
	set, err := a.cacheManager.Draws()
	if err != nil {
		return err
	}

	since := a.config.API.StartDate
	if latest, ok := set.Latest(); ok {
		since = latest.Date.Format("2006-01-02")
	}

	fetched, err := a.source.FetchDraws(ctx, since)
	if err != nil {
		// 只在首次出错或错误类型变化时记录
		if a.lastAPIError != err.Error() {
			logger.Errorf("API fetch failed: %v", err)
			a.lastAPIError = err.Error()
		}
		return fmt.Errorf("failed to fetch draws: %w", err)
	}
	a.lastAPIError = ""

	var fresh []draw.Record
	for _, r := range fetched {
		if _, exists := set.FindIssue(r.Issue); !exists {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	logger.Infof("Found %d new draws, latest issue %d", len(fresh), fresh[0].Issue)
	if err := a.cacheManager.SaveDraws(fresh); err != nil {
		return fmt.Errorf("failed to save draws: %w", err)
	}

	set, err = a.cacheManager.Draws()
	if err != nil {
		return err
	}

	if verified, err := a.verifyPendingPredictions(set); err != nil {
		logger.Warnf("Failed to verify predictions: %v", err)
	} else if verified > 0 {
		logger.Infof("Verified %d predictions", verified)
	}

	return a.generateNewPrediction()
}

// verifyPendingPredictions 用已开奖数据验证未验证的预测
func (a *App) verifyPendingPredictions(set *draw.Set) (int, error) {
	if a.ledger == nil {
		return 0, nil
	}

	pending, err := a.ledger.GetPendingPredictions(set.MaxDate())
	if err != nil {
		return 0, err
	}

	byDate := make(map[time.Time]draw.Record, set.Len())
	for _, r := range set.Ascending() {
		byDate[r.Date] = r
	}

	verified := 0
	for _, p := range pending {
		actual, ok := byDate[draw.TruncateDay(p.TargetDate)]
		if !ok {
			continue
		}
		numbers, err := draw.ParseNumbers(p.PredictedNum)
		if err != nil {
			logger.Warnf("Prediction %d has malformed numbers: %v", p.ID, err)
			continue
		}
		hits := draw.Hits(numbers, actual)
		if err := a.ledger.UpdatePredictionResult(p.ID, actual, hits); err != nil {
			return verified, err
		}
		verified++
	}
	return verified, nil
}

// generateNewPrediction 生成新预测，记录并推送
func (a *App) generateNewPrediction() error {
	r, err := a.cacheManager.Prediction(a.config.Predictor.Groups, a.buildReport)
	if err != nil {
		return fmt.Errorf("failed to build prediction: %w", err)
	}
	a.cacheManager.SetLatestReport(r)

	if a.ledger != nil {
		for _, group := range r.Groups {
			p := &database.Prediction{
				TargetDate:   r.NextDrawDate,
				PredictedNum: draw.FormatNumbers(group),
				Predictor:    "composite",
				PredictedAt:  r.PredictedAt,
			}
			if err := a.ledger.SavePrediction(p); err != nil {
				logger.Warnf("Failed to save prediction: %v", err)
			}
		}
	}

	if a.broadcaster != nil {
		if err := a.broadcaster.Broadcast(r); err != nil {
			logger.Warnf("Failed to broadcast prediction: %v", err)
		}
	}

	logger.Infof("Generated prediction for %s: %s", r.NextDrawDate.Format("2006-01-02"), report.FormatNumbers(r.Predicted))
	return nil
}

// HealthCheck 健康检查
func (a *App) HealthCheck(ctx context.Context) map[string]interface{} {
	health := map[string]interface{}{
		"timestamp": a.now(),
		"status":    "ok",
	}

	if client, ok := a.source.(*api.Client); ok {
		if err := client.HealthCheck(ctx); err != nil {
			health["api"] = map[string]interface{}{"status": "error", "error": err.Error()}
			health["status"] = "degraded"
		} else {
			health["api"] = map[string]interface{}{"status": "ok", "stats": client.GetAPIStats()}
		}
	}

	health["cache"] = a.cacheManager.GetStats()
	if a.telegramBot != nil {
		health["telegram"] = a.telegramBot.GetBotInfo()
	}
	return health
}
