package telegram

import (
	"errors"
	"fmt"
	"strings"

	"kl8-predictor/internal/cache"
	"kl8-predictor/internal/config"
	"kl8-predictor/internal/logger"
	"kl8-predictor/internal/report"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender 发送Telegram消息，*tgbotapi.BotAPI 满足该接口
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot Telegram机器人
type Bot struct {
	api           *tgbotapi.BotAPI
	sender        Sender
	cacheManager  *cache.CacheManager
	build         cache.ReportBuilder
	groups        int
	chatIDs       []int64
	history       PredictionHistory
	updateChannel tgbotapi.UpdatesChannel
	stopChannel   chan struct{}
}

// NewBot 创建新的Telegram机器人，history 为 nil 时 /history 和 /stats 不可用
func NewBot(cfg *config.Telegram, cacheManager *cache.CacheManager, build cache.ReportBuilder, groups int, history PredictionHistory) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	api.Debug = false
	logger.Infof("Telegram bot authorized on account: %s", api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(cfg.Timeout.Seconds())

	b := newBot(api, cacheManager, build, groups, cfg.ChatIDs)
	b.api = api
	b.history = history
	b.updateChannel = api.GetUpdatesChan(u)
	return b, nil
}

func newBot(sender Sender, cacheManager *cache.CacheManager, build cache.ReportBuilder, groups int, chatIDs []int64) *Bot {
	return &Bot{
		sender:       sender,
		cacheManager: cacheManager,
		build:        build,
		groups:       max(groups, 1),
		chatIDs:      chatIDs,
		stopChannel:  make(chan struct{}),
	}
}

// Start 启动机器人
func (b *Bot) Start() {
	logger.Info("Starting Telegram bot...")
	go b.handleUpdates()
	logger.Info("Telegram bot started successfully")
}

// Stop 停止机器人
func (b *Bot) Stop() {
	logger.Info("Stopping Telegram bot...")
	close(b.stopChannel)
	if b.api != nil {
		b.api.StopReceivingUpdates()
	}
	logger.Info("Telegram bot stopped")
}

// handleUpdates 处理更新
func (b *Bot) handleUpdates() {
	for {
		select {
		case update, ok := <-b.updateChannel:
			if !ok {
				return
			}
			if update.Message != nil {
				go b.handleMessage(update.Message)
			}
		case <-b.stopChannel:
			return
		}
	}
}

// handleMessage 处理消息
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if message.IsCommand() {
		logger.Debugf("Received command: %s from chat: %d", message.Command(), chatID)
		b.sendMessage(chatID, b.reply(message.Command()))
		return
	}
	b.sendMessage(chatID, b.replyText(strings.TrimSpace(message.Text)))
}

// reply 生成命令回复
func (b *Bot) reply(command string) string {
	switch command {
	case "start":
		return welcomeText
	case "help":
		return helpText
	case "predict":
		r, err := b.prediction()
		if err != nil {
			logger.Errorf("Failed to build prediction: %v", err)
			return "❌ 生成预测失败，请稍后再试"
		}
		return formatPredictionMessage(r)
	case "latest":
		set, err := b.cacheManager.Draws()
		if err != nil {
			logger.Errorf("Failed to load draws: %v", err)
			return "❌ 获取开奖数据失败，请稍后再试"
		}
		return formatLatestDraws(set, latestDraws)
	case "strategy":
		r, err := b.prediction()
		if err != nil {
			logger.Errorf("Failed to build prediction: %v", err)
			return "❌ 获取玩法数据失败，请稍后再试"
		}
		return formatStrategyMessage(r)
	case "history", "stats":
		if b.history == nil {
			return "当前存储不保存预测记录"
		}
		limit := historyLimit
		if command == "stats" {
			limit = statsLimit
		}
		predictions, err := b.history.GetLatestPredictions(limit)
		if err != nil {
			logger.Errorf("Failed to load predictions: %v", err)
			return "❌ 获取预测记录失败，请稍后再试"
		}
		if command == "stats" {
			return formatStatsMessage(verifiedResults(predictions))
		}
		return formatHistoryMessage(predictions)
	default:
		return "未知命令，输入 /help 查看可用命令"
	}
}

// replyText 关键词回复
func (b *Bot) replyText(text string) string {
	switch text {
	case "预测":
		return b.reply("predict")
	case "最新", "开奖":
		return b.reply("latest")
	case "玩法":
		return b.reply("strategy")
	case "历史":
		return b.reply("history")
	case "统计":
		return b.reply("stats")
	default:
		return "请使用命令或关键词，输入 /help 查看帮助"
	}
}

// prediction 优先返回最近推送的报告
func (b *Bot) prediction() (*report.PredictionReport, error) {
	if r, ok := b.cacheManager.LatestReport(); ok {
		return r, nil
	}
	return b.cacheManager.Prediction(b.groups, b.build)
}

// sendMessage 发送纯文本消息
func (b *Bot) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		logger.Errorf("Failed to send message to chat %d: %v", chatID, err)
		return err
	}
	return nil
}

// Broadcast 向配置的全部会话推送预测报告
func (b *Bot) Broadcast(r *report.PredictionReport) error {
	message := formatBroadcast(r)

	var errs []error
	for _, chatID := range b.chatIDs {
		if err := b.sendMessage(chatID, message); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}

	logger.Infof("Broadcasted prediction for issue %d to %d chats", r.LastIssue, len(b.chatIDs)-len(errs))
	return errors.Join(errs...)
}

// GetBotInfo 获取机器人信息
func (b *Bot) GetBotInfo() map[string]interface{} {
	if b.api == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"username":   b.api.Self.UserName,
		"id":         b.api.Self.ID,
		"first_name": b.api.Self.FirstName,
		"is_bot":     b.api.Self.IsBot,
		"chats":      len(b.chatIDs),
	}
}
