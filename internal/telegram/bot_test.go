package telegram

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kl8-predictor/internal/cache"
	"kl8-predictor/internal/database"
	"kl8-predictor/internal/draw"
	"kl8-predictor/internal/predictor"
	"kl8-predictor/internal/report"
	"kl8-predictor/internal/testutil"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sentMessage
	failOn int64
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	if msg.ChatID == f.failOn {
		return tgbotapi.Message{}, errors.New("blocked by user")
	}
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{chatID: msg.ChatID, text: msg.Text})
	f.mu.Unlock()
	return tgbotapi.Message{}, nil
}

type memoryStore struct {
	set *draw.Set
}

func (s *memoryStore) Load() (*draw.Set, error) { return s.set, nil }

func (s *memoryStore) Save(records []draw.Record) error {
	s.set, _ = s.set.Merge(records)
	return nil
}

type fakeHistory struct {
	predictions []database.Prediction
	err         error
	limits      []int
}

func (f *fakeHistory) GetLatestPredictions(limit int) ([]database.Prediction, error) {
	f.limits = append(f.limits, limit)
	return f.predictions, f.err
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func ledgerFixture() []database.Prediction {
	drawDate := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	actual := draw.FormatNumbers(testutil.Range(1, 20))
	return []database.Prediction{
		{ID: 3, TargetDate: drawDate.AddDate(0, 0, 1), PredictedNum: draw.FormatNumbers(testutil.Range(1, 10))},
		{ID: 2, TargetDate: drawDate, PredictedNum: draw.FormatNumbers(testutil.Range(15, 24)),
			ActualIssue: intPtr(2024071), ActualNum: strPtr(actual), Hits: intPtr(6)},
		{ID: 1, TargetDate: drawDate, PredictedNum: draw.FormatNumbers(testutil.Range(1, 10)),
			ActualIssue: intPtr(2024071), ActualNum: strPtr(actual), Hits: intPtr(10)},
		{ID: 0, TargetDate: drawDate, PredictedNum: "x",
			ActualIssue: intPtr(2024071), ActualNum: strPtr(actual), Hits: intPtr(0)},
	}
}

func newTestBot(t *testing.T, chatIDs ...int64) (*Bot, *fakeSender) {
	t.Helper()
	cm := cache.NewCacheManager(&memoryStore{set: testutil.ConsecutiveDays(10)}, time.Hour)
	t.Cleanup(func() { cm.Close() })

	build := func(set *draw.Set) (*report.PredictionReport, error) {
		engine := predictor.NewEngine(set, predictor.WithRand(rand.New(rand.NewSource(1))))
		return report.BuildPrediction(set, engine, report.BuildOptions{Groups: 2, PickCount: 10})
	}
	sender := &fakeSender{}
	return newBot(sender, cm, build, 2, chatIDs), sender
}

func TestBot_Reply(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(t)

	assert.Contains(t, b.reply("start"), "/predict")
	assert.Contains(t, b.reply("help"), "/strategy")
	assert.Contains(t, b.reply("predict"), "第2组")
	assert.Contains(t, b.reply("latest"), "第2024010期")
	assert.Contains(t, b.reply("strategy"), "期望值")
	assert.Contains(t, b.reply("nope"), "/help")

	assert.Equal(t, b.reply("latest"), b.replyText("最新"))
	assert.Contains(t, b.replyText("hello"), "/help")
}

func TestBot_PredictionPrefersLatestReport(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(t)
	pushed := &report.PredictionReport{LastIssue: 42, Strategies: nil}
	b.cacheManager.SetLatestReport(pushed)

	r, err := b.prediction()
	require.NoError(t, err)
	assert.Same(t, pushed, r)
	assert.Equal(t, "暂无玩法数据", b.reply("strategy"))
}

func TestBot_Broadcast(t *testing.T) {
	t.Parallel()

	b, sender := newTestBot(t, 100, 200, 300)
	sender.failOn = 200

	r, err := b.prediction()
	require.NoError(t, err)

	err = b.Broadcast(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat 200")

	require.Len(t, sender.sent, 2)
	assert.Equal(t, int64(100), sender.sent[0].chatID)
	assert.Equal(t, int64(300), sender.sent[1].chatID)
	assert.Contains(t, sender.sent[0].text, "第2024010期已开奖")
}

func TestFormatLatestDraws(t *testing.T) {
	t.Parallel()

	empty := draw.MustNewSet(nil)
	assert.Equal(t, "暂无开奖数据", formatLatestDraws(empty, 5))

	text := formatLatestDraws(testutil.ConsecutiveDays(3), 5)
	assert.Contains(t, text, "第2024003期 2024-03-03")
	assert.Contains(t, text, "第2024001期 2024-03-01")
}

func TestBot_Stats(t *testing.T) {
	t.Parallel()

	b, sender := newTestBot(t)
	history := &fakeHistory{predictions: ledgerFixture()}
	b.history = history

	b.handleMessage(&tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 7},
		Text:     "/stats",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
	})

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(7), sender.sent[0].chatID)
	want := "📈 命中统计\n\n" +
		"已验证: 2组\n" +
		"总命中: 16\n" +
		"平均命中: 8.00\n" +
		"最高命中: 10\n\n" +
		"命中分布:\n" +
		"10个: 1组\n" +
		"6个: 1组\n"
	assert.Equal(t, want, sender.sent[0].text)
	assert.Equal(t, []int{statsLimit}, history.limits)

	assert.Equal(t, want, b.replyText("统计"))
}

func TestBot_History(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(t)
	assert.Equal(t, "当前存储不保存预测记录", b.reply("history"))

	history := &fakeHistory{predictions: ledgerFixture()}
	b.history = history
	text := b.replyText("历史")
	assert.Contains(t, text, "2024-03-12 ⏳ 待开奖\n1,2,3,4,5,6,7,8,9,10")
	assert.Contains(t, text, "2024-03-11 ✅ 命中10个 (第2024071期)")
	assert.Contains(t, text, "2024-03-11 ✅ 命中6个 (第2024071期)")
	assert.Equal(t, []int{historyLimit}, history.limits)

	b.history = &fakeHistory{}
	assert.Equal(t, "暂无预测记录", b.reply("history"))
	assert.Equal(t, "暂无已验证的预测", b.reply("stats"))

	b.history = &fakeHistory{err: errors.New("connection refused")}
	assert.Equal(t, "❌ 获取预测记录失败，请稍后再试", b.reply("stats"))
}
