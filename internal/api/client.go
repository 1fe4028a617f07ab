package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"kl8-predictor/internal/config"
	"kl8-predictor/internal/draw"
	"kl8-predictor/internal/logger"
)

const callbackPrefix = "jQuery1122039414901311157857"

// DrawDataSource 开奖数据来源
type DrawDataSource interface {
	// FetchDraws 拉取startDate(含)以来的全部开奖记录，按期号降序
	FetchDraws(ctx context.Context, startDate string) ([]draw.Record, error)
}

// Client 开奖数据接口客户端，接口返回JSONP分页数据
type Client struct {
	httpClient      *http.Client
	baseURL         string
	transactionType string
	lotteryID       string
	pageSize        int
	startDate       string
	retryCount      int
	retryDelay      time.Duration
	pageDelay       time.Duration
	referer         string
	userAgent       string
	now             func() time.Time
}

// NewClient 创建新的API客户端
func NewClient(cfg *config.API) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:         cfg.URL,
		transactionType: cfg.TransactionType,
		lotteryID:       cfg.LotteryID,
		pageSize:        cfg.PageSize,
		startDate:       cfg.StartDate,
		retryCount:      cfg.RetryCount,
		retryDelay:      cfg.RetryDelay,
		pageDelay:       cfg.PageDelay,
		referer:         cfg.Referer,
		userAgent:       cfg.UserAgent,
		now:             time.Now,
	}
}

// Item 单期开奖数据
type Item struct {
	Issue           flexInt `json:"issue"`
	OpenTime        string  `json:"openTime"`
	FrontWinningNum string  `json:"frontWinningNum"` // 空格分隔
}

// Page 一页接口数据
type Page struct {
	Data  []Item
	Pages int
	Total int
}

type pageEnvelope struct {
	Data  *[]Item  `json:"data"`
	Pages *flexInt `json:"pages"`
	Total *flexInt `json:"total"`
}

// flexInt 兼容数字和字符串两种写法
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("invalid integer %q", b)
	}
	*f = flexInt(n)
	return nil
}

// FetchAll 从配置的起始日期拉取全部历史
func (c *Client) FetchAll(ctx context.Context) ([]draw.Record, error) {
	return c.FetchDraws(ctx, c.startDate)
}

// FetchDraws 逐页拉取开奖记录，单条数据不合法时跳过
func (c *Client) FetchDraws(ctx context.Context, startDate string) ([]draw.Record, error) {
	endDate := c.now().Format("2006-01-02")

	var records []draw.Record
	for pageNum, totalPages := 1, 1; pageNum <= totalPages; pageNum++ {
		if pageNum > 1 && c.pageDelay > 0 {
			if err := sleep(ctx, c.pageDelay); err != nil {
				return nil, err
			}
		}

		page, err := c.FetchPage(ctx, pageNum, startDate, endDate)
		if err != nil {
			return nil, err
		}
		if pageNum == 1 {
			totalPages = page.Pages
			logger.Infof("Fetching %d draws in %d pages since %s", page.Total, page.Pages, startDate)
		}

		for _, item := range page.Data {
			record, err := item.Record()
			if err != nil {
				logger.Warnf("Skipping draw from API: %v", err)
				continue
			}
			records = append(records, record)
		}
		logger.Debugf("Processed %d records from page %d/%d", len(page.Data), pageNum, totalPages)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Issue > records[j].Issue
	})
	return records, nil
}

// FetchPage 获取一页数据，失败时按重试次数线性退避
func (c *Client) FetchPage(ctx context.Context, pageNum int, startDate, endDate string) (*Page, error) {
	reqURL := c.pageURL(pageNum, startDate, endDate)

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			logger.Warnf("API request retry attempt %d/%d", attempt, c.retryCount)
			if err := sleep(ctx, c.retryDelay*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}

		page, err := c.makeRequest(ctx, reqURL)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		return page, nil
	}

	return nil, fmt.Errorf("failed to fetch page %d after %d attempts: %w", pageNum, c.retryCount+1, lastErr)
}

func (c *Client) pageURL(pageNum int, startDate, endDate string) string {
	ms := c.now().UnixMilli()
	q := url.Values{}
	q.Set("callback", fmt.Sprintf("%s_%d", callbackPrefix, ms))
	q.Set("transactionType", c.transactionType)
	q.Set("lotteryId", c.lotteryID)
	q.Set("issueCount", strconv.Itoa(c.pageSize))
	q.Set("startIssue", "")
	q.Set("endIssue", "")
	q.Set("startDate", startDate)
	q.Set("endDate", endDate)
	q.Set("type", "2")
	q.Set("pageNum", strconv.Itoa(pageNum))
	q.Set("pageSize", strconv.Itoa(c.pageSize))
	q.Set("tt", strconv.FormatInt(ms, 10))
	q.Set("_", strconv.FormatInt(ms, 10))
	return c.baseURL + "?" + q.Encode()
}

// makeRequest 执行HTTP请求
func (c *Client) makeRequest(ctx context.Context, reqURL string) (*Page, error) {
	logger.Debugf("Making API request to: %s", reqURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.7")
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP request failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return parsePage(body)
}

// parsePage 解析JSONP响应，缺少data/pages/total任一字段即视为无效
func parsePage(body []byte) (*Page, error) {
	payload, err := unwrapJSONP(body)
	if err != nil {
		return nil, err
	}

	var env pageEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if env.Data == nil || env.Pages == nil || env.Total == nil {
		return nil, fmt.Errorf("invalid data structure: missing data, pages or total")
	}

	return &Page{Data: *env.Data, Pages: int(*env.Pages), Total: int(*env.Total)}, nil
}

// unwrapJSONP 取第一个'('与最后一个')'之间的内容，纯JSON原样返回
func unwrapJSONP(body []byte) ([]byte, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		return body, nil
	}
	start := bytes.IndexByte(body, '(')
	end := bytes.LastIndexByte(body, ')')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("response is not JSONP: %.40q", body)
	}
	return body[start+1 : end], nil
}

// Record 转换为开奖记录
func (it Item) Record() (draw.Record, error) {
	date, err := draw.ParseDate(it.OpenTime)
	if err != nil {
		return draw.Record{}, fmt.Errorf("%w: issue %d: %v", draw.ErrMalformedRecord, it.Issue, err)
	}
	numbers, err := draw.ParseNumbers(it.FrontWinningNum)
	if err != nil {
		return draw.Record{}, fmt.Errorf("%w: issue %d: %v", draw.ErrMalformedRecord, it.Issue, err)
	}
	return draw.NewRecord(int(it.Issue), date, numbers)
}

// HealthCheck 检查API健康状态
func (c *Client) HealthCheck(ctx context.Context) error {
	today := c.now().Format("2006-01-02")
	if _, err := c.FetchPage(ctx, 1, today, today); err != nil {
		return fmt.Errorf("API health check failed: %w", err)
	}

	logger.Debug("API health check passed")
	return nil
}

// GetAPIStats 获取API统计信息
func (c *Client) GetAPIStats() map[string]interface{} {
	return map[string]interface{}{
		"base_url":    c.baseURL,
		"timeout":     c.httpClient.Timeout,
		"retry_count": c.retryCount,
		"retry_delay": c.retryDelay,
		"page_size":   c.pageSize,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
