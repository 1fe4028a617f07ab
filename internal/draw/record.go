package draw

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// MinNumber 最小号码
	MinNumber = 1
	// MaxNumber 最大号码
	MaxNumber = 80
	// NumbersPerDraw 每期开奖号码个数
	NumbersPerDraw = 20
	// ZoneCount 分区个数，每区20个号码
	ZoneCount = 4
	// ZoneWidth 分区宽度
	ZoneWidth = MaxNumber / ZoneCount
)

// 错误分类
var (
	ErrMalformedRecord     = errors.New("malformed draw record")
	ErrInsufficientHistory = errors.New("insufficient draw history")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// Record 开奖记录
type Record struct {
	Issue   int       `json:"issue"`
	Date    time.Time `json:"date"`
	Numbers []int     `json:"numbers"` // 升序，20个互不相同的号码
}

// NewRecord 校验并创建开奖记录，号码按升序保存
func NewRecord(issue int, date time.Time, numbers []int) (Record, error) {
	if issue <= 0 {
		return Record{}, fmt.Errorf("%w: issue must be positive, got %d", ErrMalformedRecord, issue)
	}
	if date.IsZero() {
		return Record{}, fmt.Errorf("%w: issue %d has no draw date", ErrMalformedRecord, issue)
	}
	if len(numbers) != NumbersPerDraw {
		return Record{}, fmt.Errorf("%w: issue %d has %d numbers, want %d",
			ErrMalformedRecord, issue, len(numbers), NumbersPerDraw)
	}

	seen := make(map[int]bool, NumbersPerDraw)
	sorted := make([]int, 0, NumbersPerDraw)
	for _, n := range numbers {
		if n < MinNumber || n > MaxNumber {
			return Record{}, fmt.Errorf("%w: issue %d number %d out of range [%d,%d]",
				ErrMalformedRecord, issue, n, MinNumber, MaxNumber)
		}
		if seen[n] {
			return Record{}, fmt.Errorf("%w: issue %d has duplicate number %d", ErrMalformedRecord, issue, n)
		}
		seen[n] = true
		sorted = append(sorted, n)
	}
	sort.Ints(sorted)

	return Record{Issue: issue, Date: TruncateDay(date), Numbers: sorted}, nil
}

// ParseRecord 从表格字段解析开奖记录
func ParseRecord(issueStr, dateStr, numbersStr string) (Record, error) {
	issue, err := strconv.Atoi(strings.TrimSpace(issueStr))
	if err != nil {
		return Record{}, fmt.Errorf("%w: invalid issue %q", ErrMalformedRecord, issueStr)
	}

	date, err := ParseDate(dateStr)
	if err != nil {
		return Record{}, fmt.Errorf("%w: issue %d: %v", ErrMalformedRecord, issue, err)
	}

	numbers, err := ParseNumbers(numbersStr)
	if err != nil {
		return Record{}, fmt.Errorf("%w: issue %d: %v", ErrMalformedRecord, issue, err)
	}

	return NewRecord(issue, date, numbers)
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"2006-1-2",
}

// ParseDate 解析ISO格式日期
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TruncateDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %q", s)
}

// ParseNumbers 解析逗号或空白分隔的号码列表
func ParseNumbers(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	nums := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse number: %q", f)
		}
		nums = append(nums, n)
	}
	return nums, nil
}

// FormatNumbers 格式化号码为逗号分隔字符串
func FormatNumbers(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// TruncateDay 截断到UTC日期
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween 两个日期相差的天数 (later - earlier)
func DaysBetween(earlier, later time.Time) int {
	return int(TruncateDay(later).Sub(TruncateDay(earlier)).Hours() / 24)
}

// Contains 判断号码是否在本期开奖号码中
func (r Record) Contains(n int) bool {
	i := sort.SearchInts(r.Numbers, n)
	return i < len(r.Numbers) && r.Numbers[i] == n
}

// Sum 号码和值
func (r Record) Sum() int {
	sum := 0
	for _, n := range r.Numbers {
		sum += n
	}
	return sum
}

// Zone 号码所在分区 (0..3)
func Zone(n int) int {
	z := (n - 1) / ZoneWidth
	if z < 0 {
		return 0
	}
	if z >= ZoneCount {
		return ZoneCount - 1
	}
	return z
}

// Hits 统计预测号码命中个数
func Hits(predicted []int, actual Record) int {
	hits := 0
	for _, n := range predicted {
		if actual.Contains(n) {
			hits++
		}
	}
	return hits
}
