package draw

import (
	"fmt"
	"sort"
	"time"
)

// Set 按日期降序排列的开奖记录集合（最新一期在前）
//
// Set 创建后不可变，所有筛选操作都返回新的副本。
type Set struct {
	records []Record
}

// NewSet 创建开奖记录集合，拒绝重复期号以及期号顺序与日期顺序不一致的记录
func NewSet(records []Record) (*Set, error) {
	seen := make(map[int]bool, len(records))
	copied := make([]Record, 0, len(records))
	for _, r := range records {
		if seen[r.Issue] {
			return nil, fmt.Errorf("%w: duplicate issue %d", ErrMalformedRecord, r.Issue)
		}
		seen[r.Issue] = true
		copied = append(copied, cloneRecord(r))
	}
	sortDescending(copied)

	// 排序后相邻两期的期号必须同样递减
	for i := 0; i+1 < len(copied); i++ {
		newer, older := copied[i], copied[i+1]
		if newer.Issue < older.Issue {
			return nil, fmt.Errorf("%w: issue %d on %s precedes issue %d on %s",
				ErrMalformedRecord, newer.Issue, newer.Date.Format("2006-01-02"),
				older.Issue, older.Date.Format("2006-01-02"))
		}
	}
	return &Set{records: copied}, nil
}

// MustNewSet 与 NewSet 相同，出错时 panic（测试辅助）
func MustNewSet(records []Record) *Set {
	s, err := NewSet(records)
	if err != nil {
		panic(err)
	}
	return s
}

func sortDescending(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.After(records[j].Date)
		}
		return records[i].Issue > records[j].Issue
	})
}

func cloneRecord(r Record) Record {
	nums := make([]int, len(r.Numbers))
	copy(nums, r.Numbers)
	r.Numbers = nums
	return r
}

// Len 记录条数
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Empty 是否为空
func (s *Set) Empty() bool {
	return s.Len() == 0
}

// At 返回第i条记录（0为最新）
func (s *Set) At(i int) Record {
	return s.records[i]
}

// Records 返回降序记录副本
func (s *Set) Records() []Record {
	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = cloneRecord(r)
	}
	return out
}

// Ascending 返回按日期升序排列的记录副本
func (s *Set) Ascending() []Record {
	out := s.Records()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Latest 最新一期
func (s *Set) Latest() (Record, bool) {
	if s.Empty() {
		return Record{}, false
	}
	return s.records[0], true
}

// MaxDate 最新开奖日期，集合为空时返回零值
func (s *Set) MaxDate() time.Time {
	if s.Empty() {
		return time.Time{}
	}
	return s.records[0].Date
}

// Filter 返回满足条件的记录组成的新集合
func (s *Set) Filter(keep func(Record) bool) *Set {
	out := make([]Record, 0, s.Len())
	for _, r := range s.records {
		if keep(r) {
			out = append(out, cloneRecord(r))
		}
	}
	return &Set{records: out}
}

// Before 返回严格早于指定日期的记录（回测训练集）
func (s *Set) Before(date time.Time) *Set {
	cutoff := TruncateDay(date)
	return s.Filter(func(r Record) bool {
		return r.Date.Before(cutoff)
	})
}

// Window 返回最近days天内的记录（含边界）；days<=0 返回全部
func (s *Set) Window(days int) *Set {
	if days <= 0 || s.Empty() {
		return s.Filter(func(Record) bool { return true })
	}
	since := s.MaxDate().AddDate(0, 0, -days)
	return s.Filter(func(r Record) bool {
		return !r.Date.Before(since)
	})
}

// FindIssue 按期号查找
func (s *Set) FindIssue(issue int) (Record, bool) {
	for _, r := range s.records {
		if r.Issue == issue {
			return r, true
		}
	}
	return Record{}, false
}

// Merge 合并新记录，期号已存在时以新记录为准
func (s *Set) Merge(records []Record) (*Set, int) {
	byIssue := make(map[int]Record, s.Len()+len(records))
	for _, r := range s.records {
		byIssue[r.Issue] = r
	}
	added := 0
	for _, r := range records {
		if _, ok := byIssue[r.Issue]; !ok {
			added++
		}
		byIssue[r.Issue] = r
	}
	merged := make([]Record, 0, len(byIssue))
	for _, r := range byIssue {
		merged = append(merged, cloneRecord(r))
	}
	sortDescending(merged)
	return &Set{records: merged}, added
}
