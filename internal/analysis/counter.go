package analysis

import "sort"

// Ranked 计数排名项
type Ranked[K comparable] struct {
	Key   K   `json:"key"`
	Count int `json:"count"`
}

// counter 保留首次出现顺序的计数器，排名时计数相同者按首次出现顺序排列
type counter[K comparable] struct {
	order  []K
	counts map[K]int
}

func newCounter[K comparable]() *counter[K] {
	return &counter[K]{counts: make(map[K]int)}
}

func (c *counter[K]) add(k K) {
	if _, ok := c.counts[k]; !ok {
		c.order = append(c.order, k)
	}
	c.counts[k]++
}

func (c *counter[K]) total() int {
	sum := 0
	for _, v := range c.counts {
		sum += v
	}
	return sum
}

// top 按计数降序返回前n项，n<=0返回全部
func (c *counter[K]) top(n int) []Ranked[K] {
	ranked := make([]Ranked[K], len(c.order))
	for i, k := range c.order {
		ranked[i] = Ranked[K]{Key: k, Count: c.counts[k]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
