package predictor

import (
	"math/rand"
	"slices"

	"kl8-predictor/internal/analysis"
	"kl8-predictor/internal/draw"
)

const (
	combinationAttempts = 3
	combinationSize     = 10
	neighborhoodRadius  = 10
)

// GenerateCombinations 围绕号码num生成最多3个组合，保留和值落在均值±1个标准差内的组合
//
// 邻域为 num±10（截断到1..80），打乱一次后贪心地加入号码，直到凑满10个或和值
// 达到 mean+std。没有可加入的号码时提前结束。不保证组合之间互不相同。
func GenerateCombinations(rng *rand.Rand, num int, sum analysis.SumStats) [][]int {
	lo := max(draw.MinNumber, num-neighborhoodRadius)
	hi := min(draw.MaxNumber, num+neighborhoodRadius)
	base := make([]int, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		base = append(base, n)
	}
	rng.Shuffle(len(base), func(i, j int) {
		base[i], base[j] = base[j], base[i]
	})

	limit := sum.Mean + sum.Std
	var combos [][]int
	for attempt := 0; attempt < combinationAttempts; attempt++ {
		combo := []int{num}
		current := float64(num)
		for len(combo) < combinationSize && current < limit {
			added := false
			for _, n := range base {
				if !slices.Contains(combo, n) && current+float64(n) <= limit {
					combo = append(combo, n)
					current += float64(n)
					added = true
					break
				}
			}
			if !added {
				break
			}
		}
		if sum.Within(current) {
			combos = append(combos, combo)
		}
	}
	return combos
}
