package predictor

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/combin"

	"kl8-predictor/internal/draw"
)

// WagerType 玩法，取值为选号个数 1..10
type WagerType int

const (
	MinWager WagerType = 1
	MaxWager WagerType = 10
)

const (
	theoreticalWeight = 0.3
	empiricalWeight   = 0.7
)

// WagerCost 每注金额
var WagerCost = decimal.NewFromInt(2)

var wagerLabels = [...]string{"", "一", "二", "三", "四", "五", "六", "七", "八", "九", "十"}

// String 玩法名称，如"选五"
func (w WagerType) String() string {
	if !w.Valid() {
		return fmt.Sprintf("wager(%d)", int(w))
	}
	return "选" + wagerLabels[w]
}

// Valid 是否为支持的玩法
func (w WagerType) Valid() bool {
	return w >= MinWager && w <= MaxWager
}

// PrizeTier 奖级：命中个数及奖金
type PrizeTier struct {
	Hits  int             `json:"hits"`
	Prize decimal.Decimal `json:"prize"`
}

func tier(hits int, prize string) PrizeTier {
	return PrizeTier{Hits: hits, Prize: decimal.RequireFromString(prize)}
}

var prizeTables = map[WagerType][]PrizeTier{
	1:  {tier(1, "4.6")},
	2:  {tier(2, "19")},
	3:  {tier(3, "53"), tier(2, "3")},
	4:  {tier(4, "100"), tier(3, "5"), tier(2, "3")},
	5:  {tier(5, "1000"), tier(4, "21"), tier(3, "3")},
	6:  {tier(6, "2000"), tier(5, "50"), tier(4, "8"), tier(3, "3")},
	7:  {tier(7, "4000"), tier(6, "100"), tier(5, "15"), tier(4, "4"), tier(3, "3")},
	8:  {tier(8, "8000"), tier(7, "200"), tier(6, "30"), tier(5, "8"), tier(4, "3")},
	9:  {tier(9, "15000"), tier(8, "400"), tier(7, "60"), tier(6, "15"), tier(5, "5"), tier(4, "3")},
	10: {tier(10, "50000"), tier(9, "800"), tier(8, "120"), tier(7, "30"), tier(6, "8"), tier(5, "4")},
}

// PrizeTable 玩法的奖级表（返回副本）
func PrizeTable(w WagerType) ([]PrizeTier, error) {
	table, ok := prizeTables[w]
	if !ok {
		return nil, fmt.Errorf("%w: unknown wager type %d", draw.ErrInvalidArgument, int(w))
	}
	out := make([]PrizeTier, len(table))
	copy(out, table)
	return out, nil
}

// TheoreticalProbability 选k个号码恰好命中h个的超几何概率 C(20,h)·C(60,k-h)/C(80,k)
func TheoreticalProbability(k, h int) float64 {
	misses := draw.MaxNumber - draw.NumbersPerDraw
	if k < 0 || k > draw.MaxNumber || h < 0 || h > k || h > draw.NumbersPerDraw || k-h > misses {
		return 0
	}
	num := float64(combin.Binomial(draw.NumbersPerDraw, h)) * float64(combin.Binomial(misses, k-h))
	return num / float64(combin.Binomial(draw.MaxNumber, k))
}

// EmpiricalProbability 历史开奖中，开奖号码的前k个与本期号码交集恰为h个的比例
//
// 这是对开奖号码自身的度量：k<=20 时交集总是k个，结果只会是0或1。保留此定义是为了
// 与既有期望值结果一致，它并不反映任何选号规则的真实命中率。空历史返回0。
func EmpiricalProbability(set *draw.Set, k, h int) float64 {
	if set.Empty() {
		return 0
	}
	matches := 0
	for _, r := range set.Records() {
		first := r.Numbers[:min(k, len(r.Numbers))]
		if draw.Hits(first, r) == h {
			matches++
		}
	}
	return float64(matches) / float64(set.Len())
}

// Strategy 玩法及其期望值
type Strategy struct {
	Wager         WagerType       `json:"wager"`
	Name          string          `json:"name"`
	Numbers       int             `json:"numbers_count"`
	ExpectedValue decimal.Decimal `json:"expected_value"`
}

// EvaluateWager 计算玩法的期望值：Σ(0.3·理论概率 + 0.7·历史概率)·奖金 − 每注金额
func EvaluateWager(set *draw.Set, w WagerType) (Strategy, error) {
	table, err := PrizeTable(w)
	if err != nil {
		return Strategy{}, err
	}

	k := int(w)
	ev := decimal.Zero
	for _, pt := range table {
		p := theoreticalWeight*TheoreticalProbability(k, pt.Hits) +
			empiricalWeight*EmpiricalProbability(set, k, pt.Hits)
		ev = ev.Add(decimal.NewFromFloat(p).Mul(pt.Prize))
	}

	return Strategy{
		Wager:         w,
		Name:          w.String(),
		Numbers:       k,
		ExpectedValue: ev.Sub(WagerCost),
	}, nil
}

// RankStrategies 按期望值降序排列全部玩法，相同期望值保持玩法顺序
func RankStrategies(set *draw.Set) []Strategy {
	strategies := make([]Strategy, 0, int(MaxWager))
	for w := MinWager; w <= MaxWager; w++ {
		s, err := EvaluateWager(set, w)
		if err != nil {
			continue
		}
		strategies = append(strategies, s)
	}
	sort.SliceStable(strategies, func(i, j int) bool {
		return strategies[i].ExpectedValue.GreaterThan(strategies[j].ExpectedValue)
	})
	return strategies
}
