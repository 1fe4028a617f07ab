package predictor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kl8-predictor/internal/draw"
	"kl8-predictor/internal/testutil"
)

func TestTheoreticalProbability(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.25, TheoreticalProbability(1, 1))
	assert.InDelta(t, 190.0/3160.0, TheoreticalProbability(2, 2), 1e-15)
	assert.Equal(t, 0.0, TheoreticalProbability(3, 4))
	assert.Equal(t, 0.0, TheoreticalProbability(5, -1))
	assert.Equal(t, 0.0, TheoreticalProbability(25, 21))

	for k := 1; k <= 10; k++ {
		total := 0.0
		for h := 0; h <= k; h++ {
			total += TheoreticalProbability(k, h)
		}
		assert.InDelta(t, 1.0, total, 1e-12, "k=%d", k)
	}
}

func TestEmpiricalProbability_SelfIntersection(t *testing.T) {
	t.Parallel()

	set := testutil.ConsecutiveDays(10)
	assert.Equal(t, 1.0, EmpiricalProbability(set, 5, 5))
	assert.Equal(t, 0.0, EmpiricalProbability(set, 5, 4))
	assert.Equal(t, 1.0, EmpiricalProbability(set, 10, 10))
	assert.Equal(t, 0.0, EmpiricalProbability(draw.MustNewSet(nil), 1, 1))
}

func TestEvaluateWager(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		set  *draw.Set
		want float64
	}{
		{name: "with history", set: testutil.ConsecutiveDays(10), want: (0.3*0.25+0.7)*4.6 - 2},
		{name: "empty history", set: draw.MustNewSet(nil), want: 0.3*0.25*4.6 - 2},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := EvaluateWager(tt.set, 1)
			require.NoError(t, err)
			assert.Equal(t, "选一", s.Name)
			assert.Equal(t, 1, s.Numbers)
			assert.InDelta(t, tt.want, s.ExpectedValue.InexactFloat64(), 1e-9)
		})
	}
}

func TestEvaluateWager_UnknownType(t *testing.T) {
	t.Parallel()

	for _, w := range []WagerType{0, 11, -3} {
		_, err := EvaluateWager(testutil.ConsecutiveDays(2), w)
		assert.ErrorIs(t, err, draw.ErrInvalidArgument)
		assert.False(t, w.Valid())
	}
}

func TestRankStrategies(t *testing.T) {
	t.Parallel()

	ranked := RankStrategies(testutil.ConsecutiveDays(10))
	require.Len(t, ranked, 10)

	// the top-tier empirical term dominates, so larger wagers rank first
	assert.Equal(t, []WagerType{10, 9, 8}, []WagerType{ranked[0].Wager, ranked[1].Wager, ranked[2].Wager})
	for i := 1; i < len(ranked); i++ {
		assert.True(t, ranked[i-1].ExpectedValue.GreaterThanOrEqual(ranked[i].ExpectedValue))
	}
}

func TestPrizeTable_ReturnsCopy(t *testing.T) {
	t.Parallel()

	table, err := PrizeTable(10)
	require.NoError(t, err)
	require.Len(t, table, 6)
	assert.Equal(t, 10, table[0].Hits)
	assert.Equal(t, "50000", table[0].Prize.String())

	table[0].Hits = 0
	again, _ := PrizeTable(10)
	assert.Equal(t, 10, again[0].Hits)
}
