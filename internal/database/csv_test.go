package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kl8-predictor/internal/draw"
	"kl8-predictor/internal/testutil"
)

const sampleCSV = `期号,开奖日期,开奖号码
2024002,2024-03-02,"21,22,23,24,25,26,27,28,29,30,31,32,33,34,35,36,37,38,39,40"
2024001,2024-03-01,"01,02,03,04,05,06,07,08,09,10,11,12,13,14,15,16,17,18,19,20"
`

func TestReadCSV(t *testing.T) {
	t.Parallel()

	records, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2024002, records[0].Issue)
	assert.Equal(t, testutil.Range(1, 20), records[1].Numbers)
}

func TestReadCSV_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "too few numbers", input: "期号,开奖日期,开奖号码\n2024001,2024-03-01,\"1,2,3\"\n"},
		{name: "bad date", input: "2024001,yesterday,\"" + draw.FormatNumbers(testutil.Range(1, 20)) + "\"\n"},
		{name: "missing field", input: "2024001,2024-03-01\n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadCSV(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, draw.ErrMalformedRecord)
		})
	}
}

func TestCSVStore_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	store := NewCSVStore(filepath.Join(t.TempDir(), "missing.csv"))
	set, err := store.Load()
	require.NoError(t, err)
	assert.True(t, set.Empty())
}

func TestCSVStore_SaveMergesAndOrders(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kl8_history.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))
	store := NewCSVStore(path)

	newer := testutil.MustRecord(2024003, testutil.BaseDate.AddDate(0, 0, 2), testutil.Range(41, 60))
	replaced := testutil.MustRecord(2024001, testutil.BaseDate, testutil.Range(61, 80))
	require.NoError(t, store.Save([]draw.Record{replaced, newer}))

	set, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())
	assert.Equal(t, 2024003, set.At(0).Issue)
	assert.Equal(t, 2024001, set.At(2).Issue)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "期号,开奖日期,开奖号码", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2024003,2024-03-03,"))
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	records := testutil.ConsecutiveDays(3).Records()
	require.NoError(t, WriteCSV(&sb, records))

	back, err := ReadCSV(strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Equal(t, records, back)
}
