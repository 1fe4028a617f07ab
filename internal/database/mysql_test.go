package database

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kl8-predictor/internal/backtest"
	"kl8-predictor/internal/draw"
	"kl8-predictor/internal/testutil"
)

func newMock(t *testing.T) (*MySQLDB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLDBWithConn(db), mock
}

func TestMySQLDB_Load(t *testing.T) {
	t.Parallel()

	m, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"issue", "draw_date", "numbers"}).
		AddRow(2024002, time.Date(2024, 3, 2, 0, 0, 0, 0, time.Local), draw.FormatNumbers(testutil.Range(21, 40))).
		AddRow(2024001, time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local), draw.FormatNumbers(testutil.Range(1, 20))).
		AddRow(2024000, time.Date(2024, 2, 29, 0, 0, 0, 0, time.Local), "1,2,3")
	mock.ExpectQuery("SELECT issue, draw_date, numbers FROM draws").WillReturnRows(rows)

	set, err := m.Load()
	require.NoError(t, err)
	require.Equal(t, 2, set.Len(), "malformed row is skipped")

	latest, ok := set.Latest()
	require.True(t, ok)
	assert.Equal(t, 2024002, latest.Issue)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), latest.Date)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLDB_Save(t *testing.T) {
	t.Parallel()

	m, mock := newMock(t)
	records := []draw.Record{
		testutil.MustRecord(2024001, testutil.BaseDate, testutil.Range(1, 20)),
		testutil.MustRecord(2024002, testutil.BaseDate.AddDate(0, 0, 1), testutil.Range(21, 40)),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO draws").
		WithArgs(2024001, "2024-03-01", draw.FormatNumbers(testutil.Range(1, 20)), 210).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO draws").
		WithArgs(2024002, "2024-03-02", draw.FormatNumbers(testutil.Range(21, 40)), 610).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, m.Save(records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLDB_SaveRollsBackOnError(t *testing.T) {
	t.Parallel()

	m, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO draws").WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := m.Save([]draw.Record{testutil.MustRecord(1, testutil.BaseDate, testutil.Range(1, 20))})
	assert.ErrorContains(t, err, "deadlock")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLDB_SaveEmptyIsNoop(t *testing.T) {
	t.Parallel()

	m, mock := newMock(t)
	require.NoError(t, m.Save(nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLDB_LatestIssue(t *testing.T) {
	t.Parallel()

	m, mock := newMock(t)
	mock.ExpectQuery("SELECT issue FROM draws").WillReturnRows(sqlmock.NewRows([]string{"issue"}).AddRow(2024123))
	mock.ExpectQuery("SELECT issue FROM draws").WillReturnRows(sqlmock.NewRows([]string{"issue"}))

	issue, err := m.LatestIssue()
	require.NoError(t, err)
	assert.Equal(t, 2024123, issue)

	issue, err = m.LatestIssue()
	require.NoError(t, err)
	assert.Equal(t, 0, issue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLDB_CheckNewIssue(t *testing.T) {
	t.Parallel()

	m, mock := newMock(t)
	mock.ExpectQuery("SELECT COUNT").WithArgs(2024001).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	isNew, err := m.CheckNewIssue(2024001)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLDB_PredictionLifecycle(t *testing.T) {
	t.Parallel()

	m, mock := newMock(t)
	predictedAt := time.Date(2024, 3, 10, 21, 0, 0, 0, time.UTC)
	p := &Prediction{
		TargetDate:   time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		PredictedNum: "1,2,3",
		Predictor:    "composite",
		PredictedAt:  predictedAt,
	}

	mock.ExpectExec("INSERT INTO predictions").
		WithArgs("2024-03-11", "1,2,3", "composite", predictedAt).
		WillReturnResult(sqlmock.NewResult(42, 1))
	require.NoError(t, m.SavePrediction(p))
	assert.Equal(t, int64(42), p.ID)

	cols := []string{"id", "target_date", "predicted_num", "predictor", "actual_issue", "actual_num", "hits", "predicted_at", "verified_at"}
	mock.ExpectQuery("FROM predictions").
		WithArgs("2024-03-11").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(42, p.TargetDate, "1,2,3", "composite", nil, nil, nil, predictedAt, nil))
	pending, err := m.GetPendingPredictions(p.TargetDate)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.False(t, pending[0].Verified())

	actual := testutil.MustRecord(2024071, p.TargetDate, testutil.Range(1, 20))
	mock.ExpectExec("UPDATE predictions").
		WithArgs(2024071, draw.FormatNumbers(actual.Numbers), 3, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, m.UpdatePredictionResult(42, actual, 3))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLDB_GetLatestPredictions(t *testing.T) {
	t.Parallel()

	m, mock := newMock(t)
	target := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	predictedAt := time.Date(2024, 3, 10, 21, 0, 0, 0, time.UTC)
	verifiedAt := time.Date(2024, 3, 11, 21, 40, 0, 0, time.UTC)

	cols := []string{"id", "target_date", "predicted_num", "predictor", "actual_issue", "actual_num", "hits", "predicted_at", "verified_at"}
	mock.ExpectQuery("ORDER BY predicted_at DESC").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(9, target.AddDate(0, 0, 1), "1,2,3", "composite", nil, nil, nil, predictedAt.AddDate(0, 0, 1), nil).
			AddRow(8, target, "1,2,3", "composite", 2024071, "1,2,3", 3, predictedAt, verifiedAt))

	predictions, err := m.GetLatestPredictions(10)
	require.NoError(t, err)
	require.Len(t, predictions, 2)

	assert.False(t, predictions[0].Verified())
	require.True(t, predictions[1].Verified())
	assert.Equal(t, 3, *predictions[1].Hits)
	assert.Equal(t, 2024071, *predictions[1].ActualIssue)
	assert.Equal(t, verifiedAt, *predictions[1].VerifiedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLDB_SaveBacktestRun(t *testing.T) {
	t.Parallel()

	m, mock := newMock(t)
	r := &backtest.Report{
		RunID:      uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2"),
		Predictor:  "composite",
		StartedAt:  time.Date(2024, 3, 10, 21, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 3, 10, 21, 0, 5, 0, time.UTC),
	}
	r.Summary.TrialCount = 3
	r.Summary.TotalPredictions = 15
	r.Summary.AvgHits = 2.5

	mock.ExpectExec("INSERT INTO backtest_runs").
		WithArgs("7d444840-9dc0-11d1-b245-5ffdce74fad2", "composite", 3, 15, 0.0, 2.5, 0.0,
			sqlmock.AnyArg(), r.StartedAt, r.FinishedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, m.SaveBacktestRun(r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLDB_CreateTables(t *testing.T) {
	t.Parallel()

	m, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS draws").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS predictions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS backtest_runs").WillReturnError(errors.New("denied"))

	err := m.createTablesIfNotExists()
	assert.ErrorContains(t, err, "backtest_runs")
	assert.NoError(t, mock.ExpectationsWereMet())
}
