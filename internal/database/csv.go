package database

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"kl8-predictor/internal/draw"
	"kl8-predictor/internal/logger"
)

// csvHeader 文件表头：期号、开奖日期、开奖号码
var csvHeader = []string{"期号", "开奖日期", "开奖号码"}

// CSVStore 以CSV文件保存开奖数据，最新一期在前
type CSVStore struct {
	path string
}

// NewCSVStore 创建CSV存储
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path 文件路径
func (s *CSVStore) Path() string {
	return s.path
}

// Load 读取文件，文件不存在时返回空集合
func (s *CSVStore) Load() (*draw.Set, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warnf("Data file %s not found, starting with empty history", s.path)
		return draw.NewSet(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	logger.Debugf("Loaded %d draws from %s", len(records), s.path)
	return draw.NewSet(records)
}

// Save 与已有数据合并后整体重写文件
func (s *CSVStore) Save(records []draw.Record) error {
	existing, err := s.Load()
	if err != nil {
		return err
	}
	merged, added := existing.Merge(records)

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".kl8-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, merged.Records()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}

	logger.Infof("Saved %d draws to %s (%d new)", merged.Len(), s.path, added)
	return nil
}

// ReadCSV 解析带表头的CSV，任一行不合法时返回 draw.ErrMalformedRecord
func ReadCSV(r io.Reader) ([]draw.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", draw.ErrMalformedRecord, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	start := 0
	if _, err := strconv.Atoi(rows[0][0]); err != nil {
		start = 1 // 表头
	}

	records := make([]draw.Record, 0, len(rows)-start)
	for i := start; i < len(rows); i++ {
		record, err := draw.ParseRecord(rows[i][0], rows[i][1], rows[i][2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// WriteCSV 写出表头和记录
func WriteCSV(w io.Writer, records []draw.Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.Itoa(r.Issue),
			r.Date.Format(dateLayout),
			draw.FormatNumbers(r.Numbers),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
