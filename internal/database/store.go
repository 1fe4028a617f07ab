package database

import (
	"fmt"

	"kl8-predictor/internal/config"
)

// OpenStore 按配置打开开奖数据存储，成功时同时返回关闭函数
func OpenStore(cfg *config.Config) (DrawStore, func() error, error) {
	switch cfg.Store.Driver {
	case "mysql":
		db, err := NewMySQLDB(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case "csv", "":
		return NewCSVStore(cfg.Store.CSVPath), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %q", cfg.Store.Driver)
	}
}
