package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config 应用程序配置结构
type Config struct {
	Database  Database  `yaml:"database"`
	Store     Store     `yaml:"store"`
	Telegram  Telegram  `yaml:"telegram"`
	API       API       `yaml:"api"`
	App       App       `yaml:"app"`
	Predictor Predictor `yaml:"predictor"`
	Backtest  Backtest  `yaml:"backtest"`
}

// Database 数据库配置
type Database struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Database        string        `yaml:"database"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Store 开奖数据存储配置
type Store struct {
	Driver  string `yaml:"driver"` // csv 或 mysql
	CSVPath string `yaml:"csv_path"`
}

// Telegram Bot配置
type Telegram struct {
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
	ChatIDs []int64       `yaml:"chat_ids"`
}

// API 开奖数据源配置
type API struct {
	URL             string        `yaml:"url"`
	TransactionType string        `yaml:"transaction_type"`
	LotteryID       string        `yaml:"lottery_id"`
	PageSize        int           `yaml:"page_size"`
	StartDate       string        `yaml:"start_date"`
	Timeout         time.Duration `yaml:"timeout"`
	RetryCount      int           `yaml:"retry_count"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	PageDelay       time.Duration `yaml:"page_delay"`
	Referer         string        `yaml:"referer"`
	UserAgent       string        `yaml:"user_agent"`
}

// App 应用程序配置
type App struct {
	PollingInterval time.Duration `yaml:"polling_interval"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
}

// Predictor 评分引擎配置
type Predictor struct {
	PickCount int     `yaml:"pick_count"`
	Groups    int     `yaml:"groups"`
	Weights   Weights `yaml:"weights"`
}

// Weights 评分权重
type Weights struct {
	AllTime        float64 `yaml:"all_time"`
	Recent         float64 `yaml:"recent"`
	Periodic       float64 `yaml:"periodic"`
	CommonPair     float64 `yaml:"common_pair"`
	Combination    float64 `yaml:"combination"`
	Heating        float64 `yaml:"heating"`
	Stable         float64 `yaml:"stable"`
	Volatile       float64 `yaml:"volatile"`
	Overlap        float64 `yaml:"overlap"`
	Parity         float64 `yaml:"parity"`
	JitterFraction float64 `yaml:"jitter_fraction"`
}

// Backtest 回测配置
type Backtest struct {
	Trials              int   `yaml:"trials"`
	PredictionsPerTrial int   `yaml:"predictions_per_trial"`
	PicksPerPrediction  int   `yaml:"picks_per_prediction"`
	Workers             int   `yaml:"workers"`
	Seed                int64 `yaml:"seed"`
}

// DefaultWeights 默认评分权重
func DefaultWeights() Weights {
	return Weights{
		AllTime:        0.15,
		Recent:         0.15,
		Periodic:       0.10,
		CommonPair:     0.20,
		Combination:    0.10,
		Heating:        0.20,
		Stable:         0.15,
		Volatile:       0.10,
		Overlap:        0.10,
		Parity:         0.10,
		JitterFraction: 0.05,
	}
}

// Default 返回完整的默认配置
func Default() *Config {
	return &Config{
		Database: Database{
			Host:            "127.0.0.1",
			Port:            3306,
			Username:        "root",
			Database:        "kl8",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Store: Store{
			Driver:  "csv",
			CSVPath: "kl8_history.csv",
		},
		Telegram: Telegram{
			Timeout: 60 * time.Second,
		},
		API: API{
			URL:             "https://jc.zhcw.com/port/client_json.php",
			TransactionType: "10001001",
			LotteryID:       "6",
			PageSize:        2000,
			StartDate:       "2020-10-28",
			Timeout:         30 * time.Second,
			RetryCount:      3,
			RetryDelay:      2 * time.Second,
			PageDelay:       time.Second,
			Referer:         "https://www.zhcw.com/",
			UserAgent:       "Mozilla/5.0 (compatible; kl8-predictor)",
		},
		App: App{
			PollingInterval: 10 * time.Minute,
			LogLevel:        "info",
			LogFormat:       "text",
			CacheTTL:        30 * time.Minute,
		},
		Predictor: Predictor{
			PickCount: 10,
			Groups:    5,
			Weights:   DefaultWeights(),
		},
		Backtest: Backtest{
			Trials:              100,
			PredictionsPerTrial: 5,
			PicksPerPrediction:  10,
			Workers:             4,
			Seed:                1,
		},
	}
}

// LoadConfig 加载配置文件，未指定路径时仅使用默认值和环境变量
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 环境变量覆盖
func (c *Config) applyEnv() {
	if v := os.Getenv("KL8_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("KL8_TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("KL8_DATA_FILE"); v != "" {
		c.Store.CSVPath = v
	}
	if v := os.Getenv("KL8_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("KL8_LOG_LEVEL"); v != "" {
		c.App.LogLevel = v
	}
	if v := os.Getenv("KL8_TELEGRAM_CHAT_IDS"); v != "" {
		var ids []int64
		for _, part := range strings.Split(v, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err == nil {
				ids = append(ids, id)
			}
		}
		c.Telegram.ChatIDs = ids
	}
}

// Validate 检查配置合法性
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "csv", "mysql":
	default:
		return fmt.Errorf("unsupported store driver: %q", c.Store.Driver)
	}
	if c.Predictor.PickCount <= 0 || c.Predictor.PickCount > 20 {
		return fmt.Errorf("predictor.pick_count must be in [1,20], got %d", c.Predictor.PickCount)
	}
	if c.Backtest.PicksPerPrediction <= 0 || c.Backtest.PicksPerPrediction > 10 {
		return fmt.Errorf("backtest.picks_per_prediction must be in [1,10], got %d", c.Backtest.PicksPerPrediction)
	}
	if c.Backtest.PredictionsPerTrial <= 0 {
		return fmt.Errorf("backtest.predictions_per_trial must be positive")
	}
	return nil
}

// GetDSN 获取数据库连接字符串
func (d *Database) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}
