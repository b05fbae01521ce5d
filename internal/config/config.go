package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-cash-ledger/pkg/cache"
	"github.com/JoeShih716/go-cash-ledger/pkg/logger"
	"github.com/JoeShih716/go-cash-ledger/pkg/mysql"
)

const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
)

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr" env:"GRPC_ADDR"`
}

type StoreConfig struct {
	// memory | mysql
	Driver string `yaml:"driver" env:"LEDGER_STORE"`
	// 記憶體模式的 WAL 路徑，空字串表示不落地
	WALPath string `yaml:"wal_path" env:"LEDGER_WAL_PATH"`
	// 每筆寫入後 fsync
	WALSync bool `yaml:"wal_sync"`
}

type RatesConfig struct {
	URL      string        `yaml:"url" env:"CONVERT_URL"`
	APIKey   string        `yaml:"api_key" env:"CONVERT_API_KEY"`
	Timeout  time.Duration `yaml:"timeout"`
	RPS      float64       `yaml:"rps"`
	Burst    int           `yaml:"burst"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type LedgerConfig struct {
	DefaultCurrency string `yaml:"default_currency" env:"LEDGER_DEFAULT_CURRENCY"`
}

// Config 服務整體配置
type Config struct {
	HTTP   HTTPConfig    `yaml:"http"`
	GRPC   GRPCConfig    `yaml:"grpc"`
	Store  StoreConfig   `yaml:"store"`
	MySQL  mysql.Config  `yaml:"mysql"`
	Rates  RatesConfig   `yaml:"rates"`
	Redis  cache.Config  `yaml:"redis"`
	Ledger LedgerConfig  `yaml:"ledger"`
	Log    logger.Config `yaml:"log"`
}

// Default 程式內建的預設值
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		GRPC: GRPCConfig{
			Addr: ":50051",
		},
		Store: StoreConfig{
			Driver:  StoreMemory,
			WALPath: "wal.log",
			WALSync: true,
		},
		MySQL: mysql.DefaultConfig(),
		Rates: RatesConfig{
			Timeout:  2 * time.Second,
			RPS:      5,
			Burst:    10,
			CacheTTL: 10 * time.Minute,
		},
		Ledger: LedgerConfig{
			DefaultCurrency: "USD",
		},
		Log: logger.Config{
			Mode:  "production",
			Level: "info",
		},
	}
}

// Load 讀取設定: 預設值 -> YAML 檔 -> .env -> 環境變數，後者覆蓋前者
//
// 參數:
//
//	path: YAML 設定檔路徑，檔案不存在時只使用預設值
//	envFiles: .env 檔路徑，不存在時略過
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 檢查組合是否合理
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory, StoreMySQL:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.HTTP.Addr == "" && c.GRPC.Addr == "" {
		return errors.New("at least one of http.addr or grpc.addr must be set")
	}
	if c.Rates.Timeout <= 0 {
		return errors.New("rates.timeout must be positive")
	}
	return nil
}
