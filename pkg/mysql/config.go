package mysql

import (
	"fmt"
	"time"
)

// Config 定義 MySQL 連線與連線池的配置
type Config struct {
	Host     string `yaml:"host" env:"MYSQL_HOST"`         // 資料庫主機地址
	Port     int    `yaml:"port" env:"MYSQL_PORT"`         // 資料庫埠號 (預設 3306)
	User     string `yaml:"user" env:"MYSQL_USER"`         // 使用者名稱
	Password string `yaml:"password" env:"MYSQL_PASSWORD"` // 密碼
	DBName   string `yaml:"dbname" env:"MYSQL_DBNAME"`     // 資料庫名稱

	// 連線池設定 (Connection Pool)
	// 參考: https://github.com/go-sql-driver/mysql#important-settings
	MaxOpenConns    int           `yaml:"max_open_conns"`    // 最大開啟連線數
	MaxIdleConns    int           `yaml:"max_idle_conns"`    // 最大閒置連線數
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"` // 連線最大存活時間

	// 啟動時的連線重試
	MaxRetries    int           `yaml:"max_retries"`
	RetryInterval time.Duration `yaml:"retry_interval"`

	// GORM 設定
	LogLevel string `yaml:"log_level"` // Log 等級: "silent", "error", "warn", "info"
}

// DefaultConfig 回傳本機開發用的預設值
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            3306,
		User:            "root",
		DBName:          "cash_ledger",
		MaxOpenConns:    50,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		MaxRetries:      10,
		RetryInterval:   2 * time.Second,
		LogLevel:        "error",
	}
}

// DSN (Data Source Name) 產生連線字串
// 格式: user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
	)
}
