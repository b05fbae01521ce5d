package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config Redis 連線配置
type Config struct {
	Addr         string        `yaml:"addr" env:"REDIS_ADDR"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolSize     int           `yaml:"pool_size"`
}

// New 建立 redis.Client 並以 PING 確認連線
//
// 回傳:
//
//	*redis.Client: 客戶端
//	func(): 關閉函式，於 shutdown 時呼叫
//	error: 連線失敗
func New(ctx context.Context, cfg Config) (*redis.Client, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  defaultDuration(cfg.DialTimeout, 3*time.Second),
		ReadTimeout:  defaultDuration(cfg.ReadTimeout, 500*time.Millisecond),
		WriteTimeout: defaultDuration(cfg.WriteTimeout, 500*time.Millisecond),
		PoolSize:     defaultInt(cfg.PoolSize, 10),
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	closer := func() {
		_ = client.Close()
	}
	return client, closer, nil
}

func defaultDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

func defaultInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
