package httpclient

import (
	"net"
	"net/http"
	"time"
)

const (
	// 整個請求的上限
	defaultClientTimeout         = 2 * time.Second
	defaultResponseHeaderTimeout = 1 * time.Second
	defaultIdleConnTimeout       = 90 * time.Second
	defaultTLSHandshakeTimeout   = 5 * time.Second

	defaultMaxConnsPerHost     = 64
	defaultMaxIdleConns        = 128
	defaultMaxIdleConnsPerHost = 64

	defaultDialerTimeout   = 500 * time.Millisecond
	defaultDialerKeepAlive = 30 * time.Second
)

// Config HTTP Client / Transport 可調整的參數，零值會被預設值取代
type Config struct {
	ClientTimeout         time.Duration
	ResponseHeaderTimeout time.Duration
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration

	MaxConnsPerHost     int
	MaxIdleConns        int
	MaxIdleConnsPerHost int

	DialerTimeout   time.Duration
	DialerKeepAlive time.Duration
}

// Option 定義 Client 的配置選項函數
type Option func(*Config)

func WithClientTimeout(d time.Duration) Option {
	return func(c *Config) { c.ClientTimeout = d }
}

func WithResponseHeaderTimeout(d time.Duration) Option {
	return func(c *Config) { c.ResponseHeaderTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Config) { c.MaxConnsPerHost = n }
}

func WithDialerTimeout(d time.Duration) Option {
	return func(c *Config) { c.DialerTimeout = d }
}

// DefaultConfig 回傳預設值
func DefaultConfig() Config {
	return Config{
		ClientTimeout:         defaultClientTimeout,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		MaxConnsPerHost:       defaultMaxConnsPerHost,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		DialerTimeout:         defaultDialerTimeout,
		DialerKeepAlive:       defaultDialerKeepAlive,
	}
}

// New 建立帶有超時與連線池設定的 *http.Client，避免外部服務卡住呼叫端
func New(opts ...Option) *http.Client {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	sanitize(&cfg)

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialerTimeout,
			KeepAlive: cfg.DialerKeepAlive,
		}).DialContext,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: tr,
		Timeout:   cfg.ClientTimeout,
	}
}

func sanitize(c *Config) {
	def := DefaultConfig()
	if c.ClientTimeout <= 0 {
		c.ClientTimeout = def.ClientTimeout
	}
	if c.ResponseHeaderTimeout <= 0 {
		c.ResponseHeaderTimeout = def.ResponseHeaderTimeout
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = def.IdleConnTimeout
	}
	if c.TLSHandshakeTimeout <= 0 {
		c.TLSHandshakeTimeout = def.TLSHandshakeTimeout
	}
	if c.MaxConnsPerHost <= 0 {
		c.MaxConnsPerHost = def.MaxConnsPerHost
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = def.MaxIdleConns
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = def.MaxIdleConnsPerHost
	}
	if c.DialerTimeout <= 0 {
		c.DialerTimeout = def.DialerTimeout
	}
	if c.DialerKeepAlive <= 0 {
		c.DialerKeepAlive = def.DialerKeepAlive
	}
}
