package rates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JoeShih716/go-cash-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-cash-ledger/internal/app/core/usecase"
)

// maxBodySize 匯率服務回應的大小上限
const maxBodySize = 64 << 10

var (
	// ErrUpstreamStatus 匯率服務回傳非 2xx
	ErrUpstreamStatus = errors.New("rate service returned non-2xx status")
	// ErrMalformedResponse 匯率服務回應無法解析
	ErrMalformedResponse = errors.New("rate service response is malformed")
)

// HTTPLookup 透過外部 HTTP 匯率服務換算金額
//
// 請求格式: GET {baseURL}?to=EUR&from=USD&amount=10.50，Header 帶 apikey
type HTTPLookup struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Option 定義 HTTPLookup 的配置選項函數
type Option func(*HTTPLookup)

// WithRateLimit 限制每秒對外請求數，超過時等待 (受 ctx 截止時間約束)
func WithRateLimit(rps float64, burst int) Option {
	return func(h *HTTPLookup) {
		if rps > 0 {
			if burst <= 0 {
				burst = 1
			}
			h.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithLogger 設定 Logger
func WithLogger(logger *zap.Logger) Option {
	return func(h *HTTPLookup) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHTTPLookup 建立匯率查詢客戶端
//
// 參數:
//
//	baseURL: 換算 API 位址 (CONVERT_URL)
//	apiKey: API 金鑰 (CONVERT_API_KEY)
//	httpClient: 帶超時設定的 HTTP Client
func NewHTTPLookup(baseURL, apiKey string, httpClient *http.Client, opts ...Option) *HTTPLookup {
	h := &HTTPLookup{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Convert 呼叫外部服務換算金額
func (h *HTTPLookup) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (domain.Conversion, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return domain.Conversion{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	u, err := url.Parse(h.baseURL)
	if err != nil {
		return domain.Conversion{}, fmt.Errorf("parse convert url: %w", err)
	}
	q := u.Query()
	q.Set("to", to)
	q.Set("from", from)
	q.Set("amount", amount.String())
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.Conversion{}, err
	}
	if h.apiKey != "" {
		req.Header.Set("apikey", h.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return domain.Conversion{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return domain.Conversion{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.logger.Warn("rate service error",
			zap.Int("status", resp.StatusCode),
			zap.String("from", from),
			zap.String("to", to),
		)
		return domain.Conversion{}, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	conv, err := parseConversion(body, amount, from, to)
	if err != nil {
		h.logger.Warn("rate service response rejected", zap.Error(err), zap.ByteString("body", body))
		return domain.Conversion{}, err
	}
	return conv, nil
}

// parseConversion 解析回應
//
//	{"success":true,"info":{"rate":0.92},"result":9.66}
//
// 沒有 info.rate 時以 result / amount 推算
func parseConversion(body []byte, amount decimal.Decimal, from, to string) (domain.Conversion, error) {
	if !gjson.ValidBytes(body) {
		return domain.Conversion{}, ErrMalformedResponse
	}
	doc := gjson.ParseBytes(body)
	if success := doc.Get("success"); success.Exists() && !success.Bool() {
		msg := doc.Get("error.info").String()
		if msg == "" {
			msg = doc.Get("error.type").String()
		}
		return domain.Conversion{}, fmt.Errorf("%w: %s", ErrMalformedResponse, msg)
	}

	result := doc.Get("result")
	if !result.Exists() || result.Type != gjson.Number {
		return domain.Conversion{}, fmt.Errorf("%w: missing result", ErrMalformedResponse)
	}
	converted, err := decimal.NewFromString(result.Raw)
	if err != nil {
		return domain.Conversion{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var fx decimal.Decimal
	if r := doc.Get("info.rate"); r.Exists() && r.Type == gjson.Number {
		if fx, err = decimal.NewFromString(r.Raw); err != nil {
			return domain.Conversion{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	} else if !amount.IsZero() {
		fx = converted.Div(amount)
	}

	return domain.Conversion{From: from, To: to, Amount: converted, Rate: fx}, nil
}

var _ usecase.RateLookup = (*HTTPLookup)(nil)
