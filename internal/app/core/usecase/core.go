package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-cash-ledger/internal/app/core/domain"
)

// DefaultConversionTimeout 匯率查詢的預設上限
const DefaultConversionTimeout = 2 * time.Second

// CoreUseCase 是核心業務邏輯層 (帳本引擎)
//
// 本身不保存任何帳戶狀態，每次操作都重新向 AccountStore 讀取，
// 並發控制由 AccountStore 的原子操作負責。
type CoreUseCase struct {
	store             AccountStore
	rates             RateLookup
	defaultCurrency   string
	conversionTimeout time.Duration
	logger            *zap.Logger
}

// Option 定義 CoreUseCase 的配置選項函數
type Option func(*CoreUseCase)

// WithDefaultCurrency 設定建立帳戶時的預設幣別
func WithDefaultCurrency(code string) Option {
	return func(c *CoreUseCase) {
		if normalized, err := domain.NormalizeCurrency(code); err == nil {
			c.defaultCurrency = normalized
		}
	}
}

// WithConversionTimeout 設定匯率查詢的超時時間
func WithConversionTimeout(d time.Duration) Option {
	return func(c *CoreUseCase) {
		if d > 0 {
			c.conversionTimeout = d
		}
	}
}

// WithLogger 設定 Logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *CoreUseCase) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoreUseCase 建立帳本引擎
//
// 參數:
//
//	store: 帳戶儲存層
//	rates: 匯率服務，可為 nil (此時換算一律回報不可用)
//	opts: 可選配置
func NewCoreUseCase(store AccountStore, rates RateLookup, opts ...Option) *CoreUseCase {
	c := &CoreUseCase{
		store:             store,
		rates:             rates,
		defaultCurrency:   domain.DefaultCurrency,
		conversionTimeout: DefaultConversionTimeout,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateAccount 建立帳戶，名稱重複回傳 AlreadyExists
func (c *CoreUseCase) CreateAccount(ctx context.Context, name string) (acc *domain.Account, err error) {
	defer func() { c.finish("create", err, zap.String("name", name)) }()

	normalized, err := domain.NormalizeName(name)
	if err != nil {
		return nil, c.classify(err, map[string]any{"name": name})
	}
	acc, err = c.store.InsertIfAbsentByName(ctx, normalized, c.defaultCurrency)
	if err != nil {
		return nil, c.classify(err, map[string]any{"name": normalized})
	}
	return acc, nil
}

// GetBalance 取得帳戶餘額，targetCurrency 非空時附帶換算結果
//
// 換算失敗不會讓查詢失敗，只會在 BalanceView.ConversionErr 記錄原因。
func (c *CoreUseCase) GetBalance(ctx context.Context, id, targetCurrency string) (view *domain.BalanceView, err error) {
	defer func() { c.finish("balance", err, zap.String("account_id", id)) }()

	var target string
	if targetCurrency != "" {
		if target, err = domain.NormalizeCurrency(targetCurrency); err != nil {
			return nil, c.classify(err, map[string]any{"currency": targetCurrency})
		}
	}

	acc, err := c.store.FindByID(ctx, id)
	if err != nil {
		return nil, c.classify(err, map[string]any{"id": id})
	}

	view = &domain.BalanceView{Account: acc}
	if target == "" {
		return view, nil
	}

	conv, convErr := c.convert(ctx, acc, target)
	if convErr != nil {
		conversionsTotal.WithLabelValues("unavailable").Inc()
		c.logger.Warn("balance conversion unavailable",
			zap.String("account_id", acc.ID),
			zap.String("from", acc.Currency),
			zap.String("to", target),
			zap.Error(convErr),
		)
		view.ConversionErr = domain.ErrConversionUnavailable.With(map[string]any{
			"from": acc.Currency,
			"to":   target,
		})
		return view, nil
	}
	conversionsTotal.WithLabelValues("ok").Inc()
	conv.SourceAmount = acc.MajorBalance()
	view.Conversion = &conv
	view.ConversionAvailable = true
	return view, nil
}

// convert 在有限時間內呼叫匯率服務
// 即使實作忽略 ctx，超時後也會直接返回，不拖住餘額查詢
func (c *CoreUseCase) convert(ctx context.Context, acc *domain.Account, target string) (domain.Conversion, error) {
	amount := acc.MajorBalance()
	if target == acc.Currency {
		return domain.Conversion{From: acc.Currency, To: target, SourceAmount: amount, Amount: amount, Rate: decimal.NewFromInt(1)}, nil
	}
	if c.rates == nil {
		return domain.Conversion{}, errors.New("rate lookup is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.conversionTimeout)
	defer cancel()

	type result struct {
		conv domain.Conversion
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conv, err := c.rates.Convert(ctx, amount, acc.Currency, target)
		ch <- result{conv: conv, err: err}
	}()

	select {
	case r := <-ch:
		return r.conv, r.err
	case <-ctx.Done():
		return domain.Conversion{}, ctx.Err()
	}
}

// Credit 存款 (send cash to user)
func (c *CoreUseCase) Credit(ctx context.Context, id string, amount int64) (acc *domain.Account, err error) {
	defer func() { c.finish("credit", err, zap.String("account_id", id), zap.Int64("amount", amount)) }()

	fields := map[string]any{"id": id, "amount": amount}
	if amount <= 0 {
		return nil, c.classify(domain.ErrAmountMustBePositive, fields)
	}
	acc, err = c.store.AdjustBalance(ctx, id, amount)
	if err != nil {
		return nil, c.classify(err, fields)
	}
	return acc, nil
}

// Debit 提款 (withdraw)，餘額不足時不做任何變更
func (c *CoreUseCase) Debit(ctx context.Context, id string, amount int64) (acc *domain.Account, err error) {
	defer func() { c.finish("debit", err, zap.String("account_id", id), zap.Int64("amount", amount)) }()

	fields := map[string]any{"id": id, "amount": amount}
	if amount <= 0 {
		return nil, c.classify(domain.ErrAmountMustBePositive, fields)
	}
	acc, err = c.store.AdjustBalance(ctx, id, -amount)
	if err != nil {
		return nil, c.classify(err, fields)
	}
	return acc, nil
}

// Transfer 轉帳，兩邊要嘛同時成功，要嘛都不變
func (c *CoreUseCase) Transfer(ctx context.Context, fromID, toID string, amount int64) (res *domain.TransferResult, err error) {
	defer func() {
		c.finish("transfer", err,
			zap.String("from", fromID),
			zap.String("to", toID),
			zap.Int64("amount", amount),
		)
	}()

	fields := map[string]any{"from": fromID, "to": toID, "amount": amount}
	if amount <= 0 {
		return nil, c.classify(domain.ErrAmountMustBePositive, fields)
	}
	from, to, err := c.store.Transfer(ctx, domain.Transfer{From: fromID, To: toID, Amount: amount})
	if err != nil {
		return nil, c.classify(err, fields)
	}
	return &domain.TransferResult{From: from, To: to, Amount: amount}, nil
}

// classify 將 Store 錯誤轉成帶種類的錯誤
// 非業務錯誤一律視為 Unavailable，引擎不自動重試
func (c *CoreUseCase) classify(err error, fields map[string]any) error {
	var de *domain.Error
	if errors.As(err, &de) && de.Kind != domain.KindUnknown {
		return de.With(fields)
	}
	return domain.NewError(domain.KindUnavailable, domain.ErrStoreUnavailable.Message, fields, err)
}

func (c *CoreUseCase) finish(op string, err error, fields ...zap.Field) {
	observe(op, err)
	if err == nil {
		return
	}
	fields = append(fields, zap.String("op", op), zap.Error(err))
	if domain.KindOf(err) == domain.KindUnavailable {
		c.logger.Error("ledger operation failed", fields...)
		return
	}
	c.logger.Debug("ledger operation rejected", fields...)
}
