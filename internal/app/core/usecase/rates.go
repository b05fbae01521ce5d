package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-cash-ledger/internal/app/core/domain"
)

// RateLookup 是外部匯率服務的介面 (best-effort)
type RateLookup interface {
	// Convert 將 amount (主要貨幣單位) 從 from 換算成 to
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (domain.Conversion, error)
}
