package usecase

import (
	"context"

	"github.com/JoeShih716/go-cash-ledger/internal/app/core/domain"
)

// AccountStore 是帳戶儲存層的介面
//
// 所有方法都必須對同一帳戶的其他操作具備原子性；
// 業務錯誤回傳 domain 的 sentinel (ErrAccountNotFound / ErrInsufficientBalance ...)，
// 其他錯誤一律視為儲存層故障。
type AccountStore interface {
	// FindByID 取得帳戶目前狀態
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	// InsertIfAbsentByName 名稱不存在時建立帳戶 (檢查與寫入為單一原子操作)
	InsertIfAbsentByName(ctx context.Context, name, currency string) (*domain.Account, error)
	// AdjustBalance 原子地調整餘額，前置條件 balance + delta >= 0
	AdjustBalance(ctx context.Context, id string, delta int64) (*domain.Account, error)
	// Transfer 原子地完成兩邊帳戶的扣款與入帳
	Transfer(ctx context.Context, tran domain.Transfer) (from, to *domain.Account, err error)
	// Close 釋放資源
	Close() error
}
