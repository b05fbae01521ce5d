package domain

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	// 金額使用 int64 最小貨幣單位 (分)，小數點後 2 位
	CurrencyScale = 100
	// CurrencyExponent 對應 CurrencyScale 的十進位指數
	CurrencyExponent int32 = -2

	// DefaultCurrency 帳戶建立時的預設幣別
	DefaultCurrency = "USD"

	// MaxNameLength 帳戶名稱最大長度 (與 MySQL 欄位一致)
	MaxNameLength = 64
)

// Account 帳戶
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Balance   int64     `json:"balance"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewAccount(id, name, currency string, now time.Time) *Account {
	return &Account{
		ID:        id,
		Name:      name,
		Balance:   0,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Deposit 存款
func (a *Account) Deposit(amount int64) error {
	if amount <= 0 {
		return ErrAmountMustBePositive
	}
	if a.Balance > math.MaxInt64-amount {
		return ErrAmountOverflow
	}

	a.Balance = a.Balance + amount
	return nil
}

// Withdraw 提款
func (a *Account) Withdraw(amount int64) error {
	if amount <= 0 {
		return ErrAmountMustBePositive
	}

	if a.Balance < amount {
		return ErrInsufficientBalance
	}

	a.Balance = a.Balance - amount
	return nil
}

// Adjust 正數存款、負數提款
func (a *Account) Adjust(delta int64) error {
	if delta == math.MinInt64 {
		return ErrAmountOverflow
	}
	if delta >= 0 {
		return a.Deposit(delta)
	}
	return a.Withdraw(-delta)
}

// Clone 回傳值拷貝，避免外部改寫 Store 內部狀態
func (a *Account) Clone() *Account {
	cp := *a
	return &cp
}

// MajorBalance 以主要貨幣單位表示的餘額 (例: 1050 -> 10.50)
func (a *Account) MajorBalance() decimal.Decimal {
	return decimal.New(a.Balance, CurrencyExponent)
}

// NormalizeName 去除前後空白並檢查長度
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

// NormalizeCurrency 轉大寫並檢查是否為三個英文字母
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return code, nil
}
