package domain

import "github.com/shopspring/decimal"

// Conversion 匯率換算結果
//
// Account.Balance 是最小貨幣單位 (1050 = 10.50)，換算一律以主要貨幣單位進行，
// SourceAmount 即為實際送去換算的金額。
type Conversion struct {
	From         string          `json:"from"`
	To           string          `json:"to"`
	SourceAmount decimal.Decimal `json:"source_amount"`
	Amount       decimal.Decimal `json:"amount"`
	Rate         decimal.Decimal `json:"rate"`
}

// BalanceView 餘額查詢結果
//
// 有要求換算但失敗時 Conversion 為 nil，ConversionErr 記錄原因；
// 餘額本身永遠以 Account 為準。
type BalanceView struct {
	Account             *Account    `json:"account"`
	Conversion          *Conversion `json:"conversion,omitempty"`
	ConversionAvailable bool        `json:"conversion_available"`
	ConversionErr       error       `json:"-"`
}

// ConversionRequested 是否有要求換算
func (v *BalanceView) ConversionRequested() bool {
	return v.Conversion != nil || v.ConversionErr != nil
}

// TransferResult 轉帳成功後雙方的最新狀態
type TransferResult struct {
	From   *Account `json:"from"`
	To     *Account `json:"to"`
	Amount int64    `json:"amount"`
}
