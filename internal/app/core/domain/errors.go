package domain

import (
	"errors"
	"fmt"
)

// Kind 錯誤種類，由 Adapter 轉換成傳輸層的狀態碼
type Kind uint8

const (
	KindUnknown Kind = iota
	// 金額 <= 0 或溢位
	KindInvalidAmount
	// 參數格式錯誤 (名稱為空、幣別格式錯誤)
	KindInvalidArgument
	// 找不到帳戶
	KindNotFound
	// 名稱重複
	KindAlreadyExists
	// 餘額不足
	KindInsufficientFunds
	// 儲存層故障
	KindUnavailable
	// 匯率查詢失敗 (非致命，只附加在餘額查詢結果上)
	KindConversionUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidAmount:
		return "invalid_amount"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindUnavailable:
		return "unavailable"
	case KindConversionUnavailable:
		return "conversion_unavailable"
	default:
		return "unknown"
	}
}

// Error 帶種類的錯誤值
//
// 結構:
//
//	Kind: 錯誤種類
//	Message: 可公開的訊息
//	Fields: 失敗請求的相關欄位 (帳戶 ID、金額...)，方便 Adapter 組訊息
//	Err: 內部原因，不對外輸出
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is 同種類即視為相同，讓 errors.Is(err, ErrAccountNotFound) 對任何 NotFound 都成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// With 回傳合併欄位後的副本，既有欄位優先
func (e *Error) With(fields map[string]any) *Error {
	merged := make(map[string]any, len(e.Fields)+len(fields))
	for k, v := range e.Fields {
		merged[k] = v
	}
	for k, v := range fields {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	cp := *e
	cp.Fields = merged
	return &cp
}

// Field 取出欄位字串值，不存在時回傳空字串
func (e *Error) Field(key string) string {
	v, ok := e.Fields[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// NewError 建立帶種類的錯誤
func NewError(kind Kind, message string, fields map[string]any, cause error) *Error {
	return &Error{Kind: kind, Message: message, Fields: fields, Err: cause}
}

// KindOf 取得錯誤種類，非 *Error 一律回傳 KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

var (
	// ErrAmountMustBePositive 金額必須為正數
	ErrAmountMustBePositive = &Error{Kind: KindInvalidAmount, Message: "amount must be positive"}

	// ErrAmountOverflow 金額超出可表示範圍
	ErrAmountOverflow = &Error{Kind: KindInvalidAmount, Message: "amount overflows balance"}

	// ErrInvalidName 帳戶名稱不合法
	ErrInvalidName = &Error{Kind: KindInvalidArgument, Message: "account name is invalid"}

	// ErrInvalidCurrency 幣別必須是三個英文字母
	ErrInvalidCurrency = &Error{Kind: KindInvalidArgument, Message: "currency must be a 3-letter code"}

	// ErrInsufficientBalance 餘額不足
	ErrInsufficientBalance = &Error{Kind: KindInsufficientFunds, Message: "insufficient balance"}

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = &Error{Kind: KindNotFound, Message: "account not found"}

	// ErrAccountAlreadyExists 帳戶已存在
	ErrAccountAlreadyExists = &Error{Kind: KindAlreadyExists, Message: "account already exists"}

	// ErrStoreUnavailable 儲存層無法使用
	ErrStoreUnavailable = &Error{Kind: KindUnavailable, Message: "account store unavailable"}

	// ErrConversionUnavailable 匯率換算暫時無法取得
	ErrConversionUnavailable = &Error{Kind: KindConversionUnavailable, Message: "currency conversion unavailable"}
)

// AccountNotFound 指出是哪一邊 (from/to) 的帳戶不存在
func AccountNotFound(side, id string) *Error {
	fields := map[string]any{"id": id}
	if side != "" {
		fields["side"] = side
	}
	return &Error{Kind: KindNotFound, Message: "account not found", Fields: fields}
}
