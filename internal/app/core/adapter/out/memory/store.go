package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-cash-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-cash-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-cash-ledger/pkg/wal"
)

// walOp WAL 紀錄類型
type walOp string

const (
	opCreate   walOp = "create"
	opAdjust   walOp = "adjust"
	opTransfer walOp = "transfer"
)

// walRecord 單筆已驗證、即將套用的變更
type walRecord struct {
	Seq         uint64 `json:"seq"`
	Op          walOp  `json:"op"`
	AccountID   string `json:"account_id"`
	Name        string `json:"name,omitempty"`
	Currency    string `json:"currency,omitempty"`
	ToAccountID string `json:"to_account_id,omitempty"`
	Amount      int64  `json:"amount"`
	At          int64  `json:"at"`
}

// entry 單一帳戶與它自己的鎖
type entry struct {
	mu      sync.Mutex
	account domain.Account
}

// MutexStore 是一個使用 per-account Mutex 實現的帳戶儲存
//
// 結構:
//
//	mu: 只保護 accounts 索引，不保護餘額，只在發布新帳戶時短暫持有寫鎖
//	accounts: 帳戶 ID 對應 entry，餘額由 entry.mu 保護
//	nameMu: 保護 names，建立帳戶的 檢查 -> WAL 只持有這把鎖
//	names: 名稱對應帳戶 ID，用於唯一性檢查
//	wal: Write-Ahead Log 實例 (可為 nil)
type MutexStore struct {
	mu       sync.RWMutex
	accounts map[string]*entry
	nameMu   sync.Mutex
	names    map[string]string
	wal      *wal.WAL
	seq      atomic.Uint64
	now      func() time.Time
}

// NewMutexStore 建立一個新的 MutexStore 實例
//
// 參數:
//
//	w: Write-Ahead Log 實例，nil 表示純記憶體
//
// 回傳:
//
//	*MutexStore: MutexStore 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexStore(w *wal.WAL) (*MutexStore, error) {
	s := &MutexStore{
		accounts: make(map[string]*entry),
		names:    make(map[string]string),
		wal:      w,
		now:      time.Now,
	}
	if w != nil {
		if err := s.recoverFromWAL(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳戶狀態
// 只有 NewMutexStore 呼叫，無需 Lock (單執行緒)
func (s *MutexStore) recoverFromWAL() error {
	return s.wal.ReadAll(func(jsonRaw []byte) error {
		var rec walRecord
		if err := json.Unmarshal(jsonRaw, &rec); err != nil {
			return err
		}
		if err := s.applyRecord(&rec); err != nil {
			return fmt.Errorf("replay wal seq %d: %w", rec.Seq, err)
		}
		if rec.Seq > s.seq.Load() {
			s.seq.Store(rec.Seq)
		}
		return nil
	})
}

// applyRecord 恢復單筆紀錄至記憶體 (不寫入 WAL)
func (s *MutexStore) applyRecord(rec *walRecord) error {
	at := time.Unix(0, rec.At)
	switch rec.Op {
	case opCreate:
		if _, ok := s.names[rec.Name]; ok {
			return domain.ErrAccountAlreadyExists
		}
		acc := domain.NewAccount(rec.AccountID, rec.Name, rec.Currency, at)
		s.accounts[acc.ID] = &entry{account: *acc}
		s.names[acc.Name] = acc.ID
	case opAdjust:
		e, ok := s.accounts[rec.AccountID]
		if !ok {
			return domain.AccountNotFound("", rec.AccountID)
		}
		if err := e.account.Adjust(rec.Amount); err != nil {
			return err
		}
		e.account.UpdatedAt = at
	case opTransfer:
		from, ok := s.accounts[rec.AccountID]
		if !ok {
			return domain.AccountNotFound("from", rec.AccountID)
		}
		to, ok := s.accounts[rec.ToAccountID]
		if !ok {
			return domain.AccountNotFound("to", rec.ToAccountID)
		}
		if err := from.account.Withdraw(rec.Amount); err != nil {
			return err
		}
		if err := to.account.Deposit(rec.Amount); err != nil {
			return err
		}
		from.account.UpdatedAt = at
		to.account.UpdatedAt = at
	default:
		return fmt.Errorf("unknown wal op %q", rec.Op)
	}
	return nil
}

// writeAhead 套用變更前先寫入 WAL
func (s *MutexStore) writeAhead(rec walRecord) error {
	if s.wal == nil {
		return nil
	}
	rec.Seq = s.seq.Add(1)
	if err := s.wal.Write(&rec); err != nil {
		return fmt.Errorf("write wal: %w", err)
	}
	return nil
}

func (s *MutexStore) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[id]
}

// FindByID 取得帳戶目前狀態 (值拷貝)
func (s *MutexStore) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := s.lookup(id)
	if e == nil {
		return nil, domain.AccountNotFound("", id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.account.Clone(), nil
}

// InsertIfAbsentByName 名稱檢查、WAL 與建立都在 nameMu 內完成
// WAL fsync 期間不持有 mu，其他帳戶的讀寫不受影響
func (s *MutexStore) InsertIfAbsentByName(ctx context.Context, name, currency string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.now()
	acc := domain.NewAccount(uuid.NewString(), name, currency, now)

	s.nameMu.Lock()
	defer s.nameMu.Unlock()
	if _, ok := s.names[name]; ok {
		return nil, domain.ErrAccountAlreadyExists
	}
	if err := s.writeAhead(walRecord{
		Op:        opCreate,
		AccountID: acc.ID,
		Name:      acc.Name,
		Currency:  acc.Currency,
		At:        now.UnixNano(),
	}); err != nil {
		return nil, err
	}
	s.names[name] = acc.ID

	// 新 ID 在回傳前沒有人拿得到，這裡才發布
	s.mu.Lock()
	s.accounts[acc.ID] = &entry{account: *acc}
	s.mu.Unlock()
	return acc.Clone(), nil
}

// AdjustBalance 在帳戶鎖內完成 檢查 -> WAL -> 寫入
func (s *MutexStore) AdjustBalance(ctx context.Context, id string, delta int64) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := s.lookup(id)
	if e == nil {
		return nil, domain.AccountNotFound("", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.account
	if err := next.Adjust(delta); err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.writeAhead(walRecord{Op: opAdjust, AccountID: id, Amount: delta, At: now.UnixNano()}); err != nil {
		return nil, err
	}
	next.UpdatedAt = now
	e.account = next
	return next.Clone(), nil
}

// Transfer 依 LockIDs 的順序鎖定兩個帳戶，A->B 與 B->A 同時發生也不會死鎖
func (s *MutexStore) Transfer(ctx context.Context, tran domain.Transfer) (*domain.Account, *domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if tran.Amount <= 0 {
		return nil, nil, domain.ErrAmountMustBePositive
	}
	from := s.lookup(tran.From)
	if from == nil {
		return nil, nil, domain.AccountNotFound("from", tran.From)
	}
	to := s.lookup(tran.To)
	if to == nil {
		return nil, nil, domain.AccountNotFound("to", tran.To)
	}

	unlock := lockInOrder(tran, map[string]*entry{tran.From: from, tran.To: to})
	defer unlock()

	// 自我轉帳: 資金足夠即視為成功，不做任何變更
	if tran.IsSelf() {
		if from.account.Balance < tran.Amount {
			return nil, nil, domain.ErrInsufficientBalance
		}
		return from.account.Clone(), from.account.Clone(), nil
	}

	nextFrom, nextTo := from.account, to.account
	if err := nextFrom.Withdraw(tran.Amount); err != nil {
		return nil, nil, err
	}
	if err := nextTo.Deposit(tran.Amount); err != nil {
		return nil, nil, err
	}
	now := s.now()
	if err := s.writeAhead(walRecord{
		Op:          opTransfer,
		AccountID:   tran.From,
		ToAccountID: tran.To,
		Amount:      tran.Amount,
		At:          now.UnixNano(),
	}); err != nil {
		return nil, nil, err
	}
	nextFrom.UpdatedAt = now
	nextTo.UpdatedAt = now
	from.account, to.account = nextFrom, nextTo
	return nextFrom.Clone(), nextTo.Clone(), nil
}

// lockInOrder 依帳號 ID 升冪加鎖，回傳反向解鎖的函式
func lockInOrder(tran domain.Transfer, entries map[string]*entry) func() {
	ids := tran.LockIDs()
	locked := make([]*entry, 0, len(ids))
	for _, id := range ids {
		e := entries[id]
		e.mu.Lock()
		locked = append(locked, e)
	}
	return func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].mu.Unlock()
		}
	}
}

// Accounts 回傳所有帳戶的一致快照，依 ID 排序 (供測試與對帳使用)
// 依 ID 升冪鎖住全部帳戶後才複製，與 Transfer 的加鎖順序相同
func (s *MutexStore) Accounts() []*domain.Account {
	s.mu.RLock()
	ids := make([]string, 0, len(s.accounts))
	entries := make(map[string]*entry, len(s.accounts))
	for id, e := range s.accounts {
		ids = append(ids, id)
		entries[id] = e
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	for _, id := range ids {
		entries[id].mu.Lock()
	}
	out := make([]*domain.Account, 0, len(ids))
	for _, id := range ids {
		out = append(out, entries[id].account.Clone())
	}
	for i := len(ids) - 1; i >= 0; i-- {
		entries[ids[i]].mu.Unlock()
	}
	return out
}

// Close 關閉 WAL
func (s *MutexStore) Close() error {
	if s.wal == nil {
		return nil
	}
	return s.wal.Close()
}

var _ usecase.AccountStore = (*MutexStore)(nil)
