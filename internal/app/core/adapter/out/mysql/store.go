package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-cash-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-cash-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-cash-ledger/pkg/mysql"
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID        string `gorm:"primaryKey;type:char(36)"`
	Name      string `gorm:"type:varchar(64);uniqueIndex"`
	Balance   int64
	Currency  string `gorm:"type:char(3)"`
	CreatedAt int64  `gorm:"autoCreateTime:milli"` // 自動寫入時間
	UpdatedAt int64  `gorm:"autoUpdateTime:milli"` // 自動更新時間
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

func (row *sqlAccount) toDomain() *domain.Account {
	return &domain.Account{
		ID:        row.ID,
		Name:      row.Name,
		Balance:   row.Balance,
		Currency:  row.Currency,
		CreatedAt: time.UnixMilli(row.CreatedAt),
		UpdatedAt: time.UnixMilli(row.UpdatedAt),
	}
}

// MySQLStore 以 MySQL 列鎖實現的帳戶儲存
// 同一帳戶的寫入由 SELECT ... FOR UPDATE 序列化，不同帳戶互不影響
type MySQLStore struct {
	client *mysql.Client
}

func NewMySQLStore(client *mysql.Client) *MySQLStore {
	return &MySQLStore{
		client: client,
	}
}

// AutoMigrate 建立或更新 accounts 表
func (s *MySQLStore) AutoMigrate(ctx context.Context) error {
	return s.client.DB().WithContext(ctx).AutoMigrate(&sqlAccount{})
}

// FindByID 取得帳戶
func (s *MySQLStore) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	var row sqlAccount
	err := s.client.DB().WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.AccountNotFound("", id)
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// InsertIfAbsentByName 依賴 name 的唯一索引保證不重複
func (s *MySQLStore) InsertIfAbsentByName(ctx context.Context, name, currency string) (*domain.Account, error) {
	now := time.Now().UnixMilli()
	row := sqlAccount{
		ID:        uuid.NewString(),
		Name:      name,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.client.DB().WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, domain.ErrAccountAlreadyExists
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// AdjustBalance 悲觀鎖鎖定單一帳戶後更新餘額
func (s *MySQLStore) AdjustBalance(ctx context.Context, id string, delta int64) (*domain.Account, error) {
	var result *domain.Account
	err := s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row sqlAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.AccountNotFound("", id)
		}
		if err != nil {
			return err
		}

		acc := row.toDomain()
		if err := acc.Adjust(delta); err != nil {
			return err
		}
		if err := tx.Model(&row).Update("balance", acc.Balance).Error; err != nil {
			return err
		}
		row.Balance = acc.Balance
		result = row.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Transfer 依 ID 排序鎖定兩列 (與記憶體版本相同的加鎖順序)，在同一個交易內更新
func (s *MySQLStore) Transfer(ctx context.Context, tran domain.Transfer) (*domain.Account, *domain.Account, error) {
	if tran.Amount <= 0 {
		return nil, nil, domain.ErrAmountMustBePositive
	}

	var from, to *domain.Account
	err := s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []sqlAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", tran.LockIDs()).
			Order("id").
			Find(&rows).Error; err != nil {
			return err
		}
		rowMap := make(map[string]*sqlAccount, len(rows))
		for i := range rows {
			rowMap[rows[i].ID] = &rows[i]
		}
		// 確保涉及的帳號都存在
		fromRow, ok := rowMap[tran.From]
		if !ok {
			return domain.AccountNotFound("from", tran.From)
		}
		toRow, ok := rowMap[tran.To]
		if !ok {
			return domain.AccountNotFound("to", tran.To)
		}

		if tran.IsSelf() {
			if fromRow.Balance < tran.Amount {
				return domain.ErrInsufficientBalance
			}
			from, to = fromRow.toDomain(), fromRow.toDomain()
			return nil
		}

		fromAcc, toAcc := fromRow.toDomain(), toRow.toDomain()
		if err := fromAcc.Withdraw(tran.Amount); err != nil {
			return err
		}
		if err := toAcc.Deposit(tran.Amount); err != nil {
			return err
		}
		if err := tx.Model(fromRow).Update("balance", fromAcc.Balance).Error; err != nil {
			return err
		}
		if err := tx.Model(toRow).Update("balance", toAcc.Balance).Error; err != nil {
			return err
		}
		fromRow.Balance, toRow.Balance = fromAcc.Balance, toAcc.Balance
		from, to = fromRow.toDomain(), toRow.toDomain()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

// Close 關閉資料庫連線
func (s *MySQLStore) Close() error {
	return s.client.Close()
}

var _ usecase.AccountStore = (*MySQLStore)(nil)
