package mysql

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-cash-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-cash-ledger/pkg/mysql"
)

var accountColumns = []string{"id", "name", "balance", "currency", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	client, err := mysql.NewClientWithConn(db, "silent")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMySQLStore(client), mock
}

func TestMySQLStore_FindByID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow("a-1", "alice", 1050, "USD", 1700000000000, 1700000000000))

	acc, err := s.FindByID(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Name)
	assert.Equal(t, int64(1050), acc.Balance)
	assert.Equal(t, "USD", acc.Currency)
	assert.Equal(t, int64(1700000000000), acc.CreatedAt.UnixMilli())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_FindByIDNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(accountColumns))

	_, err := s.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_FindByIDDriverError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM `accounts`").
		WillReturnError(errors.New("connection refused"))

	_, err := s.FindByID(context.Background(), "a-1")
	require.Error(t, err)
	assert.Equal(t, domain.KindUnknown, domain.KindOf(err))
}

func TestMySQLStore_InsertIfAbsentByName(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO `accounts`").
		WillReturnResult(sqlmock.NewResult(0, 1))

	acc, err := s.InsertIfAbsentByName(context.Background(), "alice", "USD")
	require.NoError(t, err)
	assert.Len(t, acc.ID, 36)
	assert.Equal(t, "alice", acc.Name)
	assert.Equal(t, int64(0), acc.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_InsertDuplicateName(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO `accounts`").
		WillReturnError(&mysqldrv.MySQLError{Number: 1062, Message: "Duplicate entry 'alice' for key 'idx_accounts_name'"})

	_, err := s.InsertIfAbsentByName(context.Background(), "alice", "USD")
	assert.ErrorIs(t, err, domain.ErrAccountAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_AdjustBalance(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE id = \\? .*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow("a-1", "alice", 100, "USD", 1, 1))
	mock.ExpectExec("UPDATE `accounts` SET `balance`=\\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	acc, err := s.AdjustBalance(context.Background(), "a-1", 250)
	require.NoError(t, err)
	assert.Equal(t, int64(350), acc.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_AdjustBalanceInsufficient(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE id = \\? .*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow("a-1", "alice", 100, "USD", 1, 1))
	mock.ExpectRollback()

	_, err := s.AdjustBalance(context.Background(), "a-1", -101)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_AdjustBalanceNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE id = \\? .*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(accountColumns))
	mock.ExpectRollback()

	_, err := s.AdjustBalance(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_Transfer(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE id IN \\(\\?,\\?\\) ORDER BY id FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow("a", "alice", 1000, "USD", 1, 1).
			AddRow("b", "bob", 0, "USD", 1, 1))
	mock.ExpectExec("UPDATE `accounts` SET `balance`=\\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `accounts` SET `balance`=\\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	from, to, err := s.Transfer(context.Background(), domain.Transfer{From: "a", To: "b", Amount: 400})
	require.NoError(t, err)
	assert.Equal(t, int64(600), from.Balance)
	assert.Equal(t, int64(400), to.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_TransferInsufficient(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE id IN \\(\\?,\\?\\) ORDER BY id FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow("a", "alice", 1000, "USD", 1, 1).
			AddRow("b", "bob", 0, "USD", 1, 1))
	mock.ExpectRollback()

	from, to, err := s.Transfer(context.Background(), domain.Transfer{From: "b", To: "a", Amount: 1})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Nil(t, from)
	assert.Nil(t, to)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_TransferMissingSide(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE id IN .* FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow("a", "alice", 1000, "USD", 1, 1))
	mock.ExpectRollback()

	_, _, err := s.Transfer(context.Background(), domain.Transfer{From: "a", To: "z", Amount: 1})
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "to", de.Field("side"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_SelfTransfer(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE id IN \\(\\?\\) ORDER BY id FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow("a", "alice", 100, "USD", 1, 1))
	mock.ExpectCommit()

	from, to, err := s.Transfer(context.Background(), domain.Transfer{From: "a", To: "a", Amount: 60})
	require.NoError(t, err)
	assert.Equal(t, int64(100), from.Balance)
	assert.Equal(t, int64(100), to.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}
