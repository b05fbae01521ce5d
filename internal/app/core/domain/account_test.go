package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountDepositWithdraw(t *testing.T) {
	a := NewAccount("id-1", "alice", DefaultCurrency, time.Now())

	require.NoError(t, a.Deposit(50))
	assert.Equal(t, int64(50), a.Balance)

	require.NoError(t, a.Withdraw(20))
	assert.Equal(t, int64(30), a.Balance)

	err := a.Withdraw(31)
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.Equal(t, int64(30), a.Balance, "rejected withdraw must not mutate")

	assert.ErrorIs(t, a.Deposit(0), ErrAmountMustBePositive)
	assert.ErrorIs(t, a.Withdraw(-1), ErrAmountMustBePositive)
}

func TestAccountDepositOverflow(t *testing.T) {
	a := &Account{Balance: math.MaxInt64 - 1}
	assert.ErrorIs(t, a.Deposit(2), ErrAmountOverflow)
	assert.Equal(t, int64(math.MaxInt64-1), a.Balance)
}

func TestAccountAdjust(t *testing.T) {
	a := &Account{Balance: 10}
	require.NoError(t, a.Adjust(5))
	require.NoError(t, a.Adjust(-15))
	assert.Equal(t, int64(0), a.Balance)
	assert.ErrorIs(t, a.Adjust(-1), ErrInsufficientBalance)
	assert.ErrorIs(t, a.Adjust(math.MinInt64), ErrAmountOverflow)
}

func TestAccountMajorBalance(t *testing.T) {
	a := &Account{Balance: 1050}
	assert.Equal(t, "10.5", a.MajorBalance().String())
}

func TestNormalizeName(t *testing.T) {
	name, err := NormalizeName("  bob ")
	require.NoError(t, err)
	assert.Equal(t, "bob", name)

	_, err = NormalizeName("   ")
	assert.ErrorIs(t, err, ErrInvalidName)

	long := make([]rune, MaxNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = NormalizeName(string(long))
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestNormalizeCurrency(t *testing.T) {
	code, err := NormalizeCurrency("eur")
	require.NoError(t, err)
	assert.Equal(t, "EUR", code)

	for _, bad := range []string{"", "EU", "EURO", "E1R"} {
		_, err := NormalizeCurrency(bad)
		assert.ErrorIs(t, err, ErrInvalidCurrency, bad)
	}
}
