package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-cash-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-cash-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-cash-ledger/internal/app/core/usecase"
)

type fixedRates struct {
	rate decimal.Decimal
	err  error
}

func (f fixedRates) Convert(_ context.Context, amount decimal.Decimal, from, to string) (domain.Conversion, error) {
	if f.err != nil {
		return domain.Conversion{}, f.err
	}
	return domain.Conversion{From: from, To: to, Amount: amount.Mul(f.rate), Rate: f.rate}, nil
}

// stuckRates 完全忽略 ctx，模擬卡住的外部服務
type stuckRates struct{ release chan struct{} }

func (s stuckRates) Convert(context.Context, decimal.Decimal, string, string) (domain.Conversion, error) {
	<-s.release
	return domain.Conversion{}, errors.New("too late")
}

// brokenStore 任何操作都回傳基礎設施錯誤
type brokenStore struct{}

var errDisk = errors.New("disk on fire")

func (brokenStore) FindByID(context.Context, string) (*domain.Account, error) { return nil, errDisk }
func (brokenStore) InsertIfAbsentByName(context.Context, string, string) (*domain.Account, error) {
	return nil, errDisk
}
func (brokenStore) AdjustBalance(context.Context, string, int64) (*domain.Account, error) {
	return nil, errDisk
}
func (brokenStore) Transfer(context.Context, domain.Transfer) (*domain.Account, *domain.Account, error) {
	return nil, nil, errDisk
}
func (brokenStore) Close() error { return nil }

func newEngine(t *testing.T, rates usecase.RateLookup, opts ...usecase.Option) *usecase.CoreUseCase {
	t.Helper()
	store, err := memory.NewMutexStore(nil)
	require.NoError(t, err)
	return usecase.NewCoreUseCase(store, rates, opts...)
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()
	c := newEngine(t, nil)

	acc, err := c.CreateAccount(ctx, "  alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Name)
	assert.Equal(t, int64(0), acc.Balance)
	assert.Equal(t, domain.DefaultCurrency, acc.Currency)

	_, err = c.CreateAccount(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrAccountAlreadyExists)
	assert.Equal(t, domain.KindAlreadyExists, domain.KindOf(err))

	_, err = c.CreateAccount(ctx, "   ")
	assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))
}

func TestCreateAccountDefaultCurrency(t *testing.T) {
	c := newEngine(t, nil, usecase.WithDefaultCurrency("eur"))
	acc, err := c.CreateAccount(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "EUR", acc.Currency)
}

func TestCreditDebitScenario(t *testing.T) {
	ctx := context.Background()
	c := newEngine(t, nil)

	acc, err := c.CreateAccount(ctx, "alice")
	require.NoError(t, err)

	got, err := c.Credit(ctx, acc.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Balance)

	got, err = c.Debit(ctx, acc.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(70), got.Balance)

	_, err = c.Debit(ctx, acc.ID, 71)
	assert.Equal(t, domain.KindInsufficientFunds, domain.KindOf(err))

	view, err := c.GetBalance(ctx, acc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(70), view.Account.Balance)
	assert.False(t, view.ConversionRequested())
}

func TestNonPositiveAmountsRejected(t *testing.T) {
	ctx := context.Background()
	c := newEngine(t, nil)
	a, err := c.CreateAccount(ctx, "a")
	require.NoError(t, err)
	b, err := c.CreateAccount(ctx, "b")
	require.NoError(t, err)

	for _, amount := range []int64{0, -1} {
		_, err = c.Credit(ctx, a.ID, amount)
		assert.Equal(t, domain.KindInvalidAmount, domain.KindOf(err), "credit %d", amount)
		_, err = c.Debit(ctx, a.ID, amount)
		assert.Equal(t, domain.KindInvalidAmount, domain.KindOf(err), "debit %d", amount)
		_, err = c.Transfer(ctx, a.ID, b.ID, amount)
		assert.Equal(t, domain.KindInvalidAmount, domain.KindOf(err), "transfer %d", amount)
	}
}

func TestNotFoundCarriesID(t *testing.T) {
	ctx := context.Background()
	c := newEngine(t, nil)

	_, err := c.GetBalance(ctx, "ghost", "")
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "ghost", de.Field("id"))

	_, err = c.Credit(ctx, "ghost", 5)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestTransferScenario(t *testing.T) {
	ctx := context.Background()
	c := newEngine(t, nil)
	a, _ := c.CreateAccount(ctx, "a")
	b, _ := c.CreateAccount(ctx, "b")
	_, err := c.Credit(ctx, a.ID, 50)
	require.NoError(t, err)

	res, err := c.Transfer(ctx, a.ID, b.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(30), res.From.Balance)
	assert.Equal(t, int64(20), res.To.Balance)
	assert.Equal(t, int64(20), res.Amount)

	_, err = c.Transfer(ctx, a.ID, b.ID, 31)
	assert.Equal(t, domain.KindInsufficientFunds, domain.KindOf(err))

	_, err = c.Transfer(ctx, a.ID, "ghost", 1)
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "to", de.Field("side"))
	assert.Equal(t, "ghost", de.Field("id"))

	va, _ := c.GetBalance(ctx, a.ID, "")
	vb, _ := c.GetBalance(ctx, b.ID, "")
	assert.Equal(t, int64(30), va.Account.Balance)
	assert.Equal(t, int64(20), vb.Account.Balance)
}

func TestSelfTransfer(t *testing.T) {
	ctx := context.Background()
	c := newEngine(t, nil)
	a, _ := c.CreateAccount(ctx, "a")
	_, _ = c.Credit(ctx, a.ID, 10)

	res, err := c.Transfer(ctx, a.ID, a.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.From.Balance)

	_, err = c.Transfer(ctx, a.ID, a.ID, 11)
	assert.Equal(t, domain.KindInsufficientFunds, domain.KindOf(err))
}

func TestGetBalanceWithConversion(t *testing.T) {
	ctx := context.Background()
	c := newEngine(t, fixedRates{rate: decimal.RequireFromString("0.5")})
	a, _ := c.CreateAccount(ctx, "a")
	_, _ = c.Credit(ctx, a.ID, 1050)

	view, err := c.GetBalance(ctx, a.ID, "eur")
	require.NoError(t, err)
	require.True(t, view.ConversionAvailable)
	assert.Equal(t, "EUR", view.Conversion.To)
	assert.True(t, view.Conversion.Amount.Equal(decimal.RequireFromString("5.25")))
	assert.True(t, view.Conversion.SourceAmount.Equal(decimal.RequireFromString("10.50")), "1050 minor units convert as 10.50")
	assert.Equal(t, int64(1050), view.Account.Balance)
}

func TestGetBalanceSameCurrencySkipsLookup(t *testing.T) {
	ctx := context.Background()
	c := newEngine(t, fixedRates{err: errors.New("should not be called")})
	a, _ := c.CreateAccount(ctx, "a")
	_, _ = c.Credit(ctx, a.ID, 200)

	view, err := c.GetBalance(ctx, a.ID, "USD")
	require.NoError(t, err)
	require.True(t, view.ConversionAvailable)
	assert.True(t, view.Conversion.Rate.Equal(decimal.NewFromInt(1)))
	assert.True(t, view.Conversion.Amount.Equal(decimal.NewFromInt(2)))
	assert.True(t, view.Conversion.SourceAmount.Equal(decimal.NewFromInt(2)))
}

func TestGetBalanceConversionFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		rates usecase.RateLookup
	}{
		{name: "lookup error", rates: fixedRates{err: errors.New("503")}},
		{name: "no lookup configured", rates: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newEngine(t, tt.rates)
			a, _ := c.CreateAccount(ctx, "a")
			_, _ = c.Credit(ctx, a.ID, 99)

			view, err := c.GetBalance(ctx, a.ID, "JPY")
			require.NoError(t, err)
			assert.False(t, view.ConversionAvailable)
			assert.Nil(t, view.Conversion)
			assert.True(t, view.ConversionRequested())
			assert.Equal(t, domain.KindConversionUnavailable, domain.KindOf(view.ConversionErr))
			assert.Equal(t, int64(99), view.Account.Balance)
		})
	}
}

func TestGetBalanceConversionTimeoutBounded(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	defer close(release)

	c := newEngine(t, stuckRates{release: release}, usecase.WithConversionTimeout(50*time.Millisecond))
	a, _ := c.CreateAccount(ctx, "a")

	start := time.Now()
	view, err := c.GetBalance(ctx, a.ID, "EUR")
	require.NoError(t, err)
	assert.False(t, view.ConversionAvailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGetBalanceInvalidCurrency(t *testing.T) {
	ctx := context.Background()
	c := newEngine(t, nil)
	a, _ := c.CreateAccount(ctx, "a")

	_, err := c.GetBalance(ctx, a.ID, "EURO")
	assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))
}

func TestStoreFailureIsUnavailable(t *testing.T) {
	ctx := context.Background()
	c := usecase.NewCoreUseCase(brokenStore{}, nil)

	_, err := c.CreateAccount(ctx, "a")
	assert.Equal(t, domain.KindUnavailable, domain.KindOf(err))
	assert.ErrorIs(t, err, errDisk)

	_, err = c.GetBalance(ctx, "x", "")
	assert.Equal(t, domain.KindUnavailable, domain.KindOf(err))
	_, err = c.Credit(ctx, "x", 1)
	assert.Equal(t, domain.KindUnavailable, domain.KindOf(err))
	_, err = c.Debit(ctx, "x", 1)
	assert.Equal(t, domain.KindUnavailable, domain.KindOf(err))
	_, err = c.Transfer(ctx, "x", "y", 1)
	assert.Equal(t, domain.KindUnavailable, domain.KindOf(err))
}

func TestConcurrentCreditsAreAllApplied(t *testing.T) {
	ctx := context.Background()
	c := newEngine(t, nil)
	a, _ := c.CreateAccount(ctx, "a")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Credit(ctx, a.ID, 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	view, err := c.GetBalance(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), view.Account.Balance)
}

func TestConcurrentDebitsRespectBalance(t *testing.T) {
	ctx := context.Background()
	c := newEngine(t, nil)
	a, _ := c.CreateAccount(ctx, "a")
	_, _ = c.Credit(ctx, a.ID, 100)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Debit(ctx, a.ID, 15); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	view, _ := c.GetBalance(ctx, a.ID, "")
	assert.Equal(t, 6, accepted)
	assert.Equal(t, int64(10), view.Account.Balance)
}

func TestConcurrentTransfersConserveTotal(t *testing.T) {
	ctx := context.Background()
	c := newEngine(t, nil)

	const n = 5
	ids := make([]string, n)
	for i := range ids {
		acc, err := c.CreateAccount(ctx, fmt.Sprintf("acc-%d", i))
		require.NoError(t, err)
		_, err = c.Credit(ctx, acc.ID, 500)
		require.NoError(t, err)
		ids[i] = acc.ID
	}

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				from, to := ids[(w+j)%n], ids[(w+2*j+1)%n]
				_, err := c.Transfer(ctx, from, to, int64(j%30+1))
				if err != nil {
					assert.Equal(t, domain.KindInsufficientFunds, domain.KindOf(err))
				}
			}
		}(w)
	}
	wg.Wait()

	var total int64
	for _, id := range ids {
		view, err := c.GetBalance(ctx, id, "")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, view.Account.Balance, int64(0))
		total += view.Account.Balance
	}
	assert.Equal(t, int64(n*500), total)
}

func TestConcurrentCreateSameName(t *testing.T) {
	ctx := context.Background()
	c := newEngine(t, nil)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids []string
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc, err := c.CreateAccount(ctx, "same")
			if err != nil {
				assert.Equal(t, domain.KindAlreadyExists, domain.KindOf(err))
				return
			}
			mu.Lock()
			ids = append(ids, acc.ID)
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 1)
}
