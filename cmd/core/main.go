package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	grpc_adapter "github.com/JoeShih716/go-cash-ledger/internal/app/core/adapter/in/grpc"
	rest_adapter "github.com/JoeShih716/go-cash-ledger/internal/app/core/adapter/in/rest"
	memory_adapter "github.com/JoeShih716/go-cash-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-cash-ledger/internal/app/core/adapter/out/mysql"
	rates_adapter "github.com/JoeShih716/go-cash-ledger/internal/app/core/adapter/out/rates"
	"github.com/JoeShih716/go-cash-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-cash-ledger/internal/config"
	"github.com/JoeShih716/go-cash-ledger/pkg/cache"
	"github.com/JoeShih716/go-cash-ledger/pkg/httpclient"
	"github.com/JoeShih716/go-cash-ledger/pkg/logger"
	"github.com/JoeShih716/go-cash-ledger/pkg/mysql"
	"github.com/JoeShih716/go-cash-ledger/pkg/wal"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	envFile := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Logger
	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	if cfg.Log.Mode != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	err = run(cfg, zl)
	if err != nil {
		zl.Error("server exited with error", zap.Error(err))
	} else {
		zl.Info("server exited")
	}
	_ = zl.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run 啟動所有服務直到收到訊號，回傳前一定會關閉 Store (WAL)
func run(cfg config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 帳戶儲存層
	store, err := newStore(ctx, cfg, zl)
	if err != nil {
		return fmt.Errorf("init %s account store: %w", cfg.Store.Driver, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			zl.Error("failed to close account store", zap.Error(err))
		}
	}()

	// 4. 匯率服務 (可選)
	rates, closeRates := newRateLookup(ctx, cfg, zl)
	defer closeRates()

	// 5. 帳本引擎
	core := usecase.NewCoreUseCase(store, rates,
		usecase.WithDefaultCurrency(cfg.Ledger.DefaultCurrency),
		usecase.WithConversionTimeout(cfg.Rates.Timeout),
		usecase.WithLogger(zl.Named("ledger")),
	)

	// 6. 啟動 HTTP / gRPC
	var grpcLis net.Listener
	if cfg.GRPC.Addr != "" {
		if grpcLis, err = net.Listen("tcp", cfg.GRPC.Addr); err != nil {
			return fmt.Errorf("listen grpc %s: %w", cfg.GRPC.Addr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTP.Addr != "" {
		srv := &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      rest_adapter.NewRouter(core, zl.Named("http")),
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		}
		g.Go(func() error {
			zl.Info("starting http server", zap.String("addr", cfg.HTTP.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if grpcLis != nil {
		s := grpc.NewServer(grpc.UnaryInterceptor(grpc_adapter.UnaryLogger(zl.Named("grpc"))))
		grpc_adapter.RegisterLedgerServer(s, grpc_adapter.NewGrpcServer(core))
		g.Go(func() error {
			zl.Info("starting grpc server", zap.String("addr", cfg.GRPC.Addr))
			return s.Serve(grpcLis)
		})
		g.Go(func() error {
			<-gctx.Done()
			s.GracefulStop()
			return nil
		})
	}

	return g.Wait()
}

// newStore 依設定選擇記憶體 (WAL) 或 MySQL
func newStore(ctx context.Context, cfg config.Config, zl *zap.Logger) (usecase.AccountStore, error) {
	switch cfg.Store.Driver {
	case config.StoreMySQL:
		dbClient, err := mysql.NewClient(cfg.MySQL, zl.Named("mysql"))
		if err != nil {
			return nil, err
		}
		store := mysql_adapter.NewMySQLStore(dbClient)
		if err := store.AutoMigrate(ctx); err != nil {
			_ = dbClient.Close()
			return nil, err
		}
		zl.Info("connected to mysql", zap.String("host", cfg.MySQL.Host), zap.String("db", cfg.MySQL.DBName))
		return store, nil
	default:
		var w *wal.WAL
		if cfg.Store.WALPath != "" {
			var opts []wal.Option
			if !cfg.Store.WALSync {
				opts = append(opts, wal.WithoutSync())
			}
			var err error
			if w, err = wal.NewWAL(cfg.Store.WALPath, opts...); err != nil {
				return nil, err
			}
		}
		store, err := memory_adapter.NewMutexStore(w)
		if err != nil {
			if w != nil {
				_ = w.Close()
			}
			return nil, err
		}
		zl.Info("memory store ready",
			zap.String("wal", cfg.Store.WALPath),
			zap.Int("accounts", len(store.Accounts())),
		)
		return store, nil
	}
}

// newRateLookup 沒有設定 CONVERT_URL 時回傳 nil，餘額換算一律回報不可用
func newRateLookup(ctx context.Context, cfg config.Config, zl *zap.Logger) (usecase.RateLookup, func()) {
	noop := func() {}
	if cfg.Rates.URL == "" {
		zl.Warn("CONVERT_URL is not set, balance conversion disabled")
		return nil, noop
	}

	var lookup usecase.RateLookup = rates_adapter.NewHTTPLookup(
		cfg.Rates.URL,
		cfg.Rates.APIKey,
		httpclient.New(httpclient.WithClientTimeout(cfg.Rates.Timeout)),
		rates_adapter.WithRateLimit(cfg.Rates.RPS, cfg.Rates.Burst),
		rates_adapter.WithLogger(zl.Named("rates")),
	)

	if cfg.Redis.Addr == "" {
		return lookup, noop
	}
	client, closer, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		zl.Warn("redis unavailable, rate cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		return lookup, noop
	}
	return rates_adapter.NewCachedLookup(lookup, client, cfg.Rates.CacheTTL, zl.Named("rates")), closer
}
