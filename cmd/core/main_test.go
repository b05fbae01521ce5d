package main

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	memory_adapter "github.com/JoeShih716/go-cash-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-cash-ledger/internal/config"
	"github.com/JoeShih716/go-cash-ledger/pkg/wal"
)

func TestRunReturnsListenErrorAndClosesStore(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := config.Default()
	cfg.HTTP.Addr = ""
	cfg.GRPC.Addr = busy.Addr().String()
	cfg.Store.WALPath = filepath.Join(t.TempDir(), "wal.log")

	err = run(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen grpc")

	// WAL 已關閉，可以重新開啟並回放
	w, err := wal.NewWAL(cfg.Store.WALPath)
	require.NoError(t, err)
	s, err := memory_adapter.NewMutexStore(w)
	require.NoError(t, err)
	assert.Empty(t, s.Accounts())
	require.NoError(t, s.Close())
}

func TestRunRejectsBrokenStore(t *testing.T) {
	cfg := config.Default()
	cfg.Store.WALPath = filepath.Join(t.TempDir(), "missing-dir", "wal.log")

	err := run(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init memory account store")
}
