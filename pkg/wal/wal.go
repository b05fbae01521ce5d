package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// 自己定義常用的權限常量
const (
	// rw-r--r-- (擁有者讀寫，其他人唯讀) - 適用於大多數檔案
	FileModeReadOnly fs.FileMode = 0644

	// rw------- (只有擁有者可讀寫) - 適用於私鑰、機密檔
	FileModePrivate fs.FileMode = 0600
)

// WAL 以 JSON Lines 格式追加寫入的 Write-Ahead Log
type WAL struct {
	file *os.File
	mu   sync.Mutex
	// 每次寫入後是否 fsync
	syncOnWrite bool
}

// Option 定義 WAL 的配置選項函數
type Option func(*WAL)

// WithoutSync 寫入後不呼叫 fsync (測試或可容忍遺失時使用)
func WithoutSync() Option {
	return func(w *WAL) {
		w.syncOnWrite = false
	}
}

// NewWAL 開啟或建立一個 WAL 檔案
// O_RDWR讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string, opts ...Option) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModeReadOnly)
	if err != nil {
		return nil, fmt.Errorf("open wal %s: %w", path, err)
	}
	w := &WAL{file: file, syncOnWrite: true}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Write 寫入一筆資料，一筆一行
func (w *WAL) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(line); err != nil {
		return err
	}
	if w.syncOnWrite {
		return w.file.Sync()
	}
	return nil
}

// Sync 強制刷入硬碟
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Close 刷入並關閉檔案
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

// ReadAll 從頭讀取所有資料
// callback 接收單筆 JSON，這樣可以避免一次將所有資料載入記憶體
//
// 檔尾若有寫到一半的紀錄 (crash 當下)，會被截斷；
// 這筆紀錄從未回覆成功給呼叫端，丟棄是安全的。
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 確保從頭讀取
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	var good int64
	for {
		var raw json.RawMessage
		err := decoder.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return w.file.Truncate(good)
		}
		if err != nil {
			return fmt.Errorf("wal corrupted at offset %d: %w", good, err)
		}
		if err := callback(raw); err != nil {
			return err
		}
		good = decoder.InputOffset()
	}
}
