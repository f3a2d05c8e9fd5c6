package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/iudanet/ledgersync/internal/storage"
)

// Пороги, после которых Health.Warnings сообщает о проблеме
const (
	MaxResponseTime  = time.Second
	MaxFragmentation = 20.0     // процент свободных страниц
	MaxWALSize       = 50 << 20 // байт
)

// Health снимок состояния файла базы
type Health struct {
	Integrity     string        `json:"integrity"` // Integrity "ok" или первая строка quick_check
	PageSize      int64         `json:"page_size"`
	PageCount     int64         `json:"page_count"`
	FreelistCount int64         `json:"freelist_count"`
	WALSize       int64         `json:"wal_size"`      // WALSize размер файла -wal в байтах
	ResponseTime  time.Duration `json:"response_time"` // ResponseTime время ответа на SELECT 1
}

// OK reports whether the integrity check passed.
func (h *Health) OK() bool {
	return h.Integrity == "ok"
}

// Size returns the database size in bytes.
func (h *Health) Size() int64 {
	return h.PageSize * h.PageCount
}

// Fragmentation returns the share of free pages in percent.
func (h *Health) Fragmentation() float64 {
	return float64(h.FreelistCount) / float64(max(h.PageCount, 1)) * 100
}

// Warnings lists every threshold the snapshot exceeds.
func (h *Health) Warnings() []string {
	var warnings []string
	if !h.OK() {
		warnings = append(warnings, "integrity check failed: "+h.Integrity)
	}
	if h.ResponseTime > MaxResponseTime {
		warnings = append(warnings, fmt.Sprintf("slow response: %s", h.ResponseTime))
	}
	if f := h.Fragmentation(); f > MaxFragmentation {
		warnings = append(warnings, fmt.Sprintf("fragmentation %.1f%%, consider VACUUM", f))
	}
	if h.WALSize > MaxWALSize {
		warnings = append(warnings, fmt.Sprintf("WAL file is %d MiB, consider a checkpoint", h.WALSize>>20))
	}
	return warnings
}

// Health runs a quick integrity check and collects file statistics.
func (s *Storage) Health(ctx context.Context) (*Health, error) {
	var h Health

	start := time.Now()
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return nil, storage.Fail("health", err)
	}
	h.ResponseTime = time.Since(start)

	pragmas := []struct {
		dst  *int64
		name string
	}{
		{&h.PageSize, "page_size"},
		{&h.PageCount, "page_count"},
		{&h.FreelistCount, "freelist_count"},
	}
	for _, p := range pragmas {
		if err := s.db.QueryRowContext(ctx, "PRAGMA "+p.name).Scan(p.dst); err != nil {
			return nil, storage.Fail("health "+p.name, err)
		}
	}

	if err := s.db.QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&h.Integrity); err != nil {
		return nil, storage.Fail("health quick_check", err)
	}

	size, err := s.walSize()
	if err != nil {
		return nil, storage.Fail("health wal", err)
	}
	h.WALSize = size

	return &h, nil
}

// walSize возвращает 0, если файла -wal нет или база в памяти
func (s *Storage) walSize() (int64, error) {
	path, _, _ := strings.Cut(s.path, "?")
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return 0, nil
	}
	info, err := os.Stat(path + "-wal")
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
