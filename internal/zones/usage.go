package zones

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/fruitsalade/vaultbox/internal/logging"
	"github.com/fruitsalade/vaultbox/internal/metrics"
	"github.com/fruitsalade/vaultbox/internal/quota"
	"github.com/fruitsalade/vaultbox/internal/storage"
)

// StorageInfo reports active-zone usage against the storage limit.
type StorageInfo struct {
	Total      int64   `json:"total"`
	Used       int64   `json:"used"`
	Percentage float64 `json:"percentage"`
	Free       int64   `json:"free"`
	TrashBytes int64   `json:"trashBytes"`
	VaultBytes int64   `json:"vaultBytes"`
	DiskFree   *int64  `json:"diskFree,omitempty"`
}

// Limits returns the limits currently in force.
func (m *Manager) Limits() quota.Limits {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.limits
}

// UpdateConfig swaps the limits in force.
func (m *Manager) UpdateConfig(l quota.Limits) error {
	if err := l.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	old := m.limits
	m.limits = l
	m.mu.Unlock()

	logging.Info("storage limits updated",
		zap.Int64("storage_limit", l.StorageLimit),
		zap.Int64("file_size_limit", l.FileSizeLimit),
		zap.Int64("previous_storage_limit", old.StorageLimit))
	return nil
}

// ActiveBytes sums the active zone.
func (m *Manager) ActiveBytes(ctx context.Context) (int64, error) {
	return storage.TotalBytes(ctx, m.base)
}

// StorageInfo sums every zone. The active zone counts against the limit;
// trash and vault are reported separately.
func (m *Manager) StorageInfo(ctx context.Context) (StorageInfo, error) {
	used, err := storage.TotalBytes(ctx, m.base)
	if err != nil {
		return StorageInfo{}, err
	}
	trash, err := storage.TotalBytes(ctx, m.trash)
	if err != nil {
		return StorageInfo{}, err
	}
	vault, err := storage.TotalBytes(ctx, m.vault)
	if err != nil {
		return StorageInfo{}, err
	}

	info := Usage(used, m.Limits().StorageLimit)
	info.TrashBytes = trash
	info.VaultBytes = vault
	if free, ok := storage.DiskFree(m.base); ok {
		info.DiskFree = &free
	}

	metrics.SetZoneBytes(string(Active), used)
	metrics.SetZoneBytes(string(Trash), trash)
	metrics.SetZoneBytes(string(Vault), vault)
	return info, nil
}

// Usage computes used/total/percentage/free. Percentage has one decimal
// and is clamped to [0, 100]; free never goes negative.
func Usage(used, total int64) StorageInfo {
	var pct float64
	if total > 0 {
		pct = math.Round(float64(used)/float64(total)*1000) / 10
	}
	pct = math.Min(100, math.Max(0, pct))

	free := total - used
	if free < 0 {
		free = 0
	}
	return StorageInfo{Total: total, Used: used, Percentage: pct, Free: free}
}
