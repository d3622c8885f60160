// Package quota holds the storage limits applied to the active zone and the
// login rate limiter.
package quota

import (
	"fmt"

	"github.com/fruitsalade/vaultbox/internal/fault"
)

// Limits are the byte limits for the active zone.
type Limits struct {
	StorageLimit  int64 `json:"storageLimit" yaml:"storage_limit"`
	FileSizeLimit int64 `json:"fileSizeLimit" yaml:"file_size_limit"`
}

// Validate rejects non-positive limits.
func (l Limits) Validate() error {
	if l.StorageLimit <= 0 {
		return fault.Invalid("limits", "", "storage limit must be greater than 0")
	}
	if l.FileSizeLimit <= 0 {
		return fault.Invalid("limits", "", "file size limit must be greater than 0")
	}
	return nil
}

// CheckFile rejects a single file larger than the per-file limit.
func (l Limits) CheckFile(name string, size int64) error {
	if size > l.FileSizeLimit {
		return fault.Invalid("upload", name,
			fmt.Sprintf("file too large: %d bytes exceeds limit of %d", size, l.FileSizeLimit))
	}
	return nil
}

// CheckStorage rejects a write of incoming bytes when used+incoming would
// exceed the storage limit.
func (l Limits) CheckStorage(used, incoming int64) error {
	if used+incoming > l.StorageLimit {
		return fault.New(fault.KindInvalidInput, "upload", "",
			fmt.Errorf("%w: %d of %d bytes used, %d requested",
				fault.ErrQuotaExceeded, used, l.StorageLimit, incoming))
	}
	return nil
}
