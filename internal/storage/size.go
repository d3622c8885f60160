package storage

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/fruitsalade/vaultbox/internal/fault"
)

// TotalBytes sums the sizes of all regular files under dir, skipping reserved
// names at every depth. A missing dir counts as empty.
func TotalBytes(ctx context.Context, dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if p != dir && IsReserved(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fault.Wrap("size", dir, err)
	}
	return total, nil
}
