// Package webdav exposes the active zone over WebDAV.
package webdav

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/net/webdav"

	"github.com/fruitsalade/vaultbox/internal/fault"
	"github.com/fruitsalade/vaultbox/internal/fsutil"
	"github.com/fruitsalade/vaultbox/internal/logging"
	"github.com/fruitsalade/vaultbox/internal/quota"
	"github.com/fruitsalade/vaultbox/internal/storage"
	"github.com/fruitsalade/vaultbox/internal/zones"
)

// ActiveFS implements webdav.FileSystem over the active zone. Reserved
// entries are invisible and deletes go to the trash.
type ActiveFS struct {
	zones *zones.Manager
	dir   webdav.Dir
}

var _ webdav.FileSystem = (*ActiveFS)(nil)

// NewFS returns a WebDAV file system rooted at the active zone.
func NewFS(m *zones.Manager) *ActiveFS {
	return &ActiveFS{zones: m, dir: webdav.Dir(m.BaseDir())}
}

// resolve sanitizes a WebDAV name. Reserved paths report as missing.
func (a *ActiveFS) resolve(name string) (string, error) {
	clean := fsutil.Sanitize(name)
	if storage.HasReservedSegment(clean) {
		return "", os.ErrNotExist
	}
	return clean, nil
}

func (a *ActiveFS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	clean, err := a.resolve(name)
	if err != nil {
		return err
	}
	return a.dir.Mkdir(ctx, "/"+clean, perm)
}

func (a *ActiveFS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	clean, err := a.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := a.dir.OpenFile(ctx, "/"+clean, flag, perm)
	if err != nil {
		return nil, err
	}
	df := &davFile{File: f}
	if flag&(os.O_WRONLY|os.O_RDWR) != 0 {
		limits := a.zones.Limits()
		df.abs = filepath.Join(a.zones.BaseDir(), filepath.FromSlash(clean))
		df.rel = clean
		df.limit = limits.FileSizeLimit
		df.quota = limits
		// Measured after the open so a truncated overwrite is not counted.
		used, err := a.zones.ActiveBytes(ctx)
		if err != nil {
			f.Close()
			return nil, osError(err)
		}
		df.used = used
		if info, err := f.Stat(); err == nil {
			df.used -= info.Size()
		}
	}
	return df, nil
}

// RemoveAll moves name into the trash instead of deleting it.
func (a *ActiveFS) RemoveAll(ctx context.Context, name string) error {
	clean, err := a.resolve(name)
	if err != nil {
		return err
	}
	if clean == "" {
		return os.ErrPermission
	}
	_, err = a.zones.Delete(clean)
	return osError(err)
}

func (a *ActiveFS) Rename(ctx context.Context, oldName, newName string) error {
	oldClean, err := a.resolve(oldName)
	if err != nil {
		return err
	}
	newClean, err := a.resolve(newName)
	if err != nil {
		return os.ErrPermission
	}
	return osError(a.zones.Rename(oldClean, newClean))
}

func (a *ActiveFS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	clean, err := a.resolve(name)
	if err != nil {
		return nil, err
	}
	return a.dir.Stat(ctx, "/"+clean)
}

// osError converts zone errors to the os errors the WebDAV handler maps to
// status codes.
func osError(err error) error {
	if err == nil {
		return nil
	}
	switch fault.KindOf(err) {
	case fault.KindNotFound:
		return os.ErrNotExist
	case fault.KindConflict:
		return os.ErrExist
	case fault.KindInvalidInput, fault.KindUnauthorized:
		return os.ErrPermission
	}
	return err
}

var errTooLarge = errors.New("file exceeds the upload size limit")

// davFile hides reserved entries from directory reads. Writable files stop
// accepting data past the per-file limit or the storage limit and are
// removed on Close.
type davFile struct {
	webdav.File

	abs     string
	rel     string
	limit   int64
	quota   quota.Limits
	used    int64
	written int64
	reject  error
}

func (f *davFile) Readdir(count int) ([]fs.FileInfo, error) {
	var out []fs.FileInfo
	for {
		infos, err := f.File.Readdir(count)
		for _, fi := range infos {
			if !storage.IsReserved(fi.Name()) {
				out = append(out, fi)
			}
		}
		if count <= 0 || len(out) > 0 || err != nil {
			return out, err
		}
	}
}

func (f *davFile) Write(p []byte) (int, error) {
	if f.reject != nil {
		return 0, f.reject
	}
	next := f.written + int64(len(p))
	if f.limit > 0 && next > f.limit {
		f.reject = errTooLarge
		return 0, f.reject
	}
	if f.quota.StorageLimit > 0 {
		if err := f.quota.CheckStorage(f.used, next); err != nil {
			f.reject = err
			return 0, err
		}
	}
	n, err := f.File.Write(p)
	f.written += int64(n)
	return n, err
}

func (f *davFile) Close() error {
	err := f.File.Close()
	if f.reject != nil {
		logging.Warn("webdav upload rejected",
			zap.String("path", f.rel), zap.Error(f.reject))
		if rmErr := os.Remove(f.abs); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return rmErr
		}
		return f.reject
	}
	return err
}
