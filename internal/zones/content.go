package zones

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fruitsalade/vaultbox/internal/fault"
	"github.com/fruitsalade/vaultbox/internal/fsutil"
	"github.com/fruitsalade/vaultbox/internal/logging"
	"github.com/fruitsalade/vaultbox/internal/metrics"
	"github.com/fruitsalade/vaultbox/internal/storage"
)

// Upload writes r as dir/name in the active zone. name may carry a relative
// sub-path (folder uploads); its parents are created. size is the declared
// length or -1 when unknown. The file appears atomically and never replaces
// an existing entry.
func (m *Manager) Upload(ctx context.Context, dir, name string, r io.Reader, size int64) (storage.Entry, error) {
	e, n, err := m.upload(ctx, dir, name, r, size)
	metrics.RecordUpload(n, err == nil)
	if errors.Is(err, fault.ErrQuotaExceeded) {
		metrics.RecordQuotaExceeded("storage")
	}
	return e, err
}

func (m *Manager) upload(ctx context.Context, dir, name string, r io.Reader, size int64) (storage.Entry, int64, error) {
	const op = "upload"
	dirAbs, dirClean, err := m.parentDir(op, dir)
	if err != nil {
		return storage.Entry{}, 0, err
	}
	sub := fsutil.Sanitize(name)
	if sub == "" {
		return storage.Entry{}, 0, fault.Invalid(op, name, "file name is required")
	}
	for _, seg := range strings.Split(sub, "/") {
		if err := storage.ValidateName(op, seg); err != nil {
			return storage.Entry{}, 0, err
		}
	}
	rel := path.Join(dirClean, sub)
	target := filepath.Join(dirAbs, filepath.FromSlash(sub))

	limits := m.Limits()
	used, err := m.ActiveBytes(ctx)
	if err != nil {
		return storage.Entry{}, 0, err
	}
	if size >= 0 {
		if err := limits.CheckFile(rel, size); err != nil {
			return storage.Entry{}, 0, err
		}
		if err := limits.CheckStorage(used, size); err != nil {
			return storage.Entry{}, 0, err
		}
	}

	if _, err := os.Lstat(target); err == nil {
		return storage.Entry{}, 0, fault.Conflict(op, rel)
	}

	// Staged in dirAbs so a rejected upload leaves no sub-path folders.
	tmp, err := os.CreateTemp(dirAbs, storage.TempPattern())
	if err != nil {
		return storage.Entry{}, 0, fault.Wrap(op, rel, err)
	}
	tmpName := tmp.Name()
	discard := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	n, err := io.Copy(tmp, io.LimitReader(r, limits.FileSizeLimit+1))
	if err != nil {
		discard()
		return storage.Entry{}, n, fault.New(fault.KindIO, op, rel, err)
	}
	if err := limits.CheckFile(rel, n); err != nil {
		discard()
		return storage.Entry{}, n, err
	}
	if err := limits.CheckStorage(used, n); err != nil {
		discard()
		return storage.Entry{}, n, err
	}
	if err := tmp.Sync(); err != nil {
		discard()
		return storage.Entry{}, n, fault.Wrap(op, rel, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return storage.Entry{}, n, fault.Wrap(op, rel, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return storage.Entry{}, n, fault.Wrap(op, rel, err)
	}

	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0755); err != nil {
		os.Remove(tmpName)
		return storage.Entry{}, n, fault.Wrap(op, rel, err)
	}

	unlock := m.mover.Lock(parent)
	_, statErr := os.Lstat(target)
	if statErr == nil {
		unlock()
		os.Remove(tmpName)
		return storage.Entry{}, n, fault.Conflict(op, rel)
	}
	err = os.Rename(tmpName, target)
	unlock()
	if err != nil {
		os.Remove(tmpName)
		return storage.Entry{}, n, fault.Wrap(op, rel, err)
	}

	logging.Info("file uploaded",
		zap.String("op", op), zap.String("zone", string(Active)),
		zap.String("path", rel), zap.Int64("size", n))
	e, err := storage.Describe(m.base, rel)
	return e, n, err
}

// ReadContent returns the text of an active-zone file no larger than max
// bytes.
func (m *Manager) ReadContent(rel string, max int64) (string, error) {
	const op = "read content"
	abs, clean, err := m.Resolve(Active, rel)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fault.Wrap(op, clean, err)
	}
	if info.IsDir() {
		return "", fault.Invalid(op, clean, "not a file")
	}
	if info.Size() > max {
		return "", fault.Invalid(op, clean, "file too large to edit")
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fault.Wrap(op, clean, err)
	}
	return string(data), nil
}

// WriteContent atomically replaces the content of an existing active-zone
// file. Growth is checked against the storage limit.
func (m *Manager) WriteContent(ctx context.Context, rel, content string) (storage.Entry, error) {
	e, err := m.writeContent(ctx, rel, content)
	metrics.RecordZoneOperation("write_content", err)
	return e, err
}

func (m *Manager) writeContent(ctx context.Context, rel, content string) (storage.Entry, error) {
	const op = "write content"
	abs, clean, err := m.Resolve(Active, rel)
	if err != nil {
		return storage.Entry{}, err
	}
	if clean == "" {
		return storage.Entry{}, fault.Invalid(op, clean, "path is required")
	}
	info, err := os.Stat(abs)
	if err != nil {
		return storage.Entry{}, fault.Wrap(op, clean, err)
	}
	if !info.Mode().IsRegular() {
		return storage.Entry{}, fault.Invalid(op, clean, "not a file")
	}

	limits := m.Limits()
	size := int64(len(content))
	if err := limits.CheckFile(clean, size); err != nil {
		return storage.Entry{}, err
	}
	if growth := size - info.Size(); growth > 0 {
		used, err := m.ActiveBytes(ctx)
		if err != nil {
			return storage.Entry{}, err
		}
		if err := limits.CheckStorage(used, growth); err != nil {
			metrics.RecordQuotaExceeded("storage")
			return storage.Entry{}, err
		}
	}

	if err := storage.WriteFileAtomic(abs, []byte(content), info.Mode().Perm()); err != nil {
		return storage.Entry{}, fault.New(fault.KindIO, op, clean, err)
	}
	logging.Info("file content saved",
		zap.String("op", op), zap.String("path", clean), zap.Int64("size", size))
	return storage.Describe(m.base, clean)
}

// Open opens a file or folder in zone z for reading.
func (m *Manager) Open(z Zone, rel string) (*os.File, fs.FileInfo, error) {
	abs, clean, err := m.Resolve(z, rel)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, nil, fault.Wrap("open", clean, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fault.Wrap("open", clean, err)
	}
	return f, info, nil
}
