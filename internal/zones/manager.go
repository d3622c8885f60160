// Package zones orchestrates the active, trash and vault zones that live
// under one base directory.
package zones

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fruitsalade/vaultbox/internal/fault"
	"github.com/fruitsalade/vaultbox/internal/fsutil"
	"github.com/fruitsalade/vaultbox/internal/logging"
	"github.com/fruitsalade/vaultbox/internal/metrics"
	"github.com/fruitsalade/vaultbox/internal/quota"
	"github.com/fruitsalade/vaultbox/internal/storage"
)

// Zone names one of the three storage areas.
type Zone string

const (
	Active Zone = "active"
	Trash  Zone = "trash"
	Vault  Zone = "vault"
)

// ParseZone maps a client string to a Zone. Empty means Active.
func ParseZone(s string) (Zone, error) {
	switch Zone(strings.ToLower(s)) {
	case "", Active:
		return Active, nil
	case Trash:
		return Trash, nil
	case Vault:
		return Vault, nil
	}
	return "", fault.Invalid("zone", s, "unknown zone")
}

// Options configures a Manager.
type Options struct {
	BaseDir string
	Limits  quota.Limits
}

// Manager owns the three zones. It keeps no cache: every call reads the
// filesystem.
type Manager struct {
	base    string
	trash   string
	vault   string
	pending string
	mover   *storage.Mover

	mu     sync.RWMutex
	limits quota.Limits
}

// New creates the zone directories under opts.BaseDir if needed.
func New(opts Options) (*Manager, error) {
	if opts.BaseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if err := opts.Limits.Validate(); err != nil {
		return nil, err
	}
	base, err := filepath.Abs(opts.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}

	m := &Manager{
		base:    base,
		trash:   filepath.Join(base, storage.TrashDirName),
		vault:   filepath.Join(base, storage.VaultDirName),
		pending: filepath.Join(base, storage.PendingDirName),
		limits:  opts.Limits,
	}
	for _, dir := range []string{m.base, m.trash, m.vault} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	journal, err := storage.NewJournal(m.pending)
	if err != nil {
		return nil, err
	}
	m.mover = storage.NewMover(journal)
	return m, nil
}

// BaseDir returns the absolute base directory.
func (m *Manager) BaseDir() string { return m.base }

// Root returns the absolute root directory of a zone.
func (m *Manager) Root(z Zone) string {
	switch z {
	case Trash:
		return m.trash
	case Vault:
		return m.vault
	default:
		return m.base
	}
}

// VaultConfigPath is where the vault credential record lives.
func (m *Manager) VaultConfigPath() string {
	return filepath.Join(m.vault, storage.VaultConfigName)
}

// Resolve sanitizes rel and returns it with its absolute path in zone z.
// Paths through reserved entries are refused so the trash and vault cannot
// be reached through the active zone.
func (m *Manager) Resolve(z Zone, rel string) (abs, clean string, err error) {
	clean = fsutil.Sanitize(rel)
	if storage.HasReservedSegment(clean) {
		return "", clean, fault.Invalid("resolve", clean, "path is reserved")
	}
	abs, err = fsutil.JoinWithinRoot(m.Root(z), clean)
	if err != nil {
		return "", clean, err
	}
	return abs, clean, nil
}

// List returns the entry tree under path in zone z.
func (m *Manager) List(ctx context.Context, z Zone, rel string) ([]storage.Entry, error) {
	_, clean, err := m.Resolve(z, rel)
	if err != nil {
		return nil, err
	}
	entries, err := storage.List(ctx, m.Root(z), clean, true)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []storage.Entry{}
	}
	return entries, nil
}

// ListActive lists path in the active zone.
func (m *Manager) ListActive(ctx context.Context, rel string) ([]storage.Entry, error) {
	return m.List(ctx, Active, rel)
}

// ListTrash lists the whole trash zone.
func (m *Manager) ListTrash(ctx context.Context) ([]storage.Entry, error) {
	return m.List(ctx, Trash, "")
}

// ListVault lists the whole vault zone. Callers must have checked the vault
// token.
func (m *Manager) ListVault(ctx context.Context) ([]storage.Entry, error) {
	return m.List(ctx, Vault, "")
}

// parentDir resolves an active-zone folder that must already exist.
func (m *Manager) parentDir(op, rel string) (string, string, error) {
	abs, clean, err := m.Resolve(Active, rel)
	if err != nil {
		return "", "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", "", fault.Wrap(op, clean, err)
	}
	if !info.IsDir() {
		return "", "", fault.Invalid(op, clean, "not a directory")
	}
	return abs, clean, nil
}

// CreateFolder makes an empty folder name inside path. An existing entry with
// that name is a Conflict; no auto-renaming happens.
func (m *Manager) CreateFolder(rel, name string) (storage.Entry, error) {
	e, err := m.create("create folder", rel, name, func(target string) error {
		return os.Mkdir(target, 0755)
	})
	metrics.RecordZoneOperation("create_folder", err)
	return e, err
}

// CreateFile makes an empty file name inside path, failing with Conflict if
// anything already exists there.
func (m *Manager) CreateFile(rel, name string) (storage.Entry, error) {
	e, err := m.create("create file", rel, name, func(target string) error {
		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			return err
		}
		return f.Close()
	})
	metrics.RecordZoneOperation("create_file", err)
	return e, err
}

func (m *Manager) create(op, rel, name string, mk func(target string) error) (storage.Entry, error) {
	if err := storage.ValidateName(op, name); err != nil {
		return storage.Entry{}, err
	}
	dir, clean, err := m.parentDir(op, rel)
	if err != nil {
		return storage.Entry{}, err
	}

	target := filepath.Join(dir, name)
	childRel := path.Join(clean, name)

	unlock := m.mover.Lock(dir)
	err = mk(target)
	unlock()
	if errors.Is(err, fs.ErrExist) {
		return storage.Entry{}, fault.Conflict(op, childRel)
	}
	if err != nil {
		return storage.Entry{}, fault.Wrap(op, childRel, err)
	}

	logging.Info("entry created",
		zap.String("op", op), zap.String("zone", string(Active)), zap.String("path", childRel))
	return storage.Describe(m.base, childRel)
}

// Rename moves oldPath to newPath inside the active zone. Missing parents of
// newPath are created. It is a Conflict if newPath exists and NotFound if
// oldPath does not.
func (m *Manager) Rename(oldPath, newPath string) error {
	err := m.rename(oldPath, newPath)
	metrics.RecordZoneOperation("rename", err)
	return err
}

func (m *Manager) rename(oldPath, newPath string) error {
	const op = "rename"
	srcAbs, src, err := m.Resolve(Active, oldPath)
	if err != nil {
		return err
	}
	dstAbs, dst, err := m.Resolve(Active, newPath)
	if err != nil {
		return err
	}
	if src == "" || dst == "" {
		return fault.Invalid(op, src, "old and new names are required")
	}
	if err := storage.ValidateName(op, path.Base(dst)); err != nil {
		return err
	}
	srcInfo, err := os.Lstat(srcAbs)
	if err != nil {
		return fault.Wrap(op, src, err)
	}
	if src == dst {
		return nil
	}
	if strings.HasPrefix(dst, src+"/") {
		return fault.Invalid(op, dst, "cannot move a folder into itself")
	}

	dstDir := filepath.Dir(dstAbs)
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return fault.Wrap(op, dst, err)
	}

	unlock := m.mover.Lock(dstDir)
	defer unlock()

	if dstInfo, err := os.Lstat(dstAbs); err == nil {
		// A case-only rename on a case-insensitive filesystem finds itself.
		if !os.SameFile(srcInfo, dstInfo) {
			return fault.Conflict(op, dst)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fault.Wrap(op, dst, err)
	}

	if err := os.Rename(srcAbs, dstAbs); err != nil {
		return fault.Wrap(op, src, err)
	}
	logging.Info("entry renamed",
		zap.String("op", op), zap.String("zone", string(Active)),
		zap.String("path", src), zap.String("final", dst))
	return nil
}

// DeleteResult describes a delete into the trash.
type DeleteResult struct {
	WasDirectory bool
	TrashName    string
}

// Delete moves path from the active zone into the trash, suffixing the name
// if the trash already holds one like it.
func (m *Manager) Delete(rel string) (DeleteResult, error) {
	res, err := m.delete(rel)
	metrics.RecordZoneOperation("delete", err)
	return res, err
}

func (m *Manager) delete(rel string) (DeleteResult, error) {
	const op = "delete"
	abs, clean, err := m.Resolve(Active, rel)
	if err != nil {
		return DeleteResult{}, err
	}
	if clean == "" {
		return DeleteResult{}, fault.Invalid(op, clean, "cannot delete the root folder")
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return DeleteResult{}, fault.Wrap(op, clean, err)
	}

	final, err := m.mover.Move(abs, m.trash, path.Base(clean))
	if err != nil {
		logging.Warn("delete failed", zap.String("path", clean), zap.Error(err))
		return DeleteResult{}, err
	}
	name := filepath.Base(final)
	logging.Info("moved to trash",
		zap.String("op", op), zap.String("zone", string(Trash)),
		zap.String("path", clean), zap.String("final", name))
	return DeleteResult{WasDirectory: info.IsDir(), TrashName: name}, nil
}
