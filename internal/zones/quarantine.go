package zones

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fruitsalade/vaultbox/internal/fault"
	"github.com/fruitsalade/vaultbox/internal/fsutil"
	"github.com/fruitsalade/vaultbox/internal/logging"
	"github.com/fruitsalade/vaultbox/internal/metrics"
	"github.com/fruitsalade/vaultbox/internal/storage"
)

// BulkResult lists what a best-effort bulk operation processed. Failed
// entries are also reported through the returned error.
type BulkResult struct {
	Done   []string
	Failed map[string]error
}

func (r *BulkResult) fail(name string, err error) error {
	if r.Failed == nil {
		r.Failed = make(map[string]error)
	}
	r.Failed[name] = err
	return fmt.Errorf("%s: %w", name, err)
}

// MoveResult names where a restored or archived entry ended up.
type MoveResult struct {
	Zone Zone
	Name string
	Path string
}

// topLevel returns the visible top-level names in a zone root.
func topLevel(root string) ([]string, error) {
	children, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, c := range children {
		if !storage.IsReserved(c.Name()) {
			names = append(names, c.Name())
		}
	}
	return names, nil
}

// DeleteAll moves every top-level active entry into the trash, one move each.
// Entries already moved stay moved when a later one fails.
func (m *Manager) DeleteAll() (BulkResult, error) {
	var res BulkResult
	names, err := topLevel(m.base)
	if err != nil {
		err = fault.Wrap("delete all", "", err)
		metrics.RecordZoneOperation("delete_all", err)
		return res, err
	}

	var errs error
	for _, name := range names {
		final, err := m.mover.Move(filepath.Join(m.base, name), m.trash, name)
		if err != nil {
			errs = multierr.Append(errs, res.fail(name, err))
			continue
		}
		res.Done = append(res.Done, filepath.Base(final))
	}

	logging.Info("moved all entries to trash",
		zap.String("op", "delete_all"),
		zap.Int("moved", len(res.Done)),
		zap.Int("failed", len(res.Failed)))
	if errs != nil {
		errs = fault.New(fault.KindIO, "delete all", "", errs)
	}
	metrics.RecordZoneOperation("delete_all", errs)
	return res, errs
}

// EmptyTrash permanently removes everything in the trash.
func (m *Manager) EmptyTrash() (BulkResult, error) {
	var res BulkResult
	names, err := topLevel(m.trash)
	if err != nil {
		err = fault.Wrap("empty trash", "", err)
		metrics.RecordZoneOperation("empty_trash", err)
		return res, err
	}

	var errs error
	for _, name := range names {
		if err := os.RemoveAll(filepath.Join(m.trash, name)); err != nil {
			errs = multierr.Append(errs, res.fail(name, err))
			continue
		}
		res.Done = append(res.Done, name)
	}

	logging.Info("trash emptied",
		zap.String("op", "empty_trash"),
		zap.Int("removed", len(res.Done)),
		zap.Int("failed", len(res.Failed)))
	if errs != nil {
		errs = fault.New(fault.KindIO, "empty trash", "", errs)
	}
	metrics.RecordZoneOperation("empty_trash", errs)
	return res, errs
}

// DeleteFromTrash permanently removes one trash entry.
func (m *Manager) DeleteFromTrash(name string) error {
	err := m.purge(Trash, "delete from trash", name)
	metrics.RecordZoneOperation("delete_from_trash", err)
	return err
}

// DeleteFromVault permanently removes one vault entry. Callers must have
// checked the vault token.
func (m *Manager) DeleteFromVault(name string) error {
	err := m.purge(Vault, "delete from vault", name)
	metrics.RecordZoneOperation("delete_from_vault", err)
	return err
}

func (m *Manager) purge(z Zone, op, name string) error {
	abs, clean, err := m.Resolve(z, name)
	if err != nil {
		return err
	}
	if clean == "" {
		return fault.Invalid(op, clean, "name is required")
	}
	if _, err := os.Lstat(abs); err != nil {
		return fault.Wrap(op, clean, err)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fault.Wrap(op, clean, err)
	}
	logging.Info("entry removed permanently",
		zap.String("op", op), zap.String("zone", string(z)), zap.String("path", clean))
	return nil
}

// RestoreFromTrash moves a trash entry back to the active zone root,
// suffixing the name on collision.
func (m *Manager) RestoreFromTrash(name string) (MoveResult, error) {
	res, err := m.relocate(Trash, Active, "restore from trash", name, false)
	metrics.RecordZoneOperation("restore_from_trash", err)
	return res, err
}

// RestoreFromVault moves a vault entry back to the active zone root,
// suffixing the name on collision. Callers must have checked the vault token.
func (m *Manager) RestoreFromVault(name string) (MoveResult, error) {
	res, err := m.relocate(Vault, Active, "restore from vault", name, false)
	metrics.RecordZoneOperation("restore_from_vault", err)
	return res, err
}

// ArchiveToVault moves an active entry into the vault root. Folders are
// copied then removed under a journal marker; files are renamed. Callers
// must have checked the vault token.
func (m *Manager) ArchiveToVault(rel string) (MoveResult, error) {
	res, err := m.relocate(Active, Vault, "archive", rel, true)
	metrics.RecordZoneOperation("archive_to_vault", err)
	return res, err
}

func (m *Manager) relocate(from, to Zone, op, rel string, copyDirs bool) (MoveResult, error) {
	abs, clean, err := m.Resolve(from, rel)
	if err != nil {
		return MoveResult{}, err
	}
	if clean == "" {
		return MoveResult{}, fault.Invalid(op, clean, "path is required")
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return MoveResult{}, fault.Wrap(op, clean, err)
	}

	base := path.Base(clean)
	var final string
	if copyDirs && info.IsDir() {
		final, err = m.mover.Transfer(abs, m.Root(to), base)
	} else {
		final, err = m.mover.Move(abs, m.Root(to), base)
	}
	if err != nil {
		logging.Warn("move between zones failed",
			zap.String("op", op), zap.String("path", clean), zap.Error(err))
		return MoveResult{}, err
	}

	name := filepath.Base(final)
	logging.Info("entry moved",
		zap.String("op", op),
		zap.String("zone", string(to)),
		zap.String("path", clean),
		zap.String("final", name))
	return MoveResult{Zone: to, Name: name, Path: fsutil.RelToRoot(m.Root(to), final)}, nil
}

// Recover settles transfers interrupted by a crash. Run it before serving.
func (m *Manager) Recover() (storage.RecoverReport, error) {
	report, err := m.mover.Recover()
	metrics.RecordRecovered(report.Completed, report.RolledBack, report.Dropped)
	if report.Total() > 0 {
		logging.Info("pending transfers recovered",
			zap.Int("completed", report.Completed),
			zap.Int("rolled_back", report.RolledBack),
			zap.Int("dropped", report.Dropped))
	}
	return report, err
}
