package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/otiai10/copy"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fruitsalade/vaultbox/internal/fault"
	"github.com/fruitsalade/vaultbox/internal/logging"
)

// Mover moves entries between zone directories without overwriting anything.
// Candidate selection and the move itself run under a lock keyed by the
// destination directory.
type Mover struct {
	journal *Journal

	mu    sync.Mutex
	locks map[string]*dirLock
}

type dirLock struct {
	mu   sync.Mutex
	refs int
}

// NewMover creates a mover that journals copy-then-remove transfers.
func NewMover(journal *Journal) *Mover {
	return &Mover{
		journal: journal,
		locks:   make(map[string]*dirLock),
	}
}

// Lock acquires the lock for a destination directory. Callers creating
// entries directly in dir use it so they cannot race a move into dir.
func (m *Mover) Lock(dir string) (unlock func()) {
	dir = filepath.Clean(dir)

	m.mu.Lock()
	l, ok := m.locks[dir]
	if !ok {
		l = &dirLock{}
		m.locks[dir] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, dir)
		}
		m.mu.Unlock()
	}
}

// CandidateName returns name with a numeric suffix: before the extension for
// files, after the whole name for directories and dotfiles.
func CandidateName(name string, n int, isDir bool) string {
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	if isDir || ext == name {
		ext = ""
	}
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s_%d%s", base, n, ext)
}

// FreeName finds the first name, counting from the plain name and then _1,
// _2, ..., that does not exist in dir. Callers must hold Lock(dir).
func FreeName(dir, name string, isDir bool) (string, error) {
	for n := 0; ; n++ {
		candidate := CandidateName(name, n, isDir)
		_, err := os.Lstat(filepath.Join(dir, candidate))
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fault.Wrap("move", candidate, err)
		}
	}
}

// Move renames src into dstDir as name, auto-suffixed on collision, and
// returns the final absolute path. A cross-device rename falls back to
// Transfer.
func (m *Mover) Move(src, dstDir, name string) (string, error) {
	info, err := os.Lstat(src)
	if err != nil {
		return "", fault.Wrap("move", filepath.Base(src), err)
	}
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return "", fault.Wrap("move", dstDir, err)
	}

	unlock := m.Lock(dstDir)
	final, err := FreeName(dstDir, name, info.IsDir())
	if err != nil {
		unlock()
		return "", err
	}
	dst := filepath.Join(dstDir, final)

	err = os.Rename(src, dst)
	if err == nil {
		unlock()
		return dst, nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		unlock()
		return "", fault.Wrap("move", name, err)
	}

	logging.Debug("rename crosses devices, copying",
		zap.String("source", src),
		zap.String("destination", dst))
	defer unlock()
	if err := m.transfer(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// Transfer copies src into dstDir as name, auto-suffixed on collision, then
// removes src. A journal marker brackets the copy so Recover can finish or
// roll back an interrupted transfer.
func (m *Mover) Transfer(src, dstDir, name string) (string, error) {
	info, err := os.Lstat(src)
	if err != nil {
		return "", fault.Wrap("transfer", filepath.Base(src), err)
	}
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return "", fault.Wrap("transfer", dstDir, err)
	}

	unlock := m.Lock(dstDir)
	defer unlock()

	final, err := FreeName(dstDir, name, info.IsDir())
	if err != nil {
		return "", err
	}
	dst := filepath.Join(dstDir, final)
	if err := m.transfer(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func (m *Mover) transfer(src, dst string) error {
	p, err := m.journal.Begin(src, dst)
	if err != nil {
		return fault.New(fault.KindIO, "transfer", filepath.Base(src), err)
	}

	if err := copy.Copy(src, dst, copyOptions()); err != nil {
		os.RemoveAll(dst)
		m.journal.Done(p)
		return fault.Wrap("transfer", filepath.Base(src), err)
	}
	if err := m.journal.MarkCopied(p); err != nil {
		return fault.New(fault.KindIO, "transfer", filepath.Base(src), err)
	}
	if err := os.RemoveAll(src); err != nil {
		// Destination is complete; the marker stays so Recover removes src.
		return fault.Wrap("transfer", filepath.Base(src), err)
	}
	if err := m.journal.Done(p); err != nil {
		logging.Warn("transfer finished but marker not removed",
			zap.String("id", p.ID), zap.Error(err))
	}
	return nil
}

func copyOptions() copy.Options {
	return copy.Options{
		OnSymlink:     func(string) copy.SymlinkAction { return copy.Shallow },
		PreserveTimes: true,
		Sync:          true,
	}
}

// RecoverReport counts what Recover did with each marker.
type RecoverReport struct {
	Completed  int `json:"completed"`
	RolledBack int `json:"rolledBack"`
	Dropped    int `json:"dropped"`
}

// Total is the number of markers processed.
func (r RecoverReport) Total() int { return r.Completed + r.RolledBack + r.Dropped }

// Recover settles every journaled transfer left behind by a crash.
//
//	source gone             -> drop marker
//	destination gone        -> drop marker, source untouched
//	copy not finished       -> remove partial destination, drop marker
//	copy finished           -> remove source, drop marker
func (m *Mover) Recover() (RecoverReport, error) {
	var report RecoverReport
	pending, err := m.journal.List()
	if err != nil {
		return report, fault.New(fault.KindIO, "recover", m.journal.Dir(), err)
	}

	var errs error
	for _, p := range pending {
		var err error
		switch {
		case !exists(p.Source):
			report.Dropped++
		case !exists(p.Destination):
			report.RolledBack++
		case !p.Copied:
			err = os.RemoveAll(p.Destination)
			report.RolledBack++
		default:
			err = os.RemoveAll(p.Source)
			report.Completed++
		}
		if err == nil {
			err = m.journal.Done(p)
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("recover %s: %w", p.ID, err))
			continue
		}
		logging.Info("settled pending transfer",
			zap.String("id", p.ID),
			zap.String("source", p.Source),
			zap.String("destination", p.Destination),
			zap.Bool("copied", p.Copied))
	}
	if errs != nil {
		return report, fault.New(fault.KindIO, "recover", m.journal.Dir(), errs)
	}
	return report, nil
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
