package storage

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/fruitsalade/vaultbox/internal/fault"
	"github.com/fruitsalade/vaultbox/internal/fsutil"
)

// List walks root/rel recursively and returns its children as a sorted tree.
// rel is sanitized first. Any stat failure aborts the whole listing.
func List(ctx context.Context, root, rel string, excludeReserved bool) ([]Entry, error) {
	rel = fsutil.Sanitize(rel)
	dir, err := fsutil.JoinWithinRoot(root, rel)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fault.Wrap("list", rel, err)
	}
	if !info.IsDir() {
		return nil, fault.Invalid("list", rel, "not a directory")
	}

	l := &lister{
		ctx:             ctx,
		excludeReserved: excludeReserved,
		coll:            collate.New(language.English),
	}
	return l.walk(dir, rel)
}

// Describe builds a single entry for root/rel without descending into it.
func Describe(root, rel string) (Entry, error) {
	rel = fsutil.Sanitize(rel)
	abs, err := fsutil.JoinWithinRoot(root, rel)
	if err != nil {
		return Entry{}, err
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return Entry{}, fault.Wrap("stat", rel, err)
	}
	return entryFor(info, rel), nil
}

type lister struct {
	ctx             context.Context
	excludeReserved bool
	// collate.Collator is not safe for concurrent use; one per listing.
	coll *collate.Collator
}

func (l *lister) walk(dir, rel string) ([]Entry, error) {
	if err := l.ctx.Err(); err != nil {
		return nil, err
	}

	children, err := os.ReadDir(dir)
	if err != nil {
		return nil, fault.Wrap("list", rel, err)
	}

	entries := make([]Entry, 0, len(children))
	for _, child := range children {
		name := child.Name()
		if l.excludeReserved && IsReserved(name) {
			continue
		}

		info, err := child.Info()
		if err != nil {
			return nil, fault.New(fault.KindIO, "stat", path.Join(rel, name), err)
		}

		childRel := path.Join(rel, name)
		e := entryFor(info, childRel)
		if info.IsDir() {
			sub, err := l.walk(filepath.Join(dir, name), childRel)
			if err != nil {
				return nil, err
			}
			if len(sub) > 0 {
				e.Children = sub
			}
		}
		entries = append(entries, e)
	}

	l.sort(entries)
	return entries, nil
}

// sort orders folders before files, then by name under locale collation.
func (l *lister) sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsFolder() != b.IsFolder() {
			return a.IsFolder()
		}
		if c := l.coll.CompareString(a.Name, b.Name); c != 0 {
			return c < 0
		}
		return a.Name < b.Name
	})
}

func entryFor(info fs.FileInfo, rel string) Entry {
	e := Entry{
		Name: info.Name(),
		Path: rel,
		Date: FormatDate(info.ModTime()),
	}
	if info.IsDir() {
		e.Type = TypeFolder
		e.Size = "-"
	} else {
		e.Type = TypeFile
		e.Size = FormatSize(info.Size())
	}
	return e
}
