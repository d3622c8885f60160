// Package storage walks, sizes and moves entries inside a zone directory.
package storage

import (
	"fmt"
	"time"
)

// Entry types.
const (
	TypeFile   = "file"
	TypeFolder = "folder"
)

// Entry is one file or folder as exposed to clients.
type Entry struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Type     string  `json:"type"`
	Size     string  `json:"size"`
	Date     string  `json:"date"`
	Children []Entry `json:"children,omitempty"`
}

// IsFolder reports whether the entry is a folder.
func (e Entry) IsFolder() bool { return e.Type == TypeFolder }

const megabyte = 1024 * 1024

// FormatSize renders a byte count the way listings show it: one decimal in KB
// under a megabyte, otherwise one decimal in MB.
func FormatSize(n int64) string {
	if n < megabyte {
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	}
	return fmt.Sprintf("%.1f MB", float64(n)/megabyte)
}

// FormatDate renders a modification time as an ISO calendar date in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
