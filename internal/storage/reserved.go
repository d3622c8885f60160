package storage

import (
	"strings"

	"github.com/fruitsalade/vaultbox/internal/fault"
)

// Names of the infrastructure entries under the base directory.
const (
	TrashDirName    = ".trash"
	VaultDirName    = ".vault"
	VaultConfigName = ".vault-config.json"
	PendingDirName  = ".pending"
	PlaceholderName = ".gitkeep"

	// tempPrefix marks in-flight atomic writes.
	tempPrefix = ".vaultbox-"
)

// ReservedNames are never listed, counted or accepted as user names, at any
// depth in any zone.
var ReservedNames = map[string]struct{}{
	PlaceholderName: {},
	TrashDirName:    {},
	VaultDirName:    {},
	VaultConfigName: {},
	PendingDirName:  {},
}

// IsReserved reports whether a base name is infrastructure rather than user
// data. In-flight temp files count as reserved.
func IsReserved(name string) bool {
	if _, ok := ReservedNames[name]; ok {
		return true
	}
	return strings.HasPrefix(name, tempPrefix) && strings.HasSuffix(name, ".tmp")
}

// ValidateName checks a single path element supplied by a client.
func ValidateName(op, name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fault.Invalid(op, name, "name is required")
	case name == "." || name == "..":
		return fault.Invalid(op, name, "invalid name")
	case strings.ContainsAny(name, "/\\\x00"):
		return fault.Invalid(op, name, "name must not contain path separators")
	case IsReserved(name):
		return fault.Invalid(op, name, "name is reserved")
	}
	return nil
}

// HasReservedSegment reports whether any element of a slash path is reserved.
func HasReservedSegment(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if IsReserved(seg) {
			return true
		}
	}
	return false
}

// TempPattern is the os.CreateTemp pattern used for atomic writes.
func TempPattern() string {
	return tempPrefix + "*.tmp"
}
