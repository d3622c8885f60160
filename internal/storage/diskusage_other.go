//go:build !unix

package storage

// DiskFree is not available on this platform.
func DiskFree(string) (int64, bool) {
	return 0, false
}
