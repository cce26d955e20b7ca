//go:build !unix

package export

import "os"

// createNoFollow is a best-effort equivalent of O_NOFOLLOW: it refuses an
// existing symlink but cannot close the race with one created afterwards.
func createNoFollow(path string) (*os.File, error) {
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrPermission}
	}
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
}
