package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// CheckDirectoryAccess verifies that path is a directory the daemon can
// read, write and traverse, and reports the space left on its filesystem.
func CheckDirectoryAccess(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Result{Name: name, Detail: path + " does not exist"}
	case err != nil:
		return Result{Name: name, Detail: fmt.Sprintf("%s: stat: %v", path, err)}
	case !info.IsDir():
		return Result{Name: name, Detail: path + " is not a directory"}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s: insufficient permissions: %v", path, err)}
	}

	free, ok := freeSpace(path)
	if !ok {
		return Result{Name: name, Passed: true, Detail: path + " (read/write ok)"}
	}
	return Result{
		Name:      name,
		Passed:    true,
		Detail:    fmt.Sprintf("%s (read/write ok, %s free)", path, humanize.IBytes(free)),
		FreeBytes: free,
	}
}

func freeSpace(path string) (uint64, bool) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, false
	}
	return st.Bavail * uint64(st.Bsize), true
}
