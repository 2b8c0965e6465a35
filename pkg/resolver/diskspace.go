// Disk-space guard, spec §4.5: "After a successful solve, the sum of
// to_install.download_size + to_upgrade + to_downgrade + to_reinstall is
// compared to statfs(cache-root).f_bsize * f_bavail; if it exceeds
// available bytes the plan is rejected." Grounded on
// golang.org/x/sys/unix.Statfs, the syscall package the teacher's
// sibling repos in the pack (coreos-assembler's system package) already
// reach for over raw syscall.Statfs_t.
package resolver

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ErrOutOfDiskSpace has the same text as the root package's sentinel and
// is declared here to avoid an import cycle; it is a distinct value, and
// nothing in this module converts one into the other.
var ErrOutOfDiskSpace = errors.New("cache dir out of disk space")

// CheckDiskSpace compares plan's total download size against the bytes
// available under cacheRoot's filesystem.
func CheckDiskSpace(plan *Plan, cacheRoot string) error {
	var st unix.Statfs_t
	if err := unix.Statfs(cacheRoot, &st); err != nil {
		return err
	}
	available := int64(st.Bsize) * int64(st.Bavail)
	if plan.DownloadSize() > available {
		return ErrOutOfDiskSpace
	}
	return nil
}
