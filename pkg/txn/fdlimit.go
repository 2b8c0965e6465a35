// fd-limit raise, spec §4.6: "large transactions can legitimately open
// more file descriptors than the process's soft RLIMIT_NOFILE allows
// (one per staged rpm plus the scriptlet pipes); the executor raises the
// soft limit to the hard limit before staging any package."
package txn

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// raiseFDLimit sets RLIMIT_NOFILE's soft limit to the hard limit (or to
// FDLimitCap, whichever is lower, when FDLimitCap is set).
func (e *Executor) raiseFDLimit() error {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return fmt.Errorf("txn: getrlimit: %w", err)
	}
	target := rlim.Max
	if e.FDLimitCap > 0 && e.FDLimitCap < target {
		target = e.FDLimitCap
	}
	if rlim.Cur >= target {
		return nil
	}
	rlim.Cur = target
	return unix.Setrlimit(unix.RLIMIT_NOFILE, &rlim)
}
