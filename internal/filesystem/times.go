package filesystem

import (
	"os"
	"syscall"
	"time"
)

// FileTimes returns the creation and modification times of a file as
// UTC. Unix filesystems do not expose a true creation time, so the
// inode change time stands in for it, matching what a stat() reports.
func FileTimes(info os.FileInfo) (created, modified time.Time) {
	modified = info.ModTime().UTC()
	created = modified

	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		created = time.Unix(st.Ctim.Sec, st.Ctim.Nsec).UTC()
	}
	return created, modified
}
