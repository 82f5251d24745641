package fs

import (
	"io/fs"
	"syscall"
	"time"
)

// creationTime uses the inode change time; Linux stat(2) has no birth time.
func creationTime(info fs.FileInfo) time.Time {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec)
}
