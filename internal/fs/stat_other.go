//go:build !linux && !darwin

package fs

import (
	"io/fs"
	"time"
)

func creationTime(info fs.FileInfo) time.Time {
	return info.ModTime()
}
