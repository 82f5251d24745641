// Package archive provides the backends that store crawl snapshots.
package archive

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned by Get for an unknown object name.
var ErrNotFound = errors.New("archive object not found")

// validateName rejects names that could escape the archive root. Names are
// slash-separated and relative.
func validateName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") {
		return fmt.Errorf("invalid object name %q", name)
	}
	if clean := path.Clean(name); clean != name || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("invalid object name %q", name)
	}
	return nil
}
