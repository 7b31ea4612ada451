//go:build !unix

package tarchive

import (
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/aurora-is-near/tarkit/src/tarfmt"
)

// applyAttributes restores what this platform supports: mode and mtime.
// Ownership is not applicable.
func applyAttributes(target string, e *ScanEntry) error {
	if e.Type == tarfmt.TypeSymbolicLink {
		return nil
	}
	var result *multierror.Error
	if e.Mode != 0 {
		result = multierror.Append(result, os.Chmod(target, os.FileMode(e.Mode)))
	}
	if !e.ModTime.IsZero() {
		result = multierror.Append(result, os.Chtimes(target, e.ModTime, e.ModTime))
	}
	return result.ErrorOrNil()
}
