//go:build unix

package tarchive

import (
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/aurora-is-near/tarkit/src/tarfmt"
)

// applyAttributes restores mode, mtime and ownership on a materialized
// entry. Every attribute is attempted even when an earlier one fails (chown
// commonly needs privilege); the collected failures are returned for
// logging, extraction does not depend on them.
func applyAttributes(target string, e *ScanEntry) error {
	var result *multierror.Error
	if e.Type != tarfmt.TypeSymbolicLink {
		if e.Mode != 0 {
			result = multierror.Append(result, os.Chmod(target, os.FileMode(e.Mode)))
		}
		if !e.ModTime.IsZero() {
			result = multierror.Append(result, os.Chtimes(target, e.ModTime, e.ModTime))
		}
	}
	result = multierror.Append(result, os.Lchown(target, e.UID, e.GID))
	return result.ErrorOrNil()
}
