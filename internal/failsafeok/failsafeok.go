// Package failsafeok implements the OK-file escape hatch for the
// failsafe gate (spec §4.5.1, scenario 4): an operator drops a marker
// file next to the daemon to authorize one run of changes that exceed
// the configured failsafe threshold. The file is consumed on read.
package failsafeok

import (
	"errors"
	"fmt"
	"os"
)

// Check reports whether the OK file at path exists, and deletes it if
// so. A caller that gets (true, nil) back has permission for exactly
// one over-threshold reconciliation pass; the file will not be there
// on the next check.
//
// strict controls what happens if the file exists but cannot be
// deleted: under strict, that is treated as "not authorized" (fail
// closed, since a stale file would otherwise grant unbounded reuse);
// otherwise the authorization is still granted once, with the
// deletion failure only logged by the caller.
func Check(path string, strict bool) (bool, error) {
	_, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failsafeok: stat %q: %w", path, err)
	}

	if err := os.Remove(path); err != nil {
		if strict {
			return false, fmt.Errorf("failsafeok: consume %q: %w", path, err)
		}
		return true, fmt.Errorf("failsafeok: consume %q (authorization still granted): %w", path, err)
	}
	return true, nil
}
