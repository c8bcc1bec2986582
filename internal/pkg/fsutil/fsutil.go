// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package fsutil provides line-oriented in-place file rewriting.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RewriteLines rewrites a text file by applying transform to every line, then
// replaces the file atomically via a temp file and rename so an interrupted
// rewrite never leaves a partially written file behind. File mode is preserved.
func RewriteLines(path string, transform func(line string) string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	lines := strings.Split(string(contents), "\n")
	for i, line := range lines {
		lines[i] = transform(line)
	}

	return Replace(path, strings.Join(lines, "\n"), info.Mode())
}

// Replace atomically replaces the contents of path via temp-file-then-rename.
func Replace(path, contents string, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}

	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err = tmp.WriteString(contents); err != nil {
		tmp.Close() //nolint:errcheck

		return err
	}

	if err = tmp.Chmod(mode); err != nil {
		tmp.Close() //nolint:errcheck

		return err
	}

	if err = tmp.Close(); err != nil {
		return err
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}

	return nil
}
