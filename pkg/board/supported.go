// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package board

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// ErrUnsupportedBoard indicates the board is absent from the supported-boards list.
var ErrUnsupportedBoard = errors.New("unsupported board")

// DefaultSupportedBoardsPath is where the packaged supported-boards list is installed.
const DefaultSupportedBoardsPath = "/usr/share/arm-image-installer/SUPPORTED-BOARDS"

// groupHeaderSuffix marks group header lines in the supported-boards list.
const groupHeaderSuffix = "Devices:"

// Group is a named set of boards from the supported-boards list.
type Group struct {
	Name   string
	Boards []string
}

// LoadGroups parses the supported-boards list. Lines ending in "Devices:" are
// group headers, all other non-blank lines are whitespace-separated board names.
func LoadGroups(path string) ([]Group, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close() //nolint:errcheck

	var groups []Group

	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasSuffix(line, groupHeaderSuffix) {
			groups = append(groups, Group{Name: line})

			continue
		}

		if len(groups) == 0 {
			groups = append(groups, Group{})
		}

		last := &groups[len(groups)-1]
		last.Boards = append(last.Boards, strings.Fields(line)...)
	}

	return groups, scanner.Err()
}

// Validate fails if a non-empty supported-boards list exists and the resolved
// board name is absent from it. A missing or empty list disables validation.
func Validate(logger *zap.Logger, path, name string) error {
	canonical := Resolve(name)

	groups, err := LoadGroups(path)
	if err != nil {
		logger.Warn("supported-boards list not found, board validation skipped",
			zap.String("path", path), zap.Error(err))

		return nil
	}

	supported := map[string]struct{}{}

	for _, group := range groups {
		for _, b := range group.Boards {
			supported[b] = struct{}{}
		}
	}

	if len(supported) == 0 {
		logger.Warn("supported-boards list is empty, board validation skipped",
			zap.String("path", path))

		return nil
	}

	if _, ok := supported[canonical]; !ok {
		return fmt.Errorf("%w: %q (resolved as %q)", ErrUnsupportedBoard, name, canonical)
	}

	return nil
}

// ListSupported writes a grouped human-readable listing of supported boards.
func ListSupported(w io.Writer, path string) error {
	groups, err := LoadGroups(path)
	if err != nil {
		fmt.Fprintln(w, "No boards found (supported-boards list missing).")

		return nil //nolint:nilerr
	}

	fmt.Fprintln(w, "Supported Boards:")

	for _, group := range groups {
		if group.Name != "" {
			fmt.Fprintf(w, "\n  %s\n", group.Name)
		}

		for _, b := range group.Boards {
			fmt.Fprintf(w, "    %s\n", b)
		}
	}

	return nil
}
