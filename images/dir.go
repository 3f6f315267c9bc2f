package images

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ListDir returns the supported image files of dir, skipping subdirectories.
//
// Files named "<prefix>-<n>.<ext>" with the same prefix sort by n, so frame-2 precedes
// frame-10; everything else sorts by name.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []string: The file paths in order.
//   - error: An error if the directory cannot be read.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", dir)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isSupported(strings.ToLower(filepath.Ext(entry.Name()))) {
			names = append(names, entry.Name())
		}
	}

	sort.SliceStable(names, func(i, j int) bool {
		pi, ni, oki := frameNumber(names[i])
		pj, nj, okj := frameNumber(names[j])
		if oki && okj && pi == pj {
			return ni < nj
		}
		return names[i] < names[j]
	})

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

// frameNumber splits "frame-12.png" into ("frame", 12).
func frameNumber(name string) (string, int, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	idx := strings.LastIndex(stem, "-")
	if idx < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(stem[idx+1:])
	if err != nil {
		return "", 0, false
	}
	return stem[:idx], n, true
}
