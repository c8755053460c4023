package survey

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DiscoverSessions walks dir and returns every file ending in ext, sorted
func DiscoverSessions(dir, ext string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext == "" || strings.HasSuffix(strings.ToLower(path), strings.ToLower(ext)) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
