package app

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Discover expands paths into capture files. Directories are walked
// recursively; hidden files and directories are skipped.
func Discover(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})

	add := func(path string) {
		if _, ok := seen[path]; !ok {
			seen[path] = struct{}{}
			files = append(files, path)
		}
	}

	for _, root := range paths {
		stat, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("capture path '%s': %w", root, err)
		}
		if !stat.IsDir() {
			add(root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			hidden := path != root && strings.HasPrefix(d.Name(), ".")
			switch {
			case d.IsDir() && hidden:
				return filepath.SkipDir
			case d.Type().IsRegular() && !hidden:
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking '%s': %w", root, err)
		}
	}

	return files, nil
}
