package mirror

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ScanTree walks a tenant root and returns the sorted relative paths of
// every managed file. Dotfiles and dot-directories are skipped, as is
// anything Classify does not recognize (stray notes, editor droppings,
// wrong nesting). Names are NFC-normalized so the returned paths compare
// cleanly against store keys regardless of how the filesystem reports
// them. A missing root is an empty tree, not an error.
func ScanTree(root string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == filepath.Clean(root) && os.IsNotExist(walkErr) {
				return filepath.SkipAll
			}

			return walkErr
		}

		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}

			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		rel = norm.NFC.String(filepath.ToSlash(rel))

		if _, ok := Classify(rel); !ok {
			return nil
		}

		paths = append(paths, rel)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning tree: %w", err)
	}

	sort.Strings(paths)

	return paths, nil
}
