// Package resource resolves and lists tool resource locations (model
// folders, dictionaries, training data) under a target's opt root.
//
// Path resolution is sandboxed: a resolved path that would escape the opt
// root is clamped back to it, never surfaced as an error. Directory
// listing is deliberately asymmetric — single-level folder listing is
// lenient (failures yield an empty result) while the bounded recursive
// file walk is strict (failures propagate).
package resource

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/folio-labs/ocrflow/config"
)

// OptFolder resolves the base opt folder for a target and appends one
// resolved segment per subKey, normalizing after each append. The result
// is always the base folder or a descendant of it: traversal outside the
// base is silently clamped to the base.
func OptFolder(cfg *config.Configuration, target config.Target, subKeys ...config.CollectionKey) string {
	base := filepath.Clean(filepath.Join(target.OptRoot, cfg.Resolve(config.KeyOptFolder)))

	resolved := base
	for _, key := range subKeys {
		resolved = filepath.Clean(filepath.Join(resolved, cfg.Resolve(key)))
	}

	if !contained(base, resolved) {
		return base
	}
	return resolved
}

// contained reports whether path equals base or is a descendant of it.
func contained(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ListFolders returns the first-level subdirectory names of path,
// excluding hidden entries, sorted case-insensitively ascending. Any
// listing failure yields an empty list.
func ListFolders(path string) []string {
	entries, err := os.ReadDir(path)
	if err != nil {
		return []string{}
	}

	folders := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		folders = append(folders, entry.Name())
	}
	sort.Slice(folders, func(i, j int) bool {
		return strings.ToLower(folders[i]) < strings.ToLower(folders[j])
	})
	return folders
}

// ListFiles walks folder up to maxDepth levels below it and returns the
// files found, optionally filtered by a case-insensitive extension
// suffix. A walk failure propagates as a hard error.
func ListFiles(folder string, maxDepth int, extension string) ([]string, error) {
	root := filepath.Clean(folder)
	suffix := strings.ToLower(extension)

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		depth := pathDepth(root, path)
		if d.IsDir() {
			if depth > maxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if depth > maxDepth {
			return nil
		}
		if suffix != "" && !strings.HasSuffix(strings.ToLower(d.Name()), suffix) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", folder, err)
	}
	return files, nil
}

func pathDepth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
