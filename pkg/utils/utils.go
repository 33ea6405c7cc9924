package utils

import (
	"io/fs"
	"os"
	"path/filepath"
)

// DeduplicateStringSlice removes duplicate strings from a slice while preserving order.
func DeduplicateStringSlice(input []string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, item := range input {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}

// EnsurePath creates path as a directory unless it already exists. It
// reports whether the directory was created by this call.
func EnsurePath(path string, perm fs.FileMode) (bool, error) {
	st, err := os.Stat(path)
	if err != nil && os.IsNotExist(err) {
		err = os.MkdirAll(path, perm)
		return err == nil, err
	}
	if err != nil {
		return false, err
	}
	if !st.IsDir() {
		return false, fs.ErrExist
	}
	return false, nil
}

func IsNonEmptyFile(dir, file string) bool {
	p := filepath.Join(dir, file)
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}
