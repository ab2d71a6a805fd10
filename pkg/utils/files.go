package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	// Get the directory containing the file
	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// ReadSource resolves relPath and returns the program text stored there
// along with its absolute path and directory.
func ReadSource(relPath string) (src, fullPath, parentDir string, err error) {
	fullPath, parentDir, err = GetPathInfo(relPath)
	if err != nil {
		return "", "", "", err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to read source file: %w", err)
	}
	return string(data), fullPath, parentDir, nil
}

// ReplaceExt returns path with its extension replaced by ext, or with ext
// appended if it has none.
func ReplaceExt(path, ext string) string {
	old := filepath.Ext(path)
	return path[:len(path)-len(old)] + ext
}
