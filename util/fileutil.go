package util

import (
	"os"
)

// PathExists reports whether path names an existing file or directory.
func PathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// CreateFileWithPath creates an empty file at filePath.
func CreateFileWithPath(filePath string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	return f.Close()
}

// CreateFileBySize creates a file pre-extended to size bytes.
func CreateFileBySize(filePath string, size int64) error {
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Truncate(size)
}
