package utils

import (
	"fmt"
	"strings"
)

const (
	MaxPathLength = 2048
)

// SplitFolderPath splits a materialized folder path ("/a/b/c/") into its segments.
// Leading and trailing slashes are optional; empty segments are rejected.
func SplitFolderPath(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "/" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	if len(path) > MaxPathLength {
		return nil, fmt.Errorf("path exceeds maximum length of %d characters", MaxPathLength)
	}

	trimmed := strings.TrimSuffix(strings.TrimPrefix(path, "/"), "/")
	segments := strings.Split(trimmed, "/")
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			return nil, fmt.Errorf("path cannot contain empty segments")
		}
	}

	return segments, nil
}

// NormalizeFolderPath returns the canonical "/a/b/" form of a folder path
func NormalizeFolderPath(path string) (string, error) {
	segments, err := SplitFolderPath(path)
	if err != nil {
		return "", err
	}
	return "/" + strings.Join(segments, "/") + "/", nil
}
