package object

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// SanitizeFileName removes path separators and rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", errors.New("invalid file name")
	}
	return s, nil
}

// ChartKey builds a unique storage key for a file uploaded against a chart.
func ChartKey(chartID, fileName string) (string, error) {
	name, err := SanitizeFileName(fileName)
	if err != nil {
		return "", err
	}
	chart, err := SanitizeFileName(chartID)
	if err != nil {
		return "", fmt.Errorf("invalid chart id: %w", err)
	}
	return path.Join("charts", chart, randomID()+"_"+name), nil
}

// ValidKey reports whether a storage key stays inside the store root.
func ValidKey(storageKey string) bool {
	clean := path.Clean(strings.ReplaceAll(storageKey, "\\", "/"))
	return clean != "." && !strings.HasPrefix(clean, "..") && !strings.HasPrefix(clean, "/")
}

func randomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
