package file

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SafeJoin joins a slash separated key onto root and rejects keys escaping it.
func SafeJoin(root, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(root, cleaned), nil
}
