package domain

import "path/filepath"

func joinSubdir(root, subdir string) string {
	if subdir == "" {
		return root
	}
	return filepath.Join(root, filepath.FromSlash(subdir))
}
