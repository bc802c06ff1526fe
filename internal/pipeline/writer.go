package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/banksight/internal/core"
)

// CleanedPath returns where the cleaned file for entity lives.
func CleanedPath(dir, entity string) string {
	return filepath.Join(dir, entity+"_cleaned.csv")
}

// WriteCleaned writes c as CSV under dir and returns the file path.
// The header is always written, so an entity with no surviving rows still
// produces a loadable file. The file is replaced atomically.
func WriteCleaned(dir string, c *core.Cleaned) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create cleaned dir: %w", err)
	}

	path := CleanedPath(dir, c.Entity)
	tmp, err := os.CreateTemp(dir, "."+c.Entity+"-*.csv")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(c.Header); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(c.Rows()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename cleaned file: %w", err)
	}
	return path, nil
}
