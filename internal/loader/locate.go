package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/banksight/internal/core"
)

// Locate returns the first source file of def present in rawDir, following
// the entity's preference order. It wraps core.ErrSourceMissing when none
// of the candidates exist.
func Locate(rawDir string, def core.EntityDefinition) (string, error) {
	for _, name := range def.Info.Sources {
		path := filepath.Join(rawDir, name)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("%s: tried %v: %w", def.Info.Key, def.Info.Sources, core.ErrSourceMissing)
}
