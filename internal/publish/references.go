// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package publish

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// RewriteReferences replaces the base name of oldPath with that of newPath
// in each file and returns the files that changed. Missing files are
// logged and skipped.
func RewriteReferences(files []string, oldPath, newPath string) ([]string, error) {
	oldName, newName := filepath.Base(oldPath), filepath.Base(newPath)
	if oldName == newName {
		return nil, nil
	}

	var changed []string
	for _, f := range files {
		data, err := os.ReadFile(f)
		if os.IsNotExist(err) {
			zap.L().Warn("reference file missing", zap.String("file", f))
			continue
		}
		if err != nil {
			return changed, eris.Wrapf(err, "reading %s", f)
		}

		content := string(data)
		if !strings.Contains(content, oldName) {
			continue
		}
		info, err := os.Stat(f)
		if err != nil {
			return changed, eris.Wrapf(err, "stat %s", f)
		}
		updated := strings.ReplaceAll(content, oldName, newName)
		if err := os.WriteFile(f, []byte(updated), info.Mode().Perm()); err != nil {
			return changed, eris.Wrapf(err, "writing %s", f)
		}
		changed = append(changed, f)
	}
	return changed, nil
}
