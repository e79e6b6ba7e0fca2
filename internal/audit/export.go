// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/milestone-engine/internal/evaluate"
)

// ExportYAML writes a as dir/audit-<runID>.yaml and returns the path.
func ExportYAML(dir string, a evaluate.Audit) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "creating export directory")
	}

	data, err := yaml.Marshal(a)
	if err != nil {
		return "", eris.Wrap(err, "marshaling YAML")
	}

	path := filepath.Join(dir, "audit-"+a.RunID+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "writing %s", path)
	}
	return path, nil
}
