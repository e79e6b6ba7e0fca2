// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package timeline

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/milestone-engine/pkg/types"
)

// Marshal renders the timeline as indented JSON with a trailing newline.
func Marshal(t *types.Timeline) ([]byte, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "marshaling timeline")
	}
	return append(data, '\n'), nil
}

// Write replaces the file at path with t. The content goes to a temporary
// file in the same directory which is then renamed over path.
func Write(path string, t *types.Timeline) error {
	data, err := Marshal(t)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "creating %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".ai-milestones-*.tmp")
	if err != nil {
		return eris.Wrap(err, "creating temporary file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "writing %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "closing %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "renaming to %s", path)
	}
	return nil
}

// Save writes t into dir under DeriveFileName(t). When the derived name
// differs from currentPath the old file is removed. It returns the new path
// and whether a rename happened.
func Save(dir, currentPath string, t *types.Timeline) (string, bool, error) {
	newPath := filepath.Join(dir, DeriveFileName(t))
	if err := Write(newPath, t); err != nil {
		return "", false, err
	}

	renamed := currentPath != "" && filepath.Clean(currentPath) != filepath.Clean(newPath)
	if renamed {
		if err := os.Remove(currentPath); err != nil && !os.IsNotExist(err) {
			return newPath, true, eris.Wrapf(err, "removing %s", currentPath)
		}
	}
	return newPath, renamed, nil
}
