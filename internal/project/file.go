package project

import (
	"fmt"
	"os"
	"path/filepath"
)

// ProjectFiles is the search order for project configuration files.
var ProjectFiles = []string{"buildcfg.toml", "buildcfg.yaml", "buildcfg.yml", "buildcfg.json"}

// LoadFile reads a project file, expands references from env and validates
// it. The format follows the file extension. A relative paths.root is taken
// relative to the file's directory.
func LoadFile(path string, env Env) (*Record, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	r, err := Decode(data, format, env)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if r.Paths.Root != "" && !filepath.IsAbs(r.Paths.Root) {
		r.Paths.Root = filepath.Join(filepath.Dir(path), r.Paths.Root)
	}
	return r, nil
}

// FindProjectFile returns the first project file present in dir, or
// os.ErrNotExist.
func FindProjectFile(dir string) (string, error) {
	for _, name := range ProjectFiles {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", os.ErrNotExist
}

// WriteFile encodes doc in the format given by path's extension and writes it.
func WriteFile(path string, doc *Document, perm os.FileMode) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := EncodeDocument(doc, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
