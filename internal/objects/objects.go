// Package objects loads shared data and page objects from directories of
// YAML or JSON files.
package objects

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Namespace maps a file stem to the decoded file content.
type Namespace map[string]any

var extensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// LoadShared merges every object file found under dirs. Files from later
// directories replace same-named files from earlier ones. Missing
// directories contribute nothing.
func LoadShared(dirs ...string) (Namespace, error) {
	ns := Namespace{}
	for _, dir := range dirs {
		if err := loadDir(dir, ns); err != nil {
			return nil, err
		}
	}
	return ns, nil
}

// LoadPages loads the page objects under dir into their own namespace.
func LoadPages(dir string) (Namespace, error) {
	ns := Namespace{}
	if err := loadDir(dir, ns); err != nil {
		return nil, err
	}
	return ns, nil
}

func loadDir(dir string, ns Namespace) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("object path %s is not a directory", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && extensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(files)

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		ns[stem(path)] = v
	}
	return nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Names lists the loaded object names in order.
func (ns Namespace) Names() []string {
	names := make([]string, 0, len(ns))
	for name := range ns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get resolves a dotted path such as "login.fields.username". Numeric
// segments index into lists.
func (ns Namespace) Get(path string) (any, bool) {
	parts := strings.Split(path, ".")
	cur, ok := ns[parts[0]]
	if !ok {
		return nil, false
	}
	for _, part := range parts[1:] {
		switch node := cur.(type) {
		case map[string]any:
			if cur, ok = node[part]; !ok {
				return nil, false
			}
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// String resolves path to a scalar rendered as text.
func (ns Namespace) String(path string) (string, bool) {
	v, ok := ns.Get(path)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case map[string]any, []any, nil:
		return "", false
	default:
		return fmt.Sprint(s), true
	}
}
