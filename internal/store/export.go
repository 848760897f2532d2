package store

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
	"github.com/unkn0wn-root/patchcat/internal/workspace"
)

// ExportFileName is the default file name for an export made at t.
func ExportFileName(t time.Time) string {
	return "patchcat-workspace-" + t.UTC().Format("2006-01-02") + ".json"
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Export writes the workspace document to path. A directory path receives a
// dated file name. YAML is used for .yaml and .yml paths. It returns the path
// written.
func Export(path string, s workspace.State, now time.Time) (string, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, ExportFileName(now))
	}
	data, err := Encode(s)
	if err != nil {
		return "", err
	}
	if isYAML(path) {
		data, err = jsonToYAML(data)
		if err != nil {
			return "", err
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errdef.Wrap(errdef.CodeFilesystem, err, "create export dir")
		}
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Import reads a workspace document written by Export. The result still has to
// go through a LoadWorkspace action.
func Import(path string) (workspace.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return workspace.State{}, errdef.Wrap(errdef.CodeFilesystem, err, "read %s", path)
	}
	if isYAML(path) {
		data, err = yamlToJSON(data)
		if err != nil {
			return workspace.State{}, err
		}
	}
	state, err := Decode(data)
	if err != nil {
		return workspace.State{}, errdef.Wrap(errdef.CodeStore, err, "invalid workspace file")
	}
	return state, nil
}

func jsonToYAML(data []byte) ([]byte, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return nil, errdef.Wrap(errdef.CodeStore, err, "decode snapshot")
	}
	out, err := yaml.Marshal(numbersFromJSON(doc))
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeStore, err, "encode yaml")
	}
	return out, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, err, "parse yaml")
	}
	out, err := json.Marshal(normalizeYAML(doc))
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, err, "convert yaml")
	}
	return out, nil
}

// numbersFromJSON keeps integers integral so millisecond timestamps survive YAML.
func numbersFromJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = numbersFromJSON(item)
		}
		return t
	case []any:
		for i := range t {
			t[i] = numbersFromJSON(t[i])
		}
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

// normalizeYAML turns non-string map keys into strings so the tree is JSON-encodable.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeYAML(item)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[toString(k)] = normalizeYAML(item)
		}
		return out
	case []any:
		for i := range t {
			t[i] = normalizeYAML(t[i])
		}
		return t
	default:
		return v
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	out, _ := json.Marshal(v)
	return string(out)
}
