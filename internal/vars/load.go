package vars

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
	"github.com/unkn0wn-root/patchcat/internal/model"
)

// envDocument is the structured file form. Either variables (with optional
// enabled flags) or a flat values map may be given.
type envDocument struct {
	Name      string            `json:"name" yaml:"name"`
	Variables []envVariable     `json:"variables" yaml:"variables"`
	Values    map[string]string `json:"values" yaml:"values"`
}

type envVariable struct {
	Key     string `json:"key" yaml:"key"`
	Value   string `json:"value" yaml:"value"`
	Enabled *bool  `json:"enabled" yaml:"enabled"`
}

// LoadEnvironmentFile reads a dotenv, JSON or YAML file into an environment with
// fresh ids. An empty name falls back to one derived from the file name.
func LoadEnvironmentFile(path string) (model.Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Environment{}, errdef.Wrap(errdef.CodeFilesystem, err, "read env file %s", path)
	}
	if IsDotEnvPath(path) {
		pairs, err := parseDotEnv(bytes.NewReader(data), path)
		if err != nil {
			return model.Environment{}, err
		}
		env := model.Environment{ID: uuid.NewString(), Name: dotEnvName(path)}
		for _, p := range pairs {
			env.Variables = append(env.Variables, newVariable(p.key, p.value, true))
		}
		if env.Variables == nil {
			env.Variables = []model.KeyValue{}
		}
		return env, nil
	}

	var doc envDocument
	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return model.Environment{}, errdef.Wrap(errdef.CodeParse, err, "parse env file %s", path)
		}
		if doc.Variables == nil && doc.Values == nil {
			if err := yaml.Unmarshal(data, &raw); err != nil {
				return model.Environment{}, errdef.Wrap(errdef.CodeParse, err, "parse env file %s", path)
			}
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return model.Environment{}, errdef.Wrap(errdef.CodeParse, err, "parse env file %s", path)
		}
		if doc.Variables == nil && doc.Values == nil {
			dec := json.NewDecoder(bytes.NewReader(data))
			dec.UseNumber()
			if err := dec.Decode(&raw); err != nil {
				return model.Environment{}, errdef.Wrap(errdef.CodeParse, err, "parse env file %s", path)
			}
		}
	}
	flat, err := flatValues(raw)
	if err != nil {
		return model.Environment{}, errdef.Wrap(errdef.CodeParse, err, "parse env file %s", path)
	}
	return buildEnvironment(doc, flat, path), nil
}

// flatValues stringifies the scalar values of a flat file. Nested values have
// no variable form and are rejected.
func flatValues(raw map[string]any) (map[string]string, error) {
	flat := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			flat[k] = ""
		case string:
			flat[k] = t
		case map[string]any, map[any]any, []any:
			return nil, fmt.Errorf("variable %q must be a scalar", k)
		default:
			flat[k] = fmt.Sprint(t)
		}
	}
	return flat, nil
}

func buildEnvironment(doc envDocument, flat map[string]string, path string) model.Environment {
	name := strings.TrimSpace(doc.Name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	env := model.Environment{ID: uuid.NewString(), Name: name, Variables: []model.KeyValue{}}
	for _, v := range doc.Variables {
		enabled := v.Enabled == nil || *v.Enabled
		env.Variables = append(env.Variables, newVariable(v.Key, v.Value, enabled))
	}
	values := doc.Values
	if values == nil {
		values = flat
		delete(values, "name")
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env.Variables = append(env.Variables, newVariable(k, values[k], true))
	}
	return env
}

func newVariable(key, value string, enabled bool) model.KeyValue {
	return model.KeyValue{ID: uuid.NewString(), Key: key, Value: value, Enabled: enabled}
}
