package vars

import (
	"maps"
	"regexp"

	"github.com/unkn0wn-root/patchcat/internal/model"
)

// placeholderPattern matches [key]. Keys may contain anything except a closing
// bracket, so [a b] and [base.url] are both valid names.
var placeholderPattern = regexp.MustCompile(`\[([^\]]+)\]`)

type Result struct {
	Text string
	Used map[string]string
}

// Table returns the substitution table for env: enabled variables with a
// non-empty key. Later declarations of the same key win.
func Table(env *model.Environment) map[string]string {
	if env == nil {
		return nil
	}
	table := make(map[string]string, len(env.Variables))
	for _, v := range env.Variables {
		if !v.Enabled || v.Key == "" {
			continue
		}
		table[v.Key] = v.Value
	}
	return table
}

// Resolve replaces each [key] in text with its value from env in a single left to
// right pass. Substituted values are never rescanned and unknown keys stay as
// written. A nil env returns text unchanged.
func Resolve(text string, env *model.Environment) Result {
	if text == "" || env == nil {
		return Result{Text: text, Used: map[string]string{}}
	}
	return expand(text, Table(env))
}

func expand(text string, table map[string]string) Result {
	used := map[string]string{}
	if text == "" || len(table) == 0 {
		return Result{Text: text, Used: used}
	}
	out := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := match[1 : len(match)-1]
		value, ok := table[key]
		if !ok {
			return match
		}
		used[key] = value
		return value
	})
	return Result{Text: out, Used: used}
}

// Resolver binds one environment and accumulates every substitution it makes.
type Resolver struct {
	table map[string]string
	used  map[string]string
}

func NewResolver(env *model.Environment) *Resolver {
	return &Resolver{table: Table(env), used: map[string]string{}}
}

func (r *Resolver) Resolve(text string) string {
	if r == nil {
		return text
	}
	res := expand(text, r.table)
	maps.Copy(r.used, res.Used)
	return res.Text
}

// ResolveAll resolves every input in order and returns the results positionally.
func (r *Resolver) ResolveAll(texts ...string) []string {
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = r.Resolve(text)
	}
	return out
}

func (r *Resolver) Used() map[string]string {
	if r == nil {
		return map[string]string{}
	}
	return maps.Clone(r.used)
}

// Lookup reports the value a placeholder for key would expand to.
func (r *Resolver) Lookup(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	value, ok := r.table[key]
	return value, ok
}

// Placeholders lists the distinct keys referenced by text in first-seen order.
func Placeholders(text string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		keys = append(keys, m[1])
	}
	return keys
}
