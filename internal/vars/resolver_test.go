package vars

import (
	"testing"

	"github.com/unkn0wn-root/patchcat/internal/model"
)

func env(vars ...model.KeyValue) *model.Environment {
	return &model.Environment{ID: "env", Name: "test", Variables: vars}
}

func kv(key, value string, enabled bool) model.KeyValue {
	return model.KeyValue{ID: key, Key: key, Value: value, Enabled: enabled}
}

func TestResolveSubstitutesKnownKeys(t *testing.T) {
	t.Parallel()

	e := env(kv("host", "api.example.com", true), kv("id", "42", true))
	res := Resolve("https://[host]/users/[id]", e)
	expected := "https://api.example.com/users/42"
	if res.Text != expected {
		t.Fatalf("expected %q, got %q", expected, res.Text)
	}
	if len(res.Used) != 2 || res.Used["host"] != "api.example.com" || res.Used["id"] != "42" {
		t.Fatalf("unexpected used map %v", res.Used)
	}
}

func TestResolveLeavesMissingAndDisabledVerbatim(t *testing.T) {
	t.Parallel()

	e := env(kv("token", "secret", false), kv("host", "h", true))
	res := Resolve("[host]/[token]/[missing]", e)
	if res.Text != "h/[token]/[missing]" {
		t.Fatalf("expected disabled and missing keys to stay, got %q", res.Text)
	}
	if _, ok := res.Used["token"]; ok {
		t.Fatalf("disabled variable must not be recorded as used")
	}
	if len(res.Used) != 1 {
		t.Fatalf("expected only host to be used, got %v", res.Used)
	}
}

func TestResolveNilEnvironmentIsIdentity(t *testing.T) {
	t.Parallel()

	res := Resolve("[host]/x", nil)
	if res.Text != "[host]/x" {
		t.Fatalf("expected identity, got %q", res.Text)
	}
	if len(res.Used) != 0 {
		t.Fatalf("expected no used variables, got %v", res.Used)
	}
}

func TestResolveDoesNotRescanValues(t *testing.T) {
	t.Parallel()

	e := env(kv("a", "[b]", true), kv("b", "deep", true))
	res := Resolve("[a]", e)
	if res.Text != "[b]" {
		t.Fatalf("expected single pass result [b], got %q", res.Text)
	}
	if _, ok := res.Used["b"]; ok {
		t.Fatalf("b was never substituted, got %v", res.Used)
	}
}

func TestResolveIdempotentWithoutBracketsInValues(t *testing.T) {
	t.Parallel()

	e := env(kv("host", "example.com", true), kv("path", "v1/items", true))
	once := Resolve("https://[host]/[path]?q=[missing]", e).Text
	twice := Resolve(once, e).Text
	if once != twice {
		t.Fatalf("expected idempotent resolution, got %q then %q", once, twice)
	}
}

func TestResolveLastDeclarationWins(t *testing.T) {
	t.Parallel()

	e := env(kv("host", "first", true), kv("host", "second", true), kv("host", "third", false))
	res := Resolve("[host]", e)
	if res.Text != "second" {
		t.Fatalf("expected last enabled declaration, got %q", res.Text)
	}
}

func TestResolveIgnoresEmptyKeysAndBrackets(t *testing.T) {
	t.Parallel()

	e := env(kv("", "nope", true), kv("x", "1", true))
	res := Resolve("[] [x] [x", e)
	if res.Text != "[] 1 [x" {
		t.Fatalf("unexpected result %q", res.Text)
	}
}

func TestResolverAccumulatesUsed(t *testing.T) {
	t.Parallel()

	r := NewResolver(env(kv("a", "1", true), kv("b", "2", true)))
	out := r.ResolveAll("[a]", "none", "[b]-[a]")
	if out[0] != "1" || out[1] != "none" || out[2] != "2-1" {
		t.Fatalf("unexpected results %v", out)
	}
	used := r.Used()
	if len(used) != 2 || used["a"] != "1" || used["b"] != "2" {
		t.Fatalf("unexpected used map %v", used)
	}
	used["a"] = "mutated"
	if v, _ := r.Lookup("a"); v != "1" {
		t.Fatalf("lookup changed after mutating Used copy: %q", v)
	}
}

func TestNilResolverPassesThrough(t *testing.T) {
	t.Parallel()

	var r *Resolver
	if got := r.Resolve("[a]"); got != "[a]" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	keys := Placeholders("[host]/[id]/[host]/[base url]")
	expected := []string{"host", "id", "base url"}
	if len(keys) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, keys)
	}
	for i := range expected {
		if keys[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, keys)
		}
	}
}
