package curl

import (
	"strings"
	"testing"

	"github.com/unkn0wn-root/patchcat/internal/merge"
	"github.com/unkn0wn-root/patchcat/internal/model"
)

func TestSplitTokensQuoting(t *testing.T) {
	t.Parallel()
	got, err := splitTokens(`curl -H "X-A: \"q\"" 'it'\''s' $'a\tb' \
  next`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"curl", "-H", `X-A: "q"`, "it's", "a\tb", "next"}
	if len(got) != len(want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSplitTokensUnterminated(t *testing.T) {
	t.Parallel()
	if _, err := splitTokens(`curl 'open`); err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}

func TestParseSimpleGET(t *testing.T) {
	t.Parallel()
	imp, err := Parse("$ curl https://example.com/items?page=2&q=a%20b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := imp.Request
	if *req.Method != "GET" {
		t.Fatalf("expected GET, got %s", *req.Method)
	}
	if *req.URL != "https://example.com/items" {
		t.Fatalf("unexpected url %q", *req.URL)
	}
	if len(req.QueryParams) != 2 || req.QueryParams[1].Key != "q" || req.QueryParams[1].Value != "a b" {
		t.Fatalf("unexpected params %+v", req.QueryParams)
	}
}

func TestParseHeadersBodyAndBearer(t *testing.T) {
	t.Parallel()
	cmd := `curl -sSL -XPOST https://api.example.com/users -H 'Content-Type: application/json' ` +
		`-H "Authorization: Bearer tok-1" --data '{"name":"Sam"}'`
	imp, err := Parse(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := imp.Request
	if *req.Method != "POST" {
		t.Fatalf("expected POST, got %s", *req.Method)
	}
	if len(req.Headers) != 1 || req.Headers[0].Value != "application/json" {
		t.Fatalf("unexpected headers %+v", req.Headers)
	}
	if req.Auth == nil || req.Auth.Type != model.AuthBearer || req.Auth.Token != "tok-1" {
		t.Fatalf("expected bearer auth, got %+v", req.Auth)
	}
	if req.Body.Content != `{"name":"Sam"}` {
		t.Fatalf("unexpected body %q", req.Body.Content)
	}
	if len(imp.Warnings) != 1 || !strings.Contains(imp.Warnings[0], "-L") {
		t.Fatalf("expected a warning for -L, got %v", imp.Warnings)
	}
}

func TestParseImplicitPostAndGet(t *testing.T) {
	t.Parallel()
	imp, err := Parse("curl https://example.com --data foo=bar -d baz=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *imp.Request.Method != "POST" || imp.Request.Body.Content != "foo=bar&baz=1" {
		t.Fatalf("unexpected request %s %q", *imp.Request.Method, imp.Request.Body.Content)
	}

	imp, err = Parse("curl -G https://example.com --data foo=bar")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *imp.Request.Method != "GET" {
		t.Fatalf("expected GET with -G, got %s", *imp.Request.Method)
	}
	if len(imp.Request.QueryParams) != 1 || imp.Request.QueryParams[0].Key != "foo" {
		t.Fatalf("expected data moved to params, got %+v", imp.Request.QueryParams)
	}
}

func TestParseBasicAuthAndForm(t *testing.T) {
	t.Parallel()
	imp, err := Parse("curl -u user:pass -F name=Sam -F avatar=@/tmp/me.png https://example.com/up")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := imp.Request
	if len(req.Headers) != 1 || req.Headers[0].Value != "Basic dXNlcjpwYXNz" {
		t.Fatalf("expected basic auth header, got %+v", req.Headers)
	}
	if req.Body.Kind != model.BodyFormData || len(req.Body.Fields) != 2 {
		t.Fatalf("expected two form fields, got %+v", req.Body)
	}
	file := req.Body.Fields[1]
	if file.Type != model.FieldFile || file.Value != "me.png" {
		t.Fatalf("unexpected file field %+v", file)
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	for _, cmd := range []string{"wget https://example.com", "curl -H", "curl -s"} {
		if _, err := Parse(cmd); err == nil {
			t.Fatalf("expected error for %q", cmd)
		}
	}
}

func TestCommand(t *testing.T) {
	t.Parallel()
	eff := merge.Effective{
		Method:  "POST",
		URL:     "https://example.com/a?x=1&y=2",
		Headers: []merge.Pair{{Key: "Content-Type", Value: "application/json"}},
		Body:    model.RawBody(`{"it's":1}`),
		HasBody: true,
	}
	got := Command(eff)
	want := `curl -X POST 'https://example.com/a?x=1&y=2' -H 'Content-Type: application/json' --data-raw '{"it'\''s":1}'`
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	round, err := Parse(got)
	if err != nil {
		t.Fatalf("parse rendered command: %v", err)
	}
	if round.Request.Body.Content != `{"it's":1}` {
		t.Fatalf("unexpected round-trip body %q", round.Request.Body.Content)
	}
}

func TestCommandGETOmitsMethod(t *testing.T) {
	t.Parallel()
	got := Command(merge.Effective{Method: "GET", URL: "https://example.com/"})
	if got != "curl https://example.com/" {
		t.Fatalf("unexpected command %q", got)
	}
}
