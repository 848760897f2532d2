package gql

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
	"github.com/unkn0wn-root/patchcat/internal/httpclient"
	"github.com/unkn0wn-root/patchcat/internal/model"
)

func named(name string) model.GraphQLTypeRef {
	return model.GraphQLTypeRef{Kind: "SCALAR", Name: name}
}

func nonNull(ref model.GraphQLTypeRef) model.GraphQLTypeRef {
	return model.GraphQLTypeRef{Kind: "NON_NULL", OfType: &ref}
}

func list(ref model.GraphQLTypeRef) model.GraphQLTypeRef {
	return model.GraphQLTypeRef{Kind: "LIST", OfType: &ref}
}

func testSchema() *model.GraphQLSchema {
	userRef := model.GraphQLTypeRef{Kind: "OBJECT", Name: "User"}
	return &model.GraphQLSchema{
		QueryType:    &model.GraphQLNamedRef{Name: "Query"},
		MutationType: &model.GraphQLNamedRef{Name: "Mutation"},
		Types: []model.GraphQLType{
			{Kind: "OBJECT", Name: "Query", Fields: []model.GraphQLField{
				{
					Name: "user",
					Args: []model.GraphQLInputField{{Name: "id", Type: nonNull(named("ID"))}},
					Type: userRef,
				},
				{Name: "users", Type: nonNull(list(nonNull(userRef)))},
			}},
			{Kind: "OBJECT", Name: "Mutation", Fields: []model.GraphQLField{
				{
					Name: "createUser",
					Args: []model.GraphQLInputField{
						{Name: "name", Type: nonNull(named("String"))},
						{Name: "age", Type: named("Int")},
					},
					Type: userRef,
				},
			}},
		},
	}
}

func TestTypeName(t *testing.T) {
	t.Parallel()
	ref := nonNull(list(nonNull(named("User"))))
	if got := TypeName(&ref); got != "[User!]!" {
		t.Fatalf("expected %q, got %q", "[User!]!", got)
	}
	if got := TypeName(nil); got != "" {
		t.Fatalf("expected empty name for nil ref, got %q", got)
	}
}

func TestFieldSignature(t *testing.T) {
	t.Parallel()
	fields := testSchema().Types[0].Fields
	if got := FieldSignature(fields[0]); got != "user(id: ID!): User" {
		t.Fatalf("unexpected signature %q", got)
	}
	if got := FieldSignature(fields[1]); got != "users: [User!]!" {
		t.Fatalf("unexpected signature %q", got)
	}
}

func TestSampleOperation(t *testing.T) {
	t.Parallel()
	mutation := testSchema().Types[1].Fields[0]
	want := "mutation MutationCreateUser($name: String!, $age: Int) {\n  createUser(name: $name, age: $age) {\n    # Add fields here\n  }\n}"
	if got := SampleOperation(mutation, OpMutation); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	users := testSchema().Types[0].Fields[1]
	want = "query QueryUsers {\n  users {\n    # Add fields here\n  }\n}"
	if got := SampleOperation(users, OpQuery); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRootFieldsFilter(t *testing.T) {
	t.Parallel()
	schema := testSchema()
	if got := RootFields(schema, OpQuery, ""); len(got) != 2 {
		t.Fatalf("expected 2 query fields, got %d", len(got))
	}
	got := RootFields(schema, OpQuery, "ID!")
	if len(got) != 1 || got[0].Name != "user" {
		t.Fatalf("expected signature match on user, got %+v", got)
	}
	got = RootFields(schema, OpMutation, "CREATE")
	if len(got) != 1 {
		t.Fatalf("expected case-insensitive match, got %+v", got)
	}
	if got := RootFields(schema, OpQuery, "nothing"); len(got) != 0 {
		t.Fatalf("expected no matches, got %+v", got)
	}
	schema.MutationType = nil
	if got := RootFields(schema, OpMutation, ""); got != nil {
		t.Fatalf("expected nil without mutation root, got %+v", got)
	}
}

func TestParseVariables(t *testing.T) {
	t.Parallel()
	vars, err := ParseVariables(`{"id": 1}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if vars["id"].(json.Number).String() != "1" {
		t.Fatalf("expected id 1, got %v", vars["id"])
	}
	if vars, err := ParseVariables("  "); err != nil || vars != nil {
		t.Fatalf("expected nil variables for blank input, got %v %v", vars, err)
	}
	for _, bad := range []string{`{"id":`, `[1]`, `{} {}`} {
		_, err := ParseVariables(bad)
		if errdef.CodeOf(err) != errdef.CodeValidation {
			t.Fatalf("%q: expected validation error, got %v", bad, err)
		}
	}
}

func TestPayload(t *testing.T) {
	t.Parallel()
	body, err := Payload("query Q { a }", "Q", `{"x": true}`)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["query"] != "query Q { a }" || got["operationName"] != "Q" {
		t.Fatalf("unexpected payload %s", body)
	}
	if vars, ok := got["variables"].(map[string]any); !ok || vars["x"] != true {
		t.Fatalf("unexpected variables in %s", body)
	}

	body, err = Payload("{ a }", "", "")
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if string(body) != `{"query":"{ a }"}` {
		t.Fatalf("unexpected minimal payload %s", body)
	}
}

func TestFetchSchema(t *testing.T) {
	t.Parallel()
	var gotQuery, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(data, &req)
		gotQuery, _ = req["query"].(string)
		gotType = r.Header.Get("Content-Type")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"__schema": testSchema()},
		})
	}))
	defer srv.Close()

	schema, err := FetchSchema(context.Background(), httpclient.NewClient(httpclient.Options{}), srv.URL, nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotQuery != IntrospectionQuery {
		t.Fatalf("expected introspection query to be sent")
	}
	if gotType != "application/json" {
		t.Fatalf("expected json content type, got %q", gotType)
	}
	if schema.QueryType.Name != "Query" || len(schema.Types) != 2 {
		t.Fatalf("unexpected schema %+v", schema)
	}
}

type stubSender struct {
	raw *httpclient.Raw
	err error
}

func (s stubSender) Send(context.Context, httpclient.Outbound) (*httpclient.Raw, error) {
	return s.raw, s.err
}

func TestFetchSchemaFailures(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	if _, err := FetchSchema(context.Background(), stubSender{err: boom}, "http://x", nil); !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}

	_, err := FetchSchema(context.Background(), stubSender{raw: &httpclient.Raw{StatusCode: 500, StatusText: "Internal Server Error"}}, "http://x", nil)
	if err == nil {
		t.Fatalf("expected status error")
	}

	body := []byte(`{"errors":[{"message":"introspection disabled"}]}`)
	_, err = FetchSchema(context.Background(), stubSender{raw: &httpclient.Raw{StatusCode: 200, Body: body}}, "http://x", nil)
	if err == nil || errdef.Message(err) != "introspection disabled" {
		t.Fatalf("expected graphql error message, got %v", err)
	}
}
