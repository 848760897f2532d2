package gql

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
	"github.com/unkn0wn-root/patchcat/internal/httpclient"
	"github.com/unkn0wn-root/patchcat/internal/merge"
	"github.com/unkn0wn-root/patchcat/internal/model"
)

const IntrospectionQuery = `query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    subscriptionType { name }
    types {
      ...FullType
    }
  }
}

fragment FullType on __Type {
  kind
  name
  description
  fields(includeDeprecated: true) {
    name
    description
    args {
      ...InputValue
    }
    type {
      ...TypeRef
    }
    isDeprecated
    deprecationReason
  }
  inputFields {
    ...InputValue
  }
  interfaces {
    ...TypeRef
  }
  enumValues(includeDeprecated: true) {
    name
    description
    isDeprecated
    deprecationReason
  }
  possibleTypes {
    ...TypeRef
  }
}

fragment InputValue on __InputValue {
  name
  description
  type { ...TypeRef }
  defaultValue
}

fragment TypeRef on __Type {
  kind
  name
  ofType {
    kind
    name
    ofType {
      kind
      name
      ofType {
        kind
        name
        ofType {
          kind
          name
          ofType {
            kind
            name
            ofType {
              kind
              name
              ofType {
                kind
                name
              }
            }
          }
        }
      }
    }
  }
}`

type Sender interface {
	Send(ctx context.Context, out httpclient.Outbound) (*httpclient.Raw, error)
}

type introspectionResponse struct {
	Data *struct {
		Schema *model.GraphQLSchema `json:"__schema"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchSchema posts the introspection query to endpoint. The endpoint must
// already have its variables resolved.
func FetchSchema(ctx context.Context, sender Sender, endpoint string, headers []merge.Pair) (*model.GraphQLSchema, error) {
	body, err := Payload(IntrospectionQuery, "IntrospectionQuery", "")
	if err != nil {
		return nil, err
	}
	hdrs := append([]merge.Pair(nil), headers...)
	if !merge.HasHeader(hdrs, "Content-Type") {
		hdrs = append(hdrs, merge.Pair{Key: "Content-Type", Value: "application/json"})
	}
	raw, err := sender.Send(ctx, httpclient.Outbound{
		Name:    "IntrospectionQuery",
		Method:  http.MethodPost,
		URL:     endpoint,
		Headers: hdrs,
		Body:    model.RawBody(string(body)),
		HasBody: true,
	})
	if err != nil {
		return nil, err
	}
	if raw.StatusCode < 200 || raw.StatusCode >= 300 {
		return nil, errdef.New(errdef.CodeHTTP, "introspection failed: %d %s", raw.StatusCode, raw.StatusText)
	}
	return ParseIntrospection(raw.Body)
}

// ParseIntrospection decodes a {data: {__schema}} response. GraphQL errors are
// joined into one error when no schema came back.
func ParseIntrospection(data []byte) (*model.GraphQLSchema, error) {
	var resp introspectionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, err, "decode introspection response")
	}
	if resp.Data == nil || resp.Data.Schema == nil {
		if len(resp.Errors) > 0 {
			msgs := make([]string, 0, len(resp.Errors))
			for _, e := range resp.Errors {
				msgs = append(msgs, e.Message)
			}
			return nil, errdef.New(errdef.CodeHTTP, "%s", strings.Join(msgs, "; "))
		}
		return nil, errdef.New(errdef.CodeParse, "introspection response has no schema")
	}
	if resp.Data.Schema.QueryType == nil {
		return nil, errdef.New(errdef.CodeParse, "introspection schema has no query type")
	}
	return resp.Data.Schema, nil
}
