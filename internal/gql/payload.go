package gql

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
)

// ParseVariables decodes a variables document. Blank input yields nil; anything
// other than a single JSON object is a validation error.
func ParseVariables(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()
	var payload map[string]any
	if err := decoder.Decode(&payload); err != nil {
		return nil, errdef.Wrap(errdef.CodeValidation, err, "parse graphql variables")
	}
	if err := decoder.Decode(new(any)); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, errdef.New(errdef.CodeValidation, "unexpected trailing data in graphql variables")
		}
		return nil, errdef.Wrap(errdef.CodeValidation, err, "parse graphql variables")
	}
	return payload, nil
}

// Payload encodes the POST body for a GraphQL request.
func Payload(query, operationName, variables string) ([]byte, error) {
	vars, err := ParseVariables(variables)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"query": query}
	if operationName != "" {
		payload["operationName"] = operationName
	}
	if vars != nil {
		payload["variables"] = vars
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, err, "encode graphql payload")
	}
	return body, nil
}
