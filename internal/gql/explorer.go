// Package gql renders introspection results and builds GraphQL request payloads.
package gql

import (
	"strings"

	"github.com/unkn0wn-root/patchcat/internal/model"
)

type OperationType string

const (
	OpQuery    OperationType = "query"
	OpMutation OperationType = "mutation"
)

// TypeName renders a type reference in SDL notation: [T] for lists and T! for non-null.
func TypeName(ref *model.GraphQLTypeRef) string {
	if ref == nil {
		return ""
	}
	switch ref.Kind {
	case "LIST":
		return "[" + TypeName(ref.OfType) + "]"
	case "NON_NULL":
		return TypeName(ref.OfType) + "!"
	default:
		return ref.Name
	}
}

func FieldSignature(f model.GraphQLField) string {
	var b strings.Builder
	b.WriteString(f.Name)
	if len(f.Args) > 0 {
		b.WriteByte('(')
		for i, arg := range f.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(arg.Name)
			b.WriteString(": ")
			b.WriteString(TypeName(&arg.Type))
		}
		b.WriteByte(')')
	}
	b.WriteString(": ")
	b.WriteString(TypeName(&f.Type))
	return b.String()
}

// OperationName is the op type and field name, each with the first letter upper-cased.
func OperationName(f model.GraphQLField, op OperationType) string {
	return capitalize(string(op)) + capitalize(f.Name)
}

// SampleOperation builds a skeleton document that declares every argument as a
// variable and leaves the selection set for the user to fill.
func SampleOperation(f model.GraphQLField, op OperationType) string {
	defs := make([]string, 0, len(f.Args))
	uses := make([]string, 0, len(f.Args))
	for _, arg := range f.Args {
		defs = append(defs, "$"+arg.Name+": "+TypeName(&arg.Type))
		uses = append(uses, arg.Name+": $"+arg.Name)
	}

	var b strings.Builder
	b.WriteString(string(op))
	b.WriteByte(' ')
	b.WriteString(OperationName(f, op))
	if len(defs) > 0 {
		b.WriteString("(" + strings.Join(defs, ", ") + ")")
	}
	b.WriteString(" {\n  ")
	b.WriteString(f.Name)
	if len(uses) > 0 {
		b.WriteString("(" + strings.Join(uses, ", ") + ")")
	}
	b.WriteString(" {\n    # Add fields here\n  }\n}")
	return b.String()
}

// RootFields returns the fields of the query or mutation root type that match
// term by name or signature, case-insensitively. An empty term matches all.
func RootFields(schema *model.GraphQLSchema, op OperationType, term string) []model.GraphQLField {
	if schema == nil {
		return nil
	}
	var root *model.GraphQLNamedRef
	switch op {
	case OpMutation:
		root = schema.MutationType
	default:
		root = schema.QueryType
	}
	if root == nil {
		return nil
	}
	typ := schema.TypeByName(root.Name)
	if typ == nil {
		return nil
	}
	return FilterFields(typ.Fields, term)
}

func FilterFields(fields []model.GraphQLField, term string) []model.GraphQLField {
	term = strings.ToLower(term)
	if term == "" {
		return fields
	}
	out := make([]model.GraphQLField, 0, len(fields))
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f.Name), term) ||
			strings.Contains(strings.ToLower(FieldSignature(f)), term) {
			out = append(out, f)
		}
	}
	return out
}

// FindRootField looks up a root field by exact name.
func FindRootField(schema *model.GraphQLSchema, op OperationType, name string) (model.GraphQLField, bool) {
	for _, f := range RootFields(schema, op, "") {
		if f.Name == name {
			return f, true
		}
	}
	return model.GraphQLField{}, false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
