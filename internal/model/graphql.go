package model

// GraphQLSchema mirrors the __schema introspection result. A fetched schema is
// treated as immutable, so tabs may share one value.
type GraphQLSchema struct {
	QueryType        *GraphQLNamedRef `json:"queryType"`
	MutationType     *GraphQLNamedRef `json:"mutationType,omitempty"`
	SubscriptionType *GraphQLNamedRef `json:"subscriptionType,omitempty"`
	Types            []GraphQLType    `json:"types"`
}

type GraphQLNamedRef struct {
	Name string `json:"name"`
}

type GraphQLType struct {
	Kind          string              `json:"kind"`
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	Fields        []GraphQLField      `json:"fields,omitempty"`
	InputFields   []GraphQLInputField `json:"inputFields,omitempty"`
	Interfaces    []GraphQLTypeRef    `json:"interfaces,omitempty"`
	EnumValues    []GraphQLEnumValue  `json:"enumValues,omitempty"`
	PossibleTypes []GraphQLTypeRef    `json:"possibleTypes,omitempty"`
	OfType        *GraphQLTypeRef     `json:"ofType,omitempty"`
}

type GraphQLField struct {
	Name              string              `json:"name"`
	Description       string              `json:"description,omitempty"`
	Args              []GraphQLInputField `json:"args"`
	Type              GraphQLTypeRef      `json:"type"`
	IsDeprecated      bool                `json:"isDeprecated"`
	DeprecationReason string              `json:"deprecationReason,omitempty"`
}

type GraphQLInputField struct {
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Type         GraphQLTypeRef `json:"type"`
	DefaultValue *string        `json:"defaultValue,omitempty"`
}

type GraphQLEnumValue struct {
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	IsDeprecated      bool   `json:"isDeprecated"`
	DeprecationReason string `json:"deprecationReason,omitempty"`
}

type GraphQLTypeRef struct {
	Kind   string          `json:"kind"`
	Name   string          `json:"name,omitempty"`
	OfType *GraphQLTypeRef `json:"ofType,omitempty"`
}

// TypeByName returns nil when the schema has no such type.
func (s *GraphQLSchema) TypeByName(name string) *GraphQLType {
	if s == nil || name == "" {
		return nil
	}
	for i := range s.Types {
		if s.Types[i].Name == name {
			return &s.Types[i]
		}
	}
	return nil
}
