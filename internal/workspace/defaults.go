package workspace

import "github.com/unkn0wn-root/patchcat/internal/model"

const (
	DefaultRESTURL      = "https://jsonplaceholder.typicode.com/todos/1"
	DefaultWebSocketURL = "wss://socketsbay.com/wss/v2/1/demo/"
	GraphQLPlaceholder  = "[gql_host]"

	DefaultGraphQLQuery = "query GetTodo($id: ID!) {\n  todo(id: $id) {\n    id\n    title\n    completed\n  }\n}"
	DefaultGQLVariables = "{\n  \"id\": 1\n}"

	FirstTabName   = "My First Request"
	DefaultTheme   = "Supabase"
	DefaultFont    = "Inter"
	WelcomeMessage = "Welcome to Patchcat AI! I can help you test your APIs. Make a request, and I'll analyze the response."

	HistoryLimit       = 50
	AIMessageLimit     = 20
	AnalysisCacheLimit = 50
	WSMessageLimit     = 100
)

func defaultRequest(id, name string) model.Request {
	return model.Request{
		ID:          id,
		Name:        name,
		Protocol:    model.ProtocolREST,
		URL:         DefaultRESTURL,
		Method:      model.MethodGet,
		Headers:     []model.KeyValue{},
		QueryParams: []model.KeyValue{},
		Body:        model.RawBody(""),
		Auth:        model.Auth{Type: model.AuthInherit},
	}
}

func firstTab(tabID, requestID string) model.Tab {
	return model.Tab{
		ID:      tabID,
		Name:    FirstTabName,
		Request: defaultRequest(requestID, FirstTabName),
	}
}

func defaultSettings() model.Settings {
	return model.Settings{
		Theme:             DefaultTheme,
		Font:              DefaultFont,
		AIEnabled:         true,
		GlobalHeaders:     []model.KeyValue{},
		GlobalQueryParams: []model.KeyValue{},
		GlobalAuth:        model.Auth{Type: model.AuthNone},
		Environments:      []model.Environment{},
	}
}

// enterProtocol applies the structural defaults of p to tab. Fields present in
// override are left as the caller set them.
func enterProtocol(tab *model.Tab, p model.Protocol, override model.PartialRequest) {
	switch p {
	case model.ProtocolWebSocket:
		tab.WSStatus = model.WSDisconnected
		tab.WSMessages = []model.WSMessage{}
		if override.URL == nil {
			tab.Request.URL = DefaultWebSocketURL
		}
	case model.ProtocolGraphQL:
		tab.GQLVariables = DefaultGQLVariables
		tab.GQLSchema = nil
		tab.GQLSchemaError = ""
		tab.GQLSchemaLoading = false
		if override.Method == nil {
			tab.Request.Method = model.MethodPost
		}
		if override.Body == nil {
			tab.Request.Body = model.RawBody(DefaultGraphQLQuery)
		}
	case model.ProtocolREST:
		if override.URL == nil {
			tab.Request.URL = DefaultRESTURL
		}
	}
}

// leaveProtocol drops the sub-state owned by p.
func leaveProtocol(tab *model.Tab, p model.Protocol) {
	switch p {
	case model.ProtocolWebSocket:
		tab.WSStatus = ""
		tab.WSMessages = nil
	case model.ProtocolGraphQL:
		tab.GQLSchema = nil
		tab.GQLSchemaLoading = false
		tab.GQLSchemaError = ""
		tab.GQLVariables = ""
	}
}
