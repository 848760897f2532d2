package model

type Protocol string

const (
	ProtocolREST      Protocol = "REST"
	ProtocolGraphQL   Protocol = "GraphQL"
	ProtocolWebSocket Protocol = "WebSocket"
)

func (p Protocol) Valid() bool {
	switch p {
	case ProtocolREST, ProtocolGraphQL, ProtocolWebSocket:
		return true
	}
	return false
}

const (
	MethodGet     = "GET"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodPatch   = "PATCH"
	MethodDelete  = "DELETE"
	MethodHead    = "HEAD"
	MethodOptions = "OPTIONS"
)

// Methods lists the verbs offered for REST tabs. Request.Method is free-form.
var Methods = []string{
	MethodGet,
	MethodPost,
	MethodPut,
	MethodPatch,
	MethodDelete,
	MethodHead,
	MethodOptions,
}

// KeyValue is a header, query parameter or environment variable row.
// Disabled rows stay in the model for editing but are never sent or substituted.
type KeyValue struct {
	ID      string `json:"id"`
	Key     string `json:"key"`
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

type AuthType string

const (
	AuthNone    AuthType = "none"
	AuthBearer  AuthType = "bearer"
	AuthInherit AuthType = "inherit"
)

// Auth on a request may be AuthInherit; an empty Type means the field was absent
// and is treated the same way. Global auth is never AuthInherit.
type Auth struct {
	Type  AuthType `json:"type"`
	Token string   `json:"token,omitempty"`
}

func (a Auth) Inherits() bool {
	return a.Type == "" || a.Type == AuthInherit
}

type Request struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Protocol      Protocol   `json:"protocol"`
	URL           string     `json:"url"`
	Method        string     `json:"method"`
	Headers       []KeyValue `json:"headers"`
	QueryParams   []KeyValue `json:"queryParams"`
	Body          Body       `json:"body"`
	Auth          Auth       `json:"auth"`
	IsAIGenerated bool       `json:"isAiGenerated,omitempty"`
	Status        int        `json:"status,omitempty"`
	OperationName string     `json:"operationName,omitempty"`
}

type Response struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Time       int64             `json:"time"`
	Size       int64             `json:"size"`
	Data       ResponseData      `json:"data"`
	Headers    map[string]string `json:"headers"`
}

type WSStatus string

const (
	WSDisconnected WSStatus = "disconnected"
	WSConnecting   WSStatus = "connecting"
	WSConnected    WSStatus = "connected"
)

type WSDirection string

const (
	WSSent     WSDirection = "sent"
	WSReceived WSDirection = "received"
	WSSystem   WSDirection = "system"
)

type WSMessage struct {
	ID        string      `json:"id"`
	Direction WSDirection `json:"direction"`
	Content   string      `json:"content"`
	Timestamp int64       `json:"timestamp"`
}

// Tab pairs one request with its transient session state. The ws* fields are only
// populated for WebSocket tabs and the gql* fields only for GraphQL tabs.
type Tab struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsLoading bool      `json:"isLoading"`
	Request   Request   `json:"request"`
	Response  *Response `json:"response,omitempty"`

	WSStatus   WSStatus    `json:"wsStatus,omitempty"`
	WSMessages []WSMessage `json:"wsMessages,omitempty"`

	GQLSchema        *GraphQLSchema `json:"gqlSchema,omitempty"`
	GQLSchemaLoading bool           `json:"gqlSchemaLoading,omitempty"`
	GQLSchemaError   string         `json:"gqlSchemaError,omitempty"`
	GQLVariables     string         `json:"gqlVariables,omitempty"`
}

type Environment struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Variables []KeyValue `json:"variables"`
}

type Settings struct {
	Theme               string        `json:"theme"`
	Font                string        `json:"font"`
	AIEnabled           bool          `json:"aiEnabled"`
	AICredential        string        `json:"geminiApiKey"`
	GlobalHeaders       []KeyValue    `json:"globalHeaders"`
	GlobalQueryParams   []KeyValue    `json:"globalQueryParams"`
	GlobalAuth          Auth          `json:"globalAuth"`
	Environments        []Environment `json:"environments,omitempty"`
	ActiveEnvironmentID string        `json:"activeEnvironmentId,omitempty"`
}

// ActiveEnvironment returns nil when no environment is selected or the id dangles.
func (s Settings) ActiveEnvironment() *Environment {
	if s.ActiveEnvironmentID == "" {
		return nil
	}
	for i := range s.Environments {
		if s.Environments[i].ID == s.ActiveEnvironmentID {
			return &s.Environments[i]
		}
	}
	return nil
}

type AIMessageType string

const (
	AIInfo       AIMessageType = "info"
	AIThinking   AIMessageType = "thinking"
	AISuggestion AIMessageType = "suggestion"
	AIError      AIMessageType = "error"
	AIUser       AIMessageType = "user"
)

type Suggestion struct {
	SuggestionText string         `json:"suggestionText"`
	APIRequest     PartialRequest `json:"apiRequest"`
}

type AIMessage struct {
	ID          string        `json:"id"`
	Type        AIMessageType `json:"type"`
	Content     string        `json:"content"`
	Suggestions []Suggestion  `json:"suggestions,omitempty"`
}
