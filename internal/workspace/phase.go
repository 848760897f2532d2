package workspace

import "github.com/unkn0wn-root/patchcat/internal/model"

type SendState string

const (
	SendIdle      SendState = "idle"
	SendLoading   SendState = "loading"
	SendResponded SendState = "responded"
	SendErrored   SendState = "errored"
)

// SendPhase derives the REST/GraphQL send state. A status-0 response is a
// synthetic failure.
func SendPhase(tab model.Tab) SendState {
	switch {
	case tab.IsLoading:
		return SendLoading
	case tab.Response == nil:
		return SendIdle
	case tab.Response.Status == 0:
		return SendErrored
	default:
		return SendResponded
	}
}

type SchemaState string

const (
	SchemaStateIdle    SchemaState = "idle"
	SchemaStateLoading SchemaState = "loading"
	SchemaStateLoaded  SchemaState = "loaded"
	SchemaStateErrored SchemaState = "errored"
)

func SchemaPhase(tab model.Tab) SchemaState {
	switch {
	case tab.GQLSchemaLoading:
		return SchemaStateLoading
	case tab.GQLSchemaError != "":
		return SchemaStateErrored
	case tab.GQLSchema != nil:
		return SchemaStateLoaded
	default:
		return SchemaStateIdle
	}
}

// SchemaFetchable reports whether url is worth introspecting.
func SchemaFetchable(url string) bool {
	return url != "" && url != GraphQLPlaceholder
}

// NeedsSchemaFetch reports whether moving from prev to next should trigger a
// schema refetch: next is a GraphQL tab whose URL changed to a fetchable value,
// or a tab that just became GraphQL with a fetchable URL.
func NeedsSchemaFetch(prev, next model.Tab) bool {
	if next.Request.Protocol != model.ProtocolGraphQL || !SchemaFetchable(next.Request.URL) {
		return false
	}
	if prev.Request.Protocol != model.ProtocolGraphQL {
		return true
	}
	return prev.Request.URL != next.Request.URL
}
