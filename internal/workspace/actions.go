package workspace

import (
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/patchcat/internal/model"
)

// Action is a sealed set of state transitions; only this package defines them.
type Action interface {
	action()
}

// Ids that a transition needs are carried on the action so Reduce stays
// deterministic. The New* constructors fill them with fresh uuids.

type AddTab struct {
	Protocol   model.Protocol
	Request    *model.PartialRequest
	MakeActive *bool
	TabID      string
	RequestID  string
}

type CloseTab struct {
	TabID string
	// Used only when closing the last tab.
	FallbackTabID     string
	FallbackRequestID string
}

type DuplicateTab struct {
	TabID        string
	NewTabID     string
	NewRequestID string
}

type SetActiveTab struct {
	TabID string
}

type UpdateTabName struct {
	TabID string
	Name  string
}

type UpdateRequest struct {
	TabID   string
	Request model.PartialRequest
}

type SetResponse struct {
	TabID    string
	Response model.Response
}

type SetLoading struct {
	TabID   string
	Loading bool
}

type PartialSettings struct {
	Theme             *string
	Font              *string
	AIEnabled         *bool
	AICredential      *string
	GlobalHeaders     []model.KeyValue
	GlobalQueryParams []model.KeyValue
	GlobalAuth        *model.Auth
}

type UpdateSettings struct {
	Settings PartialSettings
}

type AddEnvironment struct {
	Environment model.Environment
	MakeActive  bool
}

type UpdateEnvironment struct {
	ID        string
	Name      *string
	Variables []model.KeyValue
}

type DeleteEnvironment struct {
	ID string
}

// SetActiveEnvironment with an empty ID deselects the active environment.
type SetActiveEnvironment struct {
	ID string
}

type AddHistory struct {
	Request model.Request
}

type RemoveHistory struct {
	ID string
}

type ClearHistory struct{}

type AddAIMessage struct {
	Message model.AIMessage
}

type AddToAnalysisCache struct {
	Key string
}

type SetWSStatus struct {
	TabID  string
	Status model.WSStatus
}

type AddWSMessage struct {
	TabID   string
	Message model.WSMessage
}

// SetGQLSchemaState updates only the non-nil fields.
type SetGQLSchemaState struct {
	TabID   string
	Schema  *model.GraphQLSchema
	Loading *bool
	Error   *string
}

type UpdateGQLVariables struct {
	TabID     string
	Variables string
}

type LoadWorkspace struct {
	Snapshot          State
	FallbackTabID     string
	FallbackRequestID string
}

func (AddTab) action()               {}
func (CloseTab) action()             {}
func (DuplicateTab) action()         {}
func (SetActiveTab) action()         {}
func (UpdateTabName) action()        {}
func (UpdateRequest) action()        {}
func (SetResponse) action()          {}
func (SetLoading) action()           {}
func (UpdateSettings) action()       {}
func (AddEnvironment) action()       {}
func (UpdateEnvironment) action()    {}
func (DeleteEnvironment) action()    {}
func (SetActiveEnvironment) action() {}
func (AddHistory) action()           {}
func (RemoveHistory) action()        {}
func (ClearHistory) action()         {}
func (AddAIMessage) action()         {}
func (AddToAnalysisCache) action()   {}
func (SetWSStatus) action()          {}
func (AddWSMessage) action()         {}
func (SetGQLSchemaState) action()    {}
func (UpdateGQLVariables) action()   {}
func (LoadWorkspace) action()        {}

func NewAddTab(protocol model.Protocol, req *model.PartialRequest, makeActive bool) AddTab {
	return AddTab{
		Protocol:   protocol,
		Request:    req,
		MakeActive: &makeActive,
		TabID:      uuid.NewString(),
		RequestID:  uuid.NewString(),
	}
}

func NewCloseTab(tabID string) CloseTab {
	return CloseTab{
		TabID:             tabID,
		FallbackTabID:     uuid.NewString(),
		FallbackRequestID: uuid.NewString(),
	}
}

func NewDuplicateTab(tabID string) DuplicateTab {
	return DuplicateTab{
		TabID:        tabID,
		NewTabID:     uuid.NewString(),
		NewRequestID: uuid.NewString(),
	}
}

func NewLoadWorkspace(snapshot State) LoadWorkspace {
	return LoadWorkspace{
		Snapshot:          snapshot,
		FallbackTabID:     uuid.NewString(),
		FallbackRequestID: uuid.NewString(),
	}
}

func NewAIMessage(kind model.AIMessageType, content string, suggestions ...model.Suggestion) AddAIMessage {
	return AddAIMessage{Message: model.AIMessage{
		ID:          uuid.NewString(),
		Type:        kind,
		Content:     content,
		Suggestions: suggestions,
	}}
}

func NewWSMessage(tabID string, dir model.WSDirection, content string, at time.Time) AddWSMessage {
	return AddWSMessage{TabID: tabID, Message: model.WSMessage{
		ID:        uuid.NewString(),
		Direction: dir,
		Content:   content,
		Timestamp: at.UnixMilli(),
	}}
}

func NewEnvironment(name string, variables ...model.KeyValue) model.Environment {
	if variables == nil {
		variables = []model.KeyValue{}
	}
	return model.Environment{ID: uuid.NewString(), Name: name, Variables: variables}
}

func NewKeyValue(key, value string) model.KeyValue {
	return model.KeyValue{ID: uuid.NewString(), Key: key, Value: value, Enabled: true}
}

func SchemaLoading(tabID string) SetGQLSchemaState {
	empty := ""
	return SetGQLSchemaState{TabID: tabID, Loading: model.Ptr(true), Error: &empty}
}

func SchemaLoaded(tabID string, schema *model.GraphQLSchema) SetGQLSchemaState {
	empty := ""
	return SetGQLSchemaState{TabID: tabID, Schema: schema, Loading: model.Ptr(false), Error: &empty}
}

func SchemaFailed(tabID, message string) SetGQLSchemaState {
	return SetGQLSchemaState{TabID: tabID, Loading: model.Ptr(false), Error: &message}
}
