package workspace

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/patchcat/internal/model"
)

// Reduce returns the state after applying a. It never mutates s, never
// performs I/O and treats unknown ids as no-ops.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case LoadWorkspace:
		return hydrate(a)
	case AddTab:
		return addTab(s, a)
	case CloseTab:
		return closeTab(s, a)
	case DuplicateTab:
		return duplicateTab(s, a)
	case SetActiveTab:
		if s.TabIndex(a.TabID) < 0 {
			return s
		}
		s.ActiveTabID = a.TabID
		return s
	case UpdateTabName:
		return updateTab(s, a.TabID, func(t *model.Tab) {
			t.Name = a.Name
			t.Request.Name = a.Name
		})
	case UpdateRequest:
		return updateTab(s, a.TabID, func(t *model.Tab) {
			applyRequestUpdate(t, a.Request)
		})
	case SetResponse:
		return updateTab(s, a.TabID, func(t *model.Tab) {
			resp := a.Response.Clone()
			t.Response = &resp
			t.IsLoading = false
		})
	case SetLoading:
		return updateTab(s, a.TabID, func(t *model.Tab) {
			t.IsLoading = a.Loading
			if a.Loading {
				t.Response = nil
			}
		})
	case UpdateSettings:
		s.Settings = applySettings(s.Settings, a.Settings)
		return s
	case AddEnvironment:
		return addEnvironment(s, a)
	case UpdateEnvironment:
		return updateEnvironment(s, a)
	case DeleteEnvironment:
		return deleteEnvironment(s, a.ID)
	case SetActiveEnvironment:
		if a.ID != "" && environmentIndex(s.Settings, a.ID) < 0 {
			return s
		}
		s.Settings = s.Settings.Clone()
		s.Settings.ActiveEnvironmentID = a.ID
		return s
	case AddHistory:
		return addHistory(s, a.Request)
	case RemoveHistory:
		history := make([]model.Request, 0, len(s.History))
		for _, h := range s.History {
			if h.ID != a.ID {
				history = append(history, h)
			}
		}
		s.History = history
		return s
	case ClearHistory:
		s.History = []model.Request{}
		return s
	case AddAIMessage:
		return addAIMessage(s, a.Message)
	case AddToAnalysisCache:
		if s.AnalysisCached(a.Key) {
			return s
		}
		s.AnalyzedRequestsCache = keepLast(append(append([]string{}, s.AnalyzedRequestsCache...), a.Key), AnalysisCacheLimit)
		return s
	case SetWSStatus:
		return updateTab(s, a.TabID, func(t *model.Tab) {
			t.WSStatus = a.Status
		})
	case AddWSMessage:
		return updateTab(s, a.TabID, func(t *model.Tab) {
			msgs := append(append([]model.WSMessage{}, t.WSMessages...), a.Message)
			t.WSMessages = keepLast(msgs, WSMessageLimit)
		})
	case SetGQLSchemaState:
		return updateTab(s, a.TabID, func(t *model.Tab) {
			if a.Schema != nil {
				t.GQLSchema = a.Schema
			}
			if a.Loading != nil {
				t.GQLSchemaLoading = *a.Loading
			}
			if a.Error != nil {
				t.GQLSchemaError = *a.Error
			}
		})
	case UpdateGQLVariables:
		return updateTab(s, a.TabID, func(t *model.Tab) {
			t.GQLVariables = a.Variables
		})
	}
	return s
}

func updateTab(s State, id string, fn func(*model.Tab)) State {
	i := s.TabIndex(id)
	if i < 0 {
		return s
	}
	tabs := append([]model.Tab(nil), s.Tabs...)
	tab := tabs[i].Clone()
	fn(&tab)
	tabs[i] = tab
	s.Tabs = tabs
	return s
}

func orNewID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func addTab(s State, a AddTab) State {
	var partial model.PartialRequest
	if a.Request != nil {
		partial = a.Request.Clone()
	}
	protocol := model.ProtocolREST
	switch {
	case partial.Protocol != nil && partial.Protocol.Valid():
		protocol = *partial.Protocol
	case a.Protocol.Valid():
		protocol = a.Protocol
	}
	name := fmt.Sprintf("%s Request %d", protocol, len(s.Tabs)+1)
	if partial.Name != nil && *partial.Name != "" {
		name = *partial.Name
	}

	tab := model.Tab{ID: orNewID(a.TabID), Name: name}
	tab.Request = partial.Apply(defaultRequest(orNewID(a.RequestID), name))
	tab.Request.Protocol = protocol
	tab.Request.Name = name
	enterProtocol(&tab, protocol, partial)

	s.Tabs = append(append([]model.Tab(nil), s.Tabs...), tab)
	if a.MakeActive == nil || *a.MakeActive {
		s.ActiveTabID = tab.ID
	}
	return s
}

func closeTab(s State, a CloseTab) State {
	i := s.TabIndex(a.TabID)
	if i < 0 {
		return s
	}
	tabs := make([]model.Tab, 0, len(s.Tabs))
	tabs = append(tabs, s.Tabs[:i]...)
	tabs = append(tabs, s.Tabs[i+1:]...)

	if len(tabs) == 0 {
		tab := firstTab(orNewID(a.FallbackTabID), orNewID(a.FallbackRequestID))
		s.Tabs = []model.Tab{tab}
		s.ActiveTabID = tab.ID
		return s
	}
	if s.ActiveTabID == a.TabID {
		s.ActiveTabID = tabs[max(0, i-1)].ID
	}
	s.Tabs = tabs
	return s
}

func duplicateTab(s State, a DuplicateTab) State {
	i := s.TabIndex(a.TabID)
	if i < 0 {
		return s
	}
	dup := s.Tabs[i].Clone()
	dup.ID = orNewID(a.NewTabID)
	dup.Name = dup.Name + " Copy"
	dup.Request.ID = orNewID(a.NewRequestID)
	dup.IsLoading = false
	// The copy has no socket of its own.
	if dup.WSStatus != "" {
		dup.WSStatus = model.WSDisconnected
	}

	tabs := make([]model.Tab, 0, len(s.Tabs)+1)
	tabs = append(tabs, s.Tabs[:i+1]...)
	tabs = append(tabs, dup)
	tabs = append(tabs, s.Tabs[i+1:]...)
	s.Tabs = tabs
	s.ActiveTabID = dup.ID
	return s
}

func applyRequestUpdate(t *model.Tab, partial model.PartialRequest) {
	from := t.Request.Protocol
	t.Request = partial.Apply(t.Request)
	if partial.Protocol == nil || *partial.Protocol == from {
		return
	}
	to := *partial.Protocol
	for _, p := range []model.Protocol{model.ProtocolREST, model.ProtocolGraphQL, model.ProtocolWebSocket} {
		if p != to {
			leaveProtocol(t, p)
		}
	}
	enterProtocol(t, to, partial)
}

func applySettings(cur model.Settings, p PartialSettings) model.Settings {
	out := cur.Clone()
	if p.Theme != nil {
		out.Theme = *p.Theme
	}
	if p.Font != nil {
		out.Font = *p.Font
	}
	if p.AIEnabled != nil {
		out.AIEnabled = *p.AIEnabled
	}
	if p.AICredential != nil {
		out.AICredential = *p.AICredential
	}
	if p.GlobalHeaders != nil {
		out.GlobalHeaders = append([]model.KeyValue{}, p.GlobalHeaders...)
	}
	if p.GlobalQueryParams != nil {
		out.GlobalQueryParams = append([]model.KeyValue{}, p.GlobalQueryParams...)
	}
	if p.GlobalAuth != nil {
		out.GlobalAuth = normalizeGlobalAuth(*p.GlobalAuth)
	}
	return out
}

// normalizeGlobalAuth maps an inheriting global auth to none; there is nothing
// above the workspace to inherit from.
func normalizeGlobalAuth(a model.Auth) model.Auth {
	if a.Inherits() {
		return model.Auth{Type: model.AuthNone}
	}
	return a
}

func environmentIndex(s model.Settings, id string) int {
	for i := range s.Environments {
		if s.Environments[i].ID == id {
			return i
		}
	}
	return -1
}

func addEnvironment(s State, a AddEnvironment) State {
	env := a.Environment.Clone()
	env.ID = orNewID(env.ID)
	if env.Variables == nil {
		env.Variables = []model.KeyValue{}
	}
	if environmentIndex(s.Settings, env.ID) >= 0 {
		return s
	}
	settings := s.Settings.Clone()
	settings.Environments = append(settings.Environments, env)
	if a.MakeActive {
		settings.ActiveEnvironmentID = env.ID
	}
	s.Settings = settings
	return s
}

func updateEnvironment(s State, a UpdateEnvironment) State {
	i := environmentIndex(s.Settings, a.ID)
	if i < 0 {
		return s
	}
	settings := s.Settings.Clone()
	if a.Name != nil {
		settings.Environments[i].Name = *a.Name
	}
	if a.Variables != nil {
		settings.Environments[i].Variables = append([]model.KeyValue{}, a.Variables...)
	}
	s.Settings = settings
	return s
}

func deleteEnvironment(s State, id string) State {
	i := environmentIndex(s.Settings, id)
	if i < 0 {
		return s
	}
	settings := s.Settings.Clone()
	settings.Environments = append(settings.Environments[:i], settings.Environments[i+1:]...)
	if settings.ActiveEnvironmentID == id {
		settings.ActiveEnvironmentID = ""
		if len(settings.Environments) > 0 {
			settings.ActiveEnvironmentID = settings.Environments[0].ID
		}
	}
	s.Settings = settings
	return s
}

func addHistory(s State, req model.Request) State {
	history := make([]model.Request, 0, min(len(s.History)+1, HistoryLimit))
	history = append(history, req.Clone())
	for _, h := range s.History {
		if len(history) == HistoryLimit {
			break
		}
		if h.ID != req.ID {
			history = append(history, h)
		}
	}
	s.History = history
	return s
}

func addAIMessage(s State, msg model.AIMessage) State {
	msgs := append([]model.AIMessage{}, s.AIMessages...)
	for i := range msgs {
		if msgs[i].Type == model.AIThinking {
			msgs[i] = msg.Clone()
			s.AIMessages = msgs
			return s
		}
	}
	s.AIMessages = keepLast(append(msgs, msg.Clone()), AIMessageLimit)
	return s
}

func keepLast[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return append([]T(nil), items[len(items)-n:]...)
}
