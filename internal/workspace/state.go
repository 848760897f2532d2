// Package workspace holds the workspace state and the pure reducer that is the
// only way to change it.
package workspace

import (
	"github.com/google/uuid"

	"github.com/unkn0wn-root/patchcat/internal/model"
)

// State is also the persisted snapshot document. ActiveTabID is empty when no
// tab is selected.
type State struct {
	Tabs                  []model.Tab       `json:"tabs"`
	ActiveTabID           string            `json:"activeTabId"`
	History               []model.Request   `json:"history"`
	Settings              model.Settings    `json:"settings"`
	AIMessages            []model.AIMessage `json:"aiMessages"`
	AnalyzedRequestsCache []string          `json:"analyzedRequestsCache"`
}

func InitialState() State {
	tab := firstTab(uuid.NewString(), uuid.NewString())
	tab.Request.Auth = model.Auth{Type: model.AuthNone}
	return State{
		Tabs:        []model.Tab{tab},
		ActiveTabID: tab.ID,
		History:     []model.Request{},
		Settings:    defaultSettings(),
		AIMessages: []model.AIMessage{{
			ID:      uuid.NewString(),
			Type:    model.AIInfo,
			Content: WelcomeMessage,
		}},
		AnalyzedRequestsCache: []string{},
	}
}

func (s State) Clone() State {
	out := s
	out.Tabs = make([]model.Tab, len(s.Tabs))
	for i, tab := range s.Tabs {
		out.Tabs[i] = tab.Clone()
	}
	out.History = make([]model.Request, len(s.History))
	for i, req := range s.History {
		out.History[i] = req.Clone()
	}
	out.Settings = s.Settings.Clone()
	out.AIMessages = make([]model.AIMessage, len(s.AIMessages))
	for i, msg := range s.AIMessages {
		out.AIMessages[i] = msg.Clone()
	}
	out.AnalyzedRequestsCache = append([]string{}, s.AnalyzedRequestsCache...)
	return out
}

// Persistable is the snapshot written to storage: never with a loading flag.
func (s State) Persistable() State {
	out := s.Clone()
	for i := range out.Tabs {
		out.Tabs[i].IsLoading = false
	}
	return out
}

func (s State) TabIndex(id string) int {
	for i := range s.Tabs {
		if s.Tabs[i].ID == id {
			return i
		}
	}
	return -1
}

// Tab returns a copy of the tab with id.
func (s State) Tab(id string) (model.Tab, bool) {
	if i := s.TabIndex(id); i >= 0 {
		return s.Tabs[i].Clone(), true
	}
	return model.Tab{}, false
}

func (s State) ActiveTab() (model.Tab, bool) {
	return s.Tab(s.ActiveTabID)
}

func (s State) AnalysisCached(key string) bool {
	for _, k := range s.AnalyzedRequestsCache {
		if k == key {
			return true
		}
	}
	return false
}
