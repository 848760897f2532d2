package workspace

import "github.com/unkn0wn-root/patchcat/internal/model"

// hydrate replaces the state with a snapshot, backfilling fields older
// snapshots lack. Lists are kept at whatever length the snapshot has.
func hydrate(a LoadWorkspace) State {
	s := a.Snapshot.Clone()

	for i := range s.Tabs {
		backfillTab(&s.Tabs[i])
	}
	if len(s.Tabs) == 0 {
		tab := firstTab(orNewID(a.FallbackTabID), orNewID(a.FallbackRequestID))
		s.Tabs = []model.Tab{tab}
	}
	if s.TabIndex(s.ActiveTabID) < 0 {
		s.ActiveTabID = s.Tabs[0].ID
	}

	for i := range s.History {
		backfillRequest(&s.History[i])
	}
	s.Settings = backfillSettings(s.Settings)
	return s
}

func backfillTab(t *model.Tab) {
	backfillRequest(&t.Request)
	t.IsLoading = false
	if t.Name == "" {
		t.Name = t.Request.Name
	}
	switch t.Request.Protocol {
	case model.ProtocolWebSocket:
		// a socket never survives a reload
		t.WSStatus = model.WSDisconnected
		if t.WSMessages == nil {
			t.WSMessages = []model.WSMessage{}
		}
	case model.ProtocolGraphQL:
		t.GQLSchemaLoading = false
	}
}

func backfillRequest(r *model.Request) {
	if r.Auth.Type == "" {
		r.Auth = model.Auth{Type: model.AuthInherit}
	}
	if !r.Protocol.Valid() {
		r.Protocol = model.ProtocolREST
	}
	if r.Headers == nil {
		r.Headers = []model.KeyValue{}
	}
	if r.QueryParams == nil {
		r.QueryParams = []model.KeyValue{}
	}
	if r.Body.Kind == "" {
		r.Body = model.RawBody(r.Body.Content)
	}
}

func backfillSettings(s model.Settings) model.Settings {
	if s.GlobalHeaders == nil {
		s.GlobalHeaders = []model.KeyValue{}
	}
	if s.GlobalQueryParams == nil {
		s.GlobalQueryParams = []model.KeyValue{}
	}
	if s.Environments == nil {
		s.Environments = []model.Environment{}
	}
	s.GlobalAuth = normalizeGlobalAuth(s.GlobalAuth)
	if s.ActiveEnvironmentID != "" && environmentIndex(s, s.ActiveEnvironmentID) < 0 {
		s.ActiveEnvironmentID = ""
	}
	if s.Theme == "" {
		s.Theme = DefaultTheme
	}
	if s.Font == "" {
		s.Font = DefaultFont
	}
	return s
}
