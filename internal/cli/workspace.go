package cli

import (
	"fmt"
	"strings"

	"github.com/unkn0wn-root/patchcat/internal/config"
	"github.com/unkn0wn-root/patchcat/internal/model"
	"github.com/unkn0wn-root/patchcat/internal/workspace"
)

const (
	nameColumn = 24
	minURLCol  = 20
)

func methodLabel(r model.Request) string {
	switch r.Protocol {
	case model.ProtocolGraphQL:
		return "GQL"
	case model.ProtocolWebSocket:
		return "WS"
	default:
		return r.Method
	}
}

func tabStatus(tab model.Tab) string {
	if tab.Request.Protocol == model.ProtocolWebSocket {
		return string(tab.WSStatus)
	}
	switch workspace.SendPhase(tab) {
	case workspace.SendLoading:
		return "loading"
	case workspace.SendResponded:
		return fmt.Sprintf("%d", tab.Response.Status)
	case workspace.SendErrored:
		return tab.Response.StatusText
	default:
		return ""
	}
}

// Tabs lists every tab, one per line, marking the active one.
func (p *Printer) Tabs(st workspace.State) {
	urlWidth := p.width - nameColumn - 24
	if urlWidth < minURLCol {
		urlWidth = minURLCol
	}
	for i, tab := range st.Tabs {
		marker := " "
		name := pad(tab.Name, nameColumn)
		if tab.ID == st.ActiveTabID {
			marker = "*"
			name = p.paint(p.th.Title, name)
		}
		line := fmt.Sprintf("%s %2d  %s %s  %s",
			marker, i+1, p.method(methodLabel(tab.Request)), name, pad(tab.Request.URL, urlWidth))
		if status := tabStatus(tab); status != "" {
			line += "  " + p.paint(p.th.Muted, status)
		}
		p.println(strings.TrimRight(line, " "))
	}
}

// Request prints the editable fields of a request.
func (p *Printer) Request(tab model.Tab) {
	r := tab.Request
	p.println(p.paint(p.th.Title, tab.Name), p.paint(p.th.Muted, "("+string(r.Protocol)+")"))
	p.printf("%s %s\n", p.method(methodLabel(r)), r.URL)
	if r.OperationName != "" {
		p.printf("%s %s\n", p.paint(p.th.Key, "operation:"), r.OperationName)
	}
	p.keyValues("headers", r.Headers)
	p.keyValues("params", r.QueryParams)
	switch r.Auth.Type {
	case model.AuthBearer:
		p.printf("%s bearer %s\n", p.paint(p.th.Key, "auth:"), maskToken(r.Auth.Token))
	case model.AuthNone:
		p.printf("%s none\n", p.paint(p.th.Key, "auth:"))
	default:
		p.printf("%s inherit\n", p.paint(p.th.Key, "auth:"))
	}
	if r.Protocol != model.ProtocolWebSocket {
		p.printf("%s %s\n", p.paint(p.th.Key, "body:"), bodySummary(r.Body))
	}
	if r.Protocol == model.ProtocolGraphQL && strings.TrimSpace(tab.GQLVariables) != "" {
		p.printf("%s %s\n", p.paint(p.th.Key, "variables:"), strings.TrimSpace(tab.GQLVariables))
	}
}

func (p *Printer) keyValues(label string, kvs []model.KeyValue) {
	if len(kvs) == 0 {
		return
	}
	p.println(p.paint(p.th.Key, label+":"))
	for _, kv := range kvs {
		state := " "
		if !kv.Enabled {
			state = "-"
		}
		p.printf("  %s %s: %s\n", state, kv.Key, kv.Value)
	}
}

func bodySummary(b model.Body) string {
	switch b.Kind {
	case model.BodyFormData:
		keys := make([]string, 0, len(b.Fields))
		for _, f := range b.Fields {
			if f.Type == model.FieldFile {
				keys = append(keys, f.Key+"=[file]")
				continue
			}
			keys = append(keys, f.Key+"="+f.Value)
		}
		return "form-data " + strings.Join(keys, " ")
	case model.BodyBinary:
		return "binary"
	default:
		if b.Content == "" {
			return "(empty)"
		}
		return truncate(strings.ReplaceAll(b.Content, "\n", " "), 80)
	}
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", 4) + token[len(token)-4:]
}

// History lists recorded requests, newest first.
func (p *Printer) History(history []model.Request) {
	if len(history) == 0 {
		p.println(p.paint(p.th.Muted, "no history"))
		return
	}
	for i, r := range history {
		p.printf("%2d  %s %s  %s\n", i+1, p.method(methodLabel(r)), pad(r.Name, nameColumn), truncate(r.URL, p.width-nameColumn-16))
	}
}

// Environments lists environments and their variables; the active one is starred.
func (p *Printer) Environments(settings model.Settings) {
	if len(settings.Environments) == 0 {
		p.println(p.paint(p.th.Muted, "no environments"))
		return
	}
	for _, env := range settings.Environments {
		marker := " "
		name := env.Name
		if env.ID == settings.ActiveEnvironmentID {
			marker = "*"
			name = p.paint(p.th.Title, name)
		}
		p.printf("%s %s\n", marker, name)
		for _, kv := range env.Variables {
			state := " "
			if !kv.Enabled {
				state = "-"
			}
			p.printf("    %s [%s] = %s\n", state, kv.Key, kv.Value)
		}
	}
}

// Settings prints the workspace-wide request defaults. The AI credential is masked.
func (p *Printer) Settings(s model.Settings) {
	ai := "off"
	if s.AIEnabled {
		ai = "on"
	}
	key := "(unset)"
	if s.AICredential != "" {
		key = maskToken(s.AICredential)
	}
	p.printf("%s %s\n", p.paint(p.th.Key, "theme:"), s.Theme)
	p.printf("%s %s\n", p.paint(p.th.Key, "font:"), s.Font)
	p.printf("%s %s\n", p.paint(p.th.Key, "ai:"), ai)
	p.printf("%s %s\n", p.paint(p.th.Key, "ai key:"), key)
	switch s.GlobalAuth.Type {
	case model.AuthBearer:
		p.printf("%s bearer %s\n", p.paint(p.th.Key, "auth:"), maskToken(s.GlobalAuth.Token))
	default:
		p.printf("%s none\n", p.paint(p.th.Key, "auth:"))
	}
	p.keyValues("headers", s.GlobalHeaders)
	p.keyValues("params", s.GlobalQueryParams)
}

// Config prints the patchcat settings file.
func (p *Printer) Config(s config.Settings, path string) {
	p.println(p.paint(p.th.Muted, path))
	p.printf("%s %s\n", p.paint(p.th.Key, "workspace:"), s.Workspace)
	p.printf("%s %s\n", p.paint(p.th.Key, "store_backend:"), s.StoreBackend)
	p.printf("%s %s\n", p.paint(p.th.Key, "default_theme:"), s.DefaultTheme)
	p.printf("%s %s\n", p.paint(p.th.Key, "ai_model:"), s.AIModel)
	p.printf("%s %s\n", p.paint(p.th.Key, "http.timeout:"), s.HTTP.TimeoutDuration())
	p.printf("%s %t\n", p.paint(p.th.Key, "http.follow_redirects:"), s.HTTP.Follow())
	p.printf("%s %t\n", p.paint(p.th.Key, "http.insecure:"), s.HTTP.Insecure)
	p.printf("%s %s\n", p.paint(p.th.Key, "http.proxy:"), s.HTTP.Proxy)
}
