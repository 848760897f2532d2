package cli

import (
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/patchcat/internal/gql"
	"github.com/unkn0wn-root/patchcat/internal/model"
)

// WSMessage prints one socket frame or lifecycle line.
func (p *Printer) WSMessage(m model.WSMessage) {
	ts := time.UnixMilli(m.Timestamp).Format("15:04:05")
	var dir string
	switch m.Direction {
	case model.WSSent:
		dir = p.paint(p.th.StreamDirectionSend, "→")
	case model.WSReceived:
		dir = p.paint(p.th.StreamDirectionReceive, "←")
	default:
		dir = p.paint(p.th.StreamDirectionInfo, "•")
	}
	p.printf("%s %s %s\n", p.paint(p.th.StreamTimestamp, ts), dir, m.Content)
}

// AIMessages prints the assistant log. Suggestions are numbered from 1 so
// they can be accepted by index.
func (p *Printer) AIMessages(msgs []model.AIMessage) {
	for _, m := range msgs {
		p.AIMessage(m)
	}
}

func (p *Printer) AIMessage(m model.AIMessage) {
	switch m.Type {
	case model.AIUser:
		p.printf("%s %s\n", p.paint(p.th.AIUser, "you:"), m.Content)
	case model.AIThinking:
		p.println(p.paint(p.th.AIThinking, m.Content))
	case model.AIError:
		p.println(p.paint(p.th.Error, m.Content))
	case model.AISuggestion:
		p.println(p.paint(p.th.AIInfo, m.Content))
		for i, s := range m.Suggestions {
			line := s.SuggestionText
			if s.APIRequest.Method != nil || s.APIRequest.URL != nil {
				method, url := "", ""
				if s.APIRequest.Method != nil {
					method = *s.APIRequest.Method
				}
				if s.APIRequest.URL != nil {
					url = *s.APIRequest.URL
				}
				line += p.paint(p.th.Muted, "  "+strings.TrimSpace(method+" "+url))
			}
			p.printf("  %s %s\n", p.paint(p.th.AISuggestion, "["+strconv.Itoa(i+1)+"]"), line)
		}
		p.printf("  %s\n", p.paint(p.th.Muted, "id "+m.ID))
	default:
		p.println(p.paint(p.th.AIInfo, m.Content))
	}
}

// Schema prints the root fields of op, optionally filtered by term.
func (p *Printer) Schema(schema *model.GraphQLSchema, op gql.OperationType, term string) {
	if schema == nil {
		p.println(p.paint(p.th.Muted, "no schema loaded"))
		return
	}
	fields := gql.RootFields(schema, op, term)
	p.println(p.paint(p.th.Title, string(op)))
	if len(fields) == 0 {
		p.println(p.paint(p.th.Muted, "  no fields"))
		return
	}
	for _, f := range fields {
		p.printf("  %s\n", truncate(gql.FieldSignature(f), p.width-2))
		if f.Description != "" {
			p.printf("    %s\n", p.paint(p.th.Muted, truncate(f.Description, p.width-4)))
		}
	}
}
