// Package theme holds the terminal palettes named after the workspace themes.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	Supabase  = "Supabase"
	Microsoft = "Microsoft"
	Google    = "Google"
)

type Theme struct {
	Name string
	// ChromaStyle names the chroma style used for response bodies.
	ChromaStyle string

	Title       lipgloss.Style
	Key         lipgloss.Style
	Value       lipgloss.Style
	Muted       lipgloss.Style
	Error       lipgloss.Style
	Success     lipgloss.Style
	Warning     lipgloss.Style
	TabActive   lipgloss.Style
	TabInactive lipgloss.Style
	Badge       lipgloss.Style

	StreamTimestamp        lipgloss.Style
	StreamDirectionSend    lipgloss.Style
	StreamDirectionReceive lipgloss.Style
	StreamDirectionInfo    lipgloss.Style

	AIUser       lipgloss.Style
	AIInfo       lipgloss.Style
	AIThinking   lipgloss.Style
	AISuggestion lipgloss.Style

	MethodColors MethodColors
}

type MethodColors struct {
	GET     lipgloss.Color
	POST    lipgloss.Color
	PUT     lipgloss.Color
	PATCH   lipgloss.Color
	DELETE  lipgloss.Color
	HEAD    lipgloss.Color
	OPTIONS lipgloss.Color
	GQL     lipgloss.Color
	WS      lipgloss.Color
	Default lipgloss.Color
}

func (m MethodColors) For(method string) lipgloss.Color {
	switch strings.ToUpper(method) {
	case "GET":
		return m.GET
	case "POST":
		return m.POST
	case "PUT":
		return m.PUT
	case "PATCH":
		return m.PATCH
	case "DELETE":
		return m.DELETE
	case "HEAD":
		return m.HEAD
	case "OPTIONS":
		return m.OPTIONS
	case "GQL", "GRAPHQL":
		return m.GQL
	case "WS", "WEBSOCKET":
		return m.WS
	default:
		return m.Default
	}
}

// Named returns the palette for a workspace theme name. Unknown names get
// the Supabase palette.
func Named(name string) Theme {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case strings.ToLower(Microsoft):
		return build(Microsoft, lipgloss.Color("#0078D4"), "vs")
	case strings.ToLower(Google):
		return build(Google, lipgloss.Color("#4285F4"), "friendly")
	default:
		return DefaultTheme()
	}
}

func DefaultTheme() Theme {
	return build(Supabase, lipgloss.Color("#3ECF8E"), "monokai")
}

func Names() []string {
	return []string{Supabase, Microsoft, Google}
}

func build(name string, accent lipgloss.Color, chroma string) Theme {
	muted := lipgloss.Color("#6E6A86")
	return Theme{
		Name:        name,
		ChromaStyle: chroma,
		Title:       lipgloss.NewStyle().Foreground(accent).Bold(true),
		Key:         lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8B39")).Bold(true),
		Value:       lipgloss.NewStyle().Foreground(lipgloss.Color("#EAEAEA")),
		Muted:       lipgloss.NewStyle().Foreground(muted),
		Error:       lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6E6E")),
		Success:     lipgloss.NewStyle().Foreground(lipgloss.Color("#6EF17E")),
		Warning:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD46A")),
		TabActive: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FDFBFF")).
			Background(accent).
			Bold(true).
			Padding(0, 1),
		TabInactive: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6A1BB")).
			Padding(0, 1),
		Badge:           lipgloss.NewStyle().Padding(0, 1).Bold(true),
		StreamTimestamp: lipgloss.NewStyle().Foreground(muted),
		StreamDirectionSend: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6E6E")).
			Bold(true),
		StreamDirectionReceive: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6EF17E")).
			Bold(true),
		StreamDirectionInfo: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD46A")).
			Bold(true),
		AIUser:       lipgloss.NewStyle().Foreground(accent).Bold(true),
		AIInfo:       lipgloss.NewStyle().Foreground(lipgloss.Color("#E0DEF4")),
		AIThinking:   lipgloss.NewStyle().Foreground(muted).Italic(true),
		AISuggestion: lipgloss.NewStyle().Foreground(lipgloss.Color("#B9A5FF")),
		MethodColors: MethodColors{
			GET:     lipgloss.Color("#34d399"),
			POST:    lipgloss.Color("#60a5fa"),
			PUT:     lipgloss.Color("#f59e0b"),
			PATCH:   lipgloss.Color("#14b8a6"),
			DELETE:  lipgloss.Color("#f87171"),
			HEAD:    lipgloss.Color("#a1a1aa"),
			OPTIONS: lipgloss.Color("#c084fc"),
			GQL:     lipgloss.Color("#e535ab"),
			WS:      lipgloss.Color("#fb923c"),
			Default: lipgloss.Color("#9ca3af"),
		},
	}
}
