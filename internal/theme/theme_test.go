package theme

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestNamedFallsBackToDefault(t *testing.T) {
	t.Parallel()
	if got := Named("unknown").Name; got != Supabase {
		t.Fatalf("expected %q, got %q", Supabase, got)
	}
	if got := Named(" google ").Name; got != Google {
		t.Fatalf("expected %q, got %q", Google, got)
	}
	for _, name := range Names() {
		if Named(name).ChromaStyle == "" {
			t.Fatalf("expected chroma style for %q", name)
		}
	}
}

func TestMethodColors(t *testing.T) {
	t.Parallel()
	colors := DefaultTheme().MethodColors
	if colors.For("get") != colors.GET {
		t.Fatalf("expected GET colour for lowercase method")
	}
	if colors.For("PROPFIND") != lipgloss.Color("#9ca3af") {
		t.Fatalf("expected default colour for unknown method")
	}
}
