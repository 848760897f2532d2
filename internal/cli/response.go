package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alecthomas/chroma/quick"
	udiff "github.com/aymanbagabas/go-udiff"

	"github.com/unkn0wn-root/patchcat/internal/model"
	"github.com/unkn0wn-root/patchcat/internal/nettrace"
)

// FormatSize renders a byte count the way the response header shows it.
func FormatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}

func (p *Printer) statusStyle(status int) string {
	label := fmt.Sprintf("%d", status)
	switch {
	case status == 0 || status >= 500:
		return p.paint(p.th.Error, label)
	case status >= 400:
		return p.paint(p.th.Warning, label)
	default:
		return p.paint(p.th.Success, label)
	}
}

// Response prints the status line, headers and body. raw prints the body only,
// without highlighting.
func (p *Printer) Response(resp *model.Response, raw bool) {
	if resp == nil {
		p.println(p.paint(p.th.Muted, "no response"))
		return
	}
	body := resp.Data.String()
	if raw {
		p.println(body)
		return
	}
	p.printf("%s %s  %s  %s\n",
		p.statusStyle(resp.Status),
		resp.StatusText,
		p.paint(p.th.Muted, fmt.Sprintf("%d ms", resp.Time)),
		p.paint(p.th.Muted, FormatSize(resp.Size)),
	)
	names := make([]string, 0, len(resp.Headers))
	for name := range resp.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p.printf("%s %s\n", p.paint(p.th.Key, name+":"), resp.Headers[name])
	}
	if len(names) > 0 {
		p.println()
	}
	p.println(p.highlight(body, resp.Data.Kind))
}

func (p *Printer) highlight(body string, kind model.DataKind) string {
	if !p.color || kind != model.DataJSON {
		return body
	}
	var sb strings.Builder
	if err := quick.Highlight(&sb, body, "json", "terminal256", p.th.ChromaStyle); err != nil {
		return body
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Diff returns a unified diff of two bodies, or "" when they are equal.
func Diff(leftLabel, left, rightLabel, right string) string {
	if left == right {
		return ""
	}
	return udiff.Unified(leftLabel, rightLabel, ensureNewline(left), ensureNewline(right))
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// Diff prints the unified diff of two responses' bodies.
func (p *Printer) Diff(leftLabel string, left *model.Response, rightLabel string, right *model.Response) {
	l, r := "", ""
	if left != nil {
		l = left.Data.String()
	}
	if right != nil {
		r = right.Data.String()
	}
	diff := Diff(leftLabel, l, rightLabel, r)
	if strings.TrimSpace(diff) == "" {
		p.println(p.paint(p.th.Muted, "responses are identical"))
		return
	}
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			p.println(p.paint(p.th.Title, line))
		case strings.HasPrefix(line, "+"):
			p.println(p.paint(p.th.Success, line))
		case strings.HasPrefix(line, "-"):
			p.println(p.paint(p.th.Error, line))
		case strings.HasPrefix(line, "@@"):
			p.println(p.paint(p.th.Muted, line))
		default:
			p.println(line)
		}
	}
}

const timelineBar = 30

// Timeline prints one line per network phase with a bar scaled to the total.
func (p *Printer) Timeline(tl *nettrace.Timeline) {
	if tl == nil || len(tl.Phases) == 0 {
		p.println(p.paint(p.th.Muted, "no timing recorded"))
		return
	}
	for _, ph := range tl.Phases {
		width := 0
		if tl.Duration > 0 {
			width = int(float64(timelineBar) * float64(ph.Duration) / float64(tl.Duration))
		}
		if width == 0 && ph.Duration > 0 {
			width = 1
		}
		note := ph.Meta.Addr
		if ph.Meta.Reused {
			note = strings.TrimSpace(note + " reused")
		}
		if ph.Err != "" {
			note = strings.TrimSpace(note + " " + p.paint(p.th.Error, ph.Err))
		}
		line := fmt.Sprintf("%s %s %s  %s",
			pad(string(ph.Kind), 16),
			p.paint(p.th.Value, pad(strings.Repeat("█", width), timelineBar)),
			pad(formatDuration(ph.Duration), 10),
			p.paint(p.th.Muted, note),
		)
		p.println(strings.TrimRight(line, " "))
	}
	p.printf("%s %s\n", pad(string(nettrace.PhaseTotal), 16), formatDuration(tl.Duration))
}

// Breaches prints budget overruns in the error style.
func (p *Printer) Breaches(breaches []nettrace.Breach) {
	for _, b := range breaches {
		p.println(p.paint(p.th.Error, "budget: "+b.String()))
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	default:
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
}
