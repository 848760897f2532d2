package nettrace

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

type PhaseKind string

const (
	PhaseDNS      PhaseKind = "dns"
	PhaseConnect  PhaseKind = "connect"
	PhaseTLS      PhaseKind = "tls"
	PhaseReqHdrs  PhaseKind = "request_headers"
	PhaseReqBody  PhaseKind = "request_body"
	PhaseTTFB     PhaseKind = "ttfb"
	PhaseTransfer PhaseKind = "transfer"
	PhaseTotal    PhaseKind = "total"
)

var knownPhases = []PhaseKind{
	PhaseDNS, PhaseConnect, PhaseTLS, PhaseReqHdrs, PhaseReqBody, PhaseTTFB, PhaseTransfer, PhaseTotal,
}

type PhaseMeta struct {
	Addr   string
	Reused bool
}

type Phase struct {
	Kind     PhaseKind
	Start    time.Time
	End      time.Time
	Duration time.Duration
	Err      string
	Meta     PhaseMeta
}

type Timeline struct {
	Started   time.Time
	Completed time.Time
	Duration  time.Duration
	Err       string
	Phases    []Phase
}

func (tl *Timeline) Clone() *Timeline {
	if tl == nil {
		return nil
	}
	out := *tl
	out.Phases = slices.Clone(tl.Phases)
	return &out
}

func sortPhases(phases []Phase) []Phase {
	out := slices.Clone(phases)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// Durations sums phases by kind; a redirect chain can repeat dns or connect.
func (tl *Timeline) Durations() map[PhaseKind]time.Duration {
	out := make(map[PhaseKind]time.Duration, len(tl.Phases)+1)
	for _, p := range tl.Phases {
		if p.Duration > 0 {
			out[p.Kind] += p.Duration
		}
	}
	out[PhaseTotal] = tl.Duration
	return out
}

// Budget is a set of upper bounds. Tolerance is added to every limit.
type Budget struct {
	Tolerance time.Duration
	Limits    map[PhaseKind]time.Duration
}

type Breach struct {
	Kind   PhaseKind
	Limit  time.Duration
	Actual time.Duration
}

func (b Breach) String() string {
	return fmt.Sprintf("%s took %s, over the %s budget", b.Kind, b.Actual, b.Limit)
}

// Evaluate returns the breached limits in phase order.
func (b Budget) Evaluate(tl *Timeline) []Breach {
	if tl == nil || len(b.Limits) == 0 {
		return nil
	}
	actual := tl.Durations()
	var out []Breach
	for _, kind := range knownPhases {
		limit, ok := b.Limits[kind]
		if !ok || limit <= 0 {
			continue
		}
		if actual[kind] > limit+b.Tolerance {
			out = append(out, Breach{Kind: kind, Limit: limit, Actual: actual[kind]})
		}
	}
	return out
}

// ParseBudget reads "total=500ms,ttfb=200ms". A bare duration limits the total.
func ParseBudget(raw string) (Budget, error) {
	b := Budget{Limits: map[PhaseKind]time.Duration{}}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			name, value = string(PhaseTotal), part
		}
		kind := PhaseKind(strings.ToLower(strings.TrimSpace(name)))
		if kind == "tolerance" {
			d, err := time.ParseDuration(strings.TrimSpace(value))
			if err != nil {
				return Budget{}, fmt.Errorf("invalid tolerance %q", value)
			}
			b.Tolerance = d
			continue
		}
		if !slices.Contains(knownPhases, kind) {
			return Budget{}, fmt.Errorf("unknown phase %q", name)
		}
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil || d <= 0 {
			return Budget{}, fmt.Errorf("invalid duration %q for %s", value, kind)
		}
		b.Limits[kind] = d
	}
	return b, nil
}
