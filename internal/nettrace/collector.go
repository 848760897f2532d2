// Package nettrace records the network phases of a single HTTP round trip.
package nettrace

import (
	"sync"
	"time"
)

type openPhase struct {
	start time.Time
	addr  string
	flags PhaseMeta
}

// Collector is safe for concurrent use; httptrace hooks may fire from
// transport goroutines.
type Collector struct {
	mu       sync.Mutex
	started  time.Time
	finished time.Time
	err      string
	phases   []Phase
	open     map[PhaseKind]*openPhase
}

func NewCollector() *Collector {
	return &Collector{open: make(map[PhaseKind]*openPhase)}
}

func (c *Collector) Begin(kind PhaseKind, ts time.Time) {
	if kind == "" || kind == PhaseTotal {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started.IsZero() || ts.Before(c.started) {
		c.started = ts
	}
	c.open[kind] = &openPhase{start: ts}
}

// Annotate updates the metadata of an open phase.
func (c *Collector) Annotate(kind PhaseKind, fn func(*PhaseMeta)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p := c.open[kind]; p != nil && fn != nil {
		fn(&p.flags)
	}
}

// End closes kind. A phase that was never begun is recorded as
// instantaneous.
func (c *Collector) End(kind PhaseKind, ts time.Time, err error) {
	if kind == "" || kind == PhaseTotal {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.open[kind]
	if !ok {
		p = &openPhase{start: ts}
	}
	delete(c.open, kind)
	if ts.Before(p.start) {
		ts = p.start
	}
	phase := Phase{Kind: kind, Start: p.start, End: ts, Duration: ts.Sub(p.start), Meta: p.flags}
	if err != nil {
		phase.Err = err.Error()
		if c.err == "" {
			c.err = phase.Err
		}
	}
	c.phases = append(c.phases, phase)
	if ts.After(c.finished) {
		c.finished = ts
	}
}

// Complete closes every open phase as incomplete and returns the timeline.
func (c *Collector) Complete(ts time.Time) *Timeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	for kind, p := range c.open {
		c.phases = append(c.phases, Phase{
			Kind:     kind,
			Start:    p.start,
			End:      ts,
			Duration: ts.Sub(p.start),
			Meta:     p.flags,
			Err:      "incomplete",
		})
	}
	c.open = make(map[PhaseKind]*openPhase)
	if ts.After(c.finished) {
		c.finished = ts
	}
	if len(c.phases) == 0 {
		return nil
	}

	tl := &Timeline{
		Started:   c.started,
		Completed: c.finished,
		Err:       c.err,
		Phases:    sortPhases(c.phases),
	}
	if !tl.Completed.Before(tl.Started) {
		tl.Duration = tl.Completed.Sub(tl.Started)
	}
	return tl
}
