package httpclient

import (
	"crypto/tls"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/unkn0wn-root/patchcat/internal/nettrace"
)

// traceSession feeds httptrace callbacks into a nettrace.Collector.
type traceSession struct {
	collector *nettrace.Collector
	now       func() time.Time

	mu       sync.Mutex
	body     bool
	waiting  bool
	transfer bool
}

func newTraceSession(now func() time.Time) *traceSession {
	if now == nil {
		now = time.Now
	}
	return &traceSession{collector: nettrace.NewCollector(), now: now}
}

func (s *traceSession) bind(req *http.Request) *http.Request {
	trace := &httptrace.ClientTrace{
		DNSStart: func(info httptrace.DNSStartInfo) {
			s.collector.Begin(nettrace.PhaseDNS, s.now())
			s.collector.Annotate(nettrace.PhaseDNS, func(m *nettrace.PhaseMeta) { m.Addr = info.Host })
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			if len(info.Addrs) > 0 {
				s.collector.Annotate(nettrace.PhaseDNS, func(m *nettrace.PhaseMeta) {
					m.Addr = info.Addrs[0].String()
				})
			}
			s.collector.End(nettrace.PhaseDNS, s.now(), info.Err)
		},
		ConnectStart: func(_, addr string) {
			s.collector.Begin(nettrace.PhaseConnect, s.now())
			s.collector.Annotate(nettrace.PhaseConnect, func(m *nettrace.PhaseMeta) { m.Addr = addr })
		},
		ConnectDone: func(_, _ string, err error) {
			s.collector.End(nettrace.PhaseConnect, s.now(), err)
		},
		GotConn: func(info httptrace.GotConnInfo) {
			if !info.Reused {
				return
			}
			ts := s.now()
			s.collector.Begin(nettrace.PhaseConnect, ts)
			s.collector.Annotate(nettrace.PhaseConnect, func(m *nettrace.PhaseMeta) {
				m.Reused = true
				if info.Conn != nil {
					m.Addr = info.Conn.RemoteAddr().String()
				}
			})
			s.collector.End(nettrace.PhaseConnect, ts, nil)
		},
		TLSHandshakeStart: func() {
			s.collector.Begin(nettrace.PhaseTLS, s.now())
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			s.collector.End(nettrace.PhaseTLS, s.now(), err)
		},
		WroteHeaders:         s.wroteHeaders,
		WroteRequest:         s.wroteRequest,
		GotFirstResponseByte: s.firstByte,
	}
	return req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
}

func (s *traceSession) wroteHeaders() {
	ts := s.now()
	s.collector.Begin(nettrace.PhaseReqHdrs, ts)
	s.collector.End(nettrace.PhaseReqHdrs, ts, nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.body {
		s.body = true
		s.collector.Begin(nettrace.PhaseReqBody, ts)
	}
}

func (s *traceSession) wroteRequest(info httptrace.WroteRequestInfo) {
	ts := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.body {
		s.body = false
		s.collector.End(nettrace.PhaseReqBody, ts, info.Err)
	}
	if info.Err == nil && !s.waiting {
		s.waiting = true
		s.collector.Begin(nettrace.PhaseTTFB, ts)
	}
}

func (s *traceSession) firstByte() {
	ts := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiting {
		s.waiting = false
		s.collector.End(nettrace.PhaseTTFB, ts, nil)
	}
	if !s.transfer {
		s.transfer = true
		s.collector.Begin(nettrace.PhaseTransfer, ts)
	}
}

// complete ends the transfer phase with err and returns the timeline.
func (s *traceSession) complete(err error) *nettrace.Timeline {
	ts := s.now()
	s.mu.Lock()
	if s.transfer {
		s.transfer = false
		s.collector.End(nettrace.PhaseTransfer, ts, err)
	}
	s.mu.Unlock()
	return s.collector.Complete(ts)
}
