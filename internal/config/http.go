package config

import (
	"strings"
	"time"
)

type StoreBackend string

const (
	StoreBackendJSON   StoreBackend = "json"
	StoreBackendSQLite StoreBackend = "sqlite"
)

type HTTPSettings struct {
	Timeout         string `json:"timeout"          toml:"timeout"`
	FollowRedirects *bool  `json:"follow_redirects" toml:"follow_redirects"`
	Insecure        bool   `json:"insecure"         toml:"insecure"`
	Proxy           string `json:"proxy"            toml:"proxy"`
}

const (
	HTTPTimeoutDefault = 30 * time.Second
	HTTPTimeoutMin     = time.Second
	HTTPTimeoutMax     = 10 * time.Minute
)

func DefaultHTTPSettings() HTTPSettings {
	follow := true
	return HTTPSettings{
		Timeout:         HTTPTimeoutDefault.String(),
		FollowRedirects: &follow,
	}
}

func NormaliseHTTPSettings(in HTTPSettings) HTTPSettings {
	out := DefaultHTTPSettings()
	out.Timeout = clampDuration(
		parseDuration(in.Timeout),
		HTTPTimeoutMin,
		HTTPTimeoutMax,
		HTTPTimeoutDefault,
	).String()
	if in.FollowRedirects != nil {
		follow := *in.FollowRedirects
		out.FollowRedirects = &follow
	}
	out.Insecure = in.Insecure
	out.Proxy = strings.TrimSpace(in.Proxy)
	return out
}

// TimeoutDuration returns the parsed timeout, falling back to the default.
func (h HTTPSettings) TimeoutDuration() time.Duration {
	if d := parseDuration(h.Timeout); d > 0 {
		return d
	}
	return HTTPTimeoutDefault
}

func (h HTTPSettings) Follow() bool {
	return h.FollowRedirects == nil || *h.FollowRedirects
}

func NormaliseStoreBackend(in StoreBackend) StoreBackend {
	switch strings.ToLower(strings.TrimSpace(string(in))) {
	case string(StoreBackendSQLite):
		return StoreBackendSQLite
	default:
		return StoreBackendJSON
	}
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return d
}

func clampDuration(value, min, max, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
