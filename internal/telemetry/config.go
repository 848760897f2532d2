package telemetry

import (
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
)

const (
	envEndpoint    = "PATCHCAT_OTEL_ENDPOINT"
	envInsecure    = "PATCHCAT_OTEL_INSECURE"
	envService     = "PATCHCAT_OTEL_SERVICE"
	envDialTimeout = "PATCHCAT_OTEL_DIAL_TIMEOUT"
	envHeaders     = "PATCHCAT_OTEL_HEADERS"

	defaultServiceName = "patchcat"
)

type Config struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
	Version     string
	DialTimeout time.Duration
	Headers     map[string]string
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// ConfigFromEnv reads the exporter settings through getenv so tests can supply
// their own lookup. Malformed values fall back to defaults.
func ConfigFromEnv(getenv func(string) string) Config {
	cfg := Config{
		Endpoint:    strings.TrimSpace(getenv(envEndpoint)),
		ServiceName: strings.TrimSpace(getenv(envService)),
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(getenv(envInsecure))); err == nil {
		cfg.Insecure = v
	}
	if v, err := time.ParseDuration(strings.TrimSpace(getenv(envDialTimeout))); err == nil {
		cfg.DialTimeout = v
	}
	if headers, err := ParseHeaders(getenv(envHeaders)); err == nil {
		cfg.Headers = headers
	}
	return cfg
}

// ParseHeaders parses "k=v, k2=v2". Blank input yields nil.
func ParseHeaders(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errdef.New(errdef.CodeValidation, "invalid telemetry header %q", part)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}
