// Package store persists workspace snapshots and handles export and import.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
	"github.com/unkn0wn-root/patchcat/internal/workspace"
)

var ErrNotFound = errors.New("snapshot not found")

// Backend stores opaque snapshot documents by workspace name.
type Backend interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	Close() error
}

// Encode renders the persisted form of s. Loading flags are always cleared.
func Encode(s workspace.State) ([]byte, error) {
	data, err := json.MarshalIndent(s.Persistable(), "", "  ")
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeStore, err, "encode snapshot")
	}
	return data, nil
}

// Decode parses a snapshot document. A document without tabs or settings is
// rejected so callers can fall back to a fresh workspace.
func Decode(data []byte) (workspace.State, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return workspace.State{}, errdef.Wrap(errdef.CodeStore, err, "parse snapshot")
	}
	for _, key := range []string{"tabs", "settings"} {
		raw, ok := probe[key]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return workspace.State{}, errdef.New(errdef.CodeStore, "snapshot is missing %q", key)
		}
	}
	var s workspace.State
	if err := json.Unmarshal(data, &s); err != nil {
		return workspace.State{}, errdef.Wrap(errdef.CodeStore, err, "decode snapshot")
	}
	return s, nil
}

// Snapshots reads and writes one named workspace through a backend.
type Snapshots struct {
	backend Backend
	name    string
	logf    func(format string, args ...any)
}

func NewSnapshots(backend Backend, name string, logf func(string, ...any)) *Snapshots {
	if name == "" {
		name = "default"
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Snapshots{backend: backend, name: name, logf: logf}
}

func (s *Snapshots) Name() string { return s.name }

// Load returns the stored snapshot, or false when there is none or it is
// unusable. Failures are logged, never returned.
func (s *Snapshots) Load(ctx context.Context) (workspace.State, bool) {
	data, err := s.backend.Read(ctx, s.name)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logf("snapshot load error: %v", err)
		}
		return workspace.State{}, false
	}
	state, err := Decode(data)
	if err != nil {
		s.logf("snapshot decode error: %v", err)
		return workspace.State{}, false
	}
	return state, true
}

func (s *Snapshots) Save(ctx context.Context, state workspace.State) error {
	data, err := Encode(state)
	if err != nil {
		return err
	}
	return s.backend.Write(ctx, s.name, data)
}

func (s *Snapshots) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}
