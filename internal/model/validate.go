package model

import (
	"strings"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
)

func (a Auth) Validate(global bool) error {
	switch a.Type {
	case AuthNone, AuthBearer:
		return nil
	case AuthInherit, "":
		if global {
			return errdef.New(errdef.CodeValidation, "global auth cannot inherit")
		}
		return nil
	default:
		return errdef.New(errdef.CodeValidation, "unknown auth type %q", a.Type)
	}
}

func (s Settings) Validate() error {
	if err := s.GlobalAuth.Validate(true); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(s.Environments))
	for _, env := range s.Environments {
		if env.ID == "" {
			return errdef.New(errdef.CodeValidation, "environment %q has no id", env.Name)
		}
		if _, ok := seen[env.ID]; ok {
			return errdef.New(errdef.CodeValidation, "duplicate environment id %q", env.ID)
		}
		seen[env.ID] = struct{}{}
	}
	return nil
}

func (r Request) Validate() error {
	if !r.Protocol.Valid() {
		return errdef.New(errdef.CodeValidation, "unknown protocol %q", r.Protocol)
	}
	if strings.TrimSpace(r.Method) == "" && r.Protocol != ProtocolWebSocket {
		return errdef.New(errdef.CodeValidation, "request %q has no method", r.Name)
	}
	switch r.Body.Kind {
	case BodyRaw, BodyFormData, BodyBinary:
	default:
		return errdef.New(errdef.CodeValidation, "unknown body type %q", r.Body.Kind)
	}
	return r.Auth.Validate(false)
}
