package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/patchcat/internal/config"
	"github.com/unkn0wn-root/patchcat/internal/model"
	"github.com/unkn0wn-root/patchcat/internal/theme"
	"github.com/unkn0wn-root/patchcat/internal/vars"
	"github.com/unkn0wn-root/patchcat/internal/workspace"
)

// parsePair splits "Key=Value" or "Key: Value".
func parsePair(raw string) (string, string, error) {
	idx := strings.IndexAny(raw, "=:")
	if idx <= 0 {
		return "", "", fmt.Errorf("invalid pair %q, want key=value", raw)
	}
	key := strings.TrimSpace(raw[:idx])
	if key == "" {
		return "", "", fmt.Errorf("invalid pair %q, want key=value", raw)
	}
	return key, strings.TrimSpace(raw[idx+1:]), nil
}

// upsertKeyValue replaces the first row with the same key (case-insensitive)
// or appends a new one. An empty value removes the row.
func upsertKeyValue(rows []model.KeyValue, key, value string) []model.KeyValue {
	out := make([]model.KeyValue, 0, len(rows)+1)
	found := false
	for _, row := range rows {
		if strings.EqualFold(row.Key, key) {
			if found || value == "" {
				continue
			}
			found = true
			row.Value = value
			row.Enabled = true
		}
		out = append(out, row)
	}
	if !found && value != "" {
		out = append(out, workspace.NewKeyValue(key, value))
	}
	return out
}

func parseAuth(args []string) (model.Auth, error) {
	if len(args) == 0 {
		return model.Auth{}, errUsage
	}
	switch model.AuthType(strings.ToLower(args[0])) {
	case model.AuthNone:
		return model.Auth{Type: model.AuthNone}, nil
	case model.AuthInherit:
		return model.Auth{Type: model.AuthInherit}, nil
	case model.AuthBearer:
		if len(args) < 2 || strings.TrimSpace(args[1]) == "" {
			return model.Auth{}, errors.New("bearer auth needs a token")
		}
		return model.Auth{Type: model.AuthBearer, Token: args[1]}, nil
	default:
		return model.Auth{}, fmt.Errorf("unknown auth type %q", args[0])
	}
}

// readValue returns the file contents for "@path" arguments.
func readValue(raw string) (string, error) {
	path, ok := strings.CutPrefix(raw, "@")
	if !ok {
		return raw, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (a *app) cmdSet(args []string) error {
	if len(args) < 3 {
		return errUsage
	}
	tab, err := resolveTab(a.session.State(), args[0])
	if err != nil {
		return err
	}
	field, values := strings.ToLower(args[1]), args[2:]
	value := strings.Join(values, " ")
	partial := model.PartialRequest{}

	switch field {
	case "url":
		partial.URL = &value
	case "method":
		method := strings.ToUpper(strings.TrimSpace(value))
		if !validMethod(method) {
			return fmt.Errorf("unsupported method %q", value)
		}
		partial.Method = &method
	case "name":
		a.session.Dispatch(workspace.UpdateTabName{TabID: tab.ID, Name: value})
		return nil
	case "body":
		content, err := readValue(value)
		if err != nil {
			return err
		}
		body := model.RawBody(content)
		partial.Body = &body
	case "auth":
		auth, err := parseAuth(values)
		if err != nil {
			return err
		}
		partial.Auth = &auth
	case "header":
		key, v, err := parsePair(value)
		if err != nil {
			return err
		}
		partial.Headers = upsertKeyValue(tab.Request.Headers, key, v)
	case "param":
		key, v, err := parsePair(value)
		if err != nil {
			return err
		}
		partial.QueryParams = upsertKeyValue(tab.Request.QueryParams, key, v)
	case "protocol":
		protocol, err := parseProtocol(value)
		if err != nil {
			return err
		}
		partial.Protocol = &protocol
	case "operation":
		partial.OperationName = &value
	case "variables":
		content, err := readValue(value)
		if err != nil {
			return err
		}
		a.session.Dispatch(workspace.UpdateGQLVariables{TabID: tab.ID, Variables: content})
		return nil
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	a.session.UpdateRequest(tab.ID, partial)
	return nil
}

func validMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func findEnvironment(settings model.Settings, ref string) (model.Environment, error) {
	for _, env := range settings.Environments {
		if env.ID == ref || strings.EqualFold(env.Name, ref) {
			return env, nil
		}
	}
	return model.Environment{}, fmt.Errorf("no environment %q", ref)
}

func (a *app) cmdEnv(args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	settings := a.session.State().Settings
	switch sub {
	case "list":
		a.printer.Environments(settings)
		return nil
	case "add":
		if len(args) == 0 {
			return errUsage
		}
		rows := []model.KeyValue{}
		for _, raw := range args[1:] {
			key, value, err := parsePair(raw)
			if err != nil {
				return err
			}
			rows = append(rows, workspace.NewKeyValue(key, value))
		}
		a.session.Dispatch(workspace.AddEnvironment{
			Environment: workspace.NewEnvironment(args[0], rows...),
			MakeActive:  len(settings.Environments) == 0,
		})
		return nil
	case "set":
		if len(args) < 2 {
			return errUsage
		}
		env, err := findEnvironment(settings, args[0])
		if err != nil {
			return err
		}
		rows := env.Variables
		for _, raw := range args[1:] {
			key, value, err := parsePair(raw)
			if err != nil {
				return err
			}
			rows = upsertKeyValue(rows, key, value)
		}
		a.session.Dispatch(workspace.UpdateEnvironment{ID: env.ID, Variables: rows})
		return nil
	case "rename":
		if len(args) != 2 {
			return errUsage
		}
		env, err := findEnvironment(settings, args[0])
		if err != nil {
			return err
		}
		a.session.Dispatch(workspace.UpdateEnvironment{ID: env.ID, Name: &args[1]})
		return nil
	case "rm":
		if len(args) != 1 {
			return errUsage
		}
		env, err := findEnvironment(settings, args[0])
		if err != nil {
			return err
		}
		a.session.Dispatch(workspace.DeleteEnvironment{ID: env.ID})
		return nil
	case "use":
		if len(args) == 0 || args[0] == "none" {
			a.session.Dispatch(workspace.SetActiveEnvironment{})
			return nil
		}
		env, err := findEnvironment(settings, args[0])
		if err != nil {
			return err
		}
		a.session.Dispatch(workspace.SetActiveEnvironment{ID: env.ID})
		return nil
	default:
		return fmt.Errorf("unknown env command %q", sub)
	}
}

func (a *app) cmdEnvImport(args []string) error {
	fs := newFlagSet("env-import")
	use := fs.Bool("use", false, "make the imported environment active")
	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return errUsage
	}
	env, err := vars.LoadEnvironmentFile(rest[0])
	if err != nil {
		return err
	}
	a.session.Dispatch(workspace.AddEnvironment{Environment: env, MakeActive: *use})
	a.printer.Success(fmt.Sprintf("imported %s (%d variables)", env.Name, len(env.Variables)))
	return nil
}

func (a *app) cmdSettings(args []string) error {
	if len(args) == 0 {
		st := a.session.State()
		a.printer.Settings(st.Settings)
		return nil
	}
	key, values := args[0], args[1:]
	value := strings.Join(values, " ")
	st := a.session.State()
	partial := workspace.PartialSettings{}
	switch key {
	case "ai-key":
		partial.AICredential = &value
	case "ai":
		on, err := parseSwitch(value)
		if err != nil {
			return err
		}
		partial.AIEnabled = &on
	case "theme":
		name := theme.Named(value).Name
		partial.Theme = &name
	case "font":
		partial.Font = &value
	case "header":
		k, v, err := parsePair(value)
		if err != nil {
			return err
		}
		partial.GlobalHeaders = upsertKeyValue(st.Settings.GlobalHeaders, k, v)
	case "param":
		k, v, err := parsePair(value)
		if err != nil {
			return err
		}
		partial.GlobalQueryParams = upsertKeyValue(st.Settings.GlobalQueryParams, k, v)
	case "auth":
		auth, err := parseAuth(values)
		if err != nil {
			return err
		}
		partial.GlobalAuth = &auth
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	a.session.Dispatch(workspace.UpdateSettings{Settings: partial})
	return nil
}

func parseSwitch(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	on, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", v)
	}
	return on, nil
}

func (a *app) cmdConfig(args []string) error {
	fs := newFlagSet("config")
	var sets multiFlag
	fs.Var(&sets, "set", "set key=value")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(sets) == 0 {
		a.printer.Config(a.settings, a.handle.Path)
		return nil
	}
	next := a.settings
	for _, raw := range sets {
		key, value, ok := strings.Cut(raw, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q, want key=value", raw)
		}
		if err := applyConfig(&next, strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	if err := config.SaveSettings(next, a.handle); err != nil {
		return err
	}
	a.settings = next
	a.printer.Success("saved " + a.handle.Path)
	return nil
}

func applyConfig(s *config.Settings, key, value string) error {
	switch key {
	case "workspace":
		s.Workspace = value
	case "store_backend":
		s.StoreBackend = config.StoreBackend(value)
	case "default_theme":
		s.DefaultTheme = value
	case "ai_model":
		s.AIModel = value
	case "http.timeout", "timeout":
		s.HTTP.Timeout = value
	case "http.follow_redirects", "follow_redirects":
		on, err := parseSwitch(value)
		if err != nil {
			return err
		}
		s.HTTP.FollowRedirects = &on
	case "http.insecure", "insecure":
		on, err := parseSwitch(value)
		if err != nil {
			return err
		}
		s.HTTP.Insecure = on
	case "http.proxy", "proxy":
		s.HTTP.Proxy = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}
