package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"github.com/unkn0wn-root/patchcat/internal/ai"
	"github.com/unkn0wn-root/patchcat/internal/cli"
	"github.com/unkn0wn-root/patchcat/internal/config"
	"github.com/unkn0wn-root/patchcat/internal/curl"
	"github.com/unkn0wn-root/patchcat/internal/dispatch"
	"github.com/unkn0wn-root/patchcat/internal/gql"
	"github.com/unkn0wn-root/patchcat/internal/httpclient"
	"github.com/unkn0wn-root/patchcat/internal/merge"
	"github.com/unkn0wn-root/patchcat/internal/model"
	"github.com/unkn0wn-root/patchcat/internal/nettrace"
	"github.com/unkn0wn-root/patchcat/internal/openapi"
	"github.com/unkn0wn-root/patchcat/internal/store"
	"github.com/unkn0wn-root/patchcat/internal/workspace"
)

var (
	errUsage  = errors.New("invalid arguments, run patchcat -h for usage")
	errBudget = errors.New("timing budget exceeded")
)

type app struct {
	session  *dispatch.Session
	printer  *cli.Printer
	in       io.Reader
	out      io.Writer
	settings config.Settings
	handle   config.SettingsHandle
	now      func() time.Time
	copy     func(string) error
}

func writeClipboard(text string) error {
	return clipboard.WriteAll(text)
}

// keyedAssistant falls back to the GEMINI_API_KEY environment variable when the
// workspace has no credential. The fallback is never written to the snapshot.
type keyedAssistant struct {
	inner    *ai.Analyzer
	fallback string
}

func (k *keyedAssistant) key(credential string) string {
	if strings.TrimSpace(credential) == "" {
		return k.fallback
	}
	return credential
}

func (k *keyedAssistant) Analyze(
	ctx context.Context,
	req model.Request,
	resp model.Response,
	history []model.Request,
	credential, extra string,
) ai.Result {
	return k.inner.Analyze(ctx, req, resp, history, k.key(credential), extra)
}

func (k *keyedAssistant) Chat(ctx context.Context, prompt, credential string) (string, error) {
	return k.inner.Chat(ctx, prompt, k.key(credential))
}

func (a *app) run(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "tabs":
		a.printer.Tabs(a.session.State())
		return nil
	case "new":
		return a.cmdNew(rest)
	case "use":
		return a.cmdUse(rest)
	case "show":
		return a.cmdShow(rest)
	case "set":
		return a.cmdSet(rest)
	case "send":
		return a.cmdSend(ctx, rest)
	case "close":
		return a.cmdClose(rest)
	case "dup":
		return a.cmdDup(rest)
	case "diff":
		return a.cmdDiff(rest)
	case "history":
		return a.cmdHistory(rest)
	case "env":
		return a.cmdEnv(rest)
	case "env-import":
		return a.cmdEnvImport(rest)
	case "settings":
		return a.cmdSettings(rest)
	case "schema":
		return a.cmdSchema(ctx, rest)
	case "ws":
		return a.cmdWS(ctx, rest)
	case "chat":
		return a.cmdChat(ctx, rest)
	case "suggest":
		return a.cmdSuggest(rest)
	case "export":
		return a.cmdExport(rest)
	case "import":
		return a.cmdImport(rest)
	case "config":
		return a.cmdConfig(rest)
	case "curl":
		return a.cmdCurl(rest)
	case "curl-import":
		return a.cmdCurlImport(rest)
	case "openapi-import":
		return a.cmdOpenAPIImport(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseArgs lets flags follow positional arguments, so "send 2 --raw" works
// like "send --raw 2".
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// resolveTab accepts a 1-based index, an id, a case-insensitive name, or "."
// for the active tab.
func resolveTab(st workspace.State, ref string) (model.Tab, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == "." {
		if tab, ok := st.ActiveTab(); ok {
			return tab, nil
		}
		return model.Tab{}, errors.New("no active tab")
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(st.Tabs) {
			return model.Tab{}, fmt.Errorf("tab %d out of range", n)
		}
		return st.Tabs[n-1], nil
	}
	if tab, ok := st.Tab(ref); ok {
		return tab, nil
	}
	for _, tab := range st.Tabs {
		if strings.EqualFold(tab.Name, ref) {
			return tab, nil
		}
	}
	return model.Tab{}, fmt.Errorf("no tab %q", ref)
}

func (a *app) tab(args []string) (model.Tab, error) {
	ref := ""
	if len(args) > 0 {
		ref = args[0]
	}
	return resolveTab(a.session.State(), ref)
}

func parseProtocol(s string) (model.Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rest", "http":
		return model.ProtocolREST, nil
	case "graphql", "gql":
		return model.ProtocolGraphQL, nil
	case "websocket", "ws":
		return model.ProtocolWebSocket, nil
	default:
		return "", fmt.Errorf("unknown protocol %q", s)
	}
}

func (a *app) cmdNew(args []string) error {
	fs := newFlagSet("new")
	name := fs.String("name", "", "tab name")
	url := fs.String("url", "", "request url")
	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	protocol, err := parseProtocol(arg(rest, 0))
	if err != nil {
		return err
	}
	partial := model.PartialRequest{}
	if *name != "" {
		partial.Name = name
	}
	if *url != "" {
		partial.URL = url
	}
	add := workspace.NewAddTab(protocol, &partial, true)
	st := a.session.Dispatch(add)
	a.printer.Success(fmt.Sprintf("opened tab %d", st.TabIndex(add.TabID)+1))
	return nil
}

func (a *app) cmdUse(args []string) error {
	tab, err := a.tab(args)
	if err != nil {
		return err
	}
	a.session.Dispatch(workspace.SetActiveTab{TabID: tab.ID})
	return nil
}

func (a *app) cmdShow(args []string) error {
	tab, err := a.tab(args)
	if err != nil {
		return err
	}
	a.printer.Request(tab)
	if tab.Response != nil {
		a.printer.Response(tab.Response, false)
	}
	return nil
}

func (a *app) cmdClose(args []string) error {
	tab, err := a.tab(args)
	if err != nil {
		return err
	}
	a.session.CloseTab(tab.ID)
	return nil
}

func (a *app) cmdDup(args []string) error {
	tab, err := a.tab(args)
	if err != nil {
		return err
	}
	dup := workspace.NewDuplicateTab(tab.ID)
	st := a.session.Dispatch(dup)
	a.printer.Success(fmt.Sprintf("duplicated into tab %d", st.TabIndex(dup.NewTabID)+1))
	return nil
}

func (a *app) cmdSend(ctx context.Context, args []string) error {
	fs := newFlagSet("send")
	raw := fs.Bool("raw", false, "print the body only")
	copyBody := fs.Bool("copy", false, "copy the response body to the clipboard")
	timing := fs.Bool("timing", false, "print the network phases")
	budgetSpec := fs.String("budget", "", "fail when phases exceed limits, e.g. total=500ms,ttfb=200ms")
	var files multiFlag
	fs.Var(&files, "file", "attach a file as field-id=path (binary bodies use binary=path)")
	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	tab, err := a.tab(rest)
	if err != nil {
		return err
	}
	var budget nettrace.Budget
	if *budgetSpec != "" {
		if budget, err = nettrace.ParseBudget(*budgetSpec); err != nil {
			return err
		}
	}
	for _, spec := range files {
		if err := a.attach(tab.ID, spec); err != nil {
			return err
		}
	}

	before := lastMessageID(a.session.State())
	if err := a.session.Send(ctx, tab.ID); err != nil {
		return err
	}
	a.session.Wait()

	st := a.session.State()
	done, ok := st.Tab(tab.ID)
	if !ok {
		return errors.New("tab closed during send")
	}
	a.printer.Response(done.Response, *raw)
	if *copyBody && done.Response != nil {
		if err := a.copy(done.Response.Data.String()); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
	}
	timeline := a.session.Timeline(tab.ID)
	if *timing {
		a.printer.Timeline(timeline)
	}
	if !*raw {
		a.printNewAIMessages(st, before)
	}
	if breaches := budget.Evaluate(timeline); len(breaches) > 0 {
		a.printer.Breaches(breaches)
		return errBudget
	}
	return nil
}

func lastMessageID(st workspace.State) string {
	if n := len(st.AIMessages); n > 0 {
		return st.AIMessages[n-1].ID
	}
	return ""
}

// printNewAIMessages prints the log entries after the one with id before.
// The log is capped, so an evicted id means every entry is new.
func (a *app) printNewAIMessages(st workspace.State, before string) {
	start := 0
	for i, msg := range st.AIMessages {
		if msg.ID == before {
			start = i + 1
		}
	}
	if start < len(st.AIMessages) {
		a.printer.AIMessages(st.AIMessages[start:])
	}
}

func (a *app) attach(tabID, spec string) error {
	field, path, ok := strings.Cut(spec, "=")
	if !ok || field == "" || path == "" {
		return fmt.Errorf("invalid --file %q, want field-id=path", spec)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if field == "binary" {
		field = dispatch.BinaryField
	}
	a.session.Attach(tabID, field, httpclient.Attachment{
		Name: filepath.Base(path),
		Data: data,
	})
	return nil
}

func (a *app) cmdDiff(args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	st := a.session.State()
	left, err := resolveTab(st, args[0])
	if err != nil {
		return err
	}
	right, err := resolveTab(st, args[1])
	if err != nil {
		return err
	}
	a.printer.Diff(left.Name, left.Response, right.Name, right.Response)
	return nil
}

func (a *app) cmdHistory(args []string) error {
	fs := newFlagSet("history")
	clearAll := fs.Bool("clear", false, "clear history")
	rm := fs.Int("rm", 0, "remove the n-th entry")
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch {
	case *clearAll:
		a.session.Dispatch(workspace.ClearHistory{})
	case *rm > 0:
		history := a.session.State().History
		if *rm > len(history) {
			return fmt.Errorf("history entry %d out of range", *rm)
		}
		a.session.Dispatch(workspace.RemoveHistory{ID: history[*rm-1].ID})
	default:
		a.printer.History(a.session.State().History)
	}
	return nil
}

func (a *app) cmdChat(ctx context.Context, args []string) error {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		return errUsage
	}
	before := lastMessageID(a.session.State())
	err := a.session.Chat(ctx, prompt)
	a.printNewAIMessages(a.session.State(), before)
	return err
}

// lastSuggestion returns the newest AI message carrying suggestions.
func lastSuggestion(st workspace.State) (model.AIMessage, bool) {
	for i := len(st.AIMessages) - 1; i >= 0; i-- {
		if len(st.AIMessages[i].Suggestions) > 0 {
			return st.AIMessages[i], true
		}
	}
	return model.AIMessage{}, false
}

func (a *app) cmdSuggest(args []string) error {
	fs := newFlagSet("suggest")
	msgID := fs.String("msg", "", "message id (defaults to the newest suggestions)")
	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	st := a.session.State()
	msg, ok := lastSuggestion(st)
	if *msgID != "" {
		ok = false
		for _, m := range st.AIMessages {
			if m.ID == *msgID {
				msg, ok = m, true
			}
		}
	}
	if !ok {
		return errors.New("no suggestions")
	}

	switch arg(rest, 0) {
	case "", "list":
		a.printer.AIMessage(msg)
		return nil
	case "accept":
		target := arg(rest, 1)
		if target == "all" {
			ids, err := a.session.AcceptAllSuggestions(msg.ID)
			if err != nil {
				return err
			}
			a.printer.Success(fmt.Sprintf("opened %d tabs", len(ids)))
			return nil
		}
		n, err := strconv.Atoi(target)
		if err != nil {
			return errUsage
		}
		id, err := a.session.AcceptSuggestion(msg.ID, n-1)
		if err != nil {
			return err
		}
		next := a.session.State()
		a.printer.Success(fmt.Sprintf("opened tab %d", next.TabIndex(id)+1))
		return nil
	default:
		return errUsage
	}
}

func (a *app) cmdSchema(ctx context.Context, args []string) error {
	fs := newFlagSet("schema")
	mutation := fs.Bool("mutation", false, "list mutation fields")
	filter := fs.String("filter", "", "filter fields by name or signature")
	sample := fs.String("sample", "", "print a sample operation for a root field")
	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	tab, err := a.tab(rest)
	if err != nil {
		return err
	}
	if err := a.session.FetchSchema(ctx, tab.ID); err != nil {
		return err
	}
	op := gql.OpQuery
	if *mutation {
		op = gql.OpMutation
	}
	fetched, _ := a.session.State().Tab(tab.ID)
	if *sample != "" {
		field, ok := gql.FindRootField(fetched.GQLSchema, op, *sample)
		if !ok {
			return fmt.Errorf("no %s field %q", op, *sample)
		}
		_, _ = fmt.Fprintln(a.out, gql.SampleOperation(field, op))
		return nil
	}
	a.printer.Schema(fetched.GQLSchema, op, *filter)
	return nil
}

// cmdWS streams the tab's socket to the terminal and sends each stdin line as
// a text frame until stdin closes or ctx is cancelled.
func (a *app) cmdWS(ctx context.Context, args []string) error {
	tab, err := a.tab(args)
	if err != nil {
		return err
	}
	var mu sync.Mutex
	printed := make(map[string]bool, len(tab.WSMessages))
	for _, m := range tab.WSMessages {
		printed[m.ID] = true
	}
	a.session.OnChange(func(st workspace.State) {
		cur, ok := st.Tab(tab.ID)
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		for _, m := range cur.WSMessages {
			if printed[m.ID] {
				continue
			}
			printed[m.ID] = true
			a.printer.WSMessage(m)
		}
	})

	if err := a.session.ConnectWS(ctx, tab.ID); err != nil {
		return err
	}
	defer a.session.DisconnectWS(tab.ID)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(a.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := a.session.SendWS(ctx, tab.ID, line)
			if errors.Is(err, dispatch.ErrNotConnected) {
				return nil
			}
		}
	}
}

func (a *app) cmdExport(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	path, err := store.Export(args[0], a.session.State(), a.now())
	if err != nil {
		return err
	}
	a.printer.Success("exported " + path)
	return nil
}

func (a *app) cmdImport(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	snapshot, err := store.Import(args[0])
	if err != nil {
		return err
	}
	a.session.Load(snapshot)
	a.session.Persist()
	a.printer.Success("imported " + args[0])
	return nil
}

func (a *app) cmdCurl(args []string) error {
	fs := newFlagSet("curl")
	copyCmd := fs.Bool("copy", false, "copy the command to the clipboard")
	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	tab, err := a.tab(rest)
	if err != nil {
		return err
	}
	if tab.Request.Protocol == model.ProtocolWebSocket {
		return errors.New("curl export is not available for websocket tabs")
	}
	eff, err := merge.Build(tab.Request, a.session.State().Settings)
	if err != nil {
		return err
	}
	command := curl.Command(eff)
	_, _ = fmt.Fprintln(a.out, command)
	if *copyCmd {
		return a.copy(command)
	}
	return nil
}

func (a *app) cmdCurlImport(args []string) error {
	fs := newFlagSet("curl-import")
	name := fs.String("name", "", "tab name")
	// Flags after the first argument belong to curl.
	if err := fs.Parse(args); err != nil {
		return err
	}
	imp, err := a.parseCurl(fs.Args())
	if err != nil {
		return err
	}
	for _, w := range imp.Warnings {
		a.printer.Warning(w)
	}
	partial := imp.Request
	if *name != "" {
		partial.Name = name
	}
	add := workspace.NewAddTab(model.ProtocolREST, &partial, true)
	st := a.session.Dispatch(add)
	a.printer.Success(fmt.Sprintf("opened tab %d", st.TabIndex(add.TabID)+1))
	return nil
}

// parseCurl accepts a quoted command string, "-" for stdin, or the command
// split by the shell.
func (a *app) parseCurl(args []string) (curl.Import, error) {
	switch {
	case len(args) == 0:
		return curl.Import{}, errUsage
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(a.in)
		if err != nil {
			return curl.Import{}, err
		}
		return curl.Parse(string(data))
	case len(args) == 1:
		return curl.Parse(args[0])
	}
	if args[0] != "curl" {
		args = append([]string{"curl"}, args...)
	}
	return curl.ParseArgs(args)
}

func (a *app) cmdOpenAPIImport(ctx context.Context, args []string) error {
	fs := newFlagSet("openapi-import")
	server := fs.Int("server", 0, "index of the server used for [baseUrl]")
	deprecated := fs.Bool("deprecated", false, "include deprecated operations")
	external := fs.Bool("external-refs", false, "resolve external references")
	noEnv := fs.Bool("no-env", false, "do not create an environment for placeholders")
	var tags multiFlag
	fs.Var(&tags, "tag", "only import operations with this tag (repeatable)")
	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return errUsage
	}
	imp, err := openapi.LoadFile(ctx, rest[0], openapi.Options{
		ServerIndex:         *server,
		IncludeDeprecated:   *deprecated,
		Tags:                tags,
		ResolveExternalRefs: *external,
	})
	if err != nil {
		return err
	}
	for _, w := range imp.Warnings {
		a.printer.Warning(w)
	}
	if len(imp.Requests) == 0 {
		return fmt.Errorf("no operations to import from %s", rest[0])
	}
	if !*noEnv && len(imp.Variables) > 0 {
		st := a.session.State()
		a.session.Dispatch(workspace.AddEnvironment{
			Environment: imp.Environment(),
			MakeActive:  st.Settings.ActiveEnvironmentID == "",
		})
	}
	for i, r := range imp.Requests {
		partial := r.Request
		a.session.Dispatch(workspace.NewAddTab(model.ProtocolREST, &partial, i == 0))
	}
	a.printer.Success(fmt.Sprintf("imported %d request(s) from %s", len(imp.Requests), rest[0]))
	return nil
}

type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}
