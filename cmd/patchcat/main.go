package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"

	"github.com/unkn0wn-root/patchcat/internal/ai"
	"github.com/unkn0wn-root/patchcat/internal/cli"
	"github.com/unkn0wn-root/patchcat/internal/config"
	"github.com/unkn0wn-root/patchcat/internal/dispatch"
	"github.com/unkn0wn-root/patchcat/internal/httpclient"
	"github.com/unkn0wn-root/patchcat/internal/store"
	"github.com/unkn0wn-root/patchcat/internal/telemetry"
	"github.com/unkn0wn-root/patchcat/internal/theme"
	"github.com/unkn0wn-root/patchcat/internal/workspace"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const envAPIKey = "GEMINI_API_KEY"

var usage = heredoc.Doc(`
	Usage: patchcat [flags] <command> [args]

	Tabs:
	  tabs                          list tabs
	  new [rest|graphql|websocket]  open a tab (--name, --url)
	  use <tab>                     make a tab active
	  show <tab>                    print a tab's request
	  set <tab> <field> <value>     edit url, method, name, body, auth, header,
	                                param, protocol, operation or variables
	  send <tab>                    send a request (--raw, --copy, --file id=path,
	                                --timing, --budget total=500ms,ttfb=200ms)
	  close <tab>                   close a tab
	  dup <tab>                     duplicate a tab
	  diff <tab> <tab>              diff two tabs' response bodies
	  curl <tab>                    print the request as a curl command (--copy)
	  curl-import <command|->       open a tab from a curl command (--name)
	  openapi-import <file>         open a tab per OpenAPI operation (--tag, --server n,
	                                --deprecated, --external-refs, --no-env)

	Protocols:
	  schema <tab>                  introspect a GraphQL endpoint (--mutation, --filter, --sample)
	  ws <tab>                      connect and send stdin lines as frames

	Workspace:
	  history                       list history (--clear, --rm n)
	  env list|add|set|rm|use       manage environments
	  env-import <file>             import a dotenv, JSON or YAML environment (--use)
	  settings                      show or change workspace settings
	  export <file|dir>             write the workspace to JSON or YAML
	  import <file>                 replace the workspace from a file

	AI:
	  chat <prompt>                 ask the assistant
	  suggest list|accept <n>|all   review and open suggestions

	Other:
	  config                        show or change patchcat settings (--set key=value)

	A <tab> is a 1-based index, a tab id, a tab name, or "." for the active tab.

	Flags:
`)

type globalFlags struct {
	workspace   string
	store       string
	timeout     time.Duration
	insecure    bool
	follow      bool
	proxy       string
	aiModel     string
	noColor     bool
	showVersion bool
	otEndpoint  string
	otInsecure  bool
	otService   string
}

func parseGlobalFlags(args []string, settings config.Settings, stderr io.Writer) (globalFlags, []string, error) {
	telemetryCfg := telemetry.ConfigFromEnv(os.Getenv)
	g := globalFlags{
		workspace:  settings.Workspace,
		store:      string(settings.StoreBackend),
		timeout:    settings.HTTP.TimeoutDuration(),
		insecure:   settings.HTTP.Insecure,
		follow:     settings.HTTP.Follow(),
		proxy:      settings.HTTP.Proxy,
		aiModel:    settings.AIModel,
		otEndpoint: telemetryCfg.Endpoint,
		otInsecure: telemetryCfg.Insecure,
		otService:  telemetryCfg.ServiceName,
	}

	fs := flag.NewFlagSet("patchcat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&g.workspace, "workspace", g.workspace, "Workspace name")
	fs.StringVar(&g.store, "store", g.store, "Snapshot store backend (json or sqlite)")
	fs.DurationVar(&g.timeout, "timeout", g.timeout, "Request timeout")
	fs.BoolVar(&g.insecure, "insecure", g.insecure, "Skip TLS certificate verification")
	fs.BoolVar(&g.follow, "follow", g.follow, "Follow redirects")
	fs.StringVar(&g.proxy, "proxy", g.proxy, "HTTP proxy URL")
	fs.StringVar(&g.aiModel, "ai-model", g.aiModel, "Gemini model used for analysis and chat")
	fs.BoolVar(&g.noColor, "no-color", false, "Disable coloured output")
	fs.BoolVar(&g.showVersion, "version", false, "Show patchcat version")
	fs.StringVar(
		&g.otEndpoint,
		"trace-otel-endpoint",
		g.otEndpoint,
		"OTLP collector endpoint for request spans",
	)
	fs.BoolVar(&g.otInsecure, "trace-otel-insecure", g.otInsecure, "Disable TLS for OTLP trace export")
	fs.StringVar(
		&g.otService,
		"trace-otel-service",
		g.otService,
		"Override service.name resource attribute for exported spans",
	)
	if err := fs.Parse(args); err != nil {
		return globalFlags{}, nil, err
	}
	return g, fs.Args(), nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	settings, settingsHandle, err := config.LoadSettings()
	if err != nil {
		log.Printf("settings load error: %v", err)
		settings = config.DefaultSettings()
		settingsHandle = config.SettingsHandle{
			Path:   filepath.Join(config.Dir(), "settings.toml"),
			Format: config.SettingsFormatTOML,
		}
	}

	g, rest, err := parseGlobalFlags(args, settings, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if g.showVersion {
		_, _ = fmt.Fprintf(stdout, "patchcat %s\n  commit: %s\n  built:  %s\n", version, commit, date)
		return 0
	}
	if len(rest) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}

	snapshots, err := openSnapshots(config.StoreBackend(g.store), g.workspace)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "store error: %v\n", err)
		return 1
	}
	defer func() {
		if err := snapshots.Close(); err != nil {
			log.Printf("store close error: %v", err)
		}
	}()

	client := httpclient.NewClient(httpclient.Options{
		Timeout:            g.timeout,
		FollowRedirects:    g.follow,
		InsecureSkipVerify: g.insecure,
		ProxyURL:           g.proxy,
	})
	telemetryCfg := telemetry.ConfigFromEnv(os.Getenv)
	telemetryCfg.Endpoint = strings.TrimSpace(g.otEndpoint)
	telemetryCfg.Insecure = g.otInsecure
	telemetryCfg.ServiceName = strings.TrimSpace(g.otService)
	telemetryCfg.Version = version
	provider, err := telemetry.New(telemetryCfg)
	if err != nil {
		if telemetryCfg.Enabled() {
			log.Printf("telemetry init error: %v", err)
		}
	} else {
		client.SetTelemetry(provider)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if shutdownErr := provider.Shutdown(ctx); shutdownErr != nil {
				log.Printf("telemetry shutdown: %v", shutdownErr)
			}
		}()
	}

	state, ok := snapshots.Load(context.Background())
	if !ok {
		state = workspace.InitialState()
	}

	assistant := &keyedAssistant{
		inner:    ai.NewAnalyzer(ai.NewGemini(g.aiModel)),
		fallback: strings.TrimSpace(os.Getenv(envAPIKey)),
	}
	session := dispatch.New(&state, dispatch.Options{
		Transport: client,
		Assistant: assistant,
		Persister: snapshots,
		Logf:      log.Printf,
	})
	defer session.Close()

	themeName := state.Settings.Theme
	if settings.DefaultTheme != "" {
		themeName = settings.DefaultTheme
	}
	opts := []cli.Option{}
	if g.noColor {
		opts = append(opts, cli.WithColor(false))
	}

	a := &app{
		session:  session,
		printer:  cli.NewPrinter(stdout, theme.Named(themeName), opts...),
		in:       stdin,
		out:      stdout,
		settings: settings,
		handle:   settingsHandle,
		now:      time.Now,
		copy:     writeClipboard,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := a.run(ctx, rest); err != nil {
		a.printer.Error(err)
		return 1
	}
	return 0
}

func openSnapshots(backend config.StoreBackend, name string) (*store.Snapshots, error) {
	dir := config.WorkspaceDir()
	switch config.NormaliseStoreBackend(backend) {
	case config.StoreBackendSQLite:
		db, err := store.OpenSQLite(filepath.Join(dir, "patchcat.db"))
		if err != nil {
			return nil, err
		}
		return store.NewSnapshots(db, name, log.Printf), nil
	default:
		return store.NewSnapshots(store.NewFileBackend(dir), name, log.Printf), nil
	}
}
