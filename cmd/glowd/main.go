// Glowd is the personal-assistant backend behind the GlowOS frontend.
//
// It routes free-text messages to either a conversational reply or one
// of the registered tool capabilities (media download, disc ripping,
// file search, Plex control, calculation, web search), tracks tool
// executions on a shared task board, and watches the host for system
// metrics and disc insertions. Configuration is loaded from a single
// YAML file discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	glowd serve              Start the API server
//	glowd ingest <file.md>   Import a markdown knowledge file
//	glowd version            Print version and build information
//	glowd -o json version    Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glowos/glowd/internal/api"
	"github.com/glowos/glowd/internal/buildinfo"
	"github.com/glowos/glowd/internal/calc"
	"github.com/glowos/glowd/internal/capability"
	"github.com/glowos/glowd/internal/config"
	"github.com/glowos/glowd/internal/events"
	"github.com/glowos/glowd/internal/fileops"
	"github.com/glowos/glowd/internal/history"
	"github.com/glowos/glowd/internal/ingest"
	"github.com/glowos/glowd/internal/llm"
	"github.com/glowos/glowd/internal/media"
	"github.com/glowos/glowd/internal/notify"
	"github.com/glowos/glowd/internal/plex"
	"github.com/glowos/glowd/internal/ripdisc"
	"github.com/glowos/glowd/internal/router"
	"github.com/glowos/glowd/internal/search"
	"github.com/glowos/glowd/internal/state"
	"github.com/glowos/glowd/internal/watchers"
)

// main constructs the OS-level environment (context, stdio, argv) and
// delegates immediately to [run], keeping os.Exit and os.Args out of
// the application logic so the full lifecycle is testable.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand; the flag
// package relies on package-level globals that interfere with calling
// run concurrently from tests, and the argument surface is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "ingest":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: glowd ingest <file.md>")
		}
		return runIngest(ctx, stdout, configPath, cmdArgs[0])
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "glowd - GlowOS assistant backend")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: glowd [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve             Start the API server")
	fmt.Fprintln(w, "  ingest <file.md>  Import a markdown knowledge file")
	fmt.Fprintln(w, "  version           Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	return nil
}

// runIngest parses a markdown knowledge file into chunks and stores
// them in the knowledge database, replacing any earlier import of the
// same file.
func runIngest(ctx context.Context, stdout io.Writer, configPath, filePath string) error {
	logger := newLogger(stdout, slog.LevelInfo)

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dataDir(cfg), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	chunks, err := ingest.ParseFile(filePath)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks found in %s (does it have headings?)", filePath)
	}

	kb, err := ingest.NewStore(filepath.Join(dataDir(cfg), "knowledge.db"))
	if err != nil {
		return fmt.Errorf("open knowledge database: %w", err)
	}
	defer kb.Close()

	source := filepath.Base(filePath)
	n, err := kb.Replace(ctx, source, chunks)
	if err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	logger.Info("knowledge file ingested", "file", filePath, "chunks", n)
	for _, c := range chunks {
		fmt.Fprintf(stdout, "  %-40s %4d bytes\n", c.Key, len(c.Content))
	}
	fmt.Fprintf(stdout, "%d chunks stored from %s\n", n, source)
	return nil
}

func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting glowd", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure with the configured level; the initial Info logger
	// only covers the startup banner.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}
	logger.Info("config loaded", "path", cfgPath, "port", cfg.Listen.Port, "persona", cfg.Persona)

	if err := os.MkdirAll(dataDir(cfg), 0755); err != nil {
		return fmt.Errorf("create data directory %s: %w", dataDir(cfg), err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := events.New()

	store := state.NewStore(logger)
	if cfg.Tasks.MaxRecent > 0 {
		store.SetMaxRecentTasks(cfg.Tasks.MaxRecent)
	}

	hist, err := history.NewStore(filepath.Join(dataDir(cfg), "history.db"))
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	defer hist.Close()

	reg, err := buildRegistry(cfg, store, hist, logger)
	if err != nil {
		return err
	}
	store.Update(state.Partial{
		Runtime: &state.RuntimePatch{
			BackendRunning: state.Bool(true),
			ActiveModel:    state.Str(cfg.Router.Model),
			Persona:        state.Str(cfg.Persona),
			PowersLoaded:   reg.Names(),
		},
	})

	// Fallback classifier. Without a configured model endpoint the
	// router still works on patterns alone.
	var classifier *router.Classifier
	var llmClient llm.Client
	if cfg.Router.BaseURL != "" {
		timeout := time.Duration(cfg.Router.TimeoutSec) * time.Second
		llmClient = llm.NewOpenAIClient(cfg.Router.BaseURL, cfg.Router.APIKey, cfg.Router.Model, timeout)
		classifier = router.NewClassifier(llmClient, cfg.Router.Model, timeout, cfg.Router.CacheSize, logger)
		go classifier.Warm(ctx)
	} else {
		logger.Warn("no router model configured, pattern matching only")
	}

	exec := router.NewExecutor(reg, store, bus, logger)
	rtr := router.New(reg, store, classifier, exec, bus, logger)

	runner := watchers.New(watchers.Config{
		SystemInterval: time.Duration(cfg.Watchers.SystemIntervalSec) * time.Second,
		DiscInterval:   time.Duration(cfg.Watchers.DiscIntervalSec) * time.Second,
		DiscMountRoot:  cfg.Watchers.DiscMountRoot,
	}, store, bus, logger)
	runner.Start(ctx)

	var notifier *notify.Notifier
	if cfg.MQTT.Enabled {
		notifier = notify.New(notify.Config{
			Broker:      cfg.MQTT.Broker,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, store, bus, logger)
		if err := notifier.Start(ctx); err != nil {
			logger.Error("mqtt notifier failed to start", "error", err)
		}
	}

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, rtr, store, reg, logger)
	server.SetHistory(hist)
	server.SetBus(bus)
	if llmClient != nil {
		server.SetChatter(newChatter(llmClient, cfg.Router.Model, cfg.Persona))
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(ctx)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if notifier != nil {
		if err := notifier.Stop(shutdownCtx); err != nil {
			logger.Error("mqtt shutdown failed", "error", err)
		}
	}
	runner.Wait()

	logger.Info("goodbye")
	return nil
}

// buildRegistry constructs and registers every capability the config
// enables. Capabilities with missing config are skipped with a log
// line rather than registered broken.
func buildRegistry(cfg *config.Config, store *state.Store, hist *history.Store, logger *slog.Logger) (*capability.Registry, error) {
	reg := capability.NewRegistry(logger)

	register := func(c capability.Capability) error {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register %s: %w", c.Name(), err)
		}
		logger.Info("capability loaded", "name", c.Name())
		return nil
	}

	if cfg.Plex.URL != "" {
		client := plex.NewClient(cfg.Plex.URL, cfg.Plex.Token, cfg.Plex.InsecureTLS)
		if err := register(plex.NewCapability(client, logger)); err != nil {
			return nil, err
		}
	} else {
		logger.Info("plex not configured, capability skipped")
	}

	dl := media.New(media.Config{
		YTDLPPath:   cfg.Media.YTDLPPath,
		DownloadDir: cfg.Media.DownloadDir,
	}, logger)
	if err := register(media.NewCapability(dl, hist, logger)); err != nil {
		return nil, err
	}

	ripper := ripdisc.New(ripdisc.Config{
		MakeMKVPath: cfg.RipDisc.MakeMKVPath,
		OutputDir:   cfg.RipDisc.OutputDir,
	}, logger)
	if err := register(ripdisc.NewCapability(ripper, store, hist, logger)); err != nil {
		return nil, err
	}

	if len(cfg.FileOps.Roots) > 0 {
		if err := register(fileops.NewCapability(fileops.New(cfg.FileOps.Roots), logger)); err != nil {
			return nil, err
		}
	} else {
		logger.Info("no fileops roots configured, capability skipped")
	}

	if cfg.Wolfram.AppID != "" {
		if err := register(calc.NewCapability(calc.NewClient(cfg.Wolfram.AppID))); err != nil {
			return nil, err
		}
	} else {
		logger.Info("wolfram not configured, capability skipped")
	}

	if cfg.Search.BraveAPIKey != "" {
		if err := register(search.NewCapability(search.NewBrave(cfg.Search.BraveAPIKey))); err != nil {
			return nil, err
		}
	} else {
		logger.Info("brave search not configured, capability skipped")
	}

	return reg, nil
}

// newChatter adapts the chat-completion client for WebSocket chat.
// Replies come back in one piece; the stream contract still gives the
// handler a cancellation point per chunk.
func newChatter(client llm.Client, model, persona string) api.Chatter {
	system := fmt.Sprintf("You are %s, a warm and capable personal assistant. Keep replies conversational and concise.", persona)
	return api.ChatterFunc(func(ctx context.Context, message string, emit func(string) error) error {
		resp, err := client.Chat(ctx, model, []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: message},
		}, llm.Options{MaxTokens: 1024, Temperature: 0.7})
		if err != nil {
			return err
		}
		return emit(resp.Text())
	})
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}

// dataDir resolves the persistent data directory, defaulting beside
// the config the way the frontend expects.
func dataDir(cfg *config.Config) string {
	if cfg.DataDir != "" {
		return cfg.DataDir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "glowd")
	}
	return "glowd-data"
}
