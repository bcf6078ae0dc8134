// dictated - Incremental dictation reconciliation for the desktop
//
// dictated consumes a tagged word-update stream from a transcription
// process and keeps the focused application's text in sync with it,
// correcting earlier words as later context arrives:
//
//	dictated init            Write default config and mode files
//	dictated run             Run a live dictation session
//	dictated replay <file>   Replay an exported transcript packet
//	dictated export <id>     Export a recorded session as JSON
//	dictated config          Show the effective configuration
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/BurntSushi/toml"

	"dictated/internal/config"
	"dictated/internal/feed"
	"dictated/internal/logging"
	"dictated/internal/modes"
	"dictated/internal/reconcile"
	"dictated/internal/schema"
	"dictated/internal/session"
	"dictated/internal/transcript"
	"dictated/internal/typist"
)

var version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		cmdInit()
	case "run":
		cmdRun()
	case "replay":
		cmdReplay()
	case "export":
		cmdExport()
	case "config":
		cmdConfig()
	case "version", "-v", "--version":
		fmt.Printf("dictated %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`dictated - Incremental Dictation Reconciliation

USAGE:
    dictated <command> [options]

COMMANDS:
    init             Write default config and correction-mode files
    run              Run a live dictation session
    replay <file>    Replay an exported transcript packet to stdout
    export <id>      Export a recorded session as a JSON packet
    config           Show the effective configuration
    version          Show the version
    help             Show this help message

RUN WORKFLOW:
    1. dictated init                    # One-time setup
    2. Focus the application to dictate into
    3. dictated run -baseline note.txt  # Stream corrections onto it

RUNTIME SIGNALS (Unix):
    SIGUSR1    Cycle to the next correction mode
    SIGUSR2    Cycle to the previous correction mode
    SIGHUP     Flush the stream (type out the remaining baseline tail)

The word stream arrives as <N>text</N> records, on stdin by default;
see the [feed] section of the config for file and websocket sources.`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// loadConfig loads the config file, falling back to defaults when the
// file does not exist.
func loadConfig(path string) *config.Config {
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.NewLoader(path).Load()
	if err != nil {
		fatalf("load config %s: %v", path, err)
	}
	return cfg
}

// setupLogging builds the process logger from config and installs it
// as the default.
func setupLogging(cfg *config.Config) *logging.Logger {
	log, err := logging.New(&logging.Config{
		Level:     logging.ParseLevel(cfg.Logging.Level),
		Format:    logging.ParseFormat(cfg.Logging.Format),
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		Component: "dictated",
	})
	if err != nil {
		fatalf("setup logging: %v", err)
	}
	logging.SetDefault(log)
	return log
}

func cmdInit() {
	cfgPath := config.DefaultPath()
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(config.PlatformConfigDir(), 0700); err != nil {
			fatalf("create config dir: %v", err)
		}
		f, err := os.OpenFile(cfgPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err != nil {
			fatalf("create config: %v", err)
		}
		if err := toml.NewEncoder(f).Encode(config.DefaultConfig()); err != nil {
			f.Close()
			fatalf("write config: %v", err)
		}
		f.Close()
		fmt.Printf("Wrote %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists at %s\n", cfgPath)
	}

	modesDir := config.DefaultConfig().Modes.Dir
	if err := modes.WriteDefaults(modesDir); err != nil {
		fatalf("write mode files: %v", err)
	}
	fmt.Printf("Mode files in %s\n", modesDir)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Adjust the [feed] and [sink] sections for your setup")
	fmt.Println("  2. Focus the target application")
	fmt.Println("  3. dictated run -baseline <file-with-current-text>")
}

func cmdConfig() {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file path")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(*cfgPath)
	fmt.Printf("# effective configuration (%s)\n", configPathOrDefault(*cfgPath))
	if err := toml.NewEncoder(os.Stdout).Encode(cfg); err != nil {
		fatalf("encode config: %v", err)
	}
}

func configPathOrDefault(path string) string {
	if path == "" {
		return config.DefaultPath()
	}
	return path
}

func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file path")
	baselinePath := fs.String("baseline", "", "File holding the text currently on the surface")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(*cfgPath)
	log := setupLogging(cfg)
	defer log.Close()

	sink := buildSink(cfg)

	var store *transcript.Store
	if cfg.Transcript.Enabled {
		var err error
		store, err = transcript.Open(cfg.Transcript.Path)
		if err != nil {
			fatalf("open transcript store: %v", err)
		}
		defer store.Close()
	}

	lib := loadModes(cfg, log)
	if lib != nil {
		defer lib.Close()
	}

	sess := session.New(session.Config{
		Sink:         sink,
		Store:        store,
		Log:          log,
		LogContent:   cfg.Logging.LogContent,
		BaselineStep: cfg.Baseline.Step,
	})

	baseline := ""
	if *baselinePath != "" {
		data, err := os.ReadFile(*baselinePath)
		if err != nil {
			fatalf("read baseline: %v", err)
		}
		baseline = string(data)
	}
	sess.ResetText(baseline)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := openFeed(ctx, cfg, lib)
	if err != nil {
		fatalf("open feed: %v", err)
	}
	defer src.Close()

	// A source blocked in a read does not observe the context; closing
	// it on cancellation unblocks the read so interrupts take effect
	// during a quiet stream.
	go func() {
		<-ctx.Done()
		src.Close()
	}()

	control := notifyControl()
	defer signal.Stop(control)
	go func() {
		for sig := range control {
			switch {
			case isModeCycle(sig) && lib != nil:
				log.Info("correction mode changed", "mode", lib.Next())
			case isModeCycleBack(sig) && lib != nil:
				log.Info("correction mode changed", "mode", lib.Prev())
			case isFlush(sig):
				if err := sess.EndStream(); err != nil {
					log.Warn("flush failed", "error", err)
				}
			}
		}
	}()

	log.Info("session started",
		"feed", cfg.Feed.Source,
		"sink", cfg.Sink.Type,
		"version", version,
	)

	if err := sess.Run(ctx, src); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, feed.ErrClosed) {
			log.Info("session interrupted")
			return
		}
		fatalf("session: %v", err)
	}
	log.Info("session complete")
}

// buildSink constructs the configured output sink.
func buildSink(cfg *config.Config) reconcile.Sink {
	switch cfg.Sink.Type {
	case "xdotool":
		return typist.NewXdotool(typist.XdotoolConfig{
			Command: cfg.Sink.XdotoolPath,
			DelayMs: cfg.Sink.TypingDelayMs,
		})
	case "clipboard":
		return typist.NewClipboard()
	case "trace":
		return &typist.Trace{W: os.Stdout}
	default:
		fatalf("unknown sink type %q", cfg.Sink.Type)
		return nil
	}
}

// loadModes loads the correction-mode library, seeding defaults when
// the directory is empty or missing. A nil return disables modes.
func loadModes(cfg *config.Config, log *logging.Logger) *modes.Library {
	lib := modes.NewLibrary(cfg.Modes.Dir)
	err := lib.Load()
	if errors.Is(err, modes.ErrNoModes) || errors.Is(err, os.ErrNotExist) {
		if err = modes.WriteDefaults(cfg.Modes.Dir); err == nil {
			err = lib.Load()
		}
	}
	if err != nil {
		log.Warn("correction modes unavailable", "dir", cfg.Modes.Dir, "error", err)
		return nil
	}
	if cfg.Modes.Active != "" {
		if err := lib.SetActive(cfg.Modes.Active); err != nil {
			log.Warn("configured mode not found", "mode", cfg.Modes.Active)
		}
	}
	if cfg.Modes.Watch {
		if err := lib.Watch(nil); err != nil {
			log.Warn("mode watching disabled", "error", err)
		}
	}
	log.Info("correction mode active", "mode", lib.Active())
	return lib
}

// openFeed opens the configured chunk source. Websocket feeds are
// greeted with the active mode's instructions.
func openFeed(ctx context.Context, cfg *config.Config, lib *modes.Library) (feed.Source, error) {
	switch cfg.Feed.Source {
	case "stdin":
		return feed.NewReader(os.Stdin, cfg.Feed.ReadBufferBytes), nil
	case "file":
		f, err := os.Open(cfg.Feed.Path)
		if err != nil {
			return nil, err
		}
		return feed.NewReader(f, cfg.Feed.ReadBufferBytes), nil
	case "websocket":
		ws, err := feed.DialWebSocket(ctx, cfg.Feed.URL)
		if err != nil {
			return nil, err
		}
		if lib != nil {
			if err := ws.Greet(lib.Instructions()); err != nil {
				ws.Close()
				return nil, err
			}
		}
		return ws, nil
	default:
		return nil, fmt.Errorf("unknown feed source %q", cfg.Feed.Source)
	}
}

func cmdReplay() {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: dictated replay <packet.json>")
		os.Exit(1)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fatalf("read packet: %v", err)
	}
	if err := schema.ValidatePacket(data); err != nil {
		fatalf("invalid packet: %v", err)
	}

	var packet transcript.Packet
	if err := json.Unmarshal(data, &packet); err != nil {
		fatalf("decode packet: %v", err)
	}

	engine := reconcile.NewEngine(&typist.Trace{W: os.Stdout})
	engine.Reset(reconcile.NewBaseline(packet.Session.Baseline))
	for _, u := range packet.Updates {
		if err := engine.Apply(u.Pos, u.Content); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: update %d dropped: %v\n", u.Seq, err)
		}
	}
	if err := engine.Flush(); err != nil {
		fatalf("flush: %v", err)
	}

	fmt.Println("---")
	fmt.Printf("final: %q\n", engine.Text())
	if packet.Session.FinalText != "" && packet.Session.FinalText != engine.Text() {
		fmt.Fprintln(os.Stderr, "Warning: replayed text differs from the recorded final text")
	}
}

func cmdExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file path")
	out := fs.String("o", "", "Output file (default stdout)")
	fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: dictated export <session-id> [-o file]")
		os.Exit(1)
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		fatalf("session id %q is not a number", fs.Arg(0))
	}

	cfg := loadConfig(*cfgPath)
	store, err := transcript.Open(cfg.Transcript.Path)
	if err != nil {
		fatalf("open transcript store: %v", err)
	}
	defer store.Close()

	packet, err := store.Export(id)
	if err != nil {
		fatalf("export session %d: %v", id, err)
	}
	data, err := json.MarshalIndent(packet, "", "  ")
	if err != nil {
		fatalf("encode packet: %v", err)
	}
	if err := schema.ValidatePacket(data); err != nil {
		fatalf("exported packet failed validation: %v", err)
	}
	data = append(data, '\n')

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fatalf("create %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(data); err != nil {
		fatalf("write packet: %v", err)
	}
}
