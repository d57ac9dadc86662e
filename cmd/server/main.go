// Command `rbeval-server` serves online evaluations of reduced basis models
// over HTTP.
//
// Each -config file names one model (offline bundle, theta expansion, bound
// policy). The server exposes JSON APIs for single solves, asynchronous
// parameter sweeps streamed over WebSocket, recorded results and Prometheus
// metrics.
//
// Flags:
//
//	-config:  comma separated list of model config files (YAML or JSON)
//	-addr:    TCP address to listen on (default: the first config's server.addr)
//	-results: SQLite database recording every solve (default: the first config's results.path)
//	-web:     optional static web root
//	-open:    open the UI URL in your default browser at startup
//
// Env:
//
//	RBEVAL_NO_OPEN=1 disables browser auto-open even when -open is set.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/CK6170/rbeval-go/file"
	"github.com/CK6170/rbeval-go/internal/results"
	"github.com/CK6170/rbeval-go/internal/server"
	"github.com/CK6170/rbeval-go/ui"
)

func main() {
	var (
		configs  = flag.String("config", "rbeval.yaml", "comma separated model config files")
		addr     = flag.String("addr", "", "http listen address")
		dbPath   = flag.String("results", "", "SQLite database recording solves")
		web      = flag.String("web", "", "path to web root (index.html)")
		open     = flag.Bool("open", false, "open the web UI in your default browser on startup")
		logLevel = flag.String("log-level", "", "debug, info, warn or error")
	)
	flag.Parse()
	log.SetOutput(ui.NewRedWriter(os.Stderr))

	store := server.NewModelStore()
	var first *file.Config
	for _, path := range strings.Split(*configs, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		cfg, err := file.LoadConfig(path)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if first == nil {
			first = cfg
		}
		level := cfg.LogLevel
		if *logLevel != "" {
			level = *logLevel
		}
		ms, err := server.LoadModel(cfg, ui.NewJSONLogger(os.Stderr, level).With("model", cfg.Name))
		if err != nil {
			log.Fatalf("Failed to load model: %v", err)
		}
		store.Put(ms)
	}
	if first == nil {
		log.Fatalf("No model config given")
	}
	if *addr == "" {
		*addr = first.Server.Addr
	}
	if *dbPath == "" {
		*dbPath = first.Results.Path
	}
	level := first.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	logger := ui.NewJSONLogger(os.Stderr, level)

	opts := server.Options{Logger: logger, MaxSweepPoints: first.Server.MaxSweepPoints}
	if *dbPath != "" {
		rs, err := results.NewStore(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open results database: %v", err)
		}
		defer rs.Close()
		opts.Results = rs
	}
	if *web != "" {
		webDir, err := filepath.Abs(*web)
		if err != nil {
			log.Fatalf("Failed to resolve web directory: %v", err)
		}
		if st, err := os.Stat(webDir); err != nil || !st.IsDir() {
			log.Fatalf("Web directory does not exist: %s", webDir)
		}
		opts.WebDir = webDir
	}

	s := server.New(store, opts)
	defer s.Close()

	// Bind the listen address early so we fail fast if the port is in use.
	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", *addr, err)
	}

	uiURL := makeUIURL(*addr)
	logger.Info("serving", "addr", *addr, "url", uiURL, "models", store.Len(), "results", *dbPath)

	if *open && os.Getenv("RBEVAL_NO_OPEN") == "" {
		if err := openBrowser(uiURL); err != nil {
			logger.Warn("failed to open browser", "error", err)
		}
	}

	if err := http.Serve(ln, s.Handler()); err != nil {
		fmt.Println(err)
	}
}

// makeUIURL turns a listen address (host:port) into a browser-friendly URL.
// Wildcard hosts are replaced by 127.0.0.1.
func makeUIURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Sprintf("http://%s/", strings.TrimSpace(addr))
	}
	if host == "" || host == "0.0.0.0" || host == "::" || host == "[::]" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%s/", host, port)
}

// openBrowser opens url in the OS default browser without waiting for it.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "windows":
		// `start` is a cmd.exe built-in. The empty title argument prevents quoting issues.
		return exec.Command("cmd", "/c", "start", "", url).Start()
	case "darwin":
		return exec.Command("open", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
