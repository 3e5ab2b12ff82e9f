package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombor/snapbill/internal/logging"
	"github.com/zombor/snapbill/internal/receipt"
	"github.com/zombor/snapbill/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("snapbill")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "", "Session database file path (empty keeps sessions in memory)")
		sessionTTL  = fs.DurationLong("session-ttl", 24*time.Hour, "Remove sessions idle for longer than this")
		scannerType = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini', 'ollama' or 'openai'")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
		openaiKey   = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiModel = fs.StringLong("openai-model", "gpt-4o-mini", "OpenAI model name")
		openaiURL   = fs.StringLong("openai-url", "", "OpenAI-compatible API base URL (optional)")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel    = fs.StringLong("log-level", "info", "Log level: debug, info, warn, error")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("SNAPBILL"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logging.Setup(os.Stderr, *logLevel)

	// Initialize session store
	var db receipt.DB
	if *dbPath == "" {
		slog.Info("Keeping sessions in memory")
		db = receipt.NewMemoryDB()
	} else {
		slog.Info("Initializing database...", "path", *dbPath)
		boltDB, err := receipt.NewBoltDB(*dbPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		db = boltDB
	}
	defer db.Close()

	scanner, err := newScanner(*scannerType, scannerConfig{
		geminiKey:   *geminiKey,
		geminiModel: *geminiModel,
		ollamaURL:   *ollamaURL,
		ollamaModel: *ollamaModel,
		openaiKey:   *openaiKey,
		openaiModel: *openaiModel,
		openaiURL:   *openaiURL,
	})
	if err != nil {
		slog.Error("Failed to initialize scanner", "type", *scannerType, "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := receipt.NewMetrics(registry)

	receiptService := receipt.NewService(db, scanner, metrics)
	if _, err := receiptService.RecoverInterrupted(); err != nil {
		slog.Error("Failed to recover interrupted sessions", "error", err)
		os.Exit(1)
	}

	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(receiptService, basicAuth, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", httpServer.Addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go pruneSessions(ctx, receiptService, *sessionTTL)

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error shutting down server", "error", err)
	}
}

type scannerConfig struct {
	geminiKey   string
	geminiModel string
	ollamaURL   string
	ollamaModel string
	openaiKey   string
	openaiModel string
	openaiURL   string
}

// newScanner builds the configured LLM provider
func newScanner(scannerType string, cfg scannerConfig) (scanning.Scanner, error) {
	switch scannerType {
	case "gemini":
		apiKey := cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		slog.Info("Initializing Gemini scanner...", "model", cfg.geminiModel)
		return scanning.NewGemini(apiKey, cfg.geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		return scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
	case "openai":
		apiKey := cfg.openaiKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		slog.Info("Initializing OpenAI scanner...", "model", cfg.openaiModel)
		return scanning.NewOpenAI(apiKey, cfg.openaiModel, cfg.openaiURL)
	default:
		return nil, fmt.Errorf("invalid scanner type %q (valid: gemini, ollama, openai)", scannerType)
	}
}

// pruneSessions drops idle sessions every hour until ctx is done
func pruneSessions(ctx context.Context, service *receipt.Service, ttl time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := service.PruneSessions(ttl); err != nil {
				slog.Error("Failed to prune sessions", "error", err)
			}
		}
	}
}
