package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	log "github.com/sirupsen/logrus"

	"github.com/fortuna/iplstats/internal/api/tools"
	"github.com/fortuna/iplstats/internal/app"
	"github.com/fortuna/iplstats/internal/config"
	"github.com/fortuna/iplstats/internal/logging"
)

const serviceVersion = "1.0.0"

func main() {
	var (
		configPath = flag.String("config", os.Getenv("IPLSTATS_CONFIG"), "path to YAML config file")
		addr       = flag.String("addr", "", "serve streamable HTTP on this address instead of stdio")
		mcpPath    = flag.String("path", "/mcp", "HTTP path for the MCP endpoint")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// stdout carries the protocol in stdio mode, so logs go to stderr
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to open dataset: %v", err)
	}
	defer application.Close()

	server, registry := tools.NewServer(application.Stats, serviceVersion)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *addr == "" {
		log.Printf("MCP stdio server ready (%d tools, dataset %s)", len(registry), application.Store.Source())
		if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			log.Fatal(err)
		}
		return
	}

	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{JSONResponse: true})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/tools", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		b, _ := json.MarshalIndent(map[string]any{"tools": registry}, "", "  ")
		w.Write(b)
	})
	mux.Handle(*mcpPath, handler)

	httpServer := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	log.Printf("MCP HTTP server listening on %s%s", *addr, *mcpPath)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
