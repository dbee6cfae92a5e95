// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Command daemon wires the core's components into one process: the
// provider registry (with the Ollama and Owiseman discovery loaders), the
// PTY multiplexer, the MCP connection manager, and the typed event bus,
// behind a small HTTP API. Driver dispatch (internal/provider.New) is not
// wired here.
// No config-file parsing logic lives here beyond flags/env, per the
// core's Non-goals — only the already-validated config.Config shape is
// ever passed down into the core packages themselves.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/acme/codeassist-core/internal/config"
	"github.com/acme/codeassist-core/internal/credstore"
	"github.com/acme/codeassist-core/internal/eventbus"
	"github.com/acme/codeassist-core/internal/mcpmanager"
	"github.com/acme/codeassist-core/internal/obslog"
	"github.com/acme/codeassist-core/internal/provider"
	"github.com/acme/codeassist-core/internal/pty"
	"github.com/acme/codeassist-core/internal/registry"
)

func main() {
	log := obslog.New("daemon")

	addr := os.Getenv("DAEMON_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	dataDir := os.Getenv("DAEMON_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}

	cfg := loadConfigFromEnv(dataDir)

	store, err := credstore.Open(filepath.Join(dataDir, "credentials.json"))
	if err != nil {
		log.Error("opening credential store: %v", err)
		os.Exit(1)
	}

	bus := eventbus.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg, err := registry.Build(ctx, cfg, registry.BuildOptions{
		CustomLoaders: map[string]registry.CustomLoader{
			"ollama":   provider.OllamaDiscoveryLoader(provider.OllamaBaseURL()),
			"owiseman": provider.OwisemanDiscoveryLoader(provider.OwisemanBaseURL()),
		},
	})
	if err != nil {
		log.Error("building registry: %v", err)
		os.Exit(1)
	}

	mcpMgr := mcpmanager.New(cfg, store, bus)
	mcpMgr.Start(ctx)
	defer mcpMgr.Close()

	ptyMux := pty.NewMultiplexer(bus)

	srv := &daemonServer{
		log:      log,
		registry: reg,
		mcp:      mcpMgr,
		pty:      ptyMux,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealthz)
	mux.HandleFunc("GET /models", srv.handleListModels)
	mux.HandleFunc("GET /pty/{id}/attach", srv.handlePTYAttach)
	mux.HandleFunc("POST /mcp/{name}/authenticate", srv.handleMCPAuthenticate)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		log.Info("listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

// loadConfigFromEnv builds a minimal config.Config from environment
// variables. This is deliberately not a general config-file parser: it
// reads a handful of named variables the daemon itself needs to boot,
// leaving richer declarative provider/MCP configuration to whatever
// caller constructs a config.Config and embeds this module.
func loadConfigFromEnv(dataDir string) config.Config {
	cfg := config.Config{
		DataDirectory: dataDir,
		Model:         os.Getenv("DAEMON_MODEL"),
		SmallModel:    os.Getenv("DAEMON_SMALL_MODEL"),
		MCPs:          map[string]config.MCPEntry{},
	}
	if v := os.Getenv("DAEMON_DISABLED_PROVIDERS"); v != "" {
		cfg.DisabledProviders = strings.Split(v, ",")
	}
	return cfg
}

// daemonServer holds every wired component the HTTP handlers need.
type daemonServer struct {
	log      *obslog.Logger
	registry *registry.Registry
	mcp      *mcpmanager.Manager
	pty      *pty.Multiplexer
}

func (s *daemonServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleListModels surfaces the built registry for introspection; the
// chat orchestrator that actually resolves a (providerID, modelID) into
// a streaming handle via internal/provider is an external collaborator,
// not this daemon.
func (s *daemonServer) handleListModels(w http.ResponseWriter, r *http.Request) {
	type modelInfo struct {
		ProviderID string `json:"providerId"`
		ModelID    string `json:"modelId"`
		Family     string `json:"family"`
	}
	var out []modelInfo
	for _, p := range s.registry.Providers {
		for _, m := range p.Models {
			out = append(out, modelInfo{ProviderID: p.ID, ModelID: m.ModelID, Family: m.Family})
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handlePTYAttach upgrades the connection to a WebSocket and subscribes
// it to the named PTY session, replaying any buffered backlog first.
func (s *daemonServer) handlePTYAttach(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("pty attach upgrade failed for %s: %v", id, err)
		return
	}
	defer conn.Close()

	sink := pty.NewChanSink(64)
	defer sink.Close()

	directory := r.URL.Query().Get("cwd")
	if err := s.pty.Connect(id, sink, pty.ConnectOptions{Directory: directory}); err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(err.Error()))
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := s.pty.Write(id, data); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case chunk, ok := <-sink.C():
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// handleMCPAuthenticate drives an interactive OAuth authorization for a
// configured remote MCP server, surfacing the authorization URL to the
// caller for display rather than opening a browser itself.
func (s *daemonServer) handleMCPAuthenticate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var authURL string
	status, err := s.mcp.Authenticate(r.Context(), name, func(url string) {
		authURL = url
	})
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  status.String(),
		"authURL": authURL,
	})
}
