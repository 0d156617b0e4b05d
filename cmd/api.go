package cmd

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tomefetch/tomefetch/internal/core"
	"github.com/tomefetch/tomefetch/internal/download"
	"github.com/tomefetch/tomefetch/internal/engine/events"
	"github.com/tomefetch/tomefetch/internal/engine/types"
	"github.com/tomefetch/tomefetch/internal/utils"
)

const (
	defaultAPIPort    = 1700
	sseHeartbeat      = 15 * time.Second
	shutdownGraceTime = 5 * time.Second
)

// apiServer is the running control API of this process.
type apiServer struct {
	Port   int
	server *http.Server
}

// startAPIServer binds 127.0.0.1 (port 0 picks the first free port from
// 1700), serves the control API in the background and publishes the port
// file.
func startAPIServer(service core.DownloadService, port int) (*apiServer, error) {
	token, err := ensureAuthToken()
	if err != nil {
		return nil, err
	}

	var ln net.Listener
	if port > 0 {
		ln, err = net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return nil, fmt.Errorf("could not bind to port %d: %w", port, err)
		}
	} else {
		port, ln = findAvailablePort(defaultAPIPort)
		if ln == nil {
			return nil, errors.New("could not find available port")
		}
	}

	srv := &http.Server{
		Handler:           newAPIHandler(service, token, port),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Debug("HTTP server error: %v", err)
		}
	}()

	saveActivePort(port)
	return &apiServer{Port: port, server: srv}, nil
}

// Close stops the server and removes the port file.
func (s *apiServer) Close() {
	removeActivePort()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGraceTime)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		utils.Debug("HTTP server shutdown: %v", err)
	}
}

// findAvailablePort tries ports starting from 'start' until one is available
func findAvailablePort(start int) (int, net.Listener) {
	for port := start; port < start+100; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return port, ln
		}
	}
	return 0, nil
}

// newAPIHandler builds the control API. Everything except /health requires
// the bearer token.
func newAPIHandler(service core.DownloadService, token string, port int) http.Handler {
	api := &apiHandler{service: service}

	mux := http.NewServeMux()
	mux.HandleFunc("/download", api.handleDownload)
	mux.HandleFunc("/pause", api.handleControl(service.Pause, "paused"))
	mux.HandleFunc("/resume", api.handleControl(service.Resume, "resumed"))
	mux.HandleFunc("/delete", api.handleControl(service.Delete, "deleted"))
	mux.HandleFunc("/list", api.handleList)
	mux.HandleFunc("/history", api.handleHistory)
	mux.HandleFunc("/events", api.handleEvents)

	root := http.NewServeMux()
	root.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"port":    port,
			"version": Version,
		})
	})
	root.Handle("/", authMiddleware(token, mux))

	return corsMiddleware(root)
}

type apiHandler struct {
	service core.DownloadService
}

func (a *apiHandler) handleDownload(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "Missing id parameter", http.StatusBadRequest)
			return
		}
		status, err := a.service.GetStatus(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)

	case http.MethodPost:
		var req core.AddRequest
		defer func() { _ = r.Body.Close() }()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.URL) == "" {
			http.Error(w, "URL is required", http.StatusBadRequest)
			return
		}
		if strings.Contains(req.Path, "..") || strings.Contains(req.Filename, "..") {
			http.Error(w, "Invalid path", http.StatusBadRequest)
			return
		}
		if strings.ContainsAny(req.Filename, `/\`) {
			http.Error(w, "Invalid filename", http.StatusBadRequest)
			return
		}

		utils.Debug("Received download request: URL=%s, Path=%s", req.URL, req.Path)
		id, err := a.service.Add(req.URL, req.Path, req.Filename, req.Headers)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"id":      id,
			"status":  "queued",
			"message": "Download queued successfully",
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *apiHandler) handleControl(fn func(string) error, result string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "Missing id parameter", http.StatusBadRequest)
			return
		}
		if err := fn(id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": result, "id": id})
	}
}

func (a *apiHandler) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	statuses, err := a.service.List()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if statuses == nil {
		statuses = []types.DownloadStatus{}
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (a *apiHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	history, err := a.service.History()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if history == nil {
		history = []types.DownloadEntry{}
	}
	writeJSON(w, http.StatusOK, history)
}

// handleEvents streams service events as server-sent events until the
// client goes away.
func (a *apiHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	stream, stop, err := a.service.StreamEvents(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case msg, ok := <-stream:
			if !ok {
				return
			}
			name := events.Name(msg)
			if name == "" {
				continue
			}
			data, err := json.Marshal(msg)
			if err != nil {
				utils.Debug("SSE encode %s: %v", name, err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Debug("Error encoding response: %v", err)
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, download.ErrClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func authMiddleware(token string, next http.Handler) http.Handler {
	expected := []byte("Bearer " + token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
