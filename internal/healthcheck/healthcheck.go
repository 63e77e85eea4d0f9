// Package healthcheck serves a tiny liveness endpoint for deployments
// that probe the bot over HTTP.
package healthcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// NormalizeListen trims the listen address and turns a bare port into
// ":port" form. Empty input disables the server.
func NormalizeListen(listen string) string {
	listen = strings.TrimSpace(listen)
	if listen == "" {
		return ""
	}
	if !strings.Contains(listen, ":") {
		return ":" + listen
	}
	return listen
}

// StartServer begins serving /healthz on addr and returns the server so
// the caller can shut it down. The component name is echoed in the
// response body.
func StartServer(ctx context.Context, logger *slog.Logger, addr, component string) (*http.Server, error) {
	addr = NormalizeListen(addr)
	if addr == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":    "ok",
			"component": component,
		})
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if serveErr := server.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Warn("health_server_error", "addr", addr, "error", serveErr.Error())
		}
	}()
	logger.Info("health_server_started", "addr", ln.Addr().String(), "component", component)
	return server, nil
}
