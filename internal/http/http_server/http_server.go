package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type httpServer struct {
	name            string
	listenPort      uint16
	shutdownTimeout time.Duration
	srv             *http.Server
	ln              net.Listener
	ctx             context.Context
}

func NewHttpServer(ctx context.Context, name string, listenPort uint16, handler http.Handler, shutdownTimeout time.Duration) *httpServer {
	return &httpServer{
		name:            name,
		listenPort:      listenPort,
		shutdownTimeout: shutdownTimeout,
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ctx: ctx,
	}
}

// Start listens on the configured port and serves until Dispose is called.
// A clean shutdown returns nil.
func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	zap.L().Info("http_listening", zap.String("server", h.name), zap.String("addr", h.ln.Addr().String()))
	if err := h.srv.Serve(h.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to shutdownTimeout for in‑flight requests to finish.
func (h *httpServer) Dispose() error {
	// Detached from h.ctx: by the time we dispose, that context is usually
	// already cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), h.shutdownTimeout)
	defer cancel()

	// Ask the server to shut down.
	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.String("server", h.name), zap.Error(err))
		return err // e.g. active conns didn’t finish in time
	}
	return nil
}
