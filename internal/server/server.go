package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"debtster_installments/internal/handlers"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	httpServer *http.Server
}

// Routes builds the root mux: /health and /metrics are public, everything
// else goes through auth.
func Routes(h *handlers.Handlers, auth func(http.Handler) http.Handler, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	if h == nil {
		return mux
	}

	mux.HandleFunc("GET /health", h.Health)

	api := http.NewServeMux()
	h.Register(api)
	var protected http.Handler = api
	if auth != nil {
		protected = auth(api)
	}
	mux.Handle("/", protected)

	return mux
}

func NewServer(port string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%s", port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}
