// Package http levanta el servidor del emulador.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/authemu/internal/observability/logger"
)

// ShutdownTimeout es lo que se espera a los requests en vuelo al apagar.
const ShutdownTimeout = 10 * time.Second

// Server envuelve http.Server con apagado ordenado.
type Server struct {
	srv *http.Server
}

// NewServer crea el server; no escucha hasta Run.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Run escucha hasta que ctx se cancela y después hace Shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve es Run sobre un listener ya abierto.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.L().Info("emulator listening", logger.Component("http"), logger.String("addr", ln.Addr().String()))
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		logger.L().Info("shutting down", logger.Component("http"))
		return s.srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
