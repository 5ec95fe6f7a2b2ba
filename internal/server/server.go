package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/akolanti/docqa/internal/adapter/utils"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/handlers"
	"github.com/akolanti/docqa/internal/middleware"
	"github.com/akolanti/docqa/pkg/logger_i"
)

type Server struct {
	server  *http.Server
	_logger *logger_i.Logger
}

// Routes mounts the chat API behind the middleware chain.
func Routes(h *handlers.ChatHandler, chain *middleware.Chain) http.Handler {
	r := utils.NewRouter()

	r.Router.Get("/healthz", chain.Wrap(h.GetHandler))
	r.Router.Get("/readyz", chain.Wrap(h.ReadyHandler))
	r.Router.Post("/chat", chain.Wrap(h.ChatHandler))
	r.Router.Get("/sessions/{id}", chain.Wrap(h.GetSessionHandler))
	r.Router.Delete("/sessions/{id}", chain.Wrap(h.DeleteSessionHandler))
	return r.Router
}

func CreateServer(listenAddr string, handler http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Addr:         listenAddr,
			Handler:      handler,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		_logger: logger_i.NewLogger("Server"),
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s._logger.Info("Server is listening at", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s._logger.Error("Server crashed", "error", err, "addr", s.server.Addr)
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return s.ShutDown()
}

func (s *Server) ShutDown() error {
	s._logger.Info("Server is shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	s.server.SetKeepAlivesEnabled(false)
	if err := s.server.Shutdown(ctx); err != nil {
		s._logger.Error("Could not shutdown gracefully", "error", err)
		return err
	}
	s._logger.Info("Gracefully shut down")
	return nil
}
