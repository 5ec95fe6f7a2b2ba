package main

import (
	"github.com/akolanti/docqa/internal/handlers"
	"github.com/akolanti/docqa/internal/middleware"
	"github.com/akolanti/docqa/internal/server"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/spf13/cobra"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API over HTTP",
	Long: `Build or open the index, then serve the chat API.

Routes:
  GET    /healthz          liveness
  GET    /readyz           index state
  POST   /chat             ask a question, optionally within a session
  GET    /sessions/{id}    conversation history
  DELETE /sessions/{id}    end a session
  GET    /swagger/         API docs
  GET    /metrics          Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen-addr", "", "server listen address (overrides server.listen_addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := logger_i.NewLogger("main")
	ctx := cmd.Context()

	app, p, err := openPipeline(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	service, err := app.ChatService(ctx, p)
	if err != nil {
		return err
	}
	handler := handlers.InitChatHandler(service, app.Readiness(p))
	chain := middleware.NewChain(cfg.Server.RateLimitPerSecond, cfg.Server.RateLimitBurst)

	addr := cfg.Server.ListenAddr
	if listenAddr != "" {
		addr = listenAddr
	}
	srv := server.CreateServer(addr, server.Routes(handler, chain))
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
