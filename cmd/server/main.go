package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexuschat/relay/internal/chat"
	"github.com/nexuschat/relay/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log.Println("Starting relay server...")

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	gateway := chat.NewGateway(cfg.GracePeriod)
	go gateway.Run()

	handler := server.NewHandler(cfg, gateway)
	httpServer := server.CreateServer(cfg.Port, handler.Routes())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-sigCh:
		log.Printf("Received signal %s, shutting down", sig)
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Printf("HTTP shutdown incomplete: %v", err)
	}
	if err := gateway.Shutdown(shutdownTimeout); err != nil {
		log.Printf("Gateway shutdown incomplete: %v", err)
	}
}
