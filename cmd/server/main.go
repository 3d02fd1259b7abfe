package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"github.com/Tyrowin/channelrelay/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	config, err := server.LoadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	relay := server.New(config, log)
	relay.Start()

	httpServer := server.CreateServer(config.Addr(), relay.SetupRoutes())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer, log)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = relay.Hub().Shutdown(config.ShutdownTimeout)
			return fmt.Errorf("serve %s: %w", config.Addr(), err)
		}
		return nil
	case <-ctx.Done():
	}

	httpErr := server.ShutdownServer(httpServer, config.ShutdownTimeout, log)
	hubErr := relay.Hub().Shutdown(config.ShutdownTimeout)
	return errors.Join(httpErr, hubErr)
}
