package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"dagvault/pkg/app"
	"dagvault/pkg/config"
	"dagvault/pkg/server"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/viper"
)

var log = logging.Logger("dagvault/main")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load Config
	cfgFile := flag.String("config", "", "config file (default is ./.dv/config.yaml)")
	addr := flag.String("addr", "", "listen address (overrides server.addr)")
	flag.Parse()

	if err := config.Load(*cfgFile); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if *addr != "" {
		viper.Set("server.addr", *addr)
	}

	// 2. Init Core Application
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer application.Close()
	direct, recursive := application.Pins.Counts()
	log.Infow("dagvault core initialized", "config", config.Used(), "direct_pins", direct, "recursive_pins", recursive)

	// 3. Setup Network
	listenAddr := viper.GetString("server.addr")
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}

	// 4. Start Server (Async)
	grpcServer := server.New(application)
	serveErr := make(chan error, 1)
	go func() {
		log.Infow("gRPC server listening", "addr", listenAddr)
		serveErr <- grpcServer.Serve(lis)
	}()

	// 5. Graceful Shutdown
	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}
	log.Infow("shutting down server")
	grpcServer.GracefulStop()
	log.Infow("server stopped")
	return nil
}
