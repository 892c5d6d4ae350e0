package main

import (
	"fmt"
	"os"

	"github.com/jwulff/hush/internal/botsurface"
	"github.com/jwulff/hush/internal/config"
	"github.com/jwulff/hush/internal/daemon"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	client, err := daemon.Connect(cfg.SocketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to hushd at %s: %v\n", cfg.SocketPath, err)
		os.Exit(1)
	}
	defer client.Close()

	srv := botsurface.New(client)
	if err := srv.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
