package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/espenbo/sparkedge"
)

func main() {
	cfg, err := sparkedge.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	agent, err := sparkedge.New(cfg)
	if err != nil {
		log.Fatalf("build agent: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := agent.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("edge agent exited: %v", err)
	}
}
