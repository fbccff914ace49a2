package main

import (
	"context"
	"log"
	"math/rand"
	"os/signal"
	"syscall"

	"github.com/espenbo/sparkedge"
)

// demoProvider publishes synthetic readings, useful for exercising a broker
// without real hardware behind the node.
type demoProvider struct{}

func (demoProvider) Snapshot(context.Context) (*sparkedge.Snapshot, error) {
	snap := sparkedge.NewSnapshot()
	snap.Set("cpu_percent", sparkedge.DoubleVal(20+60*rand.Float64()))
	snap.Set("cpu_temp", sparkedge.DoubleVal(35+15*rand.Float64()))
	snap.Set("fan_speed", sparkedge.IntVal(sparkedge.Int32, int64(1200+rand.Intn(800))))
	return snap, nil
}

func main() {
	cfg, err := sparkedge.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	agent, err := sparkedge.New(cfg, sparkedge.WithProvider(demoProvider{}))
	if err != nil {
		log.Fatalf("build agent: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := agent.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("edge agent exited: %v", err)
	}
}
