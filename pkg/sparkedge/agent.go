package sparkedge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/espenbo/sparkedge/internal/adapters/flagstore"
	"github.com/espenbo/sparkedge/internal/adapters/mqtt"
	"github.com/espenbo/sparkedge/internal/adapters/observability"
	"github.com/espenbo/sparkedge/internal/adapters/opcuaprov"
	"github.com/espenbo/sparkedge/internal/adapters/sysmetrics"
	"github.com/espenbo/sparkedge/internal/app/config"
	"github.com/espenbo/sparkedge/internal/command"
	"github.com/espenbo/sparkedge/internal/domain"
	"github.com/espenbo/sparkedge/internal/ports"
	"github.com/espenbo/sparkedge/internal/session"
	"github.com/espenbo/sparkedge/internal/sparkplug"
)

// AgentOption customizes the dependencies used by Agent.
type AgentOption func(*overrides)

type overrides struct {
	provider  ports.SnapshotProvider
	transport ports.Transport
	store     ports.FlagStore
	obs       ports.Observability
}

// WithProvider injects a custom snapshot source (simulators, PLC bridges).
func WithProvider(p ports.SnapshotProvider) AgentOption {
	return func(o *overrides) { o.provider = p }
}

// WithTransport swaps the MQTT transport for a caller-provided one. The
// caller then owns feeding connection and command events into the agent
// via NotifyConnect/NotifyDisconnect/NotifyCommand.
func WithTransport(t ports.Transport) AgentOption {
	return func(o *overrides) { o.transport = t }
}

// WithFlagStore replaces the file-backed command flag store.
func WithFlagStore(s ports.FlagStore) AgentOption {
	return func(o *overrides) { o.store = s }
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs ports.Observability) AgentOption {
	return func(o *overrides) { o.obs = obs }
}

// Agent wires the session engine to its adapters: snapshot provider in,
// MQTT out, command flag store for inbound DCMDs, Prometheus for
// observability.
type Agent struct {
	cfg    *config.Config
	obs    ports.Observability
	trans  ports.Transport
	engine *session.Engine

	provider   ports.SnapshotProvider
	metricsSrv *http.Server

	engineCancel context.CancelFunc
	engineDone   chan struct{}
}

// New bootstraps the default adapters and the session engine. The config
// must already be validated (config.Load does this).
func New(cfg *config.Config, opts ...AgentOption) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var ov overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&ov)
		}
	}

	obs := ov.obs
	if obs == nil {
		obs = observability.NewPromObs(nil)
	}

	store := ov.store
	if store == nil {
		var err error
		store, err = flagstore.New(cfg.FlagFile)
		if err != nil {
			return nil, err
		}
	}

	provider := ov.provider
	if provider == nil {
		var err error
		provider, err = buildProvider(cfg)
		if err != nil {
			return nil, err
		}
	}

	registry, err := sparkplug.NewRegistry(cfg.RegistryDefs())
	if err != nil {
		return nil, err
	}

	a := &Agent{cfg: cfg, obs: obs, provider: provider}

	trans := ov.transport
	if trans == nil {
		events := mqtt.Events{
			OnConnect:        a.onConnect,
			OnConnectionLost: a.onConnectionLost,
		}
		trans, err = mqtt.New(cfg.MQTT, events, &mqtt.Will{
			Topic:   sparkplug.NodeTopic(cfg.Identity.GroupID, sparkplug.KindNDeath, cfg.Identity.NodeID),
			Payload: deathPayload(),
			QoS:     cfg.MQTT.QoS,
		})
		if err != nil {
			return nil, err
		}
	}
	a.trans = trans

	a.engine = session.New(session.Config{
		GroupID:      cfg.Identity.GroupID,
		NodeID:       cfg.Identity.NodeID,
		DeviceID:     cfg.Identity.DeviceID,
		TickInterval: cfg.Session.TickInterval,
		SettleDelay:  cfg.Session.SettleDelay,
		QoS:          cfg.MQTT.QoS,
	}, registry, provider, trans, command.New(store, obs), obs)

	return a, nil
}

// Start launches the session engine, the metrics endpoint, and the broker
// connection. It returns immediately; use Run to block on a context.
func (a *Agent) Start(ctx context.Context) error {
	engineCtx, cancel := context.WithCancel(context.Background())
	a.engineCancel = cancel
	a.engineDone = make(chan struct{})
	go func() {
		defer close(a.engineDone)
		if err := a.engine.Run(engineCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.obs.LogCritical("session_engine_exited", err)
		}
	}()

	a.startMetrics()

	if err := a.trans.Connect(ctx); err != nil {
		return err
	}
	return nil
}

// Run starts the agent and blocks until the context is cancelled, then
// shuts down gracefully.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Shutdown announces the node's death, disconnects, and stops the engine
// and metrics server.
func (a *Agent) Shutdown(ctx context.Context) error {
	var errs []error

	// Clean disconnects bypass the broker-side will, so the death
	// certificate goes out explicitly.
	deathTopic := sparkplug.NodeTopic(a.cfg.Identity.GroupID, sparkplug.KindNDeath, a.cfg.Identity.NodeID)
	if err := a.trans.Publish(deathTopic, a.cfg.MQTT.QoS, deathPayload()); err != nil {
		a.obs.LogError("death_publish_failed", err)
	}
	a.trans.Disconnect()

	if a.engineCancel != nil {
		a.engineCancel()
		select {
		case <-a.engineDone:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}

	if a.metricsSrv != nil {
		if err := a.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if closer, ok := a.provider.(*opcuaprov.Provider); ok {
		if err := closer.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// NotifyConnect forwards a transport-connect event to the session engine.
// Only needed by callers that injected their own transport.
func (a *Agent) NotifyConnect() { a.engine.NotifyConnect() }

// NotifyDisconnect forwards a transport-disconnect event.
func (a *Agent) NotifyDisconnect() { a.engine.NotifyDisconnect() }

// NotifyCommand forwards a raw inbound command payload.
func (a *Agent) NotifyCommand(payload []byte) { a.engine.NotifyCommand(payload) }

func (a *Agent) onConnect() {
	topic := sparkplug.DeviceTopic(a.cfg.Identity.GroupID, sparkplug.KindDCmd, a.cfg.Identity.NodeID, a.cfg.Identity.DeviceID)
	err := a.trans.Subscribe(topic, a.cfg.MQTT.QoS, func(_ string, payload []byte) {
		a.engine.NotifyCommand(payload)
	})
	if err != nil {
		a.obs.LogError("command_subscribe_failed", err)
	}
	a.engine.NotifyConnect()
}

func (a *Agent) onConnectionLost(err error) {
	a.obs.LogError("broker_connection_lost", err)
	a.engine.NotifyDisconnect()
}

func (a *Agent) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	a.metricsSrv = &http.Server{
		Addr:    a.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server exited: %v", err)
		}
	}()
}

func buildProvider(cfg *config.Config) (ports.SnapshotProvider, error) {
	switch cfg.Provider.Source {
	case config.ProviderOPCUA:
		return opcuaprov.New(cfg.Provider.OPCUA)
	default:
		return sysmetrics.New(cfg.Provider.Sysmetrics), nil
	}
}

// deathPayload is the NDEATH body: sequence zero, online false. The topic
// carries the identity.
func deathPayload() []byte {
	raw, err := sparkplug.Encode([]domain.Metric{{
		Name:        "online",
		Alias:       9,
		TimestampMs: time.Now().UnixMilli(),
		Value:       domain.BoolVal(false),
	}}, 0, time.Now().UnixMilli(), false)
	if err != nil {
		return nil
	}
	return raw
}
