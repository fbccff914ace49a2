package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/espenbo/sparkedge/internal/domain"
	"github.com/espenbo/sparkedge/internal/ports"
	"github.com/espenbo/sparkedge/internal/sparkplug"
)

// CommandHandler consumes raw inbound command payloads. Malformed payloads
// return sparkplug.ErrMalformed; the engine logs and drops them without
// touching session state.
type CommandHandler interface {
	Handle(raw []byte) error
}

// Config carries the identity and timing the session engine needs. All
// values are validated before the engine starts; see internal/app/config.
type Config struct {
	GroupID  string
	NodeID   string
	DeviceID string

	TickInterval time.Duration
	SettleDelay  time.Duration
	QoS          byte
}

type engineState int

const (
	stateDisconnected engineState = iota
	stateSettling
	stateSteady
)

type eventKind int

const (
	evConnect eventKind = iota
	evDisconnect
	evCommand
)

type event struct {
	kind    eventKind
	payload []byte
}

// Engine owns the protocol session: sequence lifecycle, birth ordering,
// delta transmission, and command routing. All state is touched only by
// the Run goroutine; external callers interact through Notify methods that
// post onto a single serialized event queue, so a tick can never race a
// reconnect over the retained snapshot or the sequence counter.
type Engine struct {
	cfg      Config
	registry *sparkplug.Registry
	provider ports.SnapshotProvider
	trans    ports.Transport
	commands CommandHandler
	obs      ports.Observability

	events chan event

	state     engineState
	seq       uint8
	retained  *domain.Snapshot
	firstTick bool

	now func() time.Time
}

func New(cfg Config, reg *sparkplug.Registry, provider ports.SnapshotProvider, trans ports.Transport, commands CommandHandler, obs ports.Observability) *Engine {
	return &Engine{
		cfg:      cfg,
		registry: reg,
		provider: provider,
		trans:    trans,
		commands: commands,
		obs:      obs,
		events:   make(chan event, 32),
		now:      time.Now,
	}
}

// NotifyConnect posts a transport-connect event. Safe to call from the
// transport's callback goroutine.
func (e *Engine) NotifyConnect() { e.post(event{kind: evConnect}) }

// NotifyDisconnect posts a transport-disconnect event.
func (e *Engine) NotifyDisconnect() { e.post(event{kind: evDisconnect}) }

// NotifyCommand posts an inbound command payload.
func (e *Engine) NotifyCommand(payload []byte) {
	e.post(event{kind: evCommand, payload: payload})
}

func (e *Engine) post(ev event) {
	select {
	case e.events <- ev:
	default:
		e.obs.LogError("session_event_dropped", fmt.Errorf("event queue full (kind=%d)", ev.kind))
	}
}

// Run processes events until the context is cancelled. It owns the tick
// timer; ticks that fire while the engine is inside the birth/settle window
// stay pending in the timer channel and run afterwards rather than being
// dropped.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.reset()
			return ctx.Err()
		case ev := <-e.events:
			switch ev.kind {
			case evConnect:
				if err := e.birth(ctx); err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						e.reset()
						return err
					}
					e.obs.LogCritical("birth_failed", err)
					e.reset()
				}
			case evDisconnect:
				e.reset()
			case evCommand:
				e.handleCommand(ev.payload)
			}
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// reset discards all session state. A later reconnect re-executes the full
// birth sequence; sequence counts are never resumed.
func (e *Engine) reset() {
	if e.state != stateDisconnected {
		e.obs.SetGauge("spark_connected", 0)
	}
	e.state = stateDisconnected
	e.seq = 0
	e.retained = nil
	e.firstTick = false
}

// birth runs the Connected(resetting) phase: sequence back to zero, NBIRTH
// then DBIRTH (seq 0 and 1, both carrying a session identifier), then the
// settling delay. Any failure here is session-fatal; reconnecting is the
// transport's job. The settle wait keeps servicing disconnects and
// commands so teardown is never blocked on the timer.
func (e *Engine) birth(ctx context.Context) error {
	e.seq = 0
	e.retained = nil
	e.firstTick = true
	e.state = stateSettling

	ts := e.now().UnixMilli()
	snap, err := e.provider.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("birth snapshot: %w", err)
	}

	nodeSnap := snap.Clone()
	nodeSnap.Set("online", domain.BoolVal(true))
	nodeSnap.Set("node", domain.StrVal(e.cfg.NodeID))
	if err := e.publishBirth(sparkplug.NodeTopic(e.cfg.GroupID, sparkplug.KindNBirth, e.cfg.NodeID), nodeSnap, ts); err != nil {
		return fmt.Errorf("node birth: %w", err)
	}

	devSnap := snap.Clone()
	devSnap.Set("online", domain.BoolVal(true))
	devSnap.Set("device", domain.StrVal(e.cfg.DeviceID))
	if err := e.publishBirth(sparkplug.DeviceTopic(e.cfg.GroupID, sparkplug.KindDBirth, e.cfg.NodeID, e.cfg.DeviceID), devSnap, ts); err != nil {
		return fmt.Errorf("device birth: %w", err)
	}

	e.obs.IncCounter("spark_births_total", 1)
	e.obs.SetGauge("spark_connected", 1)
	e.obs.LogInfo("session_birth_complete",
		ports.Field{Key: "node", Value: e.cfg.NodeID},
		ports.Field{Key: "device", Value: e.cfg.DeviceID})

	settle := time.NewTimer(e.cfg.SettleDelay)
	defer settle.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-settle.C:
			e.state = stateSteady
			return nil
		case ev := <-e.events:
			switch ev.kind {
			case evDisconnect:
				e.reset()
				return nil
			case evCommand:
				e.handleCommand(ev.payload)
			case evConnect:
				// Already mid-birth; duplicate connect notifications
				// from the transport are ignored.
			}
		}
	}
}

func (e *Engine) publishBirth(topic string, snap *domain.Snapshot, ts int64) error {
	raw, err := sparkplug.Encode(e.buildMetrics(snap, ts), e.seq, ts, true)
	if err != nil {
		return err
	}
	if err := e.trans.Publish(topic, e.cfg.QoS, raw); err != nil {
		return err
	}
	e.seq++
	e.obs.IncCounter("spark_messages_published_total", 1)
	return nil
}

// tick runs one steady-state cycle. The retained snapshot is updated
// unconditionally, even when nothing is sent or the publish fails, so the
// next delta is always computed against current reality.
func (e *Engine) tick(ctx context.Context) {
	if e.state != stateSteady {
		return
	}

	snap, err := e.provider.Snapshot(ctx)
	if err != nil {
		e.obs.LogError("tick_snapshot_failed", err)
		e.obs.IncCounter("spark_ticks_skipped_total", 1)
		return
	}

	out := Diff(e.retained, snap)
	e.retained = snap
	if e.firstTick {
		// DBIRTH may have announced placeholder values; the first steady
		// message is always the full current state.
		out = snap
	}

	if out.Len() == 0 {
		return
	}

	ts := e.now().UnixMilli()
	raw, err := sparkplug.Encode(e.buildMetrics(out, ts), e.seq, ts, false)
	if err != nil {
		e.obs.LogError("tick_encode_failed", err)
		e.obs.IncCounter("spark_ticks_skipped_total", 1)
		return
	}

	topic := sparkplug.DeviceTopic(e.cfg.GroupID, sparkplug.KindDData, e.cfg.NodeID, e.cfg.DeviceID)
	start := time.Now()
	if err := e.trans.Publish(topic, e.cfg.QoS, raw); err != nil {
		e.obs.LogError("tick_publish_failed", err)
		e.obs.IncCounter("spark_ticks_skipped_total", 1)
		return
	}
	e.obs.ObserveLatency("spark_publish_latency_seconds", time.Since(start).Seconds())

	e.seq++
	e.firstTick = false
	e.obs.IncCounter("spark_messages_published_total", 1)
	e.obs.SetGauge("spark_last_payload_metrics", float64(out.Len()))
}

func (e *Engine) handleCommand(raw []byte) {
	if err := e.commands.Handle(raw); err != nil {
		e.obs.IncCounter("spark_decode_errors_total", 1)
		e.obs.LogError("command_dropped", err)
		return
	}
	e.obs.IncCounter("spark_commands_handled_total", 1)
}

func (e *Engine) buildMetrics(snap *domain.Snapshot, ts int64) []domain.Metric {
	names := snap.Names()
	metrics := make([]domain.Metric, 0, len(names))
	for _, name := range names {
		v, _ := snap.Get(name)
		alias, _ := e.registry.Resolve(name, v)
		metrics = append(metrics, domain.Metric{
			Name:        name,
			Alias:       alias,
			TimestampMs: ts,
			Value:       v,
		})
	}
	return metrics
}
