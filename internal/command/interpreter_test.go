package command

import (
	"errors"
	"testing"
	"time"

	"github.com/espenbo/sparkedge/internal/domain"
	"github.com/espenbo/sparkedge/internal/ports"
	"github.com/espenbo/sparkedge/internal/sparkplug"
)

type memStore struct {
	val      bool
	readErr  error
	writeErr error
	writes   int
}

func (m *memStore) Read() (bool, error) {
	if m.readErr != nil {
		return false, m.readErr
	}
	return m.val, nil
}

func (m *memStore) Write(v bool) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.val = v
	m.writes++
	return nil
}

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)           {}
func (nopObs) LogError(string, error, ...ports.Field)   {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)               {}
func (nopObs) ObserveLatency(string, float64)           {}
func (nopObs) SetGauge(string, float64)                 {}

func encodeCommand(t *testing.T, metrics []domain.Metric) []byte {
	t.Helper()
	raw, err := sparkplug.Encode(metrics, 0, time.Now().UnixMilli(), false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return raw
}

func TestHandleTogglesFlag(t *testing.T) {
	store := &memStore{val: false}
	interp := New(store, nopObs{})

	raw := encodeCommand(t, []domain.Metric{
		{Name: FlagMetric, Value: domain.BoolVal(true)},
	})
	if err := interp.Handle(raw); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !store.val {
		t.Fatalf("expected flag toggled to true")
	}

	if err := interp.Handle(raw); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.val {
		t.Fatalf("expected flag toggled back to false")
	}
}

func TestHandleToggleIgnoresCommandValue(t *testing.T) {
	// The command value is not the new state; any Boolean triggers a
	// toggle of whatever is stored.
	store := &memStore{val: true}
	interp := New(store, nopObs{})

	raw := encodeCommand(t, []domain.Metric{
		{Name: FlagMetric, Value: domain.BoolVal(false)},
	})
	if err := interp.Handle(raw); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.val {
		t.Fatalf("expected toggle true -> false regardless of command value")
	}
}

func TestHandleIgnoresUnknownMetrics(t *testing.T) {
	store := &memStore{}
	interp := New(store, nopObs{})

	raw := encodeCommand(t, []domain.Metric{
		{Name: "reboot", Value: domain.BoolVal(true)},
		{Name: "setpoint", Value: domain.DoubleVal(21.5)},
	})
	if err := interp.Handle(raw); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.writes != 0 {
		t.Fatalf("expected no writes for unknown metrics, got %d", store.writes)
	}
}

func TestHandleIgnoresWrongType(t *testing.T) {
	store := &memStore{}
	interp := New(store, nopObs{})

	raw := encodeCommand(t, []domain.Metric{
		{Name: FlagMetric, Value: domain.IntVal(domain.Int32, 1)},
	})
	if err := interp.Handle(raw); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.writes != 0 {
		t.Fatalf("expected non-Boolean command flag to be ignored")
	}
}

func TestHandleMalformedPayload(t *testing.T) {
	interp := New(&memStore{}, nopObs{})
	err := interp.Handle([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	if !errors.Is(err, sparkplug.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestHandleReadFailureTogglesFromFalse(t *testing.T) {
	store := &memStore{readErr: errors.New("disk gone")}
	interp := New(store, nopObs{})

	raw := encodeCommand(t, []domain.Metric{
		{Name: FlagMetric, Value: domain.BoolVal(true)},
	})
	if err := interp.Handle(raw); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !store.val {
		t.Fatalf("expected unreadable state treated as false and toggled to true")
	}
}
