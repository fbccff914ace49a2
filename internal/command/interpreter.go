package command

import (
	"github.com/espenbo/sparkedge/internal/domain"
	"github.com/espenbo/sparkedge/internal/ports"
	"github.com/espenbo/sparkedge/internal/sparkplug"
)

// FlagMetric is the command metric recognized by the interpreter. A DCMD
// carrying it with a Boolean value toggles the local command flag.
const FlagMetric = "boolean_command"

// Interpreter decodes inbound DCMD payloads and applies their side
// effects. Metric names it does not recognize are skipped; only a payload
// that fails to decode is an error. The engine's event loop serializes
// calls, so the flag's read-modify-write never races.
type Interpreter struct {
	store ports.FlagStore
	obs   ports.Observability
}

func New(store ports.FlagStore, obs ports.Observability) *Interpreter {
	return &Interpreter{store: store, obs: obs}
}

// Handle decodes raw and executes any recognized commands. Returns
// sparkplug.ErrMalformed on an undecodable payload.
func (i *Interpreter) Handle(raw []byte) error {
	p, err := sparkplug.Decode(raw)
	if err != nil {
		return err
	}

	for _, m := range p.Metrics {
		if m.Name != FlagMetric {
			continue
		}
		if m.Value.Type != domain.Boolean {
			i.obs.LogError("command_flag_wrong_type", nil,
				ports.Field{Key: "type", Value: m.Value.Type.String()})
			continue
		}
		cur, err := i.store.Read()
		if err != nil {
			// No prior state readable; toggle from false.
			i.obs.LogError("command_flag_read_failed", err)
			cur = false
		}
		next := !cur
		if err := i.store.Write(next); err != nil {
			i.obs.LogError("command_flag_write_failed", err)
			continue
		}
		i.obs.LogInfo("command_flag_toggled",
			ports.Field{Key: "from", Value: cur},
			ports.Field{Key: "to", Value: next})
	}
	return nil
}
