package opcuaprov

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/espenbo/sparkedge/internal/domain"
	"github.com/espenbo/sparkedge/internal/ports"
)

// Config captures the runtime details required to open an OPC UA session.
type Config struct {
	Endpoint        string        `yaml:"endpoint"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	SecurityMode    string        `yaml:"security_mode"`
	SecurityPolicy  string        `yaml:"security_policy"`
	ApplicationName string        `yaml:"application_name"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	Nodes           []NodeConfig  `yaml:"nodes"`
}

// NodeConfig maps one OPC UA node to a metric name.
type NodeConfig struct {
	NodeID string `yaml:"node_id"`
	Metric string `yaml:"metric"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "sparkedge"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	for i := range c.Nodes {
		if c.Nodes[i].Metric == "" {
			c.Nodes[i].Metric = c.Nodes[i].NodeID
		}
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Nodes) == 0 {
		return errors.New("at least one node must be configured")
	}
	return nil
}

// Provider represents a PLC-backed device: each snapshot is an on-demand
// attribute read of every configured node. Nodes whose read fails or whose
// value type is unsupported are omitted from that snapshot rather than
// failing it.
type Provider struct {
	cfg Config

	mu      sync.Mutex
	client  *opcua.Client
	nodeIDs []*ua.NodeID
}

func New(cfg Config) (*Provider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nodeIDs := make([]*ua.NodeID, len(cfg.Nodes))
	for i, n := range cfg.Nodes {
		id, err := ua.ParseNodeID(n.NodeID)
		if err != nil {
			return nil, fmt.Errorf("parse node id %q: %w", n.NodeID, err)
		}
		nodeIDs[i] = id
	}
	return &Provider{cfg: cfg, nodeIDs: nodeIDs}, nil
}

func (p *Provider) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	client, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}

	readCtx, cancel := context.WithTimeout(ctx, p.cfg.ReadTimeout)
	defer cancel()

	nodes := make([]*ua.ReadValueID, len(p.nodeIDs))
	for i, id := range p.nodeIDs {
		nodes[i] = &ua.ReadValueID{NodeID: id, AttributeID: ua.AttributeIDValue}
	}
	resp, err := client.Read(readCtx, &ua.ReadRequest{
		NodesToRead:        nodes,
		TimestampsToReturn: ua.TimestampsToReturnBoth,
	})
	if err != nil {
		p.dropClient()
		return nil, fmt.Errorf("opcua read: %w", err)
	}

	snap := domain.NewSnapshot()
	for i, res := range resp.Results {
		if i >= len(p.cfg.Nodes) {
			break
		}
		name := p.cfg.Nodes[i].Metric
		if res.Status != ua.StatusOK {
			log.Printf("opcua: node %s read status %s, omitting", p.cfg.Nodes[i].NodeID, res.Status)
			continue
		}
		v, ok := variantToValue(res.Value)
		if !ok {
			log.Printf("opcua: node %s has unsupported value type, omitting", p.cfg.Nodes[i].NodeID)
			continue
		}
		snap.Set(name, v)
	}
	if snap.Len() == 0 {
		return nil, errors.New("opcua: no node readable")
	}
	return snap, nil
}

// Close tears down the OPC UA session.
func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (p *Provider) connect(ctx context.Context) (*opcua.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}

	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(p.cfg.SecurityMode)),
		opcua.SecurityPolicy(p.cfg.SecurityPolicy),
		opcua.ApplicationName(p.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if p.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(p.cfg.Username, p.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}

	client, err := opcua.NewClient(p.cfg.Endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("opcua connect: %w", err)
	}
	p.client = client
	return client, nil
}

func (p *Provider) dropClient() {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()
	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = client.Close(ctx)
	}
}

// variantToValue maps an OPC UA variant to a typed metric value, keeping
// the source's width rather than flattening everything to float.
func variantToValue(v *ua.Variant) (domain.Value, bool) {
	if v == nil {
		return domain.Value{}, false
	}
	switch val := v.Value().(type) {
	case float32:
		return domain.FloatVal(val), true
	case float64:
		return domain.DoubleVal(val), true
	case bool:
		return domain.BoolVal(val), true
	case string:
		return domain.StrVal(val), true
	case int8:
		return domain.IntVal(domain.Int8, int64(val)), true
	case int16:
		return domain.IntVal(domain.Int16, int64(val)), true
	case int32:
		return domain.IntVal(domain.Int32, int64(val)), true
	case int64:
		return domain.IntVal(domain.Int64, val), true
	case uint8:
		return domain.UintVal(domain.UInt8, uint64(val)), true
	case uint16:
		return domain.UintVal(domain.UInt16, uint64(val)), true
	case uint32:
		return domain.UintVal(domain.UInt32, uint64(val)), true
	case uint64:
		return domain.UintVal(domain.UInt64, val), true
	case time.Time:
		return domain.IntVal(domain.DateTime, val.UnixMilli()), true
	default:
		return domain.Value{}, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

var _ ports.SnapshotProvider = (*Provider)(nil)
