package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/espenbo/sparkedge/internal/ports"
)

// Config captures the broker connection details.
type Config struct {
	BrokerURL      string        `yaml:"broker_url"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	ClientID       string        `yaml:"client_id"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	QoS            byte          `yaml:"qos"`
	TLS            TLSConfig     `yaml:"tls"`
}

type TLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	CAFile             string `yaml:"ca_file"`
}

func (c *Config) ApplyDefaults() {
	if c.ClientID == "" {
		c.ClientID = "sparkedge"
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 30 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.BrokerURL == "" {
		return errors.New("broker_url is required")
	}
	return nil
}

// Events are the connection callbacks surfaced to the session engine. Paho
// invokes them on its own goroutines; the engine turns them into events on
// its serialized queue.
type Events struct {
	OnConnect        func()
	OnConnectionLost func(err error)
}

// Will is the last-will registration: the broker publishes it on our
// behalf when the session dies without a clean disconnect (NDEATH).
type Will struct {
	Topic   string
	Payload []byte
	QoS     byte
}

// Transport adapts the Paho MQTT client to the ports.Transport contract.
// Reconnect backoff is delegated to Paho's auto-reconnect; every successful
// (re)connect fires Events.OnConnect so the engine re-runs its birth
// sequence.
type Transport struct {
	cfg    Config
	client paho.Client
}

func New(cfg Config, events Events, will *Will) (*Transport, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetKeepAlive(cfg.KeepAlive).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetCleanSession(true)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	if cfg.TLS.Enabled {
		tlsCfg, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	if will != nil {
		opts.SetBinaryWill(will.Topic, will.Payload, will.QoS, false)
	}

	if events.OnConnect != nil {
		opts.SetOnConnectHandler(func(paho.Client) { events.OnConnect() })
	}
	if events.OnConnectionLost != nil {
		opts.SetConnectionLostHandler(func(_ paho.Client, err error) { events.OnConnectionLost(err) })
	}

	return &Transport{cfg: cfg, client: paho.NewClient(opts)}, nil
}

func (t *Transport) Connect(ctx context.Context) error {
	token := t.client.Connect()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
	}
	return nil
}

func (t *Transport) Publish(topic string, qos byte, payload []byte) error {
	token := t.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(t.cfg.ConnectTimeout) {
		return fmt.Errorf("mqtt publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

func (t *Transport) Subscribe(topic string, qos byte, fn ports.MessageHandler) error {
	token := t.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		fn(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(t.cfg.ConnectTimeout) {
		return fmt.Errorf("mqtt subscribe %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	return nil
}

func (t *Transport) Disconnect() {
	t.client.Disconnect(250)
}

func buildTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	out := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("ca file %s contains no usable certificates", cfg.CAFile)
		}
		out.RootCAs = pool
	}
	return out, nil
}

var _ ports.Transport = (*Transport)(nil)
