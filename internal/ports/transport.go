package ports

import "context"

// MessageHandler receives inbound messages from a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Transport is the publish/subscribe broker connection. Reliability,
// reconnect backoff, and TLS belong to the implementation; the session
// engine only publishes, subscribes, and reacts to the connection events
// the adapter surfaces.
type Transport interface {
	Connect(ctx context.Context) error
	Publish(topic string, qos byte, payload []byte) error
	Subscribe(topic string, qos byte, fn MessageHandler) error
	Disconnect()
}
