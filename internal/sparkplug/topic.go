package sparkplug

// Namespace is the Sparkplug B topic prefix.
const Namespace = "spBv1.0"

// MessageKind is the message-type segment of a Sparkplug topic.
type MessageKind string

const (
	KindNBirth MessageKind = "NBIRTH"
	KindNDeath MessageKind = "NDEATH"
	KindNData  MessageKind = "NDATA"
	KindDBirth MessageKind = "DBIRTH"
	KindDData  MessageKind = "DDATA"
	KindDCmd   MessageKind = "DCMD"
)

// NodeTopic builds a node-level topic: spBv1.0/<group>/<kind>/<node>.
func NodeTopic(group string, kind MessageKind, node string) string {
	return Namespace + "/" + group + "/" + string(kind) + "/" + node
}

// DeviceTopic builds a device-level topic, which carries the extra device
// segment: spBv1.0/<group>/<kind>/<node>/<device>.
func DeviceTopic(group string, kind MessageKind, node, device string) string {
	return NodeTopic(group, kind, node) + "/" + device
}
