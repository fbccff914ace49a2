package ports

// FlagStore persists the single command flag toggled by inbound commands.
// A store with no prior write reads as false.
type FlagStore interface {
	Read() (bool, error)
	Write(v bool) error
}
