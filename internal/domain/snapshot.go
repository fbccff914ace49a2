package domain

// Snapshot is an insertion-ordered mapping from metric name to value.
// Ordering matters: the codec guarantees metrics appear on the wire in the
// order the snapshot was populated, so encoding the same snapshot twice
// yields identical bytes.
type Snapshot struct {
	names  []string
	values map[string]Value
}

func NewSnapshot() *Snapshot {
	return &Snapshot{values: make(map[string]Value)}
}

// Set inserts or updates a value. A new name is appended to the iteration
// order; updating an existing name keeps its original position.
func (s *Snapshot) Set(name string, v Value) {
	if s.values == nil {
		s.values = make(map[string]Value)
	}
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = v
}

func (s *Snapshot) Get(name string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	v, ok := s.values[name]
	return v, ok
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Names returns the metric names in insertion order. The returned slice is
// shared; callers must not mutate it.
func (s *Snapshot) Names() []string {
	if s == nil {
		return nil
	}
	return s.names
}

// Clone returns an independent copy preserving insertion order.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		names:  make([]string, len(s.names)),
		values: make(map[string]Value, len(s.values)),
	}
	copy(out.names, s.names)
	for k, v := range s.values {
		out.values[k] = v
	}
	return out
}
