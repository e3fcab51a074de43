package events

// MultiEmitter fans a single event out to every configured emitter in order.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter builds a fan-out emitter. Nil entries are ignored.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	filtered := make([]Emitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	return &MultiEmitter{emitters: filtered}
}

// Emit implements the Emitter interface.
func (m *MultiEmitter) Emit(evt Event) {
	if m == nil {
		return
	}
	for _, e := range m.emitters {
		e.Emit(evt)
	}
}
