package statemachine

// handlerRegistry maps a state to its exit handler. It is sparse, so a large
// state id costs one entry rather than a slot for every smaller id.
type handlerRegistry[C any] struct {
	entries map[State]Handler[C]
	limit   int // 0 means unbounded
}

// put stores h for state, replacing any previous handler. Only new keys count
// against the limit.
func (hr *handlerRegistry[C]) put(state State, h Handler[C]) error {
	if _, exists := hr.entries[state]; !exists {
		if hr.limit > 0 && len(hr.entries) >= hr.limit {
			return ErrAllocation
		}
	}

	if hr.entries == nil {
		hr.entries = make(map[State]Handler[C])
	}

	hr.entries[state] = h

	return nil
}

// get returns the handler for state. A missing entry is not an error.
func (hr *handlerRegistry[C]) get(state State) (Handler[C], bool) {
	h, ok := hr.entries[state]

	return h, ok
}

func (hr *handlerRegistry[C]) len() int {
	return len(hr.entries)
}

func (hr *handlerRegistry[C]) release() {
	hr.entries = nil
}
