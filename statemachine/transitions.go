package statemachine

// transitionTable is the ordered list of registered transitions. Records are
// stored by value and never modified after append.
type transitionTable[C any] struct {
	rows  []Transition[C]
	limit int // 0 means unbounded
}

// appendRow stores a copy of t. The table is left untouched when the limit is hit.
func (tt *transitionTable[C]) appendRow(t Transition[C]) error {
	if tt.limit > 0 && len(tt.rows) >= tt.limit {
		return ErrAllocation
	}

	tt.rows = append(tt.rows, t)

	return nil
}

// find returns the position of the first row matching (state, event). A row
// whose From is AnyState matches every state.
func (tt *transitionTable[C]) find(state State, event Event) (int, bool) {
	for i := range tt.rows {
		row := &tt.rows[i]
		if row.Event != event {
			continue
		}

		if row.From == state || row.From == AnyState {
			return i, true
		}
	}

	return -1, false
}

func (tt *transitionTable[C]) at(pos int) (*Transition[C], bool) {
	if pos < 0 || pos >= len(tt.rows) {
		return nil, false
	}

	return &tt.rows[pos], true
}

func (tt *transitionTable[C]) len() int {
	return len(tt.rows)
}

func (tt *transitionTable[C]) release() {
	tt.rows = nil
}
