package agents

import "sync/atomic"

// Tally accumulates a count across signal handlers and hands it to the
// scheduler once per tick.
type Tally struct {
	n atomic.Int64
}

func (t *Tally) add(delta int) {
	t.n.Add(int64(delta))
}

// Take returns the count accumulated since the last Take and resets it.
func (t *Tally) Take() int {
	return int(t.n.Swap(0))
}
