package matcher

// StackTopsHistory records, for every byte consumed so far, the set of
// PersistentStack node ids that were "live" stack tops after that byte.
// Rollback/DiscardEarliest let the matcher undo speculative probes and
// free memory for bytes that can never be revisited, respectively.
type StackTopsHistory struct {
	snapshots [][]int32
}

// NewStackTopsHistory creates an empty history.
func NewStackTopsHistory() *StackTopsHistory {
	return &StackTopsHistory{}
}

// PushHistory records a new snapshot of stack tops after consuming one
// byte (or as the initial state before any bytes are consumed).
func (h *StackTopsHistory) PushHistory(tops []int32) {
	snap := make([]int32, len(tops))
	copy(snap, tops)
	h.snapshots = append(h.snapshots, snap)
}

// GetLatest returns the most recent snapshot.
func (h *StackTopsHistory) GetLatest() []int32 {
	if len(h.snapshots) == 0 {
		return nil
	}
	return h.snapshots[len(h.snapshots)-1]
}

// Len reports how many snapshots are recorded (1 + bytes consumed).
func (h *StackTopsHistory) Len() int { return len(h.snapshots) }

// Rollback discards the n most recent snapshots, undoing the last n
// bytes accepted (used after a speculative probe, or when the caller
// rejects bytes it had tentatively fed the matcher).
func (h *StackTopsHistory) Rollback(n int) {
	if n > len(h.snapshots)-1 {
		n = len(h.snapshots) - 1
	}
	h.snapshots = h.snapshots[:len(h.snapshots)-n]
}

// DiscardEarliest drops the n oldest snapshots, used once a prefix of
// consumed bytes can never be rolled back to (e.g. after a token is
// committed past the configured rollback window), letting their
// PersistentStack frames become unreachable.
func (h *StackTopsHistory) DiscardEarliest(n int) {
	if n <= 0 {
		return
	}
	if n > len(h.snapshots) {
		n = len(h.snapshots)
	}
	h.snapshots = h.snapshots[n:]
}
