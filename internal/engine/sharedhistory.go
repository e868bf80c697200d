package engine

import "sync/atomic"

const sharedHistoryMax = 16384

// SharedHistory is a history table shared by every Lazy-SMP worker: a cutoff
// found by one worker's search immediately biases move ordering in every
// other worker searching the same root (spec §4.J/§5). Values are updated
// with the gravity formula and stored in atomics since workers write it
// concurrently with no other synchronization, the same relaxed-sharing idiom
// TranspositionTable uses for its entries.
type SharedHistory struct {
	table [64][64]atomic.Int32
}

// NewSharedHistory creates an empty shared history table.
func NewSharedHistory() *SharedHistory {
	return &SharedHistory{}
}

// Get returns the current shared history score for a from/to pair.
func (sh *SharedHistory) Get(from, to int) int {
	return int(sh.table[from][to].Load())
}

// Update applies the gravity formula: h += bonus - h*|bonus|/MAX. Negative
// bonus (a move that failed to cause a cutoff) pulls the score down the same
// way a positive bonus pulls it up.
func (sh *SharedHistory) Update(from, to int, bonus int) {
	for {
		old := sh.table[from][to].Load()
		abs := bonus
		if abs < 0 {
			abs = -abs
		}
		newVal := int(old) + bonus - int(old)*abs/sharedHistoryMax
		if newVal > sharedHistoryMax {
			newVal = sharedHistoryMax
		} else if newVal < -sharedHistoryMax {
			newVal = -sharedHistoryMax
		}
		if sh.table[from][to].CompareAndSwap(old, int32(newVal)) {
			return
		}
	}
}

// Clear resets the shared history table between games.
func (sh *SharedHistory) Clear() {
	for i := range sh.table {
		for j := range sh.table[i] {
			sh.table[i][j].Store(0)
		}
	}
}
