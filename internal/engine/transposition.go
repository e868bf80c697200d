package engine

import (
	"sync/atomic"

	"github.com/nocturn9x/heimdall-sub004/internal/board"
)

// TTFlag indicates the type of bound stored in the transposition table.
type TTFlag uint8

const (
	TTExact      TTFlag = iota // Exact score
	TTLowerBound               // Failed high (beta cutoff)
	TTUpperBound               // Failed low
)

// TTEntry represents an entry in the transposition table. Entries are
// published and read as whole immutable values via an atomic pointer swap,
// so a reader never observes a torn mix of an old and a new entry; the
// truncated key still has to be checked because two different positions can
// map to the same slot.
type TTEntry struct {
	Key      uint32     // Upper 32 bits of Zobrist hash for verification
	BestMove board.Move // Best move found
	Score    int16      // Score (ply-adjusted, bounded by flag)
	Depth    int8       // Search depth
	Flag     TTFlag     // Type of bound
	Age      uint8      // Generation for replacement
	IsPV     bool       // Whether this entry was stored from a PV node
}

// TranspositionTable is a shared hash table for storing search results.
// Workers read and write concurrently; every slot is an atomic pointer so
// probes never see a half-written entry, only a stale or a current one.
type TranspositionTable struct {
	entries []atomic.Pointer[TTEntry]
	size    uint64
	mask    uint64
	age     atomic.Uint32

	// Statistics (advisory only, races tolerated like the history tables)
	hits   atomic.Uint64
	probes atomic.Uint64
}

// NewTranspositionTable creates a transposition table with the given size in MB.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	entrySize := uint64(16) // pointer slot + backing TTEntry, approximate
	numEntries := (uint64(sizeMB) * 1024 * 1024) / entrySize

	numEntries = roundDownToPowerOf2(numEntries)
	if numEntries == 0 {
		numEntries = 1
	}

	entries := AlignedAlloc[atomic.Pointer[TTEntry]](int(numEntries))
	AdviseHugePage(entries)

	return &TranspositionTable{
		entries: entries,
		size:    numEntries,
		mask:    numEntries - 1,
	}
}

// roundDownToPowerOf2 rounds n down to the nearest power of 2.
func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// Probe looks up a position in the transposition table.
// Returns the entry and true if found, otherwise returns empty entry and false.
func (tt *TranspositionTable) Probe(hash uint64) (TTEntry, bool) {
	tt.probes.Add(1)

	idx := hash & tt.mask
	entry := tt.entries[idx].Load()
	if entry == nil {
		return TTEntry{}, false
	}

	// Verify the truncated key matches; a collision in the slot must never
	// be reported as a hit for the wrong position.
	if entry.Key == uint32(hash>>32) {
		tt.hits.Add(1)
		return *entry, true
	}

	return TTEntry{}, false
}

// Store saves a position in the transposition table.
func (tt *TranspositionTable) Store(hash uint64, depth int, score int, flag TTFlag, bestMove board.Move, isPV bool) {
	idx := hash & tt.mask
	age := uint8(tt.age.Load())

	existing := tt.entries[idx].Load()

	// Replacement strategy:
	// - Always replace an empty slot or one from an older generation.
	// - Within the current generation, a shallower result for the same
	//   position (same key) does not replace a deeper one; an entry for a
	//   different position is always replaced.
	if existing != nil && existing.Age == age && depth < int(existing.Depth) && existing.Key == uint32(hash>>32) {
		return
	}

	tt.entries[idx].Store(&TTEntry{
		Key:      uint32(hash >> 32),
		BestMove: bestMove,
		Score:    int16(score),
		Depth:    int8(depth),
		Flag:     flag,
		Age:      age,
		IsPV:     isPV,
	})
}

// NewSearch increments the age counter for a new search.
// This helps with replacement decisions.
func (tt *TranspositionTable) NewSearch() {
	tt.age.Add(1)
}

// Clear clears the transposition table.
func (tt *TranspositionTable) Clear() {
	for i := range tt.entries {
		tt.entries[i].Store(nil)
	}
	tt.age.Store(0)
	tt.hits.Store(0)
	tt.probes.Store(0)
}

// HashFull returns the permille (parts per thousand) of the table that is used.
func (tt *TranspositionTable) HashFull() int {
	// Sample first 1000 entries
	used := 0
	sampleSize := 1000
	if uint64(sampleSize) > tt.size {
		sampleSize = int(tt.size)
	}

	age := uint8(tt.age.Load())
	for i := 0; i < sampleSize; i++ {
		if e := tt.entries[i].Load(); e != nil && e.Age == age {
			used++
		}
	}

	return (used * 1000) / sampleSize
}

// HitRate returns the cache hit rate as a percentage.
func (tt *TranspositionTable) HitRate() float64 {
	probes := tt.probes.Load()
	if probes == 0 {
		return 0
	}
	return float64(tt.hits.Load()) / float64(probes) * 100
}

// Size returns the number of entries in the table.
func (tt *TranspositionTable) Size() uint64 {
	return tt.size
}

// AdjustScoreFromTT adjusts a score read from the transposition table.
// Mate scores need to be adjusted based on ply distance.
func AdjustScoreFromTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score - ply
	}
	if score < -MateScore+MaxPly {
		return score + ply
	}
	return score
}

// AdjustScoreToTT adjusts a score for storage in the transposition table.
func AdjustScoreToTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score + ply
	}
	if score < -MateScore+MaxPly {
		return score - ply
	}
	return score
}
