package engine

import (
	"github.com/nocturn9x/heimdall-sub004/internal/board"
)

// CorrectionHistory adjusts static evaluation based on search results.
// When the search discovers the static eval was wrong, we record the error
// and apply corrections to similar positions in the future.
// Based on Stockfish's correction history.
//
// Six independent tables are blended, one per Zobrist-subset key named in
// §3/§4.F: pawn structure, non-pawn material per side, major pieces
// (rooks+queens), minor pieces (knights+bishops), and the 1-ply/2-ply
// continuation (moving piece + destination square one and two plies back).
// Each keeps its own gravity-updated signed value; Get blends them with a
// fixed weight per table rather than averaging unweighted, since a pawn
// structure misjudgement and a one-move-deep continuation error are not
// equally predictive of the *next* static eval's error.
type CorrectionHistory struct {
	pawnCorr    [65536]int16
	nonPawnCorr [2][65536]int16
	majorCorr   [65536]int16
	minorCorr   [65536]int16
	cont1Corr   [13][64]int16
	cont2Corr   [13][64]int16
}

// Blend weights for each table, summing to 860 against the 1024 denominator at
// full saturation so no single table can swing the corrected eval outside
// its own share. SPSA-tuned originals are unrecoverable (spec §9's open
// question); these weights favor the pawn/non-pawn keys, matching the
// teacher's single-table scale spread across more tables (see DESIGN.md).
const (
	corrWeightPawn        = 200
	corrWeightNonPawnUs   = 150
	corrWeightNonPawnThem = 150
	corrWeightMajor       = 80
	corrWeightMinor       = 80
	corrWeightCont1       = 120
	corrWeightCont2       = 80
	corrDenominator       = 1024
)

// NewCorrectionHistory creates a new correction history table.
func NewCorrectionHistory() *CorrectionHistory {
	return &CorrectionHistory{}
}

// CorrectionContext carries the continuation-history keys (moving piece and
// destination square one and two plies back) needed to index the
// continuation correction tables; Have1/Have2 are false at the root or just
// after a null move, where no such predecessor exists.
type CorrectionContext struct {
	Piece1, Piece2 board.Piece
	To1, To2       board.Square
	Have1, Have2   bool
}

// Get returns the blended correction value for a position, to be added to
// the raw static evaluation.
func (ch *CorrectionHistory) Get(pos *board.Position, ctx CorrectionContext) int {
	us := pos.SideToMove
	them := us.Other()

	sum := int(ch.pawnCorr[pos.PawnKey&0xFFFF])*corrWeightPawn +
		int(ch.nonPawnCorr[us][pos.NonPawnKey[us]&0xFFFF])*corrWeightNonPawnUs +
		int(ch.nonPawnCorr[them][pos.NonPawnKey[them]&0xFFFF])*corrWeightNonPawnThem +
		int(ch.majorCorr[pos.MajorKey&0xFFFF])*corrWeightMajor +
		int(ch.minorCorr[pos.MinorKey&0xFFFF])*corrWeightMinor

	if ctx.Have1 {
		sum += int(ch.cont1Corr[ctx.Piece1][ctx.To1]) * corrWeightCont1
	}
	if ctx.Have2 {
		sum += int(ch.cont2Corr[ctx.Piece2][ctx.To2]) * corrWeightCont2
	}

	return sum / corrDenominator
}

// Update records a correction based on the difference between the search
// result and the static evaluation, using the gravity formula per table:
// h += bonus - h*|bonus|/MAX, scaled by depth and clamped.
func (ch *CorrectionHistory) Update(pos *board.Position, ctx CorrectionContext, searchScore, staticEval, depth int) {
	if depth < 1 {
		return
	}

	diff := searchScore - staticEval
	bonus := diff * depth / 8
	if bonus > 256 {
		bonus = 256
	} else if bonus < -256 {
		bonus = -256
	}

	us := pos.SideToMove
	them := us.Other()

	gravityUpdate(&ch.pawnCorr[pos.PawnKey&0xFFFF], bonus)
	gravityUpdate(&ch.nonPawnCorr[us][pos.NonPawnKey[us]&0xFFFF], bonus)
	gravityUpdate(&ch.nonPawnCorr[them][pos.NonPawnKey[them]&0xFFFF], bonus)
	gravityUpdate(&ch.majorCorr[pos.MajorKey&0xFFFF], bonus)
	gravityUpdate(&ch.minorCorr[pos.MinorKey&0xFFFF], bonus)

	if ctx.Have1 {
		gravityUpdate(&ch.cont1Corr[ctx.Piece1][ctx.To1], bonus)
	}
	if ctx.Have2 {
		gravityUpdate(&ch.cont2Corr[ctx.Piece2][ctx.To2], bonus)
	}
}

// gravityUpdate applies h += bonus - h*|bonus|/MAX, clamped to int16 range
// with a conservative saturation bound below the type's full range.
func gravityUpdate(h *int16, bonus int) {
	old := int(*h)
	abs := bonus
	if abs < 0 {
		abs = -abs
	}
	newVal := old + bonus - old*abs/16000

	if newVal > 16000 {
		newVal = 16000
	} else if newVal < -16000 {
		newVal = -16000
	}
	*h = int16(newVal)
}

// Clear resets all correction values.
func (ch *CorrectionHistory) Clear() {
	for i := range ch.pawnCorr {
		ch.pawnCorr[i] = 0
	}
	for c := range ch.nonPawnCorr {
		for i := range ch.nonPawnCorr[c] {
			ch.nonPawnCorr[c][i] = 0
		}
	}
	for i := range ch.majorCorr {
		ch.majorCorr[i] = 0
	}
	for i := range ch.minorCorr {
		ch.minorCorr[i] = 0
	}
	for p := range ch.cont1Corr {
		for i := range ch.cont1Corr[p] {
			ch.cont1Corr[p][i] = 0
			ch.cont2Corr[p][i] = 0
		}
	}
}

// Age scales down all correction values (called between games/positions).
func (ch *CorrectionHistory) Age() {
	for i := range ch.pawnCorr {
		ch.pawnCorr[i] /= 2
	}
	for c := range ch.nonPawnCorr {
		for i := range ch.nonPawnCorr[c] {
			ch.nonPawnCorr[c][i] /= 2
		}
	}
	for i := range ch.majorCorr {
		ch.majorCorr[i] /= 2
	}
	for i := range ch.minorCorr {
		ch.minorCorr[i] /= 2
	}
	for p := range ch.cont1Corr {
		for i := range ch.cont1Corr[p] {
			ch.cont1Corr[p][i] /= 2
			ch.cont2Corr[p][i] /= 2
		}
	}
}
