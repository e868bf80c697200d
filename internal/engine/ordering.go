package engine

import (
	"github.com/nocturn9x/heimdall-sub004/internal/board"
)

// Move ordering priorities
const (
	TTMoveScore     = 10000000 // TT move gets highest priority
	GoodCaptureBase = 1000000  // Base score for good captures
	KillerScore1    = 900000   // First killer move
	KillerScore2    = 800000   // Second killer move
	BadCaptureBase  = -100000  // Losing captures
)

// MVV-LVA (Most Valuable Victim - Least Valuable Attacker) scores
// Higher score = search first
// Score = victimValue * 10 - attackerValue
var mvvLva = [6][6]int{
	//       P    N    B    R    Q    K  (attacker)
	/* P */ {15, 14, 14, 13, 12, 11}, // Pawn victim
	/* N */ {25, 24, 24, 23, 22, 21}, // Knight victim
	/* B */ {35, 34, 34, 33, 32, 31}, // Bishop victim
	/* R */ {45, 44, 44, 43, 42, 41}, // Rook victim
	/* Q */ {55, 54, 54, 53, 52, 51}, // Queen victim
	/* K */ {0, 0, 0, 0, 0, 0},       // King can't be captured
}

// historyMax bounds every gravity-updated table in this file: a value never
// leaves [-historyMax, historyMax], so the gravity update h += bonus -
// h*|bonus|/historyMax self-limits growth instead of needing a hard clamp
// plus periodic global-halving (see correction.go's gravityUpdate, the same
// idiom applied here to the move-ordering tables).
const historyMax = 16384

func gravityUpdate32(h *int32, bonus int) {
	old := int(*h)
	abs := bonus
	if abs < 0 {
		abs = -abs
	}
	newVal := old + bonus - old*abs/historyMax
	if newVal > historyMax {
		newVal = historyMax
	} else if newVal < -historyMax {
		newVal = -historyMax
	}
	*h = int32(newVal)
}

// statBonus is the gravity-formula input for a table update: depth-scaled,
// signed by whether the move was good (caused a cutoff / raised alpha) or
// bad (was tried and didn't).
func statBonus(depth int, isGood bool) int {
	b := depth * depth
	if b > 1700 {
		b = 1700
	}
	if !isGood {
		b = -b
	}
	return b
}

// threatIdx returns 1 if sq is attacked by the side not to move, 0
// otherwise — the extra dimension the quiet history table is indexed by
// (spec §3): a quiet move off of or onto a threatened square behaves very
// differently from the same move made in a quiet position.
func threatIdx(pos *board.Position, sq board.Square) int {
	if pos.Threats()&board.SquareBB(sq) != 0 {
		return 1
	}
	return 0
}

// PieceToHistory is a continuation-history slice: for a predecessor move
// (piece, destination), it scores every possible follow-up move by the
// follow-up's own (piece, destination). Ported from Stockfish's
// ContinuationHistory entry type.
type PieceToHistory [12][64]int32

// lowPlyDepth is how many plies from the root get their own history table
// (Stockfish's LOW_PLY_HISTORY_SIZE); root-adjacent plies are searched far
// more often than deep ones, so they accumulate more reliable statistics and
// are worth ordering separately from the general quiet history.
const lowPlyDepth = 4

// MoveOrderer handles move ordering for the search.
type MoveOrderer struct {
	// Killer moves (quiet moves that caused beta cutoffs)
	killers [MaxPly][2]board.Move

	// Quiet history, widened from a plain [from][to] butterfly table to
	// include whether the moving side is to move (stm) and whether the
	// from/to squares are currently attacked by the opponent (spec §3):
	// history[stm][from][to][threatFrom][threatTo].
	history [2][64][64][2][2]int32

	// Root-adjacent history, indexed separately by ply for the first
	// lowPlyDepth plies (Stockfish's low-ply history).
	lowPlyHistory [lowPlyDepth][64][64]int32

	// Counter move heuristic (indexed by [piece][to])
	counterMoves [12][64]board.Move

	// Capture history (indexed by [attackerPiece][toSquare][capturedPieceType])
	captureHistory [12][64][6]int32

	// Countermove history (indexed by [prevPiece][prevTo][movePiece][moveTo])
	countermoveHistory [12][64][12][64]int32

	// Continuation history pool: contHist[prevPiece][prevTo] is the
	// PieceToHistory recording how good every (piece, to) follow-up move
	// was after (prevPiece, prevTo). The same pool backs the 1-ply, 2-ply
	// and 4-ply contributions statScore combines (spec §3/§4.F) — the
	// distance only selects which SearchStack slot's pointer is read, not a
	// separate physical table, matching Stockfish's ContinuationHistory.
	contHist [12][64]PieceToHistory
}

// NewMoveOrderer creates a new move orderer.
func NewMoveOrderer() *MoveOrderer {
	return &MoveOrderer{}
}

// Clear resets the move orderer for a new search.
func (mo *MoveOrderer) Clear() {
	for i := range mo.killers {
		mo.killers[i][0] = board.NoMove
		mo.killers[i][1] = board.NoMove
	}

	// Age (not zero) the learned tables, same as before widening: gravity
	// updates already keep them bounded, but halving between searches still
	// lets fresh data dominate stale data from a previous position.
	for stm := range mo.history {
		for f := range mo.history[stm] {
			for t := range mo.history[stm][f] {
				for tf := range mo.history[stm][f][t] {
					for tt := range mo.history[stm][f][t][tf] {
						mo.history[stm][f][t][tf][tt] /= 2
					}
				}
			}
		}
	}

	for p := range mo.lowPlyHistory {
		for f := range mo.lowPlyHistory[p] {
			for t := range mo.lowPlyHistory[p][f] {
				mo.lowPlyHistory[p][f][t] /= 2
			}
		}
	}

	for i := range mo.counterMoves {
		for j := range mo.counterMoves[i] {
			mo.counterMoves[i][j] = board.NoMove
		}
	}

	mo.scaleCaptureHistory()
	mo.scaleCountermoveHistory()

	for p := range mo.contHist {
		for sq := range mo.contHist[p] {
			for pp := range mo.contHist[p][sq] {
				for ss := range mo.contHist[p][sq][pp] {
					mo.contHist[p][sq][pp][ss] /= 2
				}
			}
		}
	}
}

// ScoreMoves assigns scores to moves for ordering.
func (mo *MoveOrderer) ScoreMoves(pos *board.Position, moves *board.MoveList, ply int, ttMove board.Move) []int {
	scores := make([]int, moves.Len())

	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i)
		scores[i] = mo.scoreMove(pos, move, ply, ttMove)
	}

	return scores
}

// ScoreMovesWithCounter assigns scores including counter-move and CMH bonus.
func (mo *MoveOrderer) ScoreMovesWithCounter(pos *board.Position, moves *board.MoveList, ply int, ttMove, prevMove board.Move) []int {
	scores := make([]int, moves.Len())
	counterMove := mo.GetCounterMove(prevMove, pos)

	// Get previous piece for CMH lookup
	var prevPiece board.Piece = board.NoPiece
	if prevMove != board.NoMove {
		prevPiece = pos.PieceAt(prevMove.To())
	}

	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i)
		scores[i] = mo.scoreMove(pos, move, ply, ttMove)

		// Counter-move bonus (after killers, before history)
		if move == counterMove && scores[i] < KillerScore2 {
			scores[i] = KillerScore2 - 10000 // Just below second killer
		}

		// Add countermove history bonus for quiet moves
		if !move.IsCapture(pos) && !move.IsPromotion() && move != ttMove {
			movePiece := pos.PieceAt(move.From())
			cmhScore := mo.GetCountermoveHistoryScore(prevMove, prevPiece, movePiece, move.To())
			scores[i] += cmhScore / 2 // Scale down to not dominate
		}
	}

	return scores
}

// scoreMove returns the ordering score for a single move.
func (mo *MoveOrderer) scoreMove(pos *board.Position, m board.Move, ply int, ttMove board.Move) int {
	// TT move gets highest priority
	if m == ttMove {
		return TTMoveScore
	}

	from := m.From()
	to := m.To()

	// Captures: MVV-LVA
	if m.IsCapture(pos) {
		attackerPiece := pos.PieceAt(from)
		if attackerPiece == board.NoPiece {
			return GoodCaptureBase // Safety check
		}
		attacker := attackerPiece.Type()

		var victim board.PieceType
		if m.IsEnPassant() {
			victim = board.Pawn
		} else {
			capturedPiece := pos.PieceAt(to)
			if capturedPiece == board.NoPiece {
				// Safety check - shouldn't happen but prevents panic
				return GoodCaptureBase
			}
			victim = capturedPiece.Type()
		}

		// Bounds check for safety (victim should be < King for captures)
		if victim >= board.King || attacker > board.King {
			return GoodCaptureBase
		}

		// Check if it's a winning capture using MVV-LVA
		score := GoodCaptureBase + mvvLva[victim][attacker]*1000

		// Add capture history bonus
		captureHistScore := mo.GetCaptureHistoryScore(attackerPiece, to, victim)
		score += captureHistScore / 4 // Scale appropriately

		// Bonus for capturing with a less valuable piece
		if pieceValues[attacker] < pieceValues[victim] {
			score += 10000 // Clearly winning capture
		}

		return score
	}

	// Promotions (non-capture)
	if m.IsPromotion() {
		return GoodCaptureBase - 1000 + int(m.Promotion())*100
	}

	// Killer moves
	if m == mo.killers[ply][0] {
		return KillerScore1
	}
	if m == mo.killers[ply][1] {
		return KillerScore2
	}

	// History heuristic for quiet moves, plus the low-ply table near the root
	score := mo.GetHistoryScore(pos, m)
	if ply < lowPlyDepth {
		score += int(mo.lowPlyHistory[ply][from][to])
	}
	return score
}

// SortMoves sorts moves by their scores (descending).
func SortMoves(moves *board.MoveList, scores []int) {
	// Simple selection sort (sufficient for ~40 moves)
	n := moves.Len()
	for i := 0; i < n-1; i++ {
		best := i
		for j := i + 1; j < n; j++ {
			if scores[j] > scores[best] {
				best = j
			}
		}
		if best != i {
			// Swap moves
			moves.Swap(i, best)
			// Swap scores
			scores[i], scores[best] = scores[best], scores[i]
		}
	}
}

// PickMove selects the best remaining move and moves it to position index.
// This allows lazy move sorting (only sort as much as needed).
func PickMove(moves *board.MoveList, scores []int, index int) {
	best := index
	for j := index + 1; j < moves.Len(); j++ {
		if scores[j] > scores[best] {
			best = j
		}
	}
	if best != index {
		moves.Swap(index, best)
		scores[index], scores[best] = scores[best], scores[index]
	}
}

// UpdateKillers adds a killer move at the given ply.
func (mo *MoveOrderer) UpdateKillers(m board.Move, ply int) {
	// Ignore plies beyond the killer table
	if ply >= MaxPly {
		return
	}

	// Don't store if it's already the first killer
	if mo.killers[ply][0] == m {
		return
	}

	// Shift killers
	mo.killers[ply][1] = mo.killers[ply][0]
	mo.killers[ply][0] = m
}

// UpdateHistory updates the threat-indexed quiet history score for a move
// using the gravity formula (spec §3/§4.F).
func (mo *MoveOrderer) UpdateHistory(pos *board.Position, m board.Move, depth int, isGood bool) {
	stm := pos.SideToMove
	from := m.From()
	to := m.To()
	tf := threatIdx(pos, from)
	tt := threatIdx(pos, to)
	gravityUpdate32(&mo.history[stm][from][to][tf][tt], statBonus(depth, isGood))
}

// UpdateLowPlyHistory updates the root-adjacent history table for a move at
// the given ply (a no-op past lowPlyDepth).
func (mo *MoveOrderer) UpdateLowPlyHistory(m board.Move, ply, depth int, isGood bool) {
	if ply >= lowPlyDepth {
		return
	}
	gravityUpdate32(&mo.lowPlyHistory[ply][m.From()][m.To()], statBonus(depth, isGood))
}

// UpdateCounterMove updates the counter move table.
func (mo *MoveOrderer) UpdateCounterMove(prevMove, counterMove board.Move, pos *board.Position) {
	if prevMove == board.NoMove {
		return
	}

	piece := pos.PieceAt(prevMove.To())
	if piece == board.NoPiece {
		return
	}

	mo.counterMoves[piece][prevMove.To()] = counterMove
}

// GetCounterMove returns the counter move for a previous move.
func (mo *MoveOrderer) GetCounterMove(prevMove board.Move, pos *board.Position) board.Move {
	if prevMove == board.NoMove {
		return board.NoMove
	}

	piece := pos.PieceAt(prevMove.To())
	if piece == board.NoPiece {
		return board.NoMove
	}

	return mo.counterMoves[piece][prevMove.To()]
}

// GetHistoryScore returns the threat-indexed quiet history score for a move.
// Used both for move ordering and history pruning in search.
func (mo *MoveOrderer) GetHistoryScore(pos *board.Position, m board.Move) int {
	stm := pos.SideToMove
	from := m.From()
	to := m.To()
	tf := threatIdx(pos, from)
	tt := threatIdx(pos, to)
	return int(mo.history[stm][from][to][tf][tt])
}

// UpdateCaptureHistory updates the capture history for a move via the
// gravity formula.
func (mo *MoveOrderer) UpdateCaptureHistory(attackerPiece board.Piece, toSq board.Square, capturedType board.PieceType, depth int, isGood bool) {
	if attackerPiece == board.NoPiece || capturedType >= board.King {
		return
	}
	gravityUpdate32(&mo.captureHistory[attackerPiece][toSq][capturedType], statBonus(depth, isGood))
}

func (mo *MoveOrderer) scaleCaptureHistory() {
	for i := range mo.captureHistory {
		for j := range mo.captureHistory[i] {
			for k := range mo.captureHistory[i][j] {
				mo.captureHistory[i][j][k] /= 2
			}
		}
	}
}

// GetCaptureHistoryScore returns the capture history score for a capture move.
func (mo *MoveOrderer) GetCaptureHistoryScore(attackerPiece board.Piece, toSq board.Square, capturedType board.PieceType) int {
	if attackerPiece == board.NoPiece || capturedType >= board.King {
		return 0
	}
	return int(mo.captureHistory[attackerPiece][toSq][capturedType])
}

// UpdateCountermoveHistory updates the countermove history for a quiet move
// via the gravity formula.
func (mo *MoveOrderer) UpdateCountermoveHistory(prevMove, goodMove board.Move, prevPiece, movePiece board.Piece, depth int, isGood bool) {
	if prevMove == board.NoMove || prevPiece == board.NoPiece || movePiece == board.NoPiece {
		return
	}

	prevTo := prevMove.To()
	moveTo := goodMove.To()
	gravityUpdate32(&mo.countermoveHistory[prevPiece][prevTo][movePiece][moveTo], statBonus(depth, isGood))
}

func (mo *MoveOrderer) scaleCountermoveHistory() {
	for i := range mo.countermoveHistory {
		for j := range mo.countermoveHistory[i] {
			for k := range mo.countermoveHistory[i][j] {
				for l := range mo.countermoveHistory[i][j][k] {
					mo.countermoveHistory[i][j][k][l] /= 2
				}
			}
		}
	}
}

// GetCountermoveHistoryScore returns the CMH score for a move given the previous move.
func (mo *MoveOrderer) GetCountermoveHistoryScore(prevMove board.Move, prevPiece, movePiece board.Piece, moveTo board.Square) int {
	if prevMove == board.NoMove || prevPiece == board.NoPiece || movePiece == board.NoPiece {
		return 0
	}
	return int(mo.countermoveHistory[prevPiece][prevMove.To()][movePiece][moveTo])
}

// GetContinuationHistoryTable returns the continuation-history slice for a
// move just made with (piece, to): child plies index this slice by their
// own (piece, to) to read how well that follow-up has performed after this
// predecessor, at whatever ply distance they're called from.
func (mo *MoveOrderer) GetContinuationHistoryTable(piece board.Piece, to board.Square) *PieceToHistory {
	return &mo.contHist[piece][to]
}

// UpdateContinuationHistory records a bonus/malus for the move (piece, to)
// following the predecessor (prevPiece, prevTo), via the gravity formula.
// plyBack scales the bonus down for more distant predecessors (spec §3/§4.F
// mandates 1-ply, 2-ply and 4-ply contributions; a 4-ply-back pattern is a
// weaker signal than a 1-ply-back one, so it moves the table less).
func (mo *MoveOrderer) UpdateContinuationHistory(prevPiece board.Piece, prevTo board.Square, piece board.Piece, to board.Square, depth, plyBack int, isGood bool) {
	if prevPiece == board.NoPiece {
		return
	}
	bonus := statBonus(depth, isGood) / plyBack
	gravityUpdate32(&mo.contHist[prevPiece][prevTo][piece][to], bonus)
}
