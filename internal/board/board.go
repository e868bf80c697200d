package board

// Board owns the stack of positions reached during a game or a search, and
// is the home of draw detection that needs more than a single Position can
// see: threefold repetition (spec §4.D). Position itself only knows about
// rule-based draws visible from one snapshot (IsDraw, in movegen.go).
type Board struct {
	positions []*Position
	undos     []UndoInfo
	nullUndos []NullMoveUndo
	isNull    []bool
	// irreversiblePly records, for each entry in positions, the index of
	// the most recent irreversible move (capture, pawn move, castle, or
	// loss of any castling right) at or before that ply — repetition search
	// never needs to look further back than this.
	irreversiblePly []int
}

// NewBoard creates a Board whose current position is pos.
func NewBoard(pos *Position) *Board {
	b := &Board{
		positions:       []*Position{pos},
		irreversiblePly: []int{0},
	}
	return b
}

// Current returns the position at the top of the stack.
func (b *Board) Current() *Position {
	return b.positions[len(b.positions)-1]
}

// Ply returns the number of moves played since the board was created.
func (b *Board) Ply() int {
	return len(b.positions) - 1
}

// DoMove plays m on the current position, pushing a new position.
func (b *Board) DoMove(m Move) {
	cur := b.Current()
	next := cur.Copy()
	undo := next.MakeMove(m)

	irr := b.irreversiblePly[len(b.irreversiblePly)-1]
	if undo.CapturedPiece != NoPiece || cur.PieceAt(m.From()).Type() == Pawn ||
		m.IsCastle() || next.CastlingRights != undo.CastlingRights {
		irr = len(b.positions)
	}

	b.positions = append(b.positions, next)
	b.undos = append(b.undos, undo)
	b.isNull = append(b.isNull, false)
	b.irreversiblePly = append(b.irreversiblePly, irr)
}

// UnmakeMove pops the most recently played move.
func (b *Board) UnmakeMove() {
	n := len(b.positions)
	b.positions = b.positions[:n-1]
	b.undos = b.undos[:len(b.undos)-1]
	b.isNull = b.isNull[:len(b.isNull)-1]
	b.irreversiblePly = b.irreversiblePly[:len(b.irreversiblePly)-1]
}

// DoNullMove plays a null move, pushing a new position that differs only in
// side-to-move, en-passant, and fromNull.
func (b *Board) DoNullMove() {
	cur := b.Current()
	next := cur.Copy()
	nullUndo := next.MakeNullMove()

	b.positions = append(b.positions, next)
	b.nullUndos = append(b.nullUndos, nullUndo)
	b.isNull = append(b.isNull, true)
	b.irreversiblePly = append(b.irreversiblePly, b.irreversiblePly[len(b.irreversiblePly)-1])
}

// UnmakeNullMove pops a null move.
func (b *Board) UnmakeNullMove() {
	n := len(b.positions)
	b.positions = b.positions[:n-1]
	b.nullUndos = b.nullUndos[:len(b.nullUndos)-1]
	b.isNull = b.isNull[:len(b.isNull)-1]
	b.irreversiblePly = b.irreversiblePly[:len(b.irreversiblePly)-1]
}

// IsDrawn reports whether the current position is a draw: rule-based draws
// visible from the single position (stalemate, 50-move, insufficient
// material), or repetition. inSearch requests the twofold-in-search
// shortcut (spec §4.D): any repetition found within the search tree counts
// as a draw, rather than requiring the full three occurrences, to avoid
// search instability around graph-history-interaction positions.
func (b *Board) IsDrawn(inSearch bool) bool {
	cur := b.Current()
	if cur.IsDraw() {
		return true
	}
	return b.isRepetition(inSearch)
}

func (b *Board) isRepetition(inSearch bool) bool {
	n := len(b.positions)
	cur := b.positions[n-1]
	floor := b.irreversiblePly[n-1]

	occurrences := 1
	for i := n - 3; i >= floor; i -= 2 {
		if b.positions[i].Hash == cur.Hash {
			occurrences++
			if inSearch || occurrences >= 3 {
				return true
			}
		}
	}
	return false
}
