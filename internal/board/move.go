package board

// Move encodes a move in 4 bytes: a 6-bit origin square, a 6-bit destination
// square and a 4-bit flag selecting one of the variants below. The remaining
// bits are reserved (kept at zero) so the type stays a plain comparable
// uint32 rather than a struct, matching the teacher's original bit-packed
// encoding scheme, just widened to carry the full flag set.
//
// Castling moves store the castling **rook's** square in the destination
// field (the Chess960/DFRC convention, per spec) rather than the king's
// landing square; MakeMove derives the king's actual landing square from the
// flag plus the rook square.
type Move uint32

const (
	moveFromShift = 0
	moveToShift   = 6
	moveFlagShift = 12
	moveSquareMask = 0x3F
	moveFlagMask   = 0xF
)

// Move flags. There are exactly 14 distinct variants.
const (
	FlagQuiet uint32 = iota
	FlagDoublePawnPush
	FlagKingCastle
	FlagQueenCastle
	FlagEnPassant
	FlagCapture
	FlagPromoteKnight
	FlagPromoteBishop
	FlagPromoteRook
	FlagPromoteQueen
	FlagPromoteCaptureKnight
	FlagPromoteCaptureBishop
	FlagPromoteCaptureRook
	FlagPromoteCaptureQueen
)

// NoMove represents an invalid or null move.
const NoMove Move = 0xFFFFFFFF

// NewMove builds a move from its three fields.
func NewMove(from, to Square, flag uint32) Move {
	return Move(uint32(from)<<moveFromShift | uint32(to)<<moveToShift | (flag&moveFlagMask)<<moveFlagShift)
}

// NewQuiet creates a plain, non-capturing, non-special move.
func NewQuiet(from, to Square) Move { return NewMove(from, to, FlagQuiet) }

// NewCapture creates a capturing move that is not en passant or a promotion.
func NewCapture(from, to Square) Move { return NewMove(from, to, FlagCapture) }

// NewDoublePawnPush creates a two-square pawn advance.
func NewDoublePawnPush(from, to Square) Move { return NewMove(from, to, FlagDoublePawnPush) }

// NewEnPassant creates an en-passant capture.
func NewEnPassant(from, to Square) Move { return NewMove(from, to, FlagEnPassant) }

// NewCastle creates a castling move. rookSquare is stored as the move's "to"
// field per the Chess960 convention.
func NewCastle(kingFrom, rookSquare Square, kingSide bool) Move {
	if kingSide {
		return NewMove(kingFrom, rookSquare, FlagKingCastle)
	}
	return NewMove(kingFrom, rookSquare, FlagQueenCastle)
}

var promoFlagByPiece = [4]uint32{FlagPromoteKnight, FlagPromoteBishop, FlagPromoteRook, FlagPromoteQueen}
var promoCaptureFlagByPiece = [4]uint32{FlagPromoteCaptureKnight, FlagPromoteCaptureBishop, FlagPromoteCaptureRook, FlagPromoteCaptureQueen}

// NewPromotion creates a (non-capturing) promotion move.
func NewPromotion(from, to Square, promo PieceType) Move {
	return NewMove(from, to, promoFlagByPiece[promo-Knight])
}

// NewPromotionCapture creates a capturing promotion move.
func NewPromotionCapture(from, to Square, promo PieceType) Move {
	return NewMove(from, to, promoCaptureFlagByPiece[promo-Knight])
}

// From returns the origin square.
func (m Move) From() Square { return Square((uint32(m) >> moveFromShift) & moveSquareMask) }

// To returns the destination square. For castling moves this is the rook's
// square, not the king's landing square — use CastleKingDest/CastleRookDest
// to get the actual landing squares.
func (m Move) To() Square { return Square((uint32(m) >> moveToShift) & moveSquareMask) }

// Flag returns the move's flag.
func (m Move) Flag() uint32 { return (uint32(m) >> moveFlagShift) & moveFlagMask }

// IsPromotion reports whether this move promotes a pawn.
func (m Move) IsPromotion() bool {
	f := m.Flag()
	return f >= FlagPromoteKnight && f <= FlagPromoteCaptureQueen
}

// Promotion returns the promotion piece type; only valid if IsPromotion().
func (m Move) Promotion() PieceType {
	f := m.Flag()
	if f >= FlagPromoteCaptureKnight {
		return PieceType(f-FlagPromoteCaptureKnight) + Knight
	}
	return PieceType(f-FlagPromoteKnight) + Knight
}

// IsCastle reports whether this move castles (either side).
func (m Move) IsCastle() bool {
	f := m.Flag()
	return f == FlagKingCastle || f == FlagQueenCastle
}

// IsKingSideCastle reports whether this move is a king-side castle.
func (m Move) IsKingSideCastle() bool { return m.Flag() == FlagKingCastle }

// IsEnPassant reports whether this move is an en-passant capture.
func (m Move) IsEnPassant() bool { return m.Flag() == FlagEnPassant }

// IsCaptureFlag reports whether the move's flag itself marks a capture
// (en passant, plain capture, or promote-capture). This does not require
// board state, unlike IsCapture below, and is what the move generator sets.
func (m Move) IsCaptureFlag() bool {
	f := m.Flag()
	return f == FlagCapture || f == FlagEnPassant || (f >= FlagPromoteCaptureKnight && f <= FlagPromoteCaptureQueen)
}

// IsCapture returns true if this move captures a piece. The board is not
// consulted: capture and non-capture moves (promotions included) carry
// distinct flags, so this is equivalent to IsCaptureFlag; pos is kept for
// call-site symmetry with the teacher's original API.
func (m Move) IsCapture(pos *Position) bool { return m.IsCaptureFlag() }

// IsQuiet reports whether the move is neither a capture nor a promotion.
func (m Move) IsQuiet() bool { return m.Flag() == FlagQuiet || m.Flag() == FlagDoublePawnPush || m.IsCastle() }

// IsTactical reports whether the move is a capture or promotion — the set
// generated by captures-only ("quiescence") move generation.
func (m Move) IsTactical() bool { return !m.IsQuiet() }

// CastleKingDest returns the king's landing square for a castling move,
// given the king's home square (from) and whether this is king-side.
func CastleKingDest(kingFrom Square, kingSide bool) Square {
	rank := kingFrom.Rank()
	if kingSide {
		return NewSquare(6, rank) // g-file
	}
	return NewSquare(2, rank) // c-file
}

// CastleRookDest returns the rook's landing square for a castling move.
func CastleRookDest(kingFrom Square, kingSide bool) Square {
	rank := kingFrom.Rank()
	if kingSide {
		return NewSquare(5, rank) // f-file
	}
	return NewSquare(3, rank) // d-file
}

var promoChars = [4]byte{'n', 'b', 'r', 'q'}

// String returns the UCI format of the move (e.g., "e2e4", "e7e8q"). Castling
// is rendered in standard (non-Chess960) notation: the king's own standard
// destination square, regardless of the internal rook-square encoding —
// Chess960 UCI rendering is the responsibility of the external UCI layer,
// which knows whether Chess960 mode is active (spec §6).
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}
	from := m.From()
	to := m.To()
	if m.IsCastle() {
		to = CastleKingDest(from, m.IsKingSideCastle())
	}
	s := from.String() + to.String()
	if m.IsPromotion() {
		s += string(promoChars[m.Promotion()-Knight])
	}
	return s
}

// ParseMove parses a UCI move string against a position, inferring the
// correct flag from board state (the wire format itself carries no flag).
func ParseMove(s string, pos *Position) (Move, error) {
	if len(s) < 4 {
		return NoMove, invalidInput("invalid move string: %s", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	piece := pos.PieceAt(from)
	if piece == NoPiece {
		return NoMove, invalidInput("no piece at %s", from)
	}
	pt := piece.Type()
	capture := pos.PieceAt(to) != NoPiece

	var promo PieceType = NoPieceType
	if len(s) == 5 {
		switch s[4] {
		case 'n':
			promo = Knight
		case 'b':
			promo = Bishop
		case 'r':
			promo = Rook
		case 'q':
			promo = Queen
		default:
			return NoMove, invalidInput("invalid promotion piece: %c", s[4])
		}
	}

	if promo != NoPieceType {
		if capture {
			return NewPromotionCapture(from, to, promo), nil
		}
		return NewPromotion(from, to, promo), nil
	}

	if pt == King {
		// In standard UCI notation castling is encoded as the king moving
		// two squares; in Chess960 it is encoded as "king captures own
		// rook". Either way we resolve against the position's actual
		// castling rook squares.
		if kingSide, rookSq, ok := pos.CastleRookFor(from, to); ok {
			return NewCastle(from, rookSq, kingSide), nil
		}
	}

	if pt == Pawn {
		if to == pos.EnPassant && pos.EnPassant != NoSquare {
			return NewEnPassant(from, to), nil
		}
		if abs(int(to)-int(from)) == 16 {
			return NewDoublePawnPush(from, to), nil
		}
	}

	if capture {
		return NewCapture(from, to), nil
	}
	return NewQuiet(from, to), nil
}

// MoveList is a fixed-size list of moves to avoid allocations.
type MoveList struct {
	moves [256]Move
	count int
}

// NewMoveList creates an empty move list.
func NewMoveList() *MoveList { return &MoveList{} }

// Add adds a move to the list.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *MoveList) Len() int { return ml.count }

// Get returns the move at index i.
func (ml *MoveList) Get(i int) Move { return ml.moves[i] }

// Set sets the move at index i.
func (ml *MoveList) Set(i int, m Move) { ml.moves[i] = m }

// Swap swaps two moves in the list.
func (ml *MoveList) Swap(i, j int) { ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i] }

// Clear clears the list.
func (ml *MoveList) Clear() { ml.count = 0 }

// Contains returns true if the list contains the move.
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}

// Slice returns the moves as a slice.
func (ml *MoveList) Slice() []Move { return ml.moves[:ml.count] }

// UndoInfo stores information needed to undo a move.
type UndoInfo struct {
	CapturedPiece  Piece
	CastlingRights CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	Hash           uint64
	PawnKey        uint64
	NonPawnKey     [2]uint64
	MajorKey       uint64
	MinorKey       uint64
	Checkers       Bitboard
	Threats        Bitboard
	KingSquare     [2]Square
	Pieces         [2][6]Bitboard
	Occupied       [2]Bitboard
	AllOccupied    Bitboard
}
