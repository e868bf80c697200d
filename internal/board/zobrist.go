package board

// Zobrist hash keys for position hashing. Treated as a pure lookup oracle:
// the table itself is process-wide immutable data, generated once from a
// fixed seed so that two processes agree on the same keys.
//
// Beyond the base key, four extra incrementally maintained key families are
// kept so the correction-history tables (internal/engine/correction.go) can
// index on a coarser view of the position than the full hash: pawns-only,
// non-pawn material split by color, major pieces (rooks+queens) and minor
// pieces (knights+bishops).
var (
	zobristPiece      [2][7][64]uint64
	zobristEnPassant  [8]uint64
	zobristCastling   [16]uint64
	zobristSideToMove uint64
)

func init() {
	initZobrist()
}

type prng struct {
	state uint64
}

func newPRNG(seed uint64) *prng {
	return &prng{state: seed}
}

// xorshift64* algorithm
func (p *prng) next() uint64 {
	p.state ^= p.state >> 12
	p.state ^= p.state << 25
	p.state ^= p.state >> 27
	return p.state * 0x2545F4914F6CDD1D
}

func initZobrist() {
	rng := newPRNG(0x98F107A2BEEF1234)

	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			for sq := A1; sq <= H8; sq++ {
				zobristPiece[c][pt][sq] = rng.next()
			}
		}
	}

	for file := 0; file < 8; file++ {
		zobristEnPassant[file] = rng.next()
	}

	for i := 0; i < 16; i++ {
		zobristCastling[i] = rng.next()
	}

	zobristSideToMove = rng.next()
}

// ZobristPiece returns the Zobrist key for a piece on a square.
func ZobristPiece(c Color, pt PieceType, sq Square) uint64 {
	return zobristPiece[c][pt][sq]
}

// ZobristEnPassant returns the Zobrist key for an en passant file.
func ZobristEnPassant(file int) uint64 {
	return zobristEnPassant[file]
}

// ZobristCastling returns the Zobrist key for a castling-rights combination.
func ZobristCastling(cr CastlingRights) uint64 {
	return zobristCastling[cr&0xF]
}

// ZobristSideToMove returns the Zobrist key for side to move.
func ZobristSideToMove() uint64 {
	return zobristSideToMove
}

// isMajor reports whether pt is a rook or queen.
func isMajor(pt PieceType) bool { return pt == Rook || pt == Queen }

// isMinor reports whether pt is a knight or bishop.
func isMinor(pt PieceType) bool { return pt == Knight || pt == Bishop }

// pieceSubsetKey returns the per-(color,type,square) contribution to each of
// the four auxiliary key families, in the order (pawn, nonpawn, major, minor).
// A zero is returned for families the piece does not belong to.
func pieceSubsetKey(c Color, pt PieceType, sq Square) (pawn, nonpawn, major, minor uint64) {
	k := zobristPiece[c][pt][sq]
	switch {
	case pt == Pawn:
		pawn = k
	case pt == King:
		// kings participate in the nonpawn-material key (they are always
		// present and cancel out across incremental updates, but including
		// them keeps the key family well-defined for an empty board).
		nonpawn = k
	default:
		nonpawn = k
		if isMajor(pt) {
			major = k
		}
		if isMinor(pt) {
			minor = k
		}
	}
	return
}
