package board

import (
	"strconv"
	"strings"
)

// StartFEN is the FEN string for the standard starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseFEN parses a FEN string and returns a Position. Accepts classic KQkq
// castling notation as well as Shredder/X-FEN file-letter notation
// (A-H/a-h), both needed for Chess960/DFRC back ranks (spec §6). The
// en-passant target is cleared if no pseudo-legal pawn can actually capture
// there (spec §4.B/§6) — an EP square surviving in a FEN string with no
// legal capturing pawn is a common hand-authored-test artifact, not a real
// target.
func ParseFEN(fen string) (*Position, error) {
	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return nil, invalidInput("invalid FEN: need at least 4 fields, got %d", len(parts))
	}

	pos := &Position{
		EnPassant:      NoSquare,
		FullMoveNumber: 1,
	}
	pos.KingSquare[White] = NoSquare
	pos.KingSquare[Black] = NoSquare
	pos.RookSquare[White][kingSideIdx] = NoSquare
	pos.RookSquare[White][queenSideIdx] = NoSquare
	pos.RookSquare[Black][kingSideIdx] = NoSquare
	pos.RookSquare[Black][queenSideIdx] = NoSquare

	if err := parsePiecePlacement(pos, parts[0]); err != nil {
		return nil, err
	}

	switch parts[1] {
	case "w":
		pos.SideToMove = White
	case "b":
		pos.SideToMove = Black
	default:
		return nil, invalidInput("invalid side to move: %s", parts[1])
	}

	if err := parseCastlingRights(pos, parts[2]); err != nil {
		return nil, err
	}

	if parts[3] != "-" {
		sq, err := ParseSquare(parts[3])
		if err != nil {
			return nil, invalidInput("invalid en passant square: %s", parts[3])
		}
		pos.EnPassant = sq
	}

	if len(parts) > 4 {
		hmc, err := strconv.Atoi(parts[4])
		if err != nil {
			return nil, invalidInput("invalid half-move clock: %s", parts[4])
		}
		pos.HalfMoveClock = hmc
	}

	if len(parts) > 5 {
		fmn, err := strconv.Atoi(parts[5])
		if err != nil {
			return nil, invalidInput("invalid full-move number: %s", parts[5])
		}
		pos.FullMoveNumber = fmn
	}

	pos.updateOccupied()
	pos.findKings()
	if err := pos.Validate(); err != nil {
		return nil, err
	}
	pos.Hash = pos.ComputeHash()
	pos.PawnKey = pos.ComputePawnKey()
	pos.NonPawnKey[White], pos.NonPawnKey[Black] = pos.ComputeNonPawnKeys()
	pos.MajorKey = pos.ComputeMajorKey()
	pos.MinorKey = pos.ComputeMinorKey()
	pos.UpdateCheckers()
	pos.sanitizeEnPassant()

	return pos, nil
}

func parsePiecePlacement(pos *Position, placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return invalidInput("invalid piece placement: need 8 ranks, got %d", len(ranks))
	}

	for i, rankStr := range ranks {
		rank := 7 - i
		file := 0

		for _, c := range rankStr {
			if file > 7 {
				return invalidInput("too many squares in rank %d", rank+1)
			}
			if c >= '1' && c <= '8' {
				file += int(c - '0')
			} else {
				piece := PieceFromChar(byte(c))
				if piece == NoPiece {
					return invalidInput("invalid piece character: %c", c)
				}
				sq := NewSquare(file, rank)
				pos.setPiece(piece, sq)
				file++
			}
		}

		if file != 8 {
			return invalidInput("invalid number of squares in rank %d: got %d", rank+1, file)
		}
	}

	return nil
}

// backRankRookFile scans a back rank for the rook that a classic "K"/"Q"
// letter refers to: the outermost rook on the king's right (kingside) or
// left (queenside).
func backRankRookFile(pos *Position, c Color, kingSide bool) (int, bool) {
	rank := 0
	if c == Black {
		rank = 7
	}
	kingFile := pos.KingSquare[c].File()
	rooks := pos.Pieces[c][Rook]
	best := -1
	for rooks != 0 {
		sq := rooks.PopLSB()
		if sq.Rank() != rank {
			continue
		}
		f := sq.File()
		if kingSide && f > kingFile {
			if best == -1 || f > best {
				best = f
			}
		} else if !kingSide && f < kingFile {
			if best == -1 || f < best {
				best = f
			}
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

func parseCastlingRights(pos *Position, castling string) error {
	if castling == "-" {
		pos.CastlingRights = NoCastling
		return nil
	}

	set := func(c Color, kingSide bool, file int) {
		rank := 0
		if c == Black {
			rank = 7
		}
		sq := NewSquare(file, rank)
		if kingSide {
			pos.RookSquare[c][kingSideIdx] = sq
			if c == White {
				pos.CastlingRights |= WhiteKingSideCastle
			} else {
				pos.CastlingRights |= BlackKingSideCastle
			}
		} else {
			pos.RookSquare[c][queenSideIdx] = sq
			if c == White {
				pos.CastlingRights |= WhiteQueenSideCastle
			} else {
				pos.CastlingRights |= BlackQueenSideCastle
			}
		}
	}

	for _, c := range castling {
		switch {
		case c == 'K':
			file, _ := backRankRookFile(pos, White, true)
			set(White, true, file)
		case c == 'Q':
			file, _ := backRankRookFile(pos, White, false)
			set(White, false, file)
		case c == 'k':
			file, _ := backRankRookFile(pos, Black, true)
			set(Black, true, file)
		case c == 'q':
			file, _ := backRankRookFile(pos, Black, false)
			set(Black, false, file)
		case c >= 'A' && c <= 'H':
			file := int(c - 'A')
			set(White, file > pos.KingSquare[White].File(), file)
		case c >= 'a' && c <= 'h':
			file := int(c - 'a')
			set(Black, file > pos.KingSquare[Black].File(), file)
		default:
			return invalidInput("invalid castling character: %c", c)
		}
	}

	return nil
}

// sanitizeEnPassant clears EnPassant if no pseudo-legal pawn capture can
// actually be made there, and verifies the resulting target is truly legal
// (doesn't itself expose the king, per the horizontal-pin edge case) by
// deferring to the full legal move generator.
func (p *Position) sanitizeEnPassant() {
	if p.EnPassant == NoSquare {
		return
	}
	us := p.SideToMove
	epBB := SquareBB(p.EnPassant)
	var attackers Bitboard
	if us == White {
		attackers = (epBB.SouthWest() | epBB.SouthEast()) & p.Pieces[us][Pawn]
	} else {
		attackers = (epBB.NorthWest() | epBB.NorthEast()) & p.Pieces[us][Pawn]
	}
	if attackers == 0 {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
		p.EnPassant = NoSquare
		return
	}
	legalEP := false
	moves := p.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		if moves.Get(i).IsEnPassant() {
			legalEP = true
			break
		}
	}
	if !legalEP {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
		p.EnPassant = NoSquare
	}
}

// ToFEN returns the FEN representation of the position, in classic KQkq
// castling notation.
func (p *Position) ToFEN() string {
	var sb strings.Builder

	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			sq := NewSquare(file, rank)
			piece := p.PieceAt(sq)
			if piece == NoPiece {
				empty++
			} else {
				if empty > 0 {
					sb.WriteString(strconv.Itoa(empty))
					empty = 0
				}
				sb.WriteString(piece.String())
			}
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	sb.WriteByte(' ')
	if p.SideToMove == White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}

	sb.WriteByte(' ')
	sb.WriteString(p.CastlingRights.String())

	sb.WriteByte(' ')
	sb.WriteString(p.EnPassant.String())

	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.HalfMoveClock))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.FullMoveNumber))

	return sb.String()
}

// ComputeHash computes the primary Zobrist key from scratch (used only on
// load; every subsequent update is incremental).
func (p *Position) ComputeHash() uint64 {
	var hash uint64
	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			bb := p.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				hash ^= zobristPiece[c][pt][sq]
			}
		}
	}
	if p.SideToMove == Black {
		hash ^= zobristSideToMove
	}
	hash ^= zobristCastling[p.CastlingRights]
	if p.EnPassant != NoSquare {
		hash ^= zobristEnPassant[p.EnPassant.File()]
	}
	return hash
}

// ComputePawnKey computes the pawns-only key from scratch.
func (p *Position) ComputePawnKey() uint64 {
	var key uint64
	for c := White; c <= Black; c++ {
		bb := p.Pieces[c][Pawn]
		for bb != 0 {
			sq := bb.PopLSB()
			key ^= zobristPiece[c][Pawn][sq]
		}
	}
	return key
}

// ComputeNonPawnKeys computes the per-color non-pawn-material keys from
// scratch.
func (p *Position) ComputeNonPawnKeys() (white, black uint64) {
	for c := White; c <= Black; c++ {
		var key uint64
		for pt := Knight; pt <= King; pt++ {
			bb := p.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				key ^= zobristPiece[c][pt][sq]
			}
		}
		if c == White {
			white = key
		} else {
			black = key
		}
	}
	return
}

// ComputeMajorKey computes the rooks+queens key from scratch.
func (p *Position) ComputeMajorKey() uint64 {
	var key uint64
	for c := White; c <= Black; c++ {
		for _, pt := range [2]PieceType{Rook, Queen} {
			bb := p.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				key ^= zobristPiece[c][pt][sq]
			}
		}
	}
	return key
}

// ComputeMinorKey computes the knights+bishops key from scratch.
func (p *Position) ComputeMinorKey() uint64 {
	var key uint64
	for c := White; c <= Black; c++ {
		for _, pt := range [2]PieceType{Knight, Bishop} {
			bb := p.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				key ^= zobristPiece[c][pt][sq]
			}
		}
	}
	return key
}
