package board

// AllSquaresBB is the full 64-square bitboard, used as the "no constraint"
// check-mask value when the side to move is not in check.
const AllSquaresBB Bitboard = ^Bitboard(0)

// GenerateLegalMoves generates all strictly legal moves for the position
// (spec §4.C): king-danger squares are computed once, double check yields
// king moves only, single check constrains non-king moves to the
// block/capture mask, and pinned pieces are constrained to their pin ray.
// No move this returns can leave the mover's own king in check.
func (p *Position) GenerateLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generateMoves(ml, false)
	return ml
}

// GenerateCaptures generates captures, promotions and capturing promotions
// only — the "captures-only" mode used by quiescence (spec §4.C).
func (p *Position) GenerateCaptures() *MoveList {
	ml := NewMoveList()
	p.generateMoves(ml, true)
	return ml
}

// checkMaskAndPins computes, for the side to move: the set of squares a
// non-king move must land on to resolve check (AllSquaresBB if not in
// check, empty if in double check), and per-square pin rays (AllSquaresBB
// for unpinned squares, the pinning line otherwise).
func (p *Position) checkMaskAndPins() (checkMask Bitboard, pinRay [64]Bitboard) {
	us := p.SideToMove
	them := us.Other()
	ksq := p.KingSquare[us]
	occ := p.AllOccupied

	switch p.Checkers.PopCount() {
	case 0:
		checkMask = AllSquaresBB
	case 1:
		checkerSq := p.Checkers.LSB()
		checkMask = Between(ksq, checkerSq) | p.Checkers
	default:
		checkMask = Empty
	}

	for i := range pinRay {
		pinRay[i] = AllSquaresBB
	}

	snipers := (RookAttacks(ksq, 0) & (p.Pieces[them][Rook] | p.Pieces[them][Queen])) |
		(BishopAttacks(ksq, 0) & (p.Pieces[them][Bishop] | p.Pieces[them][Queen]))
	for snipers != 0 {
		sq := snipers.PopLSB()
		between := Between(sq, ksq) & occ
		if between.PopCount() == 1 && between&p.Occupied[us] != 0 {
			pinRay[between.LSB()] = Line(ksq, sq)
		}
	}

	return checkMask, pinRay
}

func (p *Position) generateMoves(ml *MoveList, capturesOnly bool) {
	us := p.SideToMove
	them := us.Other()
	occ := p.AllOccupied
	enemies := p.Occupied[them]
	ksq := p.KingSquare[us]

	numCheckers := p.Checkers.PopCount()

	// King moves are always generated: they never need the check mask (the
	// king itself is the piece moving away from check) but must land on a
	// square not attacked once the king itself is removed from occupancy.
	occNoKing := occ &^ SquareBB(ksq)
	kingTargets := KingAttacks(ksq) & ^p.Occupied[us]
	if capturesOnly {
		kingTargets &= enemies
	}
	for kingTargets != 0 {
		to := kingTargets.PopLSB()
		if p.AttackersByColor(to, them, occNoKing) == 0 {
			if enemies&SquareBB(to) != 0 {
				ml.Add(NewCapture(ksq, to))
			} else {
				ml.Add(NewQuiet(ksq, to))
			}
		}
	}

	if numCheckers >= 2 {
		// Double check: only king moves are legal.
		return
	}

	checkMask, pinRay := p.checkMaskAndPins()

	p.generatePawnMoves(ml, us, enemies, occ, checkMask, pinRay, capturesOnly)

	addPieceMoves := func(pt PieceType, attacksFn func(Square, Bitboard) Bitboard) {
		pieces := p.Pieces[us][pt]
		for pieces != 0 {
			from := pieces.PopLSB()
			targets := attacksFn(from, occ) & ^p.Occupied[us] & checkMask & pinRay[from]
			if capturesOnly {
				targets &= enemies
			}
			for targets != 0 {
				to := targets.PopLSB()
				if enemies&SquareBB(to) != 0 {
					ml.Add(NewCapture(from, to))
				} else {
					ml.Add(NewQuiet(from, to))
				}
			}
		}
	}

	knights := p.Pieces[us][Knight]
	for knights != 0 {
		from := knights.PopLSB()
		targets := KnightAttacks(from) & ^p.Occupied[us] & checkMask & pinRay[from]
		if capturesOnly {
			targets &= enemies
		}
		for targets != 0 {
			to := targets.PopLSB()
			if enemies&SquareBB(to) != 0 {
				ml.Add(NewCapture(from, to))
			} else {
				ml.Add(NewQuiet(from, to))
			}
		}
	}

	addPieceMoves(Bishop, BishopAttacks)
	addPieceMoves(Rook, RookAttacks)
	addPieceMoves(Queen, QueenAttacks)

	if numCheckers == 0 {
		p.generateCastlingMoves(ml)
	}
}

func (p *Position) generatePawnMoves(ml *MoveList, us Color, enemies, occupied, checkMask Bitboard, pinRay [64]Bitboard, capturesOnly bool) {
	pawns := p.Pieces[us][Pawn]
	empty := ^occupied

	var push1, push2, attackL, attackR Bitboard
	var promotionRank Bitboard
	var pushDir int

	if us == White {
		push1 = pawns.North() & empty
		push2 = (push1 & Rank3).North() & empty
		attackL = pawns.NorthWest() & enemies
		attackR = pawns.NorthEast() & enemies
		promotionRank = Rank8
		pushDir = 8
	} else {
		push1 = pawns.South() & empty
		push2 = (push1 & Rank6).South() & empty
		attackL = pawns.SouthWest() & enemies
		attackR = pawns.SouthEast() & enemies
		promotionRank = Rank1
		pushDir = -8
	}

	emitPush := func(bb Bitboard, dirMul int, promo bool) {
		for bb != 0 {
			to := bb.PopLSB()
			from := Square(int(to) - dirMul*pushDir)
			if pinRay[from]&SquareBB(to) == 0 {
				continue
			}
			if checkMask&SquareBB(to) == 0 {
				continue
			}
			if promo {
				addPromotions(ml, from, to, false)
			} else if !capturesOnly {
				if dirMul == 2 {
					ml.Add(NewDoublePawnPush(from, to))
				} else {
					ml.Add(NewQuiet(from, to))
				}
			}
		}
	}

	emitCapture := func(bb Bitboard, fileShift int, promo bool) {
		for bb != 0 {
			to := bb.PopLSB()
			from := Square(int(to) - pushDir + fileShift)
			if pinRay[from]&SquareBB(to) == 0 {
				continue
			}
			if checkMask&SquareBB(to) == 0 {
				continue
			}
			if promo {
				addPromotions(ml, from, to, true)
			} else {
				ml.Add(NewCapture(from, to))
			}
		}
	}

	if !capturesOnly {
		emitPush(push1&^promotionRank, 1, false)
		emitPush(push2, 2, false)
	}
	emitCapture(attackL&^promotionRank, 1, false)
	emitCapture(attackR&^promotionRank, -1, false)
	emitPush(push1&promotionRank, 1, true)
	emitCapture(attackL&promotionRank, 1, true)
	emitCapture(attackR&promotionRank, -1, true)

	if p.EnPassant != NoSquare {
		p.generateEnPassant(ml, us, pawns, checkMask, pinRay)
	}
}

func addPromotions(ml *MoveList, from, to Square, capture bool) {
	if capture {
		ml.Add(NewPromotionCapture(from, to, Queen))
		ml.Add(NewPromotionCapture(from, to, Rook))
		ml.Add(NewPromotionCapture(from, to, Bishop))
		ml.Add(NewPromotionCapture(from, to, Knight))
		return
	}
	ml.Add(NewPromotion(from, to, Queen))
	ml.Add(NewPromotion(from, to, Rook))
	ml.Add(NewPromotion(from, to, Bishop))
	ml.Add(NewPromotion(from, to, Knight))
}

// generateEnPassant handles the en-passant capture's two legality wrinkles:
// the ordinary pin-ray/check-mask constraints (the capturing pawn itself may
// be pinned, or the position may be in check and the capture must resolve
// it), and the classic "horizontal pin" case where removing both the
// capturing and captured pawn from the same rank exposes the king to a
// rook/queen — something no single square's pin ray captures, since neither
// pawn individually is pinned.
func (p *Position) generateEnPassant(ml *MoveList, us Color, pawns, checkMask Bitboard, pinRay [64]Bitboard) {
	them := us.Other()
	ep := p.EnPassant
	epBB := SquareBB(ep)

	var capturedSq Square
	if us == White {
		capturedSq = ep - 8
	} else {
		capturedSq = ep + 8
	}
	capturedBB := SquareBB(capturedSq)

	var attackers Bitboard
	if us == White {
		attackers = (epBB.SouthWest() | epBB.SouthEast()) & pawns
	} else {
		attackers = (epBB.NorthWest() | epBB.NorthEast()) & pawns
	}

	for attackers != 0 {
		from := attackers.PopLSB()
		if pinRay[from]&epBB == 0 {
			continue
		}
		// Check-resolution: the capture must land on the check mask, or
		// capture the checking pawn itself.
		if checkMask&epBB == 0 && checkMask&capturedBB == 0 {
			continue
		}

		occAfter := (p.AllOccupied &^ SquareBB(from) &^ capturedBB) | epBB
		ksq := p.KingSquare[us]
		attackersAfter := (RookAttacks(ksq, occAfter) & (p.Pieces[them][Rook] | p.Pieces[them][Queen])) |
			(BishopAttacks(ksq, occAfter) & (p.Pieces[them][Bishop] | p.Pieces[them][Queen]))
		if attackersAfter != 0 {
			continue
		}

		ml.Add(NewEnPassant(from, ep))
	}
}

// generateCastlingMoves generates legal castling moves, verified against
// the Chess960/DFRC rules (spec §4.C): king path clear excluding the rook,
// rook path clear excluding the king, and king does not pass through an
// attacked square: every square the king crosses, its destination
// included, is checked for attack.
func (p *Position) generateCastlingMoves(ml *MoveList) {
	us := p.SideToMove
	them := us.Other()
	ksq := p.KingSquare[us]

	for _, side := range [2]int{kingSideIdx, queenSideIdx} {
		kingSide := side == kingSideIdx
		var right CastlingRights
		switch {
		case us == White && kingSide:
			right = WhiteKingSideCastle
		case us == White && !kingSide:
			right = WhiteQueenSideCastle
		case us == Black && kingSide:
			right = BlackKingSideCastle
		default:
			right = BlackQueenSideCastle
		}
		if p.CastlingRights&right == 0 {
			continue
		}

		rookSq := p.RookSquare[us][side]
		kingDest := CastleKingDest(ksq, kingSide)
		rookDest := CastleRookDest(ksq, kingSide)

		// Squares that must be empty, excluding the castling king/rook
		// themselves (Chess960: the king or rook may already occupy a
		// square that is also its own destination).
		kingPath := Between(ksq, kingDest) | SquareBB(kingDest)
		rookPath := Between(rookSq, rookDest) | SquareBB(rookDest)
		mustBeEmpty := (kingPath | rookPath) &^ SquareBB(ksq) &^ SquareBB(rookSq)
		if p.AllOccupied&mustBeEmpty != 0 {
			continue
		}

		// King's full travel path (inclusive of start/end) must never be
		// attacked.
		travel := Between(ksq, kingDest) | SquareBB(ksq) | SquareBB(kingDest)
		attacked := false
		occNoRook := p.AllOccupied &^ SquareBB(rookSq)
		for sq := travel; sq != 0; {
			s := sq.PopLSB()
			if p.AttackersByColor(s, them, occNoRook) != 0 {
				attacked = true
				break
			}
		}
		if attacked {
			continue
		}

		ml.Add(NewCastle(ksq, rookSq, kingSide))
	}
}

// MakeMove applies a move to the position and returns undo information.
func (p *Position) MakeMove(m Move) UndoInfo {
	us := p.SideToMove
	them := us.Other()
	from := m.From()
	to := m.To()

	undo := UndoInfo{
		CapturedPiece:  NoPiece,
		CastlingRights: p.CastlingRights,
		EnPassant:      p.EnPassant,
		HalfMoveClock:  p.HalfMoveClock,
		Hash:           p.Hash,
		PawnKey:        p.PawnKey,
		NonPawnKey:     p.NonPawnKey,
		MajorKey:       p.MajorKey,
		MinorKey:       p.MinorKey,
		Checkers:       p.Checkers,
		Threats:        p.threats,
		KingSquare:     p.KingSquare,
		Pieces:         p.Pieces,
		Occupied:       p.Occupied,
		AllOccupied:    p.AllOccupied,
	}

	piece := p.PieceAt(from)
	pt := piece.Type()

	p.Hash ^= zobristSideToMove
	p.Hash ^= zobristCastling[p.CastlingRights]
	if p.EnPassant != NoSquare {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
	}
	p.EnPassant = NoSquare

	xorKeys := func(c Color, t PieceType, sq Square) {
		pawn, nonpawn, major, minor := pieceSubsetKey(c, t, sq)
		p.Hash ^= zobristPiece[c][t][sq]
		p.PawnKey ^= pawn
		p.NonPawnKey[c] ^= nonpawn
		p.MajorKey ^= major
		p.MinorKey ^= minor
	}

	if m.IsEnPassant() {
		var capturedSq Square
		if us == White {
			capturedSq = to - 8
		} else {
			capturedSq = to + 8
		}
		undo.CapturedPiece = p.removePiece(capturedSq)
		xorKeys(them, Pawn, capturedSq)
	} else if m.IsCastle() {
		// handled below; no captured piece
	} else if captured := p.PieceAt(to); captured != NoPiece {
		undo.CapturedPiece = captured
		p.removePiece(to)
		xorKeys(them, captured.Type(), to)
	}

	if m.IsCastle() {
		kingSide := m.IsKingSideCastle()
		rookFrom := to // castling moves store the rook square as "to"
		kingDest := CastleKingDest(from, kingSide)
		rookDest := CastleRookDest(from, kingSide)

		p.Pieces[us][King] &^= SquareBB(from)
		p.Pieces[us][Rook] &^= SquareBB(rookFrom)
		p.Occupied[us] &^= SquareBB(from) | SquareBB(rookFrom)
		p.Pieces[us][King] |= SquareBB(kingDest)
		p.Pieces[us][Rook] |= SquareBB(rookDest)
		p.Occupied[us] |= SquareBB(kingDest) | SquareBB(rookDest)
		p.AllOccupied = p.Occupied[White] | p.Occupied[Black]
		p.KingSquare[us] = kingDest

		xorKeys(us, King, from)
		xorKeys(us, King, kingDest)
		xorKeys(us, Rook, rookFrom)
		xorKeys(us, Rook, rookDest)
	} else {
		p.movePiece(from, to)
		xorKeys(us, pt, from)
		xorKeys(us, pt, to)

		if m.IsPromotion() {
			promoPt := m.Promotion()
			p.Pieces[us][Pawn] &^= SquareBB(to)
			p.Pieces[us][promoPt] |= SquareBB(to)
			xorKeys(us, Pawn, to)
			xorKeys(us, promoPt, to)
		}
	}

	if pt == King {
		if us == White {
			p.CastlingRights &^= WhiteKingSideCastle | WhiteQueenSideCastle
		} else {
			p.CastlingRights &^= BlackKingSideCastle | BlackQueenSideCastle
		}
	}
	for c := White; c <= Black; c++ {
		for _, side := range [2]int{kingSideIdx, queenSideIdx} {
			rookSq := p.RookSquare[c][side]
			if rookSq == NoSquare {
				continue
			}
			if from == rookSq || to == rookSq {
				if c == White && side == kingSideIdx {
					p.CastlingRights &^= WhiteKingSideCastle
				} else if c == White {
					p.CastlingRights &^= WhiteQueenSideCastle
				} else if side == kingSideIdx {
					p.CastlingRights &^= BlackKingSideCastle
				} else {
					p.CastlingRights &^= BlackQueenSideCastle
				}
			}
		}
	}
	p.Hash ^= zobristCastling[p.CastlingRights]

	if pt == Pawn && m.Flag() == FlagDoublePawnPush {
		epSquare := Square((int(from) + int(to)) / 2)
		p.EnPassant = epSquare
		p.Hash ^= zobristEnPassant[epSquare.File()]
	}

	if pt == Pawn || undo.CapturedPiece != NoPiece {
		p.HalfMoveClock = 0
	} else {
		p.HalfMoveClock++
	}

	if us == Black {
		p.FullMoveNumber++
	}

	p.SideToMove = them
	p.FromNull = false
	p.threatsValid = false
	p.UpdateCheckers()

	return undo
}

// UnmakeMove undoes a move using the stored undo information.
func (p *Position) UnmakeMove(m Move, undo UndoInfo) {
	p.CastlingRights = undo.CastlingRights
	p.EnPassant = undo.EnPassant
	p.HalfMoveClock = undo.HalfMoveClock
	p.Hash = undo.Hash
	p.PawnKey = undo.PawnKey
	p.NonPawnKey = undo.NonPawnKey
	p.MajorKey = undo.MajorKey
	p.MinorKey = undo.MinorKey
	p.Checkers = undo.Checkers
	p.threats = undo.Threats
	p.threatsValid = true
	p.KingSquare = undo.KingSquare
	p.Pieces = undo.Pieces
	p.Occupied = undo.Occupied
	p.AllOccupied = undo.AllOccupied
	p.SideToMove = p.SideToMove.Other()
	if p.SideToMove == Black {
		p.FullMoveNumber--
	}
}

// HasLegalMoves returns true if the side to move has any legal move.
func (p *Position) HasLegalMoves() bool {
	return p.GenerateLegalMoves().Len() > 0
}

// IsCheckmate returns true if the position is checkmate.
func (p *Position) IsCheckmate() bool {
	return p.InCheck() && !p.HasLegalMoves()
}

// IsStalemate returns true if the position is stalemate.
func (p *Position) IsStalemate() bool {
	return !p.InCheck() && !p.HasLegalMoves()
}

// IsDraw reports rule-based draws visible from a single position (stalemate,
// 50-move, insufficient material) — repetition requires the full board
// history and lives on Board.IsDrawn (internal/board/board.go, spec §4.D).
func (p *Position) IsDraw() bool {
	if p.IsStalemate() {
		return true
	}
	if p.HalfMoveClock >= 100 {
		return true
	}
	return p.IsInsufficientMaterial()
}

// PseudoLegal reports whether m is a legal move in the current position.
// The generator never produces pseudo-legal-but-illegal moves (spec §4.C),
// so this is a full membership check — used to validate a transposition
// table move before trusting it, since a hash collision or a stale entry
// from a different position can hand back a move that no longer applies.
func (p *Position) PseudoLegal(m Move) bool {
	moves := p.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		if moves.Get(i) == m {
			return true
		}
	}
	return false
}
