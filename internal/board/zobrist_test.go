package board

import "testing"

// walkRandomLine plays the first legal move at each ply (deterministic, not
// random, but exercises captures/promotions/castling along varied lines)
// and asserts the incrementally maintained Zobrist key matches a from-scratch
// recomputation at every step (spec §8 "Zobrist incrementality").
func walkRandomLine(t *testing.T, fen string, plies int) {
	t.Helper()
	pos, err := ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}

	for ply := 0; ply < plies; ply++ {
		moves := pos.GenerateLegalMoves()
		if moves.Len() == 0 {
			return
		}
		m := moves.Get(moves.Len() - 1)
		undo := pos.MakeMove(m)

		if got, want := pos.Hash, pos.ComputeHash(); got != want {
			t.Fatalf("ply %d: incremental hash %016x != recomputed %016x after %v", ply, got, want, m)
		}
		if got, want := pos.PawnKey, pos.ComputePawnKey(); got != want {
			t.Fatalf("ply %d: incremental pawn key %016x != recomputed %016x after %v", ply, got, want, m)
		}
		wantW, wantB := pos.ComputeNonPawnKeys()
		if pos.NonPawnKey[White] != wantW || pos.NonPawnKey[Black] != wantB {
			t.Fatalf("ply %d: incremental nonpawn keys mismatch after %v", ply, m)
		}
		if got, want := pos.MajorKey, pos.ComputeMajorKey(); got != want {
			t.Fatalf("ply %d: incremental major key mismatch after %v (%016x != %016x)", ply, m, got, want)
		}
		if got, want := pos.MinorKey, pos.ComputeMinorKey(); got != want {
			t.Fatalf("ply %d: incremental minor key mismatch after %v (%016x != %016x)", ply, m, got, want)
		}

		pos.UnmakeMove(m, undo)
	}
}

func TestZobristIncrementality(t *testing.T) {
	positions := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -",
		"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - -",
	}
	for _, fen := range positions {
		walkRandomLine(t, fen, 12)
	}
}

func TestCastlingRightsRevocation(t *testing.T) {
	pos := NewPosition()
	m, err := ParseMove("e1e2", pos)
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	pos.MakeMove(m)

	if pos.CastlingRights&(WhiteKingSideCastle|WhiteQueenSideCastle) != 0 {
		t.Errorf("white castling rights should be fully revoked after Ke1-e2, got %s", pos.CastlingRights)
	}
	if pos.CastlingRights&(BlackKingSideCastle|BlackQueenSideCastle) != (BlackKingSideCastle | BlackQueenSideCastle) {
		t.Errorf("black castling rights should be untouched, got %s", pos.CastlingRights)
	}
}

func TestThreefoldRepetition(t *testing.T) {
	b := NewBoard(NewPosition())
	line := []string{"g1f3", "g8f6", "f3g1", "f6g8", "g1f3", "g8f6", "f3g1", "f6g8"}
	for _, s := range line {
		m, err := ParseMove(s, b.Current())
		if err != nil {
			t.Fatalf("ParseMove(%q): %v", s, err)
		}
		b.DoMove(m)
	}
	if !b.IsDrawn(false) {
		t.Error("expected threefold repetition to be drawn")
	}
}
