package engine

import (
	"testing"

	"github.com/nocturn9x/heimdall-sub004/internal/board"
)

func TestGravityUpdate32ConvergesAndClamps(t *testing.T) {
	var h int32

	for i := 0; i < 10000; i++ {
		gravityUpdate32(&h, statBonus(20, true))
	}
	if h != historyMax {
		t.Errorf("expected history to saturate at %d, got %d", historyMax, h)
	}

	for i := 0; i < 10000; i++ {
		gravityUpdate32(&h, statBonus(20, false))
	}
	if h != -historyMax {
		t.Errorf("expected history to saturate at %d, got %d", -historyMax, h)
	}
}

func TestQuietHistoryIsThreatIndexed(t *testing.T) {
	pos := board.NewPosition()
	mo := NewMoveOrderer()

	move, err := board.ParseMove("g1f3", pos)
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}

	before := mo.GetHistoryScore(pos, move)
	mo.UpdateHistory(pos, move, 8, true)
	after := mo.GetHistoryScore(pos, move)
	if after <= before {
		t.Errorf("expected quiet history score to increase, got %d -> %d", before, after)
	}

	stm := pos.SideToMove
	from, to := move.From(), move.To()
	tf, tt := threatIdx(pos, from), threatIdx(pos, to)
	if int(mo.history[stm][from][to][tf][tt]) != after {
		t.Errorf("GetHistoryScore didn't read back the threat-indexed slot it wrote")
	}
}

func TestContinuationHistoryCombinesMultiplePlyDistances(t *testing.T) {
	mo := NewMoveOrderer()

	piece1, to1 := board.WhiteKnight, board.F3
	piece2, to2 := board.WhiteBishop, board.C4

	table := mo.GetContinuationHistoryTable(piece1, to1)
	if table == nil {
		t.Fatal("GetContinuationHistoryTable returned nil")
	}

	mo.UpdateContinuationHistory(piece1, to1, piece2, to2, 10, 1, true)
	oneAway := table[piece2][to2]

	mo2 := NewMoveOrderer()
	table2 := mo2.GetContinuationHistoryTable(piece1, to1)
	mo2.UpdateContinuationHistory(piece1, to1, piece2, to2, 10, 4, true)
	fourAway := table2[piece2][to2]

	if oneAway <= 0 || fourAway <= 0 {
		t.Fatalf("expected positive bonuses, got %d and %d", oneAway, fourAway)
	}
	if fourAway >= oneAway {
		t.Errorf("expected a farther ply distance to apply a smaller bonus: ply1=%d ply4=%d", oneAway, fourAway)
	}
}
