package engine

import "testing"

func TestSharedHistoryGravityUpdate(t *testing.T) {
	sh := NewSharedHistory()

	for i := 0; i < 10000; i++ {
		sh.Update(12, 28, 400)
	}
	if got := sh.Get(12, 28); got != sharedHistoryMax {
		t.Errorf("expected saturation at %d, got %d", sharedHistoryMax, got)
	}

	sh.Clear()
	if got := sh.Get(12, 28); got != 0 {
		t.Errorf("expected 0 after Clear, got %d", got)
	}
}

func TestSharedHistoryConcurrentUpdates(t *testing.T) {
	sh := NewSharedHistory()
	done := make(chan struct{})

	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 1000; j++ {
				sh.Update(4, 20, 50)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	if got := sh.Get(4, 20); got <= 0 {
		t.Errorf("expected positive history after concurrent updates, got %d", got)
	}
}
