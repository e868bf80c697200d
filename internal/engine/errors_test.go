package engine

import (
	"errors"
	"testing"
)

func TestLoadNNUEReturnsErrResource(t *testing.T) {
	eng := NewEngine(16)

	err := eng.LoadNNUE("/nonexistent/big.nnue", "/nonexistent/small.nnue")
	if err == nil {
		t.Fatal("expected an error loading nonexistent network files")
	}

	var target *ErrResource
	if !errors.As(err, &target) {
		t.Fatalf("expected *ErrResource, got %T", err)
	}
	if target.Unwrap() == nil {
		t.Error("expected ErrResource to wrap the underlying load error")
	}
}
