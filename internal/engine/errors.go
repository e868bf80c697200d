package engine

import "fmt"

// ErrResource reports failure to acquire an external resource the engine
// depends on at startup — an NNUE network file, most commonly (spec §7/§10).
// It wraps the underlying error so callers can still errors.Is/As through to
// the original (e.g. *fs.PathError) while matching on ErrResource at the
// engine boundary.
type ErrResource struct {
	Resource string
	Err      error
}

func (e *ErrResource) Error() string {
	return fmt.Sprintf("resource %q unavailable: %v", e.Resource, e.Err)
}

func (e *ErrResource) Unwrap() error { return e.Err }
