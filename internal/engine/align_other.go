//go:build !linux

package engine

// AdviseHugePage is a no-op outside Linux: the huge-page hint in §4.K/§5
// is explicitly advisory and Linux-specific.
func AdviseHugePage[T any](s []T) {}
