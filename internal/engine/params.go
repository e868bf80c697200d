package engine

import "sync"

// Param is one named, bounded integer tunable. The RFP margins and the
// aspiration window sizes are registered here, so they can be enumerated
// and mutated through one API. NMP, futility, LMR, SEE and the other
// search constants are not registered; they stay literals or consts in
// worker.go and tunables.go.
type Param struct {
	Name    string
	Min     int
	Max     int
	Default int
}

// ParamRegistry holds the live value of every registered tunable.
// Reads/writes are mutex-guarded: tunables are set rarely (at startup or
// between searches), so a simple lock is preferable to the relaxed
// atomics used for the hot-path history tables.
type ParamRegistry struct {
	mu     sync.RWMutex
	params map[string]Param
	values map[string]int
}

var defaultParams = []Param{
	{Name: "RFPMarginBase", Min: 20, Max: 200, Default: 80},
	{Name: "RFPNotImprovingPenalty", Min: 0, Max: 100, Default: 20},
	{Name: "AspirationTightWindow", Min: 5, Max: 100, Default: 25},
	{Name: "AspirationBaseWindow", Min: 10, Max: 200, Default: 50},
	{Name: "AspirationHighVolWindow", Min: 50, Max: 400, Default: 150},
	{Name: "AspirationVolatilityThreshold", Min: 100, Max: 800, Default: 400},
}

// NewParamRegistry builds a registry seeded with every tunable's default.
func NewParamRegistry() *ParamRegistry {
	r := &ParamRegistry{
		params: make(map[string]Param, len(defaultParams)),
		values: make(map[string]int, len(defaultParams)),
	}
	for _, p := range defaultParams {
		r.params[p.Name] = p
		r.values[p.Name] = p.Default
	}
	return r
}

// Get returns the current value of a tunable, or 0 if the name is
// unregistered (callers pass names drawn from Names(), so this is a
// defensive fallback rather than an expected path).
func (r *ParamRegistry) Get(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.values[name]; ok {
		return v
	}
	return 0
}

// Set clamps value into [min, max] and stores it. Returns false if name
// is not a registered tunable.
func (r *ParamRegistry) Set(name string, value int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.params[name]
	if !ok {
		return false
	}
	if value < p.Min {
		value = p.Min
	} else if value > p.Max {
		value = p.Max
	}
	r.values[name] = value
	return true
}

// Describe returns the {name, min, max, default} tuple for a tunable.
func (r *ParamRegistry) Describe(name string) (Param, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.params[name]
	return p, ok
}

// Names returns every registered tunable name.
func (r *ParamRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.params))
	for name := range r.params {
		names = append(names, name)
	}
	return names
}
