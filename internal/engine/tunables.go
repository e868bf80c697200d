package engine

// Search feature toggles and thresholds. Kept as package-level const/var,
// same as MaxPly/Infinity/MateScore in search.go, rather than folded into
// ParamRegistry: these gate entire pruning/extension techniques rather than
// scaling a continuous margin, so there is nothing for SPSA tuning to vary
// (see DESIGN.md section F.3 on params.go vs tunables.go scope).
const (
	EnableThreatExt       = true
	EnableHindsightDepth  = true
	EnableRFP             = true
	EnableRazoring        = true
	EnableNMP             = true
	EnableProbcut         = true
	EnableMulticut        = true
	EnableFutilityPruning = true
	EnableSingularExt     = true
	EnableSEEPruning      = true
	EnableLMP             = true
	EnableHistoryPruning  = true
)

const (
	threatExtensionMinDepth  = 4
	threatExtensionThreshold = RookValue

	probcutDepth = 5

	multicutDepth    = 8
	multicutMoves    = 6
	multicutRequired = 3

	historyPruningThreshold = -2000

	lazyEvalMargin = 400
)

// lmpThreshold[depth] is the move-count cutoff for late move pruning,
// indexed by remaining depth (depth <= 7, see worker.go).
var lmpThreshold = [8]int{0, 5, 8, 13, 19, 26, 34, 43}
