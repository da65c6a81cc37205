// Package scoring implements the Scorer + Rule Engine (spec.md §4.F): fail-closed hard
// stops followed by a weighted category score, evaluated once per snipe mode rather than
// once per strategy so a user on speed mode is never slowed by one on quality mode.
package scoring

// Decision is the final bucket a score maps to via the configured thresholds.
type Decision string

const (
	DecisionSkip     Decision = "SKIP"
	DecisionTiny     Decision = "TINY"
	DecisionTradable Decision = "TRADABLE"
	DecisionBest     Decision = "BEST"
)

// Category names one of the weighted scoring dimensions (spec.md §4.F).
type Category string

const (
	CategorySellability      Category = "sellability"
	CategorySupplyIntegrity  Category = "supply_integrity"
	CategoryLiquidityControl Category = "liquidity_control"
	CategoryDistribution     Category = "distribution"
	CategoryDeployer         Category = "deployer_provenance"
	CategoryPostLaunch       Category = "post_launch_controls"
	CategoryExecutionRisk    Category = "execution_risk"
)

// weights sum to the documented 58-63 point scale (spec.md §4.F); the exact total is
// exposed via Scale() rather than hardcoded at call sites (spec.md §9 open question).
var weights = map[Category]float64{
	CategorySellability:      14,
	CategorySupplyIntegrity:  10,
	CategoryLiquidityControl: 10,
	CategoryDistribution:     9,
	CategoryDeployer:         8,
	CategoryPostLaunch:       6,
	CategoryExecutionRisk:    6,
}

// Scale is the configured total of all category weights (~58-63 points per spec.md §4.F;
// this instance totals 63). Callers must read this rather than assume a fixed constant
// like 35 (spec.md §9 open question).
func Scale() float64 {
	var total float64
	for _, w := range weights {
		total += w
	}
	return total
}

// CategoryScore is one category's contribution to the total.
type CategoryScore struct {
	Category Category
	Points   float64
	Max      float64
	Reason   string
}

// Result is the Scorer's output for one candidate under one snipe mode (spec.md §4.F).
type Result struct {
	Total         float64
	Scale         float64
	PerCategory   []CategoryScore
	HardStop      string // non-empty iff a hard stop fired; Total/PerCategory are meaningless then
	Reasons       []string
	Decision      Decision
	SnipeMode     string
	MetadataUsed  string // provenance the metadata fetch reported, for forensic logging
}

// Input is everything the Scorer needs about a candidate to evaluate it. Fields a given
// source can't populate (e.g. pump.fun's freeze authority before the mint account exists)
// are left at their zero value and the corresponding category/hard-stop degrades gracefully
// rather than panicking.
type Input struct {
	Mint         string
	LaunchSource string

	FreezeAuthoritySet bool
	MintAuthoritySet   bool
	IsToken2022        bool

	LPSizeSOL      float64
	LPLocked       bool
	HolderCount    int
	Top10PctSupply float64

	DeployerPriorRugs    int
	DeployerPriorSuccess int
	DeployerBlacklisted  bool

	OwnershipRenounced bool
	HasPauseAuthority  bool
	HasBlacklistHook   bool

	EstimatedSlippagePct float64
	EstimatedGasSOL      float64
	PositionSizeSOL      float64

	HasTwitter bool
	HasWebsite bool
	HasImage   bool

	HoneypotSuspected bool
	KnownScamDeployer bool

	// MeteoraMissingPoolInit is set by the Meteora DBC source when a candidate's raw
	// payload lacks the pool-init addresses the bonding-curve router needs (spec.md §4.F
	// hard stop example).
	MeteoraMissingPoolInit bool
}
