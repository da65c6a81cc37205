package models

import "gorm.io/gorm"

// SnipeMode trades discovery latency against metadata depth (spec.md §4.F, GLOSSARY).
type SnipeMode string

const (
	SnipeModeSpeed    SnipeMode = "speed"
	SnipeModeBalanced SnipeMode = "balanced"
	SnipeModeQuality  SnipeMode = "quality"
)

// LaunchSource identifies which launchpad a candidate/strategy is bound to.
type LaunchSource string

const (
	SourceBags    LaunchSource = "bags"
	SourcePumpfun LaunchSource = "pumpfun"
)

// Strategy is a per-user, per-chain autohunt configuration (spec.md §3 Strategy).
type Strategy struct {
	gorm.Model
	UserID              uint    `gorm:"index:idx_strategy_user_chain,priority:1;not null"`
	Chain               string  `gorm:"size:20;index:idx_strategy_user_chain,priority:2;not null;default:'solana'"`
	Enabled             bool    `gorm:"default:false"`
	MinScore            float64 `gorm:"not null"`
	MaxPerTradeSOL      float64 `gorm:"column:max_per_trade_sol;type:decimal(18,9);not null"`
	MaxPositions        int     `gorm:"not null"`
	SlippageBps         int     `gorm:"not null"`
	PriorityFeeLamports uint64  `gorm:"default:0"`

	SnipeMode SnipeMode `gorm:"size:10;not null;default:'balanced'"`

	TPPercent float64 `gorm:"not null"`
	SLPercent float64 `gorm:"not null"`

	TrailingEnabled          bool    `gorm:"default:false"`
	TrailingActivationPct    float64 `gorm:"default:0"`
	TrailingDistancePct      float64 `gorm:"default:0"`

	MaxHoldSeconds int64 `gorm:"not null;default:3600"`

	ExitOnGraduation bool `gorm:"default:false"`

	// AllowedLaunchpads, TokenAllowlist, TokenDenylist are stored as JSON string arrays;
	// the repository layer marshals/unmarshals them (gorm has no native []string for Postgres text[] without an extra driver).
	AllowedLaunchpads JSONArray `gorm:"type:jsonb"`
	TokenAllowlist    JSONArray `gorm:"type:jsonb"`
	TokenDenylist     JSONArray `gorm:"type:jsonb"`

	MinLiquiditySOL float64 `gorm:"column:min_liquidity_sol;default:0"`
}
