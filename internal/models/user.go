package models

import "gorm.io/gorm"

// UserTier gates feature access; plain strings keep the enum portable to the store's check constraint.
type UserTier string

const (
	TierFree UserTier = "free"
	TierPro  UserTier = "pro"
)

type User struct {
	gorm.Model
	TelegramChatID int64    `gorm:"uniqueIndex;not null"`
	Tier           UserTier `gorm:"size:10;not null;default:'free'"`
	IsBanned       bool     `gorm:"default:false"`
}

type Wallet struct {
	gorm.Model
	UserID   uint   `gorm:"index;not null"`
	Pubkey   string `gorm:"uniqueIndex;size:64;not null"`
	Label    string `gorm:"size:100"`
	IsActive bool   `gorm:"default:true"`
}

// AllowlistMode controls how Strategy.TokenAllowlist is interpreted.
type AllowlistMode string

const (
	AllowlistOff         AllowlistMode = "off"
	AllowlistPartnersOnly AllowlistMode = "partners_only"
	AllowlistCustom       AllowlistMode = "custom"
)

type Settings struct {
	gorm.Model
	UserID            uint          `gorm:"uniqueIndex;not null"`
	SlippageBps       int           `gorm:"default:500;not null"`
	MaxPositions      int           `gorm:"default:5;not null"`
	MaxTradesPerHour  int           `gorm:"default:20;not null"`
	MaxBuyAmountSOL   float64       `gorm:"column:max_buy_amount_sol;type:decimal(18,9);default:0.5;not null"`
	AllowlistMode     AllowlistMode `gorm:"size:20;not null;default:'off'"`
	KillSwitch        bool          `gorm:"default:false"`

	// DefaultPriorityFeeLamports is the account-wide priority fee budget used whenever a
	// Strategy leaves its own PriorityFeeLamports at zero (spec.md §4.C).
	DefaultPriorityFeeLamports uint64 `gorm:"default:0;not null"`
}
