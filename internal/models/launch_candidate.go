package models

import "time"

type DiscoveryMethod string

const (
	DiscoveryTelegram DiscoveryMethod = "telegram"
	DiscoveryOnchain  DiscoveryMethod = "onchain"
)

type CandidateStatus string

const (
	CandidateNew      CandidateStatus = "new"
	CandidateAccepted CandidateStatus = "accepted"
	CandidateRejected CandidateStatus = "rejected"
	CandidateExpired  CandidateStatus = "expired"
)

// LaunchCandidate is a deduplicated sighting of a new token launch (spec.md §3, §4.E).
type LaunchCandidate struct {
	ID              uint            `gorm:"primaryKey"`
	Mint            string          `gorm:"size:64;not null;uniqueIndex:idx_candidate_mint_source,priority:1"`
	Symbol          string          `gorm:"size:32"`
	Name            string          `gorm:"size:128"`
	LaunchSource    LaunchSource    `gorm:"size:10;not null;uniqueIndex:idx_candidate_mint_source,priority:2"`
	DiscoveryMethod DiscoveryMethod `gorm:"size:10;not null"`
	FirstSeenAt     time.Time       `gorm:"not null;index"`
	RawPayload      JSONB           `gorm:"type:jsonb"`
	Status          CandidateStatus `gorm:"size:10;not null;default:'new';index"`
	StatusReason    string          `gorm:"size:200"`
	ProcessedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (LaunchCandidate) TableName() string { return "launch_candidates" }

// IsTerminal reports whether the candidate has left the pipeline (spec.md §8 invariant 7).
func (c *LaunchCandidate) IsTerminal() bool {
	switch c.Status {
	case CandidateAccepted, CandidateRejected, CandidateExpired:
		return true
	default:
		return false
	}
}
