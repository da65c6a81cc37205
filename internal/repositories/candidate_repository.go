package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"raptor/internal/models"
)

// CandidateRepository persists discovery output and the opportunity loop's rollup
// (spec.md §4.E, §4.G).
type CandidateRepository struct {
	db *gorm.DB
}

func NewCandidateRepository(db *gorm.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

// Upsert dedups on (mint, launch_source): a second sighting from the same source leaves
// the existing row untouched (so a terminal candidate's status is never resurrected,
// spec.md §8 invariant 7), copies it into candidate, and returns created=false.
func (r *CandidateRepository) Upsert(ctx context.Context, candidate *models.LaunchCandidate) (bool, error) {
	var existing models.LaunchCandidate
	err := r.db.WithContext(ctx).
		Where("mint = ? AND launch_source = ?", candidate.Mint, candidate.LaunchSource).
		First(&existing).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "mint"}, {Name: "launch_source"}},
			DoNothing: true,
		}).Create(candidate).Error; err != nil {
			return false, err
		}
		if candidate.ID != 0 {
			return true, nil
		}
		// Lost the race to a concurrent insert; fall through to report the existing row.
		if err := r.db.WithContext(ctx).
			Where("mint = ? AND launch_source = ?", candidate.Mint, candidate.LaunchSource).
			First(&existing).Error; err != nil {
			return false, err
		}
		*candidate = existing
		return false, nil
	case err != nil:
		return false, err
	default:
		*candidate = existing
		return false, nil
	}
}

// ListNew returns every candidate still awaiting an Opportunity Loop pass, oldest first
// so a backlog drains in discovery order.
func (r *CandidateRepository) ListNew(ctx context.Context) ([]models.LaunchCandidate, error) {
	var out []models.LaunchCandidate
	err := r.db.WithContext(ctx).
		Where("status = ?", models.CandidateNew).
		Order("first_seen_at ASC").
		Limit(200).
		Find(&out).Error
	return out, err
}

func (r *CandidateRepository) MarkStatus(ctx context.Context, id uint, status models.CandidateStatus, reason string) error {
	return r.db.WithContext(ctx).Model(&models.LaunchCandidate{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"status_reason": reason,
		}).Error
}

// CompleteOpportunityIfTerminal is the spec.md §4.G rollup RPC: a candidate only moves
// to accepted/rejected/expired once every Execution spawned from it has reached a
// terminal status, so a sweep never closes a candidate with an in-flight trade.
func (r *CandidateRepository) CompleteOpportunityIfTerminal(ctx context.Context, candidateID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidate models.LaunchCandidate
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&candidate, candidateID).Error; err != nil {
			return err
		}
		if candidate.IsTerminal() {
			return nil
		}

		var pendingCount int64
		err := tx.Model(&models.Execution{}).
			Joins("JOIN positions ON positions.entry_execution_id = executions.id OR positions.exit_execution_id = executions.id").
			Where("positions.launch_candidate_id = ? AND executions.status IN ?", candidateID, []models.ExecutionStatus{models.ExecPending, models.ExecSent}).
			Count(&pendingCount).Error
		if err != nil {
			return err
		}
		if pendingCount > 0 {
			return nil
		}

		var acceptedCount int64
		if err := tx.Model(&models.Position{}).Where("launch_candidate_id = ?", candidateID).Count(&acceptedCount).Error; err != nil {
			return err
		}

		status := models.CandidateRejected
		reason := "no_trade_placed"
		if acceptedCount > 0 {
			status = models.CandidateAccepted
			reason = "position_opened"
		}

		return tx.Model(&candidate).Updates(map[string]interface{}{
			"status":        status,
			"status_reason": reason,
		}).Error
	})
}
