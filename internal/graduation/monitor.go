// Package graduation implements the Graduation Monitor (spec.md §4.J): a periodic poll
// of every mint with open PRE_GRADUATION positions, promoting the whole group to
// POST_GRADUATION the moment its bonding curve completes.
package graduation

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"raptor/internal/eventbus"
	"raptor/internal/interfaces/repository"
	"raptor/internal/logger"
	"raptor/internal/raptorerr"
)

// CurveChecker reports whether a mint's bonding curve has completed. Implemented by
// *venue.BondingCurveRouter; a separate interface keeps this package testable.
type CurveChecker interface {
	IsGraduated(ctx context.Context, mint solana.PublicKey) (bool, error)
}

// Monitor is the Graduation Monitor.
type Monitor struct {
	positions repository.PositionRepository
	curve     CurveChecker
	bus       eventbus.EventBusInterface
	log       *logger.Logger
}

func New(positions repository.PositionRepository, curve CurveChecker, bus eventbus.EventBusInterface, log *logger.Logger) *Monitor {
	return &Monitor{positions: positions, curve: curve, bus: bus, log: log}
}

// Poll runs one pass of spec.md §4.J over every distinct pre-graduation mint.
func (m *Monitor) Poll(ctx context.Context) error {
	mints, err := m.positions.ListPreGraduationMints(ctx)
	if err != nil {
		return raptorerr.Wrap(raptorerr.CodeDatabaseError, "list pre-graduation mints", err)
	}

	for _, mint := range mints {
		if err := m.checkMint(ctx, mint); err != nil {
			m.log.Warn("graduation check failed", "mint", mint, "error", err.Error())
		}
	}
	return nil
}

func (m *Monitor) checkMint(ctx context.Context, mint string) error {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return raptorerr.Wrap(raptorerr.CodeInvalidAddress, "parse mint", err)
	}

	graduated, err := m.curve.IsGraduated(ctx, mintKey)
	if err != nil {
		return err
	}
	if !graduated {
		return nil
	}

	moved, err := m.positions.GraduateAllPositionsForMint(ctx, mint)
	if err != nil {
		return raptorerr.Wrap(raptorerr.CodeDatabaseError, "graduate_all_positions_for_mint", err)
	}
	if moved == 0 {
		// Every position on this mint already moved on (closed or graduated by a
		// concurrent poll); nothing left to announce.
		return nil
	}

	m.log.Info("mint graduated", "mint", mint, "positions_moved", moved)
	m.bus.Publish(eventbus.EventTypeGraduation, eventbus.NewGraduationEvent(mint, moved))
	return nil
}
