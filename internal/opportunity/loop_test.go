package opportunity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raptor/internal/execution"
	"raptor/internal/logger"
	"raptor/internal/models"
	"raptor/internal/scoring"
)

type stubUsers struct {
	strategies []models.Strategy
	settings   map[uint]*models.Settings
	wallets    map[uint]*models.Wallet
	users      map[uint]*models.User
}

func (s *stubUsers) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.users[id], nil
}
func (s *stubUsers) GetActiveWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	return s.wallets[userID], nil
}
func (s *stubUsers) GetSettings(ctx context.Context, userID uint) (*models.Settings, error) {
	return s.settings[userID], nil
}
func (s *stubUsers) ListArmedStrategies(ctx context.Context, chain string) ([]models.Strategy, error) {
	return s.strategies, nil
}

type stubCandidates struct {
	statuses map[uint]models.CandidateStatus
	reasons  map[uint]string
}

func newStubCandidates() *stubCandidates {
	return &stubCandidates{statuses: map[uint]models.CandidateStatus{}, reasons: map[uint]string{}}
}
func (s *stubCandidates) Upsert(ctx context.Context, candidate *models.LaunchCandidate) (bool, error) {
	return true, nil
}
func (s *stubCandidates) MarkStatus(ctx context.Context, id uint, status models.CandidateStatus, reason string) error {
	s.statuses[id] = status
	s.reasons[id] = reason
	return nil
}
func (s *stubCandidates) CompleteOpportunityIfTerminal(ctx context.Context, candidateID uint) error {
	return nil
}
func (s *stubCandidates) ListNew(ctx context.Context) ([]models.LaunchCandidate, error) {
	return nil, nil
}

type stubDispatcher struct {
	calls   int
	replay  bool
	execErr error
}

func (d *stubDispatcher) ExecuteTrade(ctx context.Context, intent execution.Intent) (execution.Result, error) {
	d.calls++
	if d.execErr != nil {
		return execution.Result{}, d.execErr
	}
	return execution.Result{Execution: &models.Execution{ID: 1, Status: models.ExecConfirmed}, Replayed: d.replay}, nil
}

func testWallet() *models.Wallet {
	return &models.Wallet{Pubkey: "So11111111111111111111111111111111111111112"}
}

func TestProcessCandidate_AutoExecuteDisabled(t *testing.T) {
	users := &stubUsers{
		strategies: []models.Strategy{{UserID: 1, Enabled: true, SnipeMode: models.SnipeModeSpeed, MinScore: 0}},
		settings:   map[uint]*models.Settings{1: {}},
		wallets:    map[uint]*models.Wallet{1: testWallet()},
		users:      map[uint]*models.User{1: {}},
	}
	candidates := newStubCandidates()
	dispatcher := &stubDispatcher{}
	scorer := scoring.New(nil, false, 0)
	loop := New(users, candidates, scorer, dispatcher, logger.NewLogger("test", nil), false, "solana")

	candidate := &models.LaunchCandidate{ID: 1, Mint: "mintA", LaunchSource: models.SourcePumpfun}
	err := loop.ProcessCandidate(context.Background(), candidate)

	require.NoError(t, err)
	assert.Equal(t, 0, dispatcher.calls)
	assert.Equal(t, models.CandidateAccepted, candidates.statuses[1])
	assert.Equal(t, "auto_execute_disabled", candidates.reasons[1])
}

func TestProcessCandidate_KillSwitchFiltersStrategy(t *testing.T) {
	users := &stubUsers{
		strategies: []models.Strategy{{ID: 1, UserID: 1, Enabled: true, SnipeMode: models.SnipeModeSpeed, MinScore: 0}},
		settings:   map[uint]*models.Settings{1: {KillSwitch: true}},
		wallets:    map[uint]*models.Wallet{1: testWallet()},
		users:      map[uint]*models.User{1: {}},
	}
	candidates := newStubCandidates()
	dispatcher := &stubDispatcher{}
	scorer := scoring.New(nil, false, 0)
	loop := New(users, candidates, scorer, dispatcher, logger.NewLogger("test", nil), true, "solana")

	candidate := &models.LaunchCandidate{ID: 1, Mint: "mintA", LaunchSource: models.SourcePumpfun}
	err := loop.ProcessCandidate(context.Background(), candidate)

	require.NoError(t, err)
	assert.Equal(t, 0, dispatcher.calls)
	assert.Equal(t, models.CandidateRejected, candidates.statuses[1])
	assert.Equal(t, "kill_switch_active", candidates.reasons[1])
}

func TestProcessCandidate_DispatchesEligibleStrategy(t *testing.T) {
	users := &stubUsers{
		strategies: []models.Strategy{{ID: 7, UserID: 1, Enabled: true, SnipeMode: models.SnipeModeSpeed, MinScore: 0, MaxPerTradeSOL: 0.1, SlippageBps: 500}},
		settings:   map[uint]*models.Settings{1: {}},
		wallets:    map[uint]*models.Wallet{1: testWallet()},
		users:      map[uint]*models.User{1: {}},
	}
	candidates := newStubCandidates()
	dispatcher := &stubDispatcher{}
	scorer := scoring.New(nil, false, 0)
	loop := New(users, candidates, scorer, dispatcher, logger.NewLogger("test", nil), true, "solana")

	candidate := &models.LaunchCandidate{ID: 1, Mint: "mintA", LaunchSource: models.SourcePumpfun, RawPayload: models.JSONB{}}
	err := loop.ProcessCandidate(context.Background(), candidate)

	require.NoError(t, err)
	assert.Equal(t, 1, dispatcher.calls)
	assert.Equal(t, models.CandidateAccepted, candidates.statuses[1])
	assert.Equal(t, "trade_jobs_enqueued", candidates.reasons[1])
}

func TestProcessCandidate_DedupedReplayCountsAsEnqueued(t *testing.T) {
	users := &stubUsers{
		strategies: []models.Strategy{{ID: 7, UserID: 1, Enabled: true, SnipeMode: models.SnipeModeSpeed, MinScore: 0, MaxPerTradeSOL: 0.1, SlippageBps: 500}},
		settings:   map[uint]*models.Settings{1: {}},
		wallets:    map[uint]*models.Wallet{1: testWallet()},
		users:      map[uint]*models.User{1: {}},
	}
	candidates := newStubCandidates()
	dispatcher := &stubDispatcher{replay: true}
	scorer := scoring.New(nil, false, 0)
	loop := New(users, candidates, scorer, dispatcher, logger.NewLogger("test", nil), true, "solana")

	candidate := &models.LaunchCandidate{ID: 1, Mint: "mintA", LaunchSource: models.SourcePumpfun, RawPayload: models.JSONB{}}
	err := loop.ProcessCandidate(context.Background(), candidate)

	require.NoError(t, err)
	assert.Equal(t, models.CandidateAccepted, candidates.statuses[1])
}

func TestProcessCandidate_MinScoreFiltersStrategy(t *testing.T) {
	users := &stubUsers{
		strategies: []models.Strategy{{ID: 7, UserID: 1, Enabled: true, SnipeMode: models.SnipeModeSpeed, MinScore: 100}},
		settings:   map[uint]*models.Settings{1: {}},
		wallets:    map[uint]*models.Wallet{1: testWallet()},
		users:      map[uint]*models.User{1: {}},
	}
	candidates := newStubCandidates()
	dispatcher := &stubDispatcher{}
	scorer := scoring.New(nil, false, 0)
	loop := New(users, candidates, scorer, dispatcher, logger.NewLogger("test", nil), true, "solana")

	candidate := &models.LaunchCandidate{ID: 1, Mint: "mintA", LaunchSource: models.SourcePumpfun}
	err := loop.ProcessCandidate(context.Background(), candidate)

	require.NoError(t, err)
	assert.Equal(t, 0, dispatcher.calls)
	assert.Equal(t, models.CandidateRejected, candidates.statuses[1])
	assert.Equal(t, "score_below_min", candidates.reasons[1])
}
