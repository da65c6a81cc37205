// Package opportunity implements the Opportunity Loop (spec.md §4.G): it matches a newly
// discovered LaunchCandidate against every user's armed AUTO strategy, filters by policy,
// and enqueues a deterministic buy job per surviving match.
package opportunity

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"raptor/internal/execution"
	"raptor/internal/interfaces/repository"
	"raptor/internal/logger"
	"raptor/internal/models"
	"raptor/internal/raptorerr"
	"raptor/internal/scoring"
)

// Dispatcher is the Execution Engine boundary the loop hands surviving matches to
// (spec.md data flow E -> G -> D). A separate interface (rather than importing
// *execution.Engine directly) keeps this package testable against a stub.
type Dispatcher interface {
	ExecuteTrade(ctx context.Context, intent execution.Intent) (execution.Result, error)
}

// Loop is the Opportunity Loop component.
type Loop struct {
	users              repository.UserRepository
	candidates         repository.LaunchCandidateRepository
	scorer             *scoring.Scorer
	dispatcher         Dispatcher
	log                *logger.Logger
	autoExecuteEnabled bool
	chain              string
}

func New(
	users repository.UserRepository,
	candidates repository.LaunchCandidateRepository,
	scorer *scoring.Scorer,
	dispatcher Dispatcher,
	log *logger.Logger,
	autoExecuteEnabled bool,
	chain string,
) *Loop {
	if chain == "" {
		chain = "solana"
	}
	return &Loop{
		users:              users,
		candidates:         candidates,
		scorer:             scorer,
		dispatcher:         dispatcher,
		log:                log,
		autoExecuteEnabled: autoExecuteEnabled,
		chain:              chain,
	}
}

// matchOutcome records why a strategy did or didn't produce a job, for the candidate's
// final status_reason rollup.
type matchOutcome struct {
	strategy models.Strategy
	eligible bool
	reason   string
	score    scoring.Result
}

// ProcessCandidate runs spec.md §4.G steps 1-5 for one freshly discovered candidate.
func (l *Loop) ProcessCandidate(ctx context.Context, candidate *models.LaunchCandidate) error {
	strategies, err := l.users.ListArmedStrategies(ctx, l.chain)
	if err != nil {
		return raptorerr.Wrap(raptorerr.CodeDatabaseError, "list armed strategies", err)
	}

	groups := scoring.GroupByMode(strategies)
	modes := make([]models.SnipeMode, 0, len(groups))
	for mode := range groups {
		modes = append(modes, mode)
	}
	scores := l.scorer.ScoreForModes(ctx, candidate, candidate.LaunchSource, modes)

	outcomes := make([]matchOutcome, 0, len(strategies))
	for _, strategy := range strategies {
		result := scores[strategy.SnipeMode]
		outcomes = append(outcomes, l.evaluate(ctx, candidate, strategy, result))
	}

	if !l.autoExecuteEnabled {
		// spec.md §4.G step 3: never create jobs while auto-execute is globally off, but
		// still close the candidate out so it doesn't linger as a false "in progress" row.
		if err := l.candidates.MarkStatus(ctx, candidate.ID, models.CandidateAccepted, "auto_execute_disabled"); err != nil {
			return raptorerr.Wrap(raptorerr.CodeDatabaseError, "mark candidate accepted (auto-execute disabled)", err)
		}
		return nil
	}

	created, deduped := 0, 0
	var lastReason string
	for _, outcome := range outcomes {
		if !outcome.eligible {
			lastReason = outcome.reason
			continue
		}
		dispatched, dispatchErr := l.dispatch(ctx, candidate, outcome)
		if dispatchErr != nil {
			l.log.Warn("opportunity loop dispatch failed", "strategy_id", outcome.strategy.ID, "mint", candidate.Mint, "error", dispatchErr.Error())
			continue
		}
		if dispatched {
			created++
		} else {
			deduped++
		}
	}

	switch {
	case created > 0 || deduped > 0:
		// spec.md §4.G step 5: leave accepted, the candidate stays "in the pipeline" until
		// complete_opportunity_if_terminal rolls it up once every spawned Execution finishes.
		return l.candidates.MarkStatus(ctx, candidate.ID, models.CandidateAccepted, "trade_jobs_enqueued")
	default:
		if lastReason == "" {
			lastReason = "no_armed_strategies"
		}
		return l.candidates.MarkStatus(ctx, candidate.ID, models.CandidateRejected, lastReason)
	}
}

// evaluate is spec.md §4.G step 2's per-strategy filter chain.
func (l *Loop) evaluate(ctx context.Context, candidate *models.LaunchCandidate, strategy models.Strategy, score scoring.Result) matchOutcome {
	settings, err := l.users.GetSettings(ctx, strategy.UserID)
	if err != nil {
		return matchOutcome{strategy: strategy, reason: "settings_unavailable"}
	}
	if settings.KillSwitch {
		return matchOutcome{strategy: strategy, reason: "kill_switch_active"}
	}

	if score.HardStop != "" {
		return matchOutcome{strategy: strategy, reason: score.HardStop, score: score}
	}
	if score.Total < strategy.MinScore {
		return matchOutcome{strategy: strategy, reason: "score_below_min", score: score}
	}

	if strategy.TokenAllowlist != nil && len(strategy.TokenAllowlist) > 0 && !strategy.TokenAllowlist.Contains(candidate.Mint) {
		return matchOutcome{strategy: strategy, reason: "allowlist_miss"}
	}
	if strategy.TokenDenylist.Contains(candidate.Mint) {
		return matchOutcome{strategy: strategy, reason: "denylist_hit"}
	}
	if len(strategy.AllowedLaunchpads) > 0 && !strategy.AllowedLaunchpads.Contains(string(candidate.LaunchSource)) {
		return matchOutcome{strategy: strategy, reason: "launchpad_not_allowed"}
	}

	// min_liquidity is enforced only once liquidity is actually known (spec.md §4.G step
	// 2): pump.fun candidates never populate LPSizeSOL before the curve exists, so the
	// check is bypassed for them rather than rejecting every pump.fun launch outright.
	if strategy.MinLiquiditySOL > 0 && candidate.LaunchSource != models.SourcePumpfun {
		lp, ok := candidate.RawPayload["lp_size_sol"].(float64)
		if ok && lp < strategy.MinLiquiditySOL {
			return matchOutcome{strategy: strategy, reason: "min_liquidity_not_met"}
		}
	}

	return matchOutcome{strategy: strategy, eligible: true, score: score}
}

// dispatch builds the deterministic idempotency key and hands the intent to the
// Execution Engine (spec.md §4.G step 4). Returns dispatched=false on a deduped replay.
func (l *Loop) dispatch(ctx context.Context, candidate *models.LaunchCandidate, outcome matchOutcome) (bool, error) {
	strategy := outcome.strategy
	user, err := l.users.GetUser(ctx, strategy.UserID)
	if err != nil {
		return false, raptorerr.Wrap(raptorerr.CodeDatabaseError, "load user for dispatch", err)
	}
	if user.IsBanned {
		return false, raptorerr.New(raptorerr.CodeAllowlistMiss, "user is banned")
	}
	wallet, err := l.users.GetActiveWallet(ctx, strategy.UserID)
	if err != nil {
		return false, raptorerr.Wrap(raptorerr.CodeDatabaseError, "load active wallet for dispatch", err)
	}

	owner, err := solana.PublicKeyFromBase58(wallet.Pubkey)
	if err != nil {
		return false, raptorerr.Wrap(raptorerr.CodeInvalidAddress, "parse wallet pubkey", err)
	}

	idempotencyKey := fmt.Sprintf("buy:%d:%s", strategy.ID, candidate.Mint)
	bondingCurve, _ := candidate.RawPayload["bonding_curve"].(string)

	priorityFee, err := l.resolvePriorityFee(ctx, strategy)
	if err != nil {
		return false, err
	}

	intent := execution.Intent{
		UserID:                strategy.UserID,
		WalletID:              wallet.ID,
		Owner:                 owner,
		Mint:                  candidate.Mint,
		Side:                  models.SideBuy,
		Amount:                decimal.NewFromFloat(strategy.MaxPerTradeSOL),
		SlippageBps:           strategy.SlippageBps,
		PriorityFee:           priorityFee,
		IdempotencyKey:        idempotencyKey,
		SourceTag:             string(candidate.LaunchSource),
		LifecycleState:        models.LifecyclePreGraduation,
		LaunchCandidateID:     &candidate.ID,
		BondingCurve:          bondingCurve,
		TPPercent:             strategy.TPPercent,
		SLPercent:             strategy.SLPercent,
		TrailingActivationPct: strategy.TrailingActivationPct,
		TrailingDistancePct:   strategy.TrailingDistancePct,
		MaxHoldSeconds:        strategy.MaxHoldSeconds,
		ExitOnGraduation:      strategy.ExitOnGraduation,
	}

	result, err := l.dispatcher.ExecuteTrade(ctx, intent)
	if err != nil {
		if raptorerr.CodeOf(err) == raptorerr.CodeAlreadyExecuted || raptorerr.CodeOf(err) == raptorerr.CodeConcurrentOperation {
			return false, nil
		}
		return false, err
	}

	return !result.Replayed, nil
}

// resolvePriorityFee is the spec.md §4.C precedence rule: a strategy's own priority fee
// wins when set, otherwise the account falls back to its settings-level default.
func (l *Loop) resolvePriorityFee(ctx context.Context, strategy models.Strategy) (uint64, error) {
	if strategy.PriorityFeeLamports > 0 {
		return strategy.PriorityFeeLamports, nil
	}
	settings, err := l.users.GetSettings(ctx, strategy.UserID)
	if err != nil {
		return 0, raptorerr.Wrap(raptorerr.CodeDatabaseError, "load settings for priority fee", err)
	}
	return settings.DefaultPriorityFeeLamports, nil
}
