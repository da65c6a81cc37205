package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raptor/internal/models"
)

type stubFetcher struct {
	input Input
	calls int
}

func (f *stubFetcher) Fetch(ctx context.Context, candidate *models.LaunchCandidate, budget time.Duration) Input {
	f.calls++
	return f.input
}

func TestEvaluateHardStops(t *testing.T) {
	assert.Equal(t, "freeze_authority_present_legacy_spl", EvaluateHardStops(Input{FreezeAuthoritySet: true}, models.SourcePumpfun, false))
	assert.Empty(t, EvaluateHardStops(Input{FreezeAuthoritySet: true, IsToken2022: true}, models.SourcePumpfun, false))
	assert.Equal(t, "known_scam_deployer", EvaluateHardStops(Input{KnownScamDeployer: true}, models.SourcePumpfun, false))
	assert.Equal(t, "meteora_dbc_missing_pool_init_addresses", EvaluateHardStops(Input{MeteoraMissingPoolInit: true}, models.SourceBags, false))
	assert.Empty(t, EvaluateHardStops(Input{MeteoraMissingPoolInit: true}, models.SourcePumpfun, false))
}

func TestEvaluateHardStops_StrictMetadata(t *testing.T) {
	assert.Equal(t, "metadata_missing_social_presence", EvaluateHardStops(Input{}, models.SourcePumpfun, true))
	assert.Empty(t, EvaluateHardStops(Input{}, models.SourcePumpfun, false))
}

func TestScore_HardStopShortCircuits(t *testing.T) {
	fetcher := &stubFetcher{input: Input{FreezeAuthoritySet: true}}
	scorer := New(fetcher, false, 23)
	candidate := &models.LaunchCandidate{Mint: "mint1"}

	results := scorer.ScoreForModes(context.Background(), candidate, models.SourcePumpfun, []models.SnipeMode{models.SnipeModeQuality})
	result := results[models.SnipeModeQuality]

	assert.Equal(t, DecisionSkip, result.Decision)
	assert.NotEmpty(t, result.HardStop)
	assert.Zero(t, result.Total)
}

func TestScore_SpeedModeSkipsFetch(t *testing.T) {
	fetcher := &stubFetcher{input: Input{FreezeAuthoritySet: true}}
	scorer := New(fetcher, false, 23)
	candidate := &models.LaunchCandidate{Mint: "mint1"}

	results := scorer.ScoreForModes(context.Background(), candidate, models.SourcePumpfun, []models.SnipeMode{models.SnipeModeSpeed})

	assert.Equal(t, 0, fetcher.calls, "speed mode must not invoke metadata enrichment")
	assert.Empty(t, results[models.SnipeModeSpeed].HardStop)
}

func TestScore_GoodCandidateScoresBest(t *testing.T) {
	fetcher := &stubFetcher{input: Input{
		MintAuthoritySet:     false,
		LPSizeSOL:            100,
		LPLocked:             true,
		HolderCount:          500,
		Top10PctSupply:       15,
		DeployerPriorSuccess: 3,
		OwnershipRenounced:   true,
		EstimatedSlippagePct: 1,
		HasTwitter:           true,
		HasWebsite:           true,
		HasImage:             true,
	}}
	scorer := New(fetcher, false, 23)
	candidate := &models.LaunchCandidate{Mint: "mint1"}

	results := scorer.ScoreForModes(context.Background(), candidate, models.SourcePumpfun, []models.SnipeMode{models.SnipeModeQuality})
	result := results[models.SnipeModeQuality]

	require.Empty(t, result.HardStop)
	assert.Equal(t, DecisionBest, result.Decision)
	assert.Equal(t, Scale(), result.Scale)
}

func TestGroupByMode(t *testing.T) {
	strategies := []models.Strategy{
		{SnipeMode: models.SnipeModeSpeed},
		{SnipeMode: models.SnipeModeSpeed},
		{SnipeMode: models.SnipeModeQuality},
	}
	groups := GroupByMode(strategies)
	assert.Len(t, groups[models.SnipeModeSpeed], 2)
	assert.Len(t, groups[models.SnipeModeQuality], 1)
}

func TestScale_WithinDocumentedRange(t *testing.T) {
	assert.GreaterOrEqual(t, Scale(), 58.0)
	assert.LessOrEqual(t, Scale(), 63.0)
}
