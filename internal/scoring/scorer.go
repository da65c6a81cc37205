package scoring

import (
	"context"
	"time"

	"raptor/internal/models"
)

// modeTimeout is the metadata-fetch timeout budget per snipe mode (spec.md §4.F,
// GLOSSARY "Snipe mode"). speed skips enrichment outright; quality affords a full
// on-chain/REST round trip; balanced splits the difference.
var modeTimeout = map[models.SnipeMode]time.Duration{
	models.SnipeModeSpeed:    0,
	models.SnipeModeBalanced: 200 * time.Millisecond,
	models.SnipeModeQuality:  2 * time.Second,
}

// MetadataFetcher enriches a candidate with on-chain/REST signals within the mode's
// timeout budget. Implementations must respect ctx's deadline; a fetch that can't finish
// in time should return its best-effort partial Input rather than blocking other modes.
type MetadataFetcher interface {
	Fetch(ctx context.Context, candidate *models.LaunchCandidate, budget time.Duration) Input
}

// Scorer evaluates candidates against the configured thresholds, grouped by snipe mode so
// a user on speed never waits on another user's quality-mode enrichment (spec.md §4.F).
type Scorer struct {
	fetcher                 MetadataFetcher
	strictMetadataHardStops bool
	minQualificationScore   float64
}

func New(fetcher MetadataFetcher, strictMetadataHardStops bool, minQualificationScore float64) *Scorer {
	return &Scorer{
		fetcher:                 fetcher,
		strictMetadataHardStops: strictMetadataHardStops,
		minQualificationScore:   minQualificationScore,
	}
}

// GroupByMode buckets armed strategies by snipe mode so ScoreForModes can run each
// enrichment budget exactly once per mode present, not once per strategy.
func GroupByMode(strategies []models.Strategy) map[models.SnipeMode][]models.Strategy {
	groups := make(map[models.SnipeMode][]models.Strategy)
	for _, s := range strategies {
		groups[s.SnipeMode] = append(groups[s.SnipeMode], s)
	}
	return groups
}

// ScoreForModes scores candidate once per distinct mode in modes, returning a Result per
// mode. Strategies sharing a mode reuse that single Result (spec.md §4.F "score once per
// mode and apply to strategies in that mode").
func (s *Scorer) ScoreForModes(ctx context.Context, candidate *models.LaunchCandidate, launchSource models.LaunchSource, modes []models.SnipeMode) map[models.SnipeMode]Result {
	out := make(map[models.SnipeMode]Result, len(modes))
	for _, mode := range modes {
		out[mode] = s.score(ctx, candidate, launchSource, mode)
	}
	return out
}

func (s *Scorer) score(ctx context.Context, candidate *models.LaunchCandidate, launchSource models.LaunchSource, mode models.SnipeMode) Result {
	budget, ok := modeTimeout[mode]
	if !ok {
		budget = modeTimeout[models.SnipeModeBalanced]
	}

	var input Input
	provenance := "skipped"
	if budget > 0 && s.fetcher != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, budget)
		input = s.fetcher.Fetch(fetchCtx, candidate, budget)
		cancel()
		provenance = "fetched"
	}
	input.Mint = candidate.Mint
	input.LaunchSource = string(launchSource)

	result := Result{Scale: Scale(), SnipeMode: string(mode), MetadataUsed: provenance}

	if reason := EvaluateHardStops(input, launchSource, s.strictMetadataHardStops); reason != "" {
		result.HardStop = reason
		result.Decision = DecisionSkip
		result.Reasons = append(result.Reasons, reason)
		return result
	}

	categories := scoreCategories(input, s.strictMetadataHardStops)
	var total float64
	for _, c := range categories {
		total += c.Points
		if c.Points < c.Max*0.5 {
			result.Reasons = append(result.Reasons, string(c.Category)+": "+c.Reason)
		}
	}

	result.Total = total
	result.PerCategory = categories
	result.Decision = decide(total, result.Scale, s.minQualificationScore)
	return result
}

// decide buckets a total against the configured floor (spec.md §9 open question: the
// min_qualification_score floor, historically hardcoded at 23, is config here).
func decide(total, scale, minQualificationScore float64) Decision {
	switch {
	case total < minQualificationScore:
		return DecisionSkip
	case total < scale*0.6:
		return DecisionTiny
	case total < scale*0.85:
		return DecisionTradable
	default:
		return DecisionBest
	}
}
