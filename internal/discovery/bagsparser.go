package discovery

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"raptor/internal/interfaces/repository"
	"raptor/internal/logger"
	"raptor/internal/models"
	"raptor/internal/raptorerr"
	"raptor/pkg/solpb"
)

var minMessageLen = 8

// ParsedLaunch is the deterministic result of parsing one Bags Telegram message
// (spec.md §4.E "Bags Telegram parser").
type ParsedLaunch struct {
	Mint   string
	Symbol string
	Name   string
}

// ParseBagsMessage applies spec.md §4.E's five parsing rules in order, failing closed
// whenever the mint cannot be extracted unambiguously. Mirrors spec.md §8 scenarios 1-2
// exactly: a labelled mint line resolves cleanly; two unlabelled base58 candidates on
// separate lines are rejected rather than guessed at.
func ParseBagsMessage(text string) (ParsedLaunch, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minMessageLen {
		return ParsedLaunch{}, raptorerr.New(raptorerr.CodeInvalidInput, "message empty or too short")
	}

	mint, err := extractMint(trimmed)
	if err != nil {
		return ParsedLaunch{}, err
	}

	return ParsedLaunch{
		Mint:   mint,
		Symbol: solpb.ExtractSymbol(trimmed),
		Name:   solpb.ExtractName(trimmed),
	}, nil
}

// extractMint runs solpb.MintCandidates' three extraction strategies in priority order
// (spec.md §4.E item 2): a labelled field wins outright; failing that, a known
// token-explorer URL; failing that, a bare base58 candidate, which fails closed the
// moment more than one distinct bare candidate is found (spec.md §4.E item 3).
func extractMint(text string) (string, error) {
	labelled, fromURL, bare := solpb.MintCandidates(text)
	if len(labelled) > 0 {
		return labelled[0], nil
	}
	if len(fromURL) > 0 {
		return fromURL[0], nil
	}
	switch len(bare) {
	case 0:
		return "", raptorerr.New(raptorerr.CodeInvalidInput, "no mint candidate found")
	case 1:
		return bare[0], nil
	default:
		return "", raptorerr.New(raptorerr.CodeAmbiguousMintCandidates, "multiple unlabelled base58 candidates found")
	}
}

// BagsTelegramSource feeds raw channel messages through ParseBagsMessage and upserts
// whatever resolves into a LaunchCandidate. Grounded in the pack's Telegram bot-update
// loop shape (tgbotapi long-poll), but this component only ever reads, never replies.
type BagsTelegramSource struct {
	candidates repository.LaunchCandidateRepository
	log        *logger.Logger
}

func NewBagsTelegramSource(candidates repository.LaunchCandidateRepository, log *logger.Logger) *BagsTelegramSource {
	return &BagsTelegramSource{candidates: candidates, log: log}
}

// HandleMessage parses one inbound Telegram message and upserts the resulting candidate.
// Parse failures (including AMBIGUOUS_MINT_CANDIDATES) are logged and dropped rather than
// surfaced to the caller: a bad message must never stall the channel's read loop.
func (s *BagsTelegramSource) HandleMessage(ctx context.Context, text string) {
	parsed, err := ParseBagsMessage(text)
	if err != nil {
		s.log.Warn("bags telegram message rejected", "reason", raptorerr.CodeOf(err), "error", err.Error())
		return
	}

	candidate := &models.LaunchCandidate{
		Mint:            parsed.Mint,
		Symbol:          parsed.Symbol,
		Name:            parsed.Name,
		LaunchSource:    models.SourceBags,
		DiscoveryMethod: models.DiscoveryTelegram,
		FirstSeenAt:     time.Now(),
		RawPayload:      models.JSONB{"raw_text": text},
	}
	if _, err := s.candidates.Upsert(ctx, candidate); err != nil {
		s.log.Error("bags candidate upsert failed", err, "mint", parsed.Mint)
	}
}

// Run long-polls the configured Bags feed channel and hands each message to
// HandleMessage, grounded in the pack's tgbotapi GetUpdatesChan idiom
// (yohannesjx-sniperterminal's NotificationService listen loop) but read-only: this
// source never replies into the channel, only discovers from it.
func (s *BagsTelegramSource) Run(ctx context.Context, bot *tgbotapi.BotAPI, chatID int64) {
	if bot == nil {
		s.log.Warn("bags telegram source started without a bot token; discovery disabled")
		return
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := bot.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			if chatID != 0 && update.Message.Chat.ID != chatID {
				continue
			}
			s.HandleMessage(ctx, update.Message.Text)
		}
	}
}
