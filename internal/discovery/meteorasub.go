package discovery

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"raptor/internal/interfaces/repository"
	"raptor/internal/logger"
	"raptor/internal/models"
	"raptor/internal/registry"
	"raptor/internal/rpcfanout"
)

var logAddressRe = regexp.MustCompile(`[1-9A-HJ-NP-Za-km-z]{32,44}`)

// MeteoraSubscriber is the Meteora DBC subscriber (spec.md §4.E, "Bags post-graduation
// source"): it watches the DBC program for pool-creation instructions and upserts a
// LaunchCandidate tagged as a Bags-sourced, on-chain-discovered launch. Because
// candidates dedup on (mint, launch_source), a prior sighting of the same mint from the
// Bags Telegram parser is naturally cross-referenced — the on-chain pass simply confirms
// the row that already exists rather than creating a duplicate.
type MeteoraSubscriber struct {
	fanout     *rpcfanout.Fanout
	candidates repository.LaunchCandidateRepository
	log        *logger.Logger
	dedup      *sigDedup

	sub *wsSubscriber
}

func NewMeteoraSubscriber(wsURL string, fanout *rpcfanout.Fanout, candidates repository.LaunchCandidateRepository, log *logger.Logger) *MeteoraSubscriber {
	m := &MeteoraSubscriber{
		fanout:     fanout,
		candidates: candidates,
		log:        log,
		dedup:      newSigDedup(4096),
	}
	m.sub = newWSSubscriber("meteora_dbc", wsURL, logsSubscribeRequest(3, registry.MeteoraDBCProgramID), log, m.handleMessage)
	return m
}

// Run blocks until ctx is cancelled.
func (m *MeteoraSubscriber) Run(ctx context.Context) {
	m.sub.run(ctx)
}

func (m *MeteoraSubscriber) handleMessage(ctx context.Context, raw []byte) {
	var confirm subscribeConfirmation
	if err := json.Unmarshal(raw, &confirm); err == nil && confirm.Result != 0 {
		m.log.Info("meteora logsSubscribe confirmed", "subscription_id", confirm.Result)
		return
	}

	var notif logsNotification
	if err := json.Unmarshal(raw, &notif); err != nil || notif.Method != "logsNotification" {
		return
	}
	if notif.Params.Result.Value.Err != nil {
		return
	}
	if !registry.IsMeteoraCreateLog(notif.Params.Result.Value.Logs) {
		return
	}

	sig, err := solana.SignatureFromBase58(notif.Params.Result.Value.Signature)
	if err != nil {
		return
	}
	if m.dedup.seenOrAdd(sig.String()) {
		return
	}

	go m.processSignature(ctx, sig, notif.Params.Result.Value.Logs)
}

// processSignature is spec.md §4.E's DBC handling: fetch the transaction, recover the
// pool and mint addresses, and emit a candidate tagged with the pool address so the
// Venue Router can route post-graduation trades to it directly.
func (m *MeteoraSubscriber) processSignature(ctx context.Context, sig solana.Signature, logs []string) {
	result, err := m.fetchTransaction(ctx, sig)
	if err != nil {
		m.log.Warn("meteora tx fetch failed", "signature", sig.String(), "error", err.Error())
		return
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		m.log.Warn("meteora tx decode failed", "signature", sig.String(), "error", err.Error())
		return
	}

	keys := append(solana.PublicKeySlice{}, tx.Message.AccountKeys...)
	if result.Meta != nil {
		keys = append(keys, result.Meta.LoadedAddresses.Writable...)
		keys = append(keys, result.Meta.LoadedAddresses.ReadOnly...)
	}

	pool, mint, ok := resolvePoolAndMint(keys, logs)
	if !ok {
		m.log.Warn("meteora create instruction missing resolvable pool/mint", "signature", sig.String())
		return
	}

	payload := map[string]interface{}{
		"signature":    sig.String(),
		"bonding_curve": pool.String(),
	}
	m.upsert(ctx, mint.String(), payload)
}

// resolvePoolAndMint picks the pool (first account key after the fee payer that isn't a
// known program ID; account writability is not checked) and the mint (first base58 address seen in
// the logs that differs from the pool), since the pack carries no DBC account-ordering
// IDL to decode this precisely (spec.md §4.B's registry is pinned only for pump.fun/pro).
func resolvePoolAndMint(keys []solana.PublicKey, logs []string) (pool solana.PublicKey, mint solana.PublicKey, ok bool) {
	knownPrograms := map[solana.PublicKey]bool{
		registry.MeteoraDBCProgramID: true,
		solana.SystemProgramID:       true,
		solana.TokenProgramID:        true,
	}
	for i, k := range keys {
		if i == 0 || knownPrograms[k] {
			continue
		}
		pool = k
		ok = true
		break
	}
	if !ok {
		return solana.PublicKey{}, solana.PublicKey{}, false
	}

	for _, line := range logs {
		for _, addr := range logAddressRe.FindAllString(line, -1) {
			candidate, err := solana.PublicKeyFromBase58(addr)
			if err != nil || candidate.Equals(pool) || knownPrograms[candidate] {
				continue
			}
			return pool, candidate, true
		}
	}
	return solana.PublicKey{}, solana.PublicKey{}, false
}

func (m *MeteoraSubscriber) fetchTransaction(ctx context.Context, sig solana.Signature) (*rpc.GetTransactionResult, error) {
	version := uint8(0)
	var lastErr error
	for attempt := 0; attempt < txFetchRetries; attempt++ {
		raw, err := m.fanout.Call(ctx, func(ctx context.Context, client *rpc.Client) (interface{}, error) {
			return client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
				Encoding:                       solana.EncodingBase64,
				Commitment:                     rpc.CommitmentConfirmed,
				MaxSupportedTransactionVersion: &version,
			})
		})
		if err == nil {
			if res, ok := raw.(*rpc.GetTransactionResult); ok && res != nil {
				return res, nil
			}
		}
		lastErr = err
		time.Sleep(txFetchBackoff)
	}
	return nil, lastErr
}

func (m *MeteoraSubscriber) upsert(ctx context.Context, mint string, payload map[string]interface{}) {
	payload["lp_size_sol"] = 0.0
	candidate := &models.LaunchCandidate{
		Mint:            mint,
		LaunchSource:    models.SourceBags,
		DiscoveryMethod: models.DiscoveryOnchain,
		FirstSeenAt:     time.Now(),
		RawPayload:      merge(models.JSONB{"bonding_curve": payload["bonding_curve"]}, payload),
	}
	if _, err := m.candidates.Upsert(ctx, candidate); err != nil {
		m.log.Error("meteora candidate upsert failed", err, "mint", mint)
	}
}

func merge(base models.JSONB, extra map[string]interface{}) models.JSONB {
	for k, v := range extra {
		base[k] = v
	}
	return base
}
