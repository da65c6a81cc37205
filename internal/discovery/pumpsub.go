package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"

	"raptor/internal/concurrency"
	"raptor/internal/interfaces/repository"
	"raptor/internal/logger"
	"raptor/internal/models"
	"raptor/internal/registry"
	"raptor/internal/rpcfanout"
)

const (
	txFetchRetries  = 3
	txFetchBackoff  = 500 * time.Millisecond
	metaplexRetries = 3
	metaplexBackoff = 500 * time.Millisecond
	pumpRESTTimeout = 3 * time.Second
)

// logsNotification mirrors the logsSubscribe push shape (spec.md §4.E).
type logsNotification struct {
	Method string `json:"method"`
	Params struct {
		Subscription int `json:"subscription"`
		Result       struct {
			Value struct {
				Signature string      `json:"signature"`
				Err       interface{} `json:"err"`
				Logs      []string    `json:"logs"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// subscribeConfirmation is the one-shot reply to the logsSubscribe request itself.
type subscribeConfirmation struct {
	ID     int `json:"id"`
	Result int `json:"result"`
}

func logsSubscribeRequest(id int, programID solana.PublicKey) map[string]interface{} {
	return map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "logsSubscribe",
		"params": []interface{}{
			map[string]interface{}{"mentions": []string{programID.String()}},
			map[string]interface{}{"commitment": "confirmed"},
		},
	}
}

// PumpSubscriber is the pump.fun / pump.pro WebSocket log subscriber (spec.md §4.E).
type PumpSubscriber struct {
	fanout      *rpcfanout.Fanout
	candidates  repository.LaunchCandidateRepository
	log         *logger.Logger
	restBase    string
	restBreaker *concurrency.CircuitBreaker
	dedup       *sigDedup

	classic *wsSubscriber
	pro     *wsSubscriber
}

func NewPumpSubscriber(wsURL string, fanout *rpcfanout.Fanout, candidates repository.LaunchCandidateRepository, restBase string, log *logger.Logger) *PumpSubscriber {
	p := &PumpSubscriber{
		fanout:     fanout,
		candidates: candidates,
		log:        log,
		restBase:   restBase,
		dedup:      newSigDedup(4096),
		restBreaker: concurrency.NewCircuitBreaker(concurrency.CircuitBreakerConfig{
			Name:             "pump_pro_metadata_rest",
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
		}),
	}
	p.classic = newWSSubscriber("pumpfun_classic", wsURL, logsSubscribeRequest(1, registry.PumpFunProgramID), log, p.handleMessage)
	p.pro = newWSSubscriber("pumpfun_pro", wsURL, logsSubscribeRequest(2, registry.PumpProProgramID), log, p.handleMessage)
	return p
}

// Run blocks until ctx is cancelled, running both program subscriptions concurrently.
func (p *PumpSubscriber) Run(ctx context.Context) {
	done := make(chan struct{}, 2)
	go func() { p.classic.run(ctx); done <- struct{}{} }()
	go func() { p.pro.run(ctx); done <- struct{}{} }()
	<-done
	<-done
}

func (p *PumpSubscriber) handleMessage(ctx context.Context, raw []byte) {
	var confirm subscribeConfirmation
	if err := json.Unmarshal(raw, &confirm); err == nil && confirm.Result != 0 {
		p.log.Info("pump logsSubscribe confirmed", "subscription_id", confirm.Result)
		return
	}

	var notif logsNotification
	if err := json.Unmarshal(raw, &notif); err != nil || notif.Method != "logsNotification" {
		return
	}
	if notif.Params.Result.Value.Err != nil {
		return
	}
	sig, err := solana.SignatureFromBase58(notif.Params.Result.Value.Signature)
	if err != nil {
		return
	}
	if p.dedup.seenOrAdd(sig.String()) {
		return
	}

	go p.processSignature(ctx, sig)
}

// processSignature is spec.md §4.E's pump log subscriber steps 1-5.
func (p *PumpSubscriber) processSignature(ctx context.Context, sig solana.Signature) {
	result, err := p.fetchTransaction(ctx, sig)
	if err != nil {
		p.log.Warn("pump tx fetch failed", "signature", sig.String(), "error", err.Error())
		return
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		p.log.Warn("pump tx decode failed", "signature", sig.String(), "error", err.Error())
		return
	}

	keys := append(solana.PublicKeySlice{}, tx.Message.AccountKeys...)
	if result.Meta != nil {
		keys = append(keys, result.Meta.LoadedAddresses.Writable...)
		keys = append(keys, result.Meta.LoadedAddresses.ReadOnly...)
	}

	for _, instr := range tx.Message.Instructions {
		if int(instr.ProgramIDIndex) >= len(keys) {
			continue
		}
		programID := keys[instr.ProgramIDIndex]
		raw, err := base58.Decode(instr.Data.String())
		if err != nil || len(raw) < 8 {
			continue
		}
		var disc [8]byte
		copy(disc[:], raw[:8])

		ident, ok := registry.IdentifyInstruction(programID, disc)
		if !ok {
			continue
		}

		mint, ok := registry.MintFromCreateInstruction(keys, instr.Accounts)
		if !ok {
			p.log.Warn("pump create instruction missing mint account", "signature", sig.String(), "kind", string(ident.Kind))
			continue
		}

		switch ident.Kind {
		case registry.InstructionPumpCreate, registry.InstructionPumpCreateV2:
			p.emitClassicCreate(ctx, sig, mint, raw, ident.Kind == registry.InstructionPumpCreateV2)
		case registry.InstructionPumpProCreate:
			p.emitProCreate(ctx, sig, mint)
		}
	}
}

func (p *PumpSubscriber) fetchTransaction(ctx context.Context, sig solana.Signature) (*rpc.GetTransactionResult, error) {
	version := uint8(0)
	var lastErr error
	for attempt := 0; attempt < txFetchRetries; attempt++ {
		raw, err := p.fanout.Call(ctx, func(ctx context.Context, client *rpc.Client) (interface{}, error) {
			return client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
				Encoding:                       solana.EncodingBase64,
				Commitment:                     rpc.CommitmentConfirmed,
				MaxSupportedTransactionVersion: &version,
			})
		})
		if err == nil {
			if result, ok := raw.(*rpc.GetTransactionResult); ok && result != nil {
				return result, nil
			}
		}
		lastErr = err
		time.Sleep(txFetchBackoff)
	}
	return nil, lastErr
}

// pumpCreateArgs is the classic pump.fun `create`/`create_v2` instruction layout
// (spec.md §4.E item 3): name, symbol, uri, and an optional Token-2022 mayhem-mode flag
// trailing the three borsh strings.
type pumpCreateArgs struct {
	Name   string
	Symbol string
	URI    string
}

func (p *PumpSubscriber) emitClassicCreate(ctx context.Context, sig solana.Signature, mint solana.PublicKey, raw []byte, isV2 bool) {
	decoder := bin.NewBorshDecoder(raw[8:])
	var args pumpCreateArgs
	if err := decoder.Decode(&args); err != nil {
		p.log.Warn("pump create args decode failed", "signature", sig.String(), "error", err.Error())
		return
	}
	mayhem := false
	if rest := raw[8+decoder.Position():]; len(rest) > 0 {
		mayhem = rest[0] != 0
	}

	payload := map[string]interface{}{
		"signature":       sig.String(),
		"name":            args.Name,
		"symbol":          args.Symbol,
		"uri":             args.URI,
		"is_token2022":    isV2,
		"is_mayhem_mode":  mayhem,
		"metadata_source": "inline",
	}
	p.upsert(ctx, mint.String(), args.Symbol, args.Name, payload)
}

func (p *PumpSubscriber) emitProCreate(ctx context.Context, sig solana.Signature, mint solana.PublicKey) {
	meta, provenance := p.resolveProMetadata(ctx, mint)
	payload := map[string]interface{}{
		"signature":       sig.String(),
		"name":            meta.Name,
		"symbol":          meta.Symbol,
		"uri":             meta.URI,
		"metadata_source": provenance,
	}
	p.upsert(ctx, mint.String(), meta.Symbol, meta.Name, payload)
}

type proMetadata struct {
	Name   string
	Symbol string
	URI    string
}

// resolveProMetadata is spec.md §4.E item 4's fallback chain: REST -> on-chain Metaplex
// PDA -> synthetic. Every fallback is tagged so a candidate's metadata provenance is
// always known, never silently assumed.
func (p *PumpSubscriber) resolveProMetadata(ctx context.Context, mint solana.PublicKey) (proMetadata, string) {
	if p.restBase != "" {
		if meta, err := p.fetchRESTMetadata(ctx, mint); err == nil {
			return meta, "rest"
		}
	}

	if meta, err := p.fetchMetaplexMetadata(ctx, mint); err == nil {
		return meta, "onchain_metaplex"
	}

	mintStr := mint.String()
	short := mintStr
	if len(short) > 6 {
		short = short[:6]
	}
	four := mintStr
	if len(four) > 4 {
		four = four[:4]
	}
	return proMetadata{
		Name:   fmt.Sprintf("pump.pro-%s", short),
		Symbol: four,
		URI:    "",
	}, "synthetic"
}

func (p *PumpSubscriber) fetchRESTMetadata(ctx context.Context, mint solana.PublicKey) (proMetadata, error) {
	var meta proMetadata
	err := p.restBreaker.Call(func() error {
		reqCtx, cancel := context.WithTimeout(ctx, pumpRESTTimeout)
		defer cancel()
		body, err := fetchPumpRESTMetadata(reqCtx, p.restBase, mint.String())
		if err != nil {
			return err
		}
		meta = body
		return nil
	})
	return meta, err
}

func (p *PumpSubscriber) fetchMetaplexMetadata(ctx context.Context, mint solana.PublicKey) (proMetadata, error) {
	var lastErr error
	for attempt := 0; attempt < metaplexRetries; attempt++ {
		name, symbol, uri, err := fetchMetaplexOnchain(ctx, p.fanout, mint)
		if err == nil {
			return proMetadata{Name: name, Symbol: symbol, URI: uri}, nil
		}
		lastErr = err
		time.Sleep(metaplexBackoff)
	}
	return proMetadata{}, lastErr
}

func (p *PumpSubscriber) upsert(ctx context.Context, mint, symbol, name string, payload map[string]interface{}) {
	raw, _ := json.Marshal(payload)
	candidate := &models.LaunchCandidate{
		Mint:            mint,
		Symbol:          symbol,
		Name:            name,
		LaunchSource:    models.SourcePumpfun,
		DiscoveryMethod: models.DiscoveryOnchain,
		FirstSeenAt:     time.Now(),
		RawPayload:      models.JSONB{"decoded": json.RawMessage(raw)},
	}
	if _, err := p.candidates.Upsert(ctx, candidate); err != nil {
		p.log.Error("pump candidate upsert failed", err, "mint", mint)
	}
}
