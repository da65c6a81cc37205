// Package rpcfanout is the RPC Fan-out component (spec.md §4.A): it broadcasts a signed
// transaction to every configured Solana RPC endpoint in parallel and returns the first
// success, while tracking per-endpoint health. Adapted from the teacher's exponential
// backoff/health idiom (internal/concurrency) generalized to a pool of RPC clients.
package rpcfanout

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/time/rate"

	"raptor/internal/logger"
	"raptor/internal/raptorerr"
)

// publicFallbacks is used only when no endpoints are configured via environment
// (spec.md §4.A "degrades to public fallbacks and must emit a warning").
var publicFallbacks = []string{
	"https://api.mainnet-beta.solana.com",
}

type endpoint struct {
	url     string
	client  *rpc.Client
	limiter *rate.Limiter

	mu          sync.Mutex
	healthy     bool
	lastError   error
	lastLatency time.Duration
	markedUnhealthyAt time.Time
}

// EndpointHealth is a point-in-time snapshot exposed for operator telemetry
// (SPEC_FULL.md §5 supplemented feature).
type EndpointHealth struct {
	Endpoint          string
	Healthy           bool
	LastError         string
	LastLatency       time.Duration
	MarkedUnhealthyAt time.Time
}

// Fanout broadcasts signed transactions across a pool of RPC endpoints.
type Fanout struct {
	endpoints []*endpoint
	log       *logger.Logger

	resetInterval time.Duration
	stop          chan struct{}
}

// New builds a Fanout from the configured endpoint list (priority order). An empty list
// degrades to the public fallback set and logs a warning (spec.md §4.A).
func New(urls []string, log *logger.Logger) *Fanout {
	if len(urls) == 0 {
		log.Warn("no SOLANA_RPC_1..3 configured, degrading to public fallback endpoints")
		urls = publicFallbacks
	}

	f := &Fanout{log: log, resetInterval: 2 * time.Minute, stop: make(chan struct{})}
	for _, u := range urls {
		f.endpoints = append(f.endpoints, &endpoint{
			url:     u,
			client:  rpc.New(u),
			limiter: rate.NewLimiter(rate.Limit(20), 20),
			healthy: true,
		})
	}

	go f.periodicReset()
	return f
}

// Close stops the background health-reset loop.
func (f *Fanout) Close() { close(f.stop) }

func (f *Fanout) periodicReset() {
	ticker := time.NewTicker(f.resetInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, ep := range f.endpoints {
				ep.mu.Lock()
				if !ep.healthy {
					ep.healthy = true
					f.log.Info("endpoint health reset", "endpoint", ep.url)
				}
				ep.mu.Unlock()
			}
		case <-f.stop:
			return
		}
	}
}

// BroadcastResult is what Broadcast returns on success.
type BroadcastResult struct {
	Signature solana.Signature
	Endpoint  string
	Latency   time.Duration
}

// Broadcast launches one send per healthy endpoint and returns as soon as any yields a
// signature, while still collecting every per-endpoint outcome for telemetry
// (spec.md §4.A). Fails with ALL_ENDPOINTS_FAILED only when every endpoint errors or
// times out.
func (f *Fanout) Broadcast(ctx context.Context, tx *solana.Transaction, timeout time.Duration) (*BroadcastResult, error) {
	healthy := f.healthyEndpoints()
	if len(healthy) == 0 {
		healthy = f.endpoints // all marked unhealthy: try anyway rather than refuse outright
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result *BroadcastResult
		err    error
	}
	results := make(chan outcome, len(healthy))

	for _, ep := range healthy {
		ep := ep
		go func() {
			start := time.Now()
			if err := ep.limiter.Wait(ctx); err != nil {
				results <- outcome{err: err}
				return
			}
			sig, err := ep.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
				SkipPreflight:       false,
				PreflightCommitment: rpc.CommitmentConfirmed,
				MaxRetries:          uintPtr(3),
			})
			latency := time.Since(start)
			ep.recordOutcome(err, latency)
			if err != nil {
				results <- outcome{err: err}
				return
			}
			results <- outcome{result: &BroadcastResult{Signature: sig, Endpoint: ep.url, Latency: latency}}
		}()
	}

	var lastErr error
	for i := 0; i < len(healthy); i++ {
		select {
		case o := <-results:
			if o.err == nil {
				return o.result, nil
			}
			lastErr = o.err
		case <-ctx.Done():
			return nil, raptorerr.Wrap(raptorerr.CodeAllEndpointsFailed, "broadcast deadline exceeded", ctx.Err())
		}
	}

	return nil, raptorerr.Wrap(raptorerr.CodeAllEndpointsFailed, "all endpoints failed", lastErr)
}

// Call performs a single-endpoint fallback chain in priority order (spec.md §4.A rpc_call).
func (f *Fanout) Call(ctx context.Context, fn func(ctx context.Context, client *rpc.Client) (interface{}, error)) (interface{}, error) {
	var lastErr error
	for _, ep := range f.orderedEndpoints() {
		start := time.Now()
		v, err := fn(ctx, ep.client)
		ep.recordOutcome(err, time.Since(start))
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	return nil, raptorerr.Wrap(raptorerr.CodeRPCError, "all endpoints failed single-call chain", lastErr)
}

func (ep *endpoint) recordOutcome(err error, latency time.Duration) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.lastLatency = latency
	if err != nil {
		ep.lastError = err
		if ep.healthy {
			ep.healthy = false
			ep.markedUnhealthyAt = time.Now()
		}
	}
}

func (f *Fanout) healthyEndpoints() []*endpoint {
	var out []*endpoint
	for _, ep := range f.endpoints {
		ep.mu.Lock()
		h := ep.healthy
		ep.mu.Unlock()
		if h {
			out = append(out, ep)
		}
	}
	return out
}

func (f *Fanout) orderedEndpoints() []*endpoint {
	out := make([]*endpoint, len(f.endpoints))
	copy(out, f.endpoints)
	return out
}

// Health returns a snapshot of every endpoint's health for operator telemetry.
func (f *Fanout) Health() []EndpointHealth {
	out := make([]EndpointHealth, 0, len(f.endpoints))
	for _, ep := range f.endpoints {
		ep.mu.Lock()
		h := EndpointHealth{
			Endpoint:          ep.url,
			Healthy:           ep.healthy,
			LastLatency:       ep.lastLatency,
			MarkedUnhealthyAt: ep.markedUnhealthyAt,
		}
		if ep.lastError != nil {
			h.LastError = ep.lastError.Error()
		}
		ep.mu.Unlock()
		out = append(out, h)
	}
	return out
}

// RawClient exposes one underlying *rpc.Client for callers needing a method Broadcast
// doesn't cover (getAccountInfo, simulateTransaction, ...). It picks the first healthy
// endpoint, falling back to the first configured one.
func (f *Fanout) RawClient() *rpc.Client {
	for _, ep := range f.endpoints {
		ep.mu.Lock()
		h := ep.healthy
		ep.mu.Unlock()
		if h {
			return ep.client
		}
	}
	return f.endpoints[0].client
}

func uintPtr(v uint) *uint { return &v }
