package venue

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"raptor/internal/raptorerr"
	"raptor/internal/solutil"
)

// Jupiter's quote/swap REST contract, adapted from the teacher's jupiter_client.go
// (ares_api/internal/trading) into the venue that owns POST_GRADUATION pricing.
const (
	jupiterQuoteEndpoint = "/v6/quote"
	jupiterSwapEndpoint  = "/v6/swap"
	solMintAddress       = "So11111111111111111111111111111111111111112"
)

type jupiterQuoteResponse struct {
	InputMint            string `json:"inputMint"`
	InAmount              string `json:"inAmount"`
	OutputMint            string `json:"outputMint"`
	OutAmount             string `json:"outAmount"`
	PriceImpactPct        string `json:"priceImpactPct"`
	OtherAmountThreshold  string `json:"otherAmountThreshold"`
	SlippageBps           int    `json:"slippageBps"`
	RoutePlan             []struct {
		SwapInfo struct {
			AmmKey string `json:"ammKey"`
			Label  string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
}

type jupiterSwapRequest struct {
	QuoteResponse             jupiterQuoteResponse `json:"quoteResponse"`
	UserPublicKey             string               `json:"userPublicKey"`
	WrapAndUnwrapSol          bool                 `json:"wrapAndUnwrapSol"`
	PrioritizationFeeLamports *uint64              `json:"prioritizationFeeLamports,omitempty"`
}

type jupiterSwapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// AmmRouter fills swaps against a venue aggregator (Jupiter) once a mint has graduated to
// POST_GRADUATION (spec.md §4.C). It is the venue used for every PumpSwap/AMM pool trade.
type AmmRouter struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

func NewAmmRouter(baseURL, apiKey string) *AmmRouter {
	return &AmmRouter{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     apiKey,
	}
}

func (a *AmmRouter) Name() string { return "amm_pool" }

func (a *AmmRouter) Quote(ctx context.Context, intent SwapIntent) (Quote, error) {
	inputMint, outputMint, amount := solMintAddress, intent.Mint.String(), intent.AmountSOL
	if intent.Side == "SELL" {
		inputMint, outputMint, amount = intent.Mint.String(), solMintAddress, intent.AmountTokens
	}

	lamports := amount.Mul(decimal.NewFromInt(solutil.LamportsPerSOL)).IntPart()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+jupiterQuoteEndpoint, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("build jupiter quote request: %w", err)
	}
	q := req.URL.Query()
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", fmt.Sprintf("%d", lamports))
	q.Set("slippageBps", fmt.Sprintf("%d", intent.SlippageBps))
	req.URL.RawQuery = q.Encode()
	a.applyAuth(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return Quote{}, raptorerr.Wrap(raptorerr.CodeQuoteFailed, "jupiter quote request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, raptorerr.New(raptorerr.CodeQuoteFailed, fmt.Sprintf("jupiter quote returned %d", resp.StatusCode))
	}

	var jq jupiterQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&jq); err != nil {
		return Quote{}, raptorerr.Wrap(raptorerr.CodeQuoteFailed, "decode jupiter quote", err)
	}
	if len(jq.RoutePlan) == 0 {
		return Quote{}, raptorerr.New(raptorerr.CodeNoLiquidity, "jupiter returned no route")
	}

	inAmt, _ := decimal.NewFromString(jq.InAmount)
	outAmt, _ := decimal.NewFromString(jq.OutAmount)
	impact, _ := decimal.NewFromString(jq.PriceImpactPct)

	var price decimal.Decimal
	if !outAmt.IsZero() {
		price = inAmt.Div(outAmt)
	}

	quote := Quote{Venue: a.Name(), InAmount: inAmt, OutAmount: outAmt, PricePerToken: price, PriceImpactPct: impact}
	return quote, nil
}

// Build requests the serialized swap transaction from Jupiter's /v6/swap endpoint. Jupiter
// returns a base64-encoded, partially-signed transaction; the signing service (outside this
// package) completes and submits it, matching the flow the execution engine expects from
// every SwapRouter.
func (a *AmmRouter) Build(ctx context.Context, intent SwapIntent, quote Quote) (UnsignedTx, error) {
	jq := jupiterQuoteResponse{
		InputMint:  solMintAddress,
		OutputMint: intent.Mint.String(),
		InAmount:   quote.InAmount.StringFixed(0),
		OutAmount:  quote.OutAmount.StringFixed(0),
	}
	if intent.Side == "SELL" {
		jq.InputMint, jq.OutputMint = intent.Mint.String(), solMintAddress
	}

	swapReq := jupiterSwapRequest{
		QuoteResponse:    jq,
		UserPublicKey:    intent.Owner.String(),
		WrapAndUnwrapSol: true,
	}
	// Jupiter assembles and serializes the transaction itself, so the router cannot splice
	// in a ComputeBudget instruction the way the bonding curve router does; its own
	// prioritizationFeeLamports field is the documented way to carry the same budget
	// through (spec.md §4.C).
	if intent.PriorityFeeLamports > 0 {
		fee := intent.PriorityFeeLamports
		swapReq.PrioritizationFeeLamports = &fee
	}

	body, err := json.Marshal(swapReq)
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("marshal jupiter swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+jupiterSwapEndpoint, bytes.NewReader(body))
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("build jupiter swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	a.applyAuth(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return UnsignedTx{}, raptorerr.Wrap(raptorerr.CodeQuoteFailed, "jupiter swap request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return UnsignedTx{}, raptorerr.New(raptorerr.CodeQuoteFailed, fmt.Sprintf("jupiter swap returned %d", resp.StatusCode))
	}

	var js jupiterSwapResponse
	if err := json.NewDecoder(resp.Body).Decode(&js); err != nil {
		return UnsignedTx{}, raptorerr.Wrap(raptorerr.CodeQuoteFailed, "decode jupiter swap response", err)
	}

	raw, err := base64.StdEncoding.DecodeString(js.SwapTransaction)
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("decode jupiter swap transaction: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("deserialize jupiter swap transaction: %w", err)
	}

	return UnsignedTx{Venue: a.Name(), Transaction: tx, Quote: quote}, nil
}

func (a *AmmRouter) applyAuth(req *http.Request) {
	if a.apiKey != "" {
		req.Header.Set("x-api-key", a.apiKey)
	}
}
