package execution

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"

	"raptor/internal/raptorerr"
)

// Signer is the execution engine's boundary to the external signer service (spec.md §1,
// §4.D step 6). It is strictly scoped to one user's active wallet; the HTTP contract is
// intentionally narrow — sign this exact transaction with that exact pubkey, nothing else.
type Signer interface {
	Sign(ctx context.Context, ownerPubkey solana.PublicKey, unsigned *solana.Transaction) (*solana.Transaction, error)
}

// HTTPSigner posts the base64-encoded unsigned transaction to the configured signer
// service and parses back a fully-signed transaction, matching the REST client idiom
// used elsewhere in this module (venue.AmmRouter's Jupiter client).
type HTTPSigner struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPSigner(baseURL string) *HTTPSigner {
	return &HTTPSigner{baseURL: baseURL, httpClient: &http.Client{Timeout: 5 * time.Second}}
}

type signRequest struct {
	OwnerPubkey string `json:"owner_pubkey"`
	Transaction string `json:"transaction"`
}

type signResponse struct {
	SignedTransaction string `json:"signed_transaction"`
	Error             string `json:"error"`
}

func (s *HTTPSigner) Sign(ctx context.Context, ownerPubkey solana.PublicKey, unsigned *solana.Transaction) (*solana.Transaction, error) {
	raw, err := unsigned.MarshalBinary()
	if err != nil {
		return nil, raptorerr.Wrap(raptorerr.CodeSignerError, "marshal unsigned transaction", err)
	}

	body, err := json.Marshal(signRequest{
		OwnerPubkey: ownerPubkey.String(),
		Transaction: base64.StdEncoding.EncodeToString(raw),
	})
	if err != nil {
		return nil, raptorerr.Wrap(raptorerr.CodeSignerError, "marshal sign request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/sign", bytes.NewReader(body))
	if err != nil {
		return nil, raptorerr.Wrap(raptorerr.CodeSignerError, "build sign request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, raptorerr.Wrap(raptorerr.CodeSignerError, "call signer service", err)
	}
	defer resp.Body.Close()

	var parsed signResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, raptorerr.Wrap(raptorerr.CodeSignerError, "decode signer response", err)
	}
	if resp.StatusCode != http.StatusOK || parsed.Error != "" {
		return nil, raptorerr.New(raptorerr.CodeSignerError, fmt.Sprintf("signer rejected transaction: %s", parsed.Error))
	}

	signedRaw, err := base64.StdEncoding.DecodeString(parsed.SignedTransaction)
	if err != nil {
		return nil, raptorerr.Wrap(raptorerr.CodeSignerError, "decode signed transaction", err)
	}

	signedTx, err := solana.TransactionFromBytes(signedRaw)
	if err != nil {
		return nil, raptorerr.Wrap(raptorerr.CodeSignerError, "unmarshal signed transaction", err)
	}
	return signedTx, nil
}
