package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// pumpRESTResponse is the subset of pump.pro's coin metadata response the discovery
// source cares about (spec.md §4.E item 4, first fallback in the metadata chain).
type pumpRESTResponse struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	URI    string `json:"uri"`
}

var pumpRESTHTTPClient = &http.Client{Timeout: pumpRESTTimeout}

// fetchPumpRESTMetadata calls the pump.pro metadata REST endpoint for a single mint.
// Callers are expected to wrap this in a circuit breaker (spec.md §4.E item 4) since the
// endpoint is a best-effort third-party fallback, not a primary data source.
func fetchPumpRESTMetadata(ctx context.Context, restBase, mint string) (proMetadata, error) {
	url := fmt.Sprintf("%s/coins/%s", restBase, mint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return proMetadata{}, fmt.Errorf("build pump rest request: %w", err)
	}

	resp, err := pumpRESTHTTPClient.Do(req)
	if err != nil {
		return proMetadata{}, fmt.Errorf("pump rest request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return proMetadata{}, fmt.Errorf("pump rest error %d: %s", resp.StatusCode, string(body))
	}

	var body pumpRESTResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return proMetadata{}, fmt.Errorf("decode pump rest response: %w", err)
	}
	if body.Name == "" && body.Symbol == "" {
		return proMetadata{}, fmt.Errorf("pump rest response missing name and symbol")
	}

	return proMetadata{Name: body.Name, Symbol: body.Symbol, URI: body.URI}, nil
}
