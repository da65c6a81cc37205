package discovery

import (
	"context"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"raptor/internal/registry"
	"raptor/internal/rpcfanout"
)

// metaplexMetadataHeader is the leading portion of a Metaplex Token Metadata account
// (spec.md §4.E item 4, GLOSSARY PDA): key, update authority, mint, then the on-chain
// Data struct's name/symbol/uri. Everything after uri (seller fee, creators, collection,
// uses...) is irrelevant here and left undecoded.
type metaplexMetadataHeader struct {
	Key             uint8
	UpdateAuthority solana.PublicKey
	Mint            solana.PublicKey
	Name            string
	Symbol          string
	URI             string
}

// fetchMetaplexOnchain derives the Metaplex Metadata PDA for mint and decodes its
// name/symbol/uri directly from account data, used when the pump.pro REST fallback is
// unavailable (spec.md §4.E item 4).
func fetchMetaplexOnchain(ctx context.Context, fanout *rpcfanout.Fanout, mint solana.PublicKey) (name, symbol, uri string, err error) {
	pda, _, err := registry.DerivePDA([][]byte{
		[]byte("metadata"),
		registry.MetaplexMetadataProgramID.Bytes(),
		mint.Bytes(),
	}, registry.MetaplexMetadataProgramID)
	if err != nil {
		return "", "", "", fmt.Errorf("derive metadata pda: %w", err)
	}

	raw, callErr := fanout.Call(ctx, func(ctx context.Context, client *rpc.Client) (interface{}, error) {
		return client.GetAccountInfoWithOpts(ctx, pda, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: rpc.CommitmentConfirmed,
		})
	})
	if callErr != nil {
		return "", "", "", fmt.Errorf("fetch metadata account: %w", callErr)
	}

	result, ok := raw.(*rpc.GetAccountInfoResult)
	if !ok || result == nil || result.Value == nil {
		return "", "", "", fmt.Errorf("metadata account not found for mint %s", mint.String())
	}

	data := result.Value.Data.GetBinary()
	var header metaplexMetadataHeader
	if err := bin.NewBorshDecoder(data).Decode(&header); err != nil {
		return "", "", "", fmt.Errorf("decode metadata account: %w", err)
	}

	return trimMetaplexPadding(header.Name), trimMetaplexPadding(header.Symbol), trimMetaplexPadding(header.URI), nil
}

// trimMetaplexPadding strips the trailing NUL padding Metaplex writes to fill each
// field's fixed on-chain capacity (MAX_NAME_LENGTH etc).
func trimMetaplexPadding(s string) string {
	return strings.TrimRight(s, "\x00")
}
