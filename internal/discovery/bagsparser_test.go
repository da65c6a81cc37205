package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raptor/internal/raptorerr"
)

// TestParseBagsMessage_LabelledMint mirrors spec.md §8 scenario 1 literally.
func TestParseBagsMessage_LabelledMint(t *testing.T) {
	msg := "🚀 New Launch: $BAGS\nMint: So11111111111111111111111111111111111111112\nName: Bags Test Token"

	parsed, err := ParseBagsMessage(msg)

	require.NoError(t, err)
	assert.Equal(t, "So11111111111111111111111111111111111111112", parsed.Mint)
	assert.Equal(t, "BAGS", parsed.Symbol)
	assert.Equal(t, "Bags Test Token", parsed.Name)
}

// TestParseBagsMessage_AmbiguousUnlabelled mirrors spec.md §8 scenario 2 literally.
func TestParseBagsMessage_AmbiguousUnlabelled(t *testing.T) {
	msg := "New token spotted\n" +
		"So11111111111111111111111111111111111111112\n" +
		"11111111111111111111111111111111111111112"

	_, err := ParseBagsMessage(msg)

	require.Error(t, err)
	assert.Equal(t, raptorerr.CodeAmbiguousMintCandidates, raptorerr.CodeOf(err))
}

func TestParseBagsMessage_RejectsEmptyMessage(t *testing.T) {
	_, err := ParseBagsMessage("   ")

	require.Error(t, err)
	assert.Equal(t, raptorerr.CodeInvalidInput, raptorerr.CodeOf(err))
}

func TestParseBagsMessage_RejectsNoMintFound(t *testing.T) {
	_, err := ParseBagsMessage("Huge opportunity dropping soon, stay tuned!")

	require.Error(t, err)
	assert.Equal(t, raptorerr.CodeInvalidInput, raptorerr.CodeOf(err))
}

func TestParseBagsMessage_ExtractsMintFromDexscreenerURL(t *testing.T) {
	msg := "Check it out: https://dexscreener.com/solana/So11111111111111111111111111111111111111112"

	parsed, err := ParseBagsMessage(msg)

	require.NoError(t, err)
	assert.Equal(t, "So11111111111111111111111111111111111111112", parsed.Mint)
}

func TestParseBagsMessage_ExtractsSymbolFromParens(t *testing.T) {
	msg := "New launch (BAGS)\nCA: So11111111111111111111111111111111111111112"

	parsed, err := ParseBagsMessage(msg)

	require.NoError(t, err)
	assert.Equal(t, "BAGS", parsed.Symbol)
}

func TestParseBagsMessage_SingleUnlabelledLineIsAccepted(t *testing.T) {
	msg := "gm\nSo11111111111111111111111111111111111111112\nhave fun"

	parsed, err := ParseBagsMessage(msg)

	require.NoError(t, err)
	assert.Equal(t, "So11111111111111111111111111111111111111112", parsed.Mint)
}

func TestParseBagsMessage_RejectsMintWithInvalidLength(t *testing.T) {
	msg := "Mint: tooShortAddress1234567890"

	_, err := ParseBagsMessage(msg)

	require.Error(t, err)
}
