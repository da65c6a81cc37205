// Package solpb extracts Solana mint candidates from free-form text — Telegram
// messages, captions, forwarded posts — for the Bags Telegram parser (spec.md §4.E).
// It is deliberately separate from internal/solutil: solutil serves the Venue Router's
// on-chain primitives (ATA derivation, token program constants), while solpb never
// touches the chain, only text.
package solpb

import (
	"regexp"
	"strings"

	"github.com/mr-tron/base58"
)

// labelRe matches "Mint:", "CA:" or "Contract:" followed by a token, case-insensitively.
var labelRe = regexp.MustCompile(`(?im)^\s*(?:mint|ca|contract)\s*:\s*([1-9A-HJ-NP-Za-km-z]{32,44})\s*$`)

// urlRes matches the token-address path segment of known explorer/aggregator URLs.
var urlRes = []*regexp.Regexp{
	regexp.MustCompile(`dexscreener\.com/solana/([1-9A-HJ-NP-Za-km-z]{32,44})`),
	regexp.MustCompile(`solscan\.io/token/([1-9A-HJ-NP-Za-km-z]{32,44})`),
	regexp.MustCompile(`birdeye\.so/token/([1-9A-HJ-NP-Za-km-z]{32,44})`),
}

// bareCandidateRe matches a standalone base58-looking token anywhere on a line.
var bareCandidateRe = regexp.MustCompile(`[1-9A-HJ-NP-Za-km-z]{32,44}`)

// symbolDollarRe matches a $SYMBOL ticker form; symbolParenRe matches (SYMBOL).
var symbolDollarRe = regexp.MustCompile(`\$([A-Za-z][A-Za-z0-9]{1,14})\b`)
var symbolParenRe = regexp.MustCompile(`\(([A-Z][A-Z0-9]{1,14})\)`)
var nameLabelRe = regexp.MustCompile(`(?im)^\s*name\s*:\s*(.+?)\s*$`)

// IsBase58Mint reports whether s is a plausible 32-44 char base58 string decoding to
// exactly 32 bytes, matching a Solana pubkey's on-wire length.
func IsBase58Mint(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	decoded, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(decoded) == 32
}

// ExtractSymbol pulls a ticker from $SYMBOL or (SYMBOL) forms, uppercased. Empty if absent.
func ExtractSymbol(text string) string {
	if m := symbolDollarRe.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := symbolParenRe.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

// ExtractName pulls a "Name:" labelled value. Empty if absent.
func ExtractName(text string) string {
	if m := nameLabelRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// MintCandidates returns every distinct mint candidate found in text via labelled forms
// and known explorer URL patterns (both must decode to a 32-byte key), and bare 32–44
// character base58 runs on any line that is not a labelled line — in that priority order, but all are returned so the caller can apply its own ambiguity
// policy (spec.md §4.E Bags parser step 3: fail closed on more than one unlabelled candidate).
func MintCandidates(text string) (labelled []string, fromURL []string, bare []string) {
	for _, m := range labelRe.FindAllStringSubmatch(text, -1) {
		if IsBase58Mint(m[1]) {
			labelled = append(labelled, m[1])
		}
	}

	for _, re := range urlRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if IsBase58Mint(m[1]) {
				fromURL = append(fromURL, m[1])
			}
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if labelRe.MatchString(line) {
			continue
		}
		for _, cand := range bareCandidateRe.FindAllString(line, -1) {
			bare = append(bare, cand)
		}
	}

	return dedup(labelled), dedup(fromURL), dedup(bare)
}

func dedup(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
