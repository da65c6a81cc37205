// Package raptorerr defines the typed error taxonomy of spec.md §7. Business code
// switches on Code, never on error-string substrings.
package raptorerr

import "fmt"

type Code string

const (
	// Input — never retried.
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeInvalidAddress     Code = "INVALID_ADDRESS"
	CodeAmountOutOfBounds  Code = "AMOUNT_OUT_OF_BOUNDS"

	// Policy — not retried automatically.
	CodeKillSwitch          Code = "KILL_SWITCH"
	CodeMaxPositionsReached Code = "MAX_POSITIONS_REACHED"
	CodeRateLimit           Code = "RATE_LIMIT"
	CodeAllowlistMiss       Code = "ALLOWLIST_MISS"

	// Market — HONEYPOT is fatal, others retryable by the opportunity loop on a fresh candidate.
	CodeNoLiquidity      Code = "NO_LIQUIDITY"
	CodeQuoteFailed      Code = "QUOTE_FAILED"
	CodeHoneypotDetected Code = "HONEYPOT_DETECTED"

	// Concurrency — the first two are benign idempotent replays.
	CodeConcurrentOperation   Code = "CONCURRENT_OPERATION"
	CodeAlreadyExecuted       Code = "ALREADY_EXECUTED"
	CodeTriggerStateMismatch  Code = "TRIGGER_STATE_MISMATCH"

	// Execution — retryable only with a new idempotency key.
	CodeSimulationFailed     Code = "SIMULATION_FAILED"
	CodeBroadcastFailed      Code = "BROADCAST_FAILED"
	CodeConfirmationTimeout  Code = "CONFIRMATION_TIMEOUT"
	CodeTransactionReverted  Code = "TRANSACTION_REVERTED"

	// Infrastructure.
	CodeRPCError          Code = "RPC_ERROR"
	CodeDatabaseError     Code = "DATABASE_ERROR"
	CodeSignerError       Code = "SIGNER_ERROR"
	CodeAllEndpointsFailed Code = "ALL_ENDPOINTS_FAILED"

	// Discovery-specific (spec.md §4.E Bags parser).
	CodeAmbiguousMintCandidates Code = "AMBIGUOUS_MINT_CANDIDATES"

	// Venue Router (spec.md §4.C).
	CodeLifecycleUnknown Code = "LIFECYCLE_UNKNOWN"
)

// fatal never gets a new idempotency key and a retry attempt.
var fatal = map[Code]bool{
	CodeInvalidInput:       true,
	CodeHoneypotDetected:   true,
	CodeKillSwitch:         true,
	CodeInvalidAddress:     true,
	CodeAmountOutOfBounds:  true,
}

// Error is the structured error carried across component boundaries.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the same semantic intent may be retried under a fresh
// idempotency key (spec.md §4.D "Fatal errors" / "Retryable").
func (e *Error) Retryable() bool {
	return !fatal[e.Code]
}

// CodeOf extracts the Code from err, defaulting to "" when err isn't a *Error.
func CodeOf(err error) Code {
	var rErr *Error
	if asError(err, &rErr) {
		return rErr.Code
	}
	return ""
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
