package venue

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	atapkg "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	"raptor/internal/raptorerr"
	"raptor/internal/registry"
	"raptor/internal/solutil"
)

// bondingCurveSellDiscriminator is pump.fun's sell instruction discriminator. It is not in
// the registry's discriminators map because the registry only pins the *create*-family
// instructions it needs to identify from Discovery logs (spec.md §4.B); the sell
// discriminator is needed only here, to build outgoing instructions.
var bondingCurveSellDiscriminator = [8]byte{51, 230, 133, 164, 1, 127, 131, 173}
var bondingCurveBuyDiscriminator = [8]byte{102, 6, 61, 18, 1, 218, 235, 234}

// BondingCurveRouter fills swaps against a pump.fun/pump.pro bonding curve while the mint
// is PRE_GRADUATION (spec.md §4.C). It resolves the fee recipient, derives the bonding
// curve's PDAs, and enforces the 1% min_sol_output floor on sells.
type BondingCurveRouter struct {
	rpcClient    *rpc.Client
	mayhemMode   bool
	feeRecipient solana.PublicKey
}

func NewBondingCurveRouter(rpcClient *rpc.Client, mayhemMode bool, feeRecipient solana.PublicKey) *BondingCurveRouter {
	return &BondingCurveRouter{rpcClient: rpcClient, mayhemMode: mayhemMode, feeRecipient: feeRecipient}
}

func (b *BondingCurveRouter) Name() string { return "bonding_curve" }

// bondingCurvePDA derives the bonding curve account for mint. It never needs the mint's
// token program: the curve PDA's seeds are fixed regardless of whether mint is legacy SPL
// or Token-2022 (spec.md §4.C).
func (b *BondingCurveRouter) bondingCurvePDA(mint solana.PublicKey) (solana.PublicKey, error) {
	bondingCurve, _, err := registry.DerivePDA([][]byte{[]byte("bonding-curve"), mint[:]}, registry.PumpFunProgramID)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return bondingCurve, nil
}

// accountExists reports whether account has been initialized on-chain, used to decide
// whether a create-ATA instruction must be prepended (spec.md §4.C precondition 1).
func (b *BondingCurveRouter) accountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	info, err := b.rpcClient.GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get account info for %s: %w", account, err)
	}
	return info != nil && info.Value != nil, nil
}

// curveState is the subset of the on-chain bonding curve account this router reads to
// price a swap (spec.md §4.C: quotes must reflect the live reserves, never a cached price).
type curveState struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	Complete             bool
}

func (b *BondingCurveRouter) readCurveState(ctx context.Context, bondingCurve solana.PublicKey) (*curveState, error) {
	info, err := b.rpcClient.GetAccountInfo(ctx, bondingCurve)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, raptorerr.New(raptorerr.CodeNoLiquidity, "bonding curve account does not exist")
		}
		return nil, fmt.Errorf("get bonding curve account: %w", err)
	}
	if info == nil || info.Value == nil {
		return nil, raptorerr.New(raptorerr.CodeNoLiquidity, "bonding curve account does not exist")
	}

	data := info.Value.Data.GetBinary()
	// Layout: 8-byte anchor discriminator, then 4 little-endian u64 fields, then a bool.
	if len(data) < 8+4*8+1 {
		return nil, fmt.Errorf("bonding curve account data too short: %d bytes", len(data))
	}
	r := bytes.NewReader(data[8:])
	var s curveState
	var fields [4]uint64
	for i := range fields {
		if err := binary.Read(r, binary.LittleEndian, &fields[i]); err != nil {
			return nil, fmt.Errorf("decode bonding curve reserves: %w", err)
		}
	}
	s.VirtualTokenReserves, s.VirtualSolReserves, s.RealTokenReserves, s.RealSolReserves = fields[0], fields[1], fields[2], fields[3]
	completeByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("decode bonding curve complete flag: %w", err)
	}
	s.Complete = completeByte != 0
	return &s, nil
}

// IsGraduated reports whether mint's bonding curve has completed (spec.md §4.J): a
// missing account is treated as graduated since pump.fun closes the curve account at
// migration, same as an account whose complete flag reads true.
func (b *BondingCurveRouter) IsGraduated(ctx context.Context, mint solana.PublicKey) (bool, error) {
	bondingCurve, err := b.bondingCurvePDA(mint)
	if err != nil {
		return false, err
	}
	state, err := b.readCurveState(ctx, bondingCurve)
	if err != nil {
		if raptorerr.CodeOf(err) == raptorerr.CodeNoLiquidity {
			return true, nil
		}
		return false, err
	}
	return state.Complete, nil
}

// Quote prices a buy or sell against the constant-product curve (virtual reserves),
// matching pump.fun's own pricing function.
func (b *BondingCurveRouter) Quote(ctx context.Context, intent SwapIntent) (Quote, error) {
	bondingCurve, err := b.bondingCurvePDA(intent.Mint)
	if err != nil {
		return Quote{}, err
	}
	state, err := b.readCurveState(ctx, bondingCurve)
	if err != nil {
		return Quote{}, err
	}
	if state.Complete {
		return Quote{}, raptorerr.New(raptorerr.CodeLifecycleUnknown, "bonding curve already graduated, route via AMM")
	}

	virtualSol := decimal.NewFromInt(int64(state.VirtualSolReserves))
	virtualTokens := decimal.NewFromInt(int64(state.VirtualTokenReserves))

	switch intent.Side {
	case "BUY":
		solIn := intent.AmountSOL.Mul(decimal.NewFromInt(solutil.LamportsPerSOL))
		tokensOut := virtualTokens.Mul(solIn).Div(virtualSol.Add(solIn))
		price := solIn.Div(tokensOut)
		return Quote{Venue: b.Name(), InAmount: solIn, OutAmount: tokensOut, PricePerToken: price}, nil
	case "SELL":
		tokensIn := intent.AmountTokens
		solOut := virtualSol.Mul(tokensIn).Div(virtualTokens.Add(tokensIn))
		price := solOut.Div(tokensIn)
		return Quote{Venue: b.Name(), InAmount: tokensIn, OutAmount: solOut, PricePerToken: price}, nil
	default:
		return Quote{}, raptorerr.New(raptorerr.CodeInvalidInput, "unknown swap side "+intent.Side)
	}
}

// Build constructs the unsigned bonding-curve buy/sell instruction using the registry's
// pinned account ordering (spec.md §6). The resolved fee recipient differs under Mayhem
// mode (a higher-fee, higher-priority recipient account).
func (b *BondingCurveRouter) Build(ctx context.Context, intent SwapIntent, quote Quote) (UnsignedTx, error) {
	if intent.Side == "SELL" {
		floor := quote.OutAmount.Mul(decimal.NewFromFloat(0.01)) // 1% floor (spec.md §4.C)
		if intent.MinSOLOutput.GreaterThan(decimal.Zero) && intent.MinSOLOutput.LessThan(floor) {
			return UnsignedTx{}, raptorerr.New(raptorerr.CodeInvalidInput, "min_sol_output below the 1% slippage floor")
		}
	}

	bondingCurve, err := b.bondingCurvePDA(intent.Mint)
	if err != nil {
		return UnsignedTx{}, err
	}

	tokenProgram, err := DetectTokenProgram(ctx, b.rpcClient, intent.Mint)
	if err != nil {
		return UnsignedTx{}, err
	}

	associatedBondingCurve, _, err := solutil.FindAssociatedTokenAddress(bondingCurve, intent.Mint, tokenProgram)
	if err != nil {
		return UnsignedTx{}, err
	}
	associatedUser, _, err := solutil.FindAssociatedTokenAddress(intent.Owner, intent.Mint, tokenProgram)
	if err != nil {
		return UnsignedTx{}, err
	}

	feeRecipient := b.resolveFeeRecipient()

	eventAuthority, _, err := registry.DerivePDA([][]byte{[]byte("__event_authority")}, registry.PumpFunProgramID)
	if err != nil {
		return UnsignedTx{}, err
	}

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(globalAccount, false, false),
		solana.NewAccountMeta(feeRecipient, true, false),
		solana.NewAccountMeta(intent.Mint, false, false),
		solana.NewAccountMeta(bondingCurve, true, false),
		solana.NewAccountMeta(associatedBondingCurve, true, false),
		solana.NewAccountMeta(associatedUser, true, false),
		solana.NewAccountMeta(intent.Owner, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
		solana.NewAccountMeta(tokenProgram, false, false),
		solana.NewAccountMeta(eventAuthority, false, false),
		solana.NewAccountMeta(registry.PumpFunProgramID, false, false),
	}

	data, err := encodeSwapInstructionData(intent)
	if err != nil {
		return UnsignedTx{}, err
	}

	instructions := priorityFeeInstructions(intent.PriorityFeeLamports)

	// On BUY, the user's associated token account may not exist yet; pump.fun's own
	// instruction does not create it, so the router must prepend a create-ATA instruction
	// whenever the account is missing (spec.md §4.C precondition 1).
	if intent.Side == "BUY" {
		exists, err := b.accountExists(ctx, associatedUser)
		if err != nil {
			return UnsignedTx{}, err
		}
		if !exists {
			instructions = append(instructions, atapkg.NewCreateInstruction(intent.Owner, intent.Owner, intent.Mint).Build())
		}
	}

	instructions = append(instructions, solana.NewInstruction(registry.PumpFunProgramID, metas, data))

	tx, err := solana.NewTransaction(instructions, solana.Hash{}, solana.TransactionPayer(intent.Owner))
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("build bonding curve transaction: %w", err)
	}

	return UnsignedTx{Venue: b.Name(), Transaction: tx, Quote: quote}, nil
}

// globalAccount is pump.fun's fixed global config PDA.
var globalAccount = solana.MustPublicKeyFromBase58("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf")

// resolveFeeRecipient picks the Mayhem-mode fee account when enabled (spec.md §9
// redesign flag: fee recipient resolution must be explicit, never hardcoded per call site).
func (b *BondingCurveRouter) resolveFeeRecipient() solana.PublicKey {
	if b.mayhemMode && !b.feeRecipient.IsZero() {
		return b.feeRecipient
	}
	return defaultFeeRecipient
}

var defaultFeeRecipient = solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")

func encodeSwapInstructionData(intent SwapIntent) ([]byte, error) {
	buf := new(bytes.Buffer)
	var disc [8]byte
	if intent.Side == "BUY" {
		disc = bondingCurveBuyDiscriminator
	} else {
		disc = bondingCurveSellDiscriminator
	}
	buf.Write(disc[:])

	amount := intent.AmountTokens
	if intent.Side == "BUY" {
		amount = intent.AmountSOL.Mul(decimal.NewFromInt(solutil.LamportsPerSOL))
	}
	if err := binary.Write(buf, binary.LittleEndian, uint64(amount.IntPart())); err != nil {
		return nil, err
	}

	minOut := intent.MinSOLOutput.Mul(decimal.NewFromInt(solutil.LamportsPerSOL))
	if err := binary.Write(buf, binary.LittleEndian, uint64(minOut.IntPart())); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
