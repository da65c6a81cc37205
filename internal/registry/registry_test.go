package registry

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
)

// TestIsMeteoraCreateLog_InitializePool mirrors spec.md §8 scenario 3's positive case.
func TestIsMeteoraCreateLog_InitializePool(t *testing.T) {
	logs := []string{
		"Program " + MeteoraDBCProgramID.String() + " invoke [1]",
		"Program log: Instruction: InitializePool",
		"Program " + MeteoraDBCProgramID.String() + " success",
	}

	assert.True(t, IsMeteoraCreateLog(logs))
}

// TestIsMeteoraCreateLog_SwapThenMentionIsNotCreate mirrors spec.md §8 scenario 3's
// negative case: a swap instruction resets the create-instruction window, so an
// incidental later mention of "CreatePool" must not be mistaken for an actual create.
func TestIsMeteoraCreateLog_SwapThenMentionIsNotCreate(t *testing.T) {
	logs := []string{
		"Program " + MeteoraDBCProgramID.String() + " invoke [1]",
		"Program log: Instruction: Swap",
		"Program log: CreatePool mentioned",
		"Program " + MeteoraDBCProgramID.String() + " success",
	}

	assert.False(t, IsMeteoraCreateLog(logs))
}

func TestIsMeteoraCreateLog_NoInvokeIsNotCreate(t *testing.T) {
	logs := []string{
		"Program log: Instruction: InitializePool",
	}

	assert.False(t, IsMeteoraCreateLog(logs))
}

func TestIsMeteoraCreateLog_CreatePoolVariant(t *testing.T) {
	logs := []string{
		"Program " + MeteoraDBCProgramID.String() + " invoke [1]",
		"Program log: Instruction: CreatePool",
	}

	assert.True(t, IsMeteoraCreateLog(logs))
}

func TestIdentifyInstruction_PumpCreate(t *testing.T) {
	ident, ok := IdentifyInstruction(PumpFunProgramID, discriminators[InstructionPumpCreate])

	assert.True(t, ok)
	assert.Equal(t, InstructionPumpCreate, ident.Kind)
}

func TestIdentifyInstruction_UnknownDiscriminatorMisses(t *testing.T) {
	_, ok := IdentifyInstruction(PumpFunProgramID, [8]byte{1, 2, 3})

	assert.False(t, ok)
}

func TestMintFromCreateInstruction_FirstAccountIsMint(t *testing.T) {
	keys := []solana.PublicKey{
		solana.NewWallet().PublicKey(),
		solana.NewWallet().PublicKey(),
		solana.NewWallet().PublicKey(),
	}

	mint, ok := MintFromCreateInstruction(keys, []uint16{0, 1, 2})

	assert.True(t, ok)
	assert.Equal(t, keys[0], mint)
}
