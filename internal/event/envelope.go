package event

import (
	"time"
)

// CommandType discriminator for inbound command payloads
type CommandType int32

const (
	CommandTypeUnknown CommandType = iota
	CommandTypeCreatePool
	CommandTypeLiquidityDeposit
	CommandTypeLiquidityWithdraw
	CommandTypeReserveFunds
	CommandTypeReleaseReserved
	CommandTypeUserDeposit
	CommandTypeUserWithdraw
	CommandTypeSubmitOrder
	CommandTypePayProfit
	CommandTypeLiquidate
	CommandTypeAddSubmitter
	CommandTypeRemoveSubmitter
	CommandTypeAddLiquidator
	CommandTypeRemoveLiquidator
	CommandTypeSetAdmin
	CommandTypeSetPause
	CommandTypeSetMinReserveRatio
)

// Envelope wraps every processed command in the log
type Envelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Command type discriminator
	CommandType CommandType

	// Pool asset context (empty for cross-pool commands, none exist today)
	Asset string

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded command payload
	Payload []byte

	// SHA-256 of state AFTER applying this command
	StateHash [32]byte

	// Previous command's state hash (chain integrity)
	PrevHash [32]byte
}

// Command is the interface all inbound command payloads must implement
type Command interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// CommandType returns the discriminator
	CommandType() CommandType

	// PoolAsset returns the target pool's asset symbol
	PoolAsset() string

	// SourceSequence returns upstream ordering key
	SourceSequence() int64
}

func (ct CommandType) String() string {
	switch ct {
	case CommandTypeCreatePool:
		return "CreatePool"
	case CommandTypeLiquidityDeposit:
		return "LiquidityDeposit"
	case CommandTypeLiquidityWithdraw:
		return "LiquidityWithdraw"
	case CommandTypeReserveFunds:
		return "ReserveFunds"
	case CommandTypeReleaseReserved:
		return "ReleaseReserved"
	case CommandTypeUserDeposit:
		return "UserDeposit"
	case CommandTypeUserWithdraw:
		return "UserWithdraw"
	case CommandTypeSubmitOrder:
		return "SubmitOrder"
	case CommandTypePayProfit:
		return "PayProfit"
	case CommandTypeLiquidate:
		return "Liquidate"
	case CommandTypeAddSubmitter:
		return "AddSubmitter"
	case CommandTypeRemoveSubmitter:
		return "RemoveSubmitter"
	case CommandTypeAddLiquidator:
		return "AddLiquidator"
	case CommandTypeRemoveLiquidator:
		return "RemoveLiquidator"
	case CommandTypeSetAdmin:
		return "SetAdmin"
	case CommandTypeSetPause:
		return "SetPause"
	case CommandTypeSetMinReserveRatio:
		return "SetMinReserveRatio"
	default:
		return "Unknown"
	}
}

// CommandTypeFromString is the inverse of String, used when replaying rows
// from the event log.
func CommandTypeFromString(s string) CommandType {
	for ct := CommandTypeCreatePool; ct <= CommandTypeSetMinReserveRatio; ct++ {
		if ct.String() == s {
			return ct
		}
	}
	return CommandTypeUnknown
}
