package event

import (
	"encoding/json"
	"fmt"
)

// UnmarshalCommand decodes an envelope payload back into its typed command.
// Used during startup replay; the payload is the engine's own marshalling of
// the command, so decoding is exact.
func UnmarshalCommand(ct CommandType, payload []byte) (Command, error) {
	var cmd Command
	switch ct {
	case CommandTypeCreatePool:
		cmd = &CreatePool{}
	case CommandTypeLiquidityDeposit:
		cmd = &LiquidityDeposit{}
	case CommandTypeLiquidityWithdraw:
		cmd = &LiquidityWithdraw{}
	case CommandTypeReserveFunds:
		cmd = &ReserveFunds{}
	case CommandTypeReleaseReserved:
		cmd = &ReleaseReserved{}
	case CommandTypeUserDeposit:
		cmd = &UserDeposit{}
	case CommandTypeUserWithdraw:
		cmd = &UserWithdraw{}
	case CommandTypeSubmitOrder:
		cmd = &SubmitOrder{}
	case CommandTypePayProfit:
		cmd = &PayProfit{}
	case CommandTypeLiquidate:
		cmd = &Liquidate{}
	case CommandTypeAddSubmitter:
		cmd = &AddSubmitter{}
	case CommandTypeRemoveSubmitter:
		cmd = &RemoveSubmitter{}
	case CommandTypeAddLiquidator:
		cmd = &AddLiquidator{}
	case CommandTypeRemoveLiquidator:
		cmd = &RemoveLiquidator{}
	case CommandTypeSetAdmin:
		cmd = &SetAdmin{}
	case CommandTypeSetPause:
		cmd = &SetPause{}
	case CommandTypeSetMinReserveRatio:
		cmd = &SetMinReserveRatio{}
	default:
		return nil, fmt.Errorf("unknown command type: %v", ct)
	}

	if err := json.Unmarshal(payload, cmd); err != nil {
		return nil, fmt.Errorf("decode %v payload: %w", ct, err)
	}
	return cmd, nil
}
