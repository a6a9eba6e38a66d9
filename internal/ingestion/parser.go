package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"OptionLedger/internal/event"
)

// ParseRawCommand converts a RawCommand (JSON bytes + command type string)
// into a typed event.Command. The ingestion shell validates and parses
// before anything reaches the settlement core.
func ParseRawCommand(raw RawCommand, commandType string) (event.Command, error) {
	switch commandType {
	case "CreatePool":
		return parseCreatePool(raw.Data)
	case "LiquidityDeposit":
		return parseLiquidityDeposit(raw.Data)
	case "LiquidityWithdraw":
		return parseLiquidityWithdraw(raw.Data)
	case "ReserveFunds":
		return parseReserveFunds(raw.Data)
	case "ReleaseReserved":
		return parseReleaseReserved(raw.Data)
	case "UserDeposit":
		return parseUserDeposit(raw.Data)
	case "UserWithdraw":
		return parseUserWithdraw(raw.Data)
	case "SubmitOrder":
		return parseSubmitOrder(raw.Data)
	case "PayProfit":
		return parsePayProfit(raw.Data)
	case "Liquidate":
		return parseLiquidate(raw.Data)
	case "AddSubmitter", "RemoveSubmitter", "AddLiquidator", "RemoveLiquidator", "SetAdmin":
		return parseMembership(raw.Data, commandType)
	case "SetPause":
		return parseSetPause(raw.Data)
	case "SetMinReserveRatio":
		return parseSetMinReserveRatio(raw.Data)
	default:
		return nil, fmt.Errorf("unknown command type: %s", commandType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers.

type poolCommandJSON struct {
	CommandID   string `json:"command_id"`
	Caller      string `json:"caller"`
	Asset       string `json:"asset"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func (j *poolCommandJSON) commandID() (uuid.UUID, error) {
	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse command_id: %w", err)
	}
	return id, nil
}

func parseCreatePool(data []byte) (*event.CreatePool, error) {
	var j poolCommandJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CreatePool: %w", err)
	}
	id, err := j.commandID()
	if err != nil {
		return nil, err
	}
	return &event.CreatePool{
		CommandID: id,
		Caller:    j.Caller,
		Asset:     j.Asset,
		Sequence:  j.Sequence,
		Timestamp: j.TimestampUs,
	}, nil
}

type liquidityJSON struct {
	CommandID    string `json:"command_id"`
	Caller       string `json:"caller"`
	Asset        string `json:"asset"`
	To           string `json:"to,omitempty"`
	ObligationID string `json:"obligation_id,omitempty"`
	Amount       int64  `json:"amount"`
	Sequence     int64  `json:"sequence"`
	TimestampUs  int64  `json:"timestamp_us"`
}

func parseLiquidityDeposit(data []byte) (*event.LiquidityDeposit, error) {
	var j liquidityJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse LiquidityDeposit: %w", err)
	}
	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	return &event.LiquidityDeposit{
		CommandID: id,
		Caller:    j.Caller,
		Asset:     j.Asset,
		Amount:    j.Amount,
		Sequence:  j.Sequence,
		Timestamp: j.TimestampUs,
	}, nil
}

func parseLiquidityWithdraw(data []byte) (*event.LiquidityWithdraw, error) {
	var j liquidityJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse LiquidityWithdraw: %w", err)
	}
	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	return &event.LiquidityWithdraw{
		CommandID: id,
		Caller:    j.Caller,
		Asset:     j.Asset,
		To:        j.To,
		Amount:    j.Amount,
		Sequence:  j.Sequence,
		Timestamp: j.TimestampUs,
	}, nil
}

func parseReserveFunds(data []byte) (*event.ReserveFunds, error) {
	var j liquidityJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ReserveFunds: %w", err)
	}
	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	if j.ObligationID == "" {
		return nil, fmt.Errorf("parse ReserveFunds: missing obligation_id")
	}
	return &event.ReserveFunds{
		CommandID:    id,
		Caller:       j.Caller,
		Asset:        j.Asset,
		ObligationID: j.ObligationID,
		Amount:       j.Amount,
		Sequence:     j.Sequence,
		Timestamp:    j.TimestampUs,
	}, nil
}

func parseReleaseReserved(data []byte) (*event.ReleaseReserved, error) {
	var j liquidityJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ReleaseReserved: %w", err)
	}
	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	return &event.ReleaseReserved{
		CommandID: id,
		Caller:    j.Caller,
		Asset:     j.Asset,
		Amount:    j.Amount,
		Sequence:  j.Sequence,
		Timestamp: j.TimestampUs,
	}, nil
}

type userFundsJSON struct {
	CommandID   string `json:"command_id"`
	Caller      string `json:"caller"`
	Asset       string `json:"asset"`
	User        string `json:"user,omitempty"`
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseUserDeposit(data []byte) (*event.UserDeposit, error) {
	var j userFundsJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse UserDeposit: %w", err)
	}
	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	return &event.UserDeposit{
		CommandID: id,
		Caller:    j.Caller,
		Asset:     j.Asset,
		Amount:    j.Amount,
		Sequence:  j.Sequence,
		Timestamp: j.TimestampUs,
	}, nil
}

func parseUserWithdraw(data []byte) (*event.UserWithdraw, error) {
	var j userFundsJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse UserWithdraw: %w", err)
	}
	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	return &event.UserWithdraw{
		CommandID: id,
		Caller:    j.Caller,
		Asset:     j.Asset,
		Amount:    j.Amount,
		Sequence:  j.Sequence,
		Timestamp: j.TimestampUs,
	}, nil
}

func parsePayProfit(data []byte) (*event.PayProfit, error) {
	var j userFundsJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PayProfit: %w", err)
	}
	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	if j.User == "" {
		return nil, fmt.Errorf("parse PayProfit: missing user")
	}
	return &event.PayProfit{
		CommandID: id,
		Caller:    j.Caller,
		Asset:     j.Asset,
		User:      j.User,
		Amount:    j.Amount,
		Sequence:  j.Sequence,
		Timestamp: j.TimestampUs,
	}, nil
}

type submitOrderJSON struct {
	CommandID       string `json:"command_id"`
	Caller          string `json:"caller"`
	Asset           string `json:"asset"`
	OrderID         string `json:"order_id"`
	User            string `json:"user"`
	Premium         int64  `json:"premium"`
	ObligationID    string `json:"obligation_id"`
	PotentialPayout int64  `json:"potential_payout"`
	Sequence        int64  `json:"sequence"`
	TimestampUs     int64  `json:"timestamp_us"`
}

func parseSubmitOrder(data []byte) (*event.SubmitOrder, error) {
	var j submitOrderJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SubmitOrder: %w", err)
	}
	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	if j.OrderID == "" {
		return nil, fmt.Errorf("parse SubmitOrder: missing order_id")
	}
	if j.User == "" {
		return nil, fmt.Errorf("parse SubmitOrder: missing user")
	}
	return &event.SubmitOrder{
		CommandID:       id,
		Caller:          j.Caller,
		Asset:           j.Asset,
		OrderID:         j.OrderID,
		User:            j.User,
		Premium:         j.Premium,
		ObligationID:    j.ObligationID,
		PotentialPayout: j.PotentialPayout,
		Sequence:        j.Sequence,
		Timestamp:       j.TimestampUs,
	}, nil
}

type liquidateJSON struct {
	CommandID       string `json:"command_id"`
	Caller          string `json:"caller"`
	Asset           string `json:"asset"`
	ObligationID    string `json:"obligation_id"`
	User            string `json:"user"`
	InitialReserved int64  `json:"initial_reserved"`
	Payout          int64  `json:"payout"`
	Sequence        int64  `json:"sequence"`
	TimestampUs     int64  `json:"timestamp_us"`
}

func parseLiquidate(data []byte) (*event.Liquidate, error) {
	var j liquidateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Liquidate: %w", err)
	}
	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	if j.ObligationID == "" {
		return nil, fmt.Errorf("parse Liquidate: missing obligation_id")
	}
	if j.User == "" {
		return nil, fmt.Errorf("parse Liquidate: missing user")
	}
	return &event.Liquidate{
		CommandID:       id,
		Caller:          j.Caller,
		Asset:           j.Asset,
		ObligationID:    j.ObligationID,
		User:            j.User,
		InitialReserved: j.InitialReserved,
		Payout:          j.Payout,
		Sequence:        j.Sequence,
		Timestamp:       j.TimestampUs,
	}, nil
}

type membershipJSON struct {
	CommandID   string `json:"command_id"`
	Caller      string `json:"caller"`
	Asset       string `json:"asset"`
	Address     string `json:"address"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseMembership(data []byte, commandType string) (event.Command, error) {
	var j membershipJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse %s: %w", commandType, err)
	}
	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	if j.Address == "" {
		return nil, fmt.Errorf("parse %s: missing address", commandType)
	}

	switch commandType {
	case "AddSubmitter":
		return &event.AddSubmitter{CommandID: id, Caller: j.Caller, Asset: j.Asset, Address: j.Address, Sequence: j.Sequence, Timestamp: j.TimestampUs}, nil
	case "RemoveSubmitter":
		return &event.RemoveSubmitter{CommandID: id, Caller: j.Caller, Asset: j.Asset, Address: j.Address, Sequence: j.Sequence, Timestamp: j.TimestampUs}, nil
	case "AddLiquidator":
		return &event.AddLiquidator{CommandID: id, Caller: j.Caller, Asset: j.Asset, Address: j.Address, Sequence: j.Sequence, Timestamp: j.TimestampUs}, nil
	case "RemoveLiquidator":
		return &event.RemoveLiquidator{CommandID: id, Caller: j.Caller, Asset: j.Asset, Address: j.Address, Sequence: j.Sequence, Timestamp: j.TimestampUs}, nil
	case "SetAdmin":
		return &event.SetAdmin{CommandID: id, Caller: j.Caller, Asset: j.Asset, Address: j.Address, Sequence: j.Sequence, Timestamp: j.TimestampUs}, nil
	}
	return nil, fmt.Errorf("unknown membership command: %s", commandType)
}

type setPauseJSON struct {
	CommandID   string `json:"command_id"`
	Caller      string `json:"caller"`
	Asset       string `json:"asset"`
	Paused      bool   `json:"paused"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseSetPause(data []byte) (*event.SetPause, error) {
	var j setPauseJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetPause: %w", err)
	}
	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	return &event.SetPause{
		CommandID: id,
		Caller:    j.Caller,
		Asset:     j.Asset,
		Paused:    j.Paused,
		Sequence:  j.Sequence,
		Timestamp: j.TimestampUs,
	}, nil
}

type setRatioJSON struct {
	CommandID   string `json:"command_id"`
	Caller      string `json:"caller"`
	Asset       string `json:"asset"`
	Ratio       int64  `json:"ratio"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseSetMinReserveRatio(data []byte) (*event.SetMinReserveRatio, error) {
	var j setRatioJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetMinReserveRatio: %w", err)
	}
	id, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	return &event.SetMinReserveRatio{
		CommandID: id,
		Caller:    j.Caller,
		Asset:     j.Asset,
		Ratio:     j.Ratio,
		Sequence:  j.Sequence,
		Timestamp: j.TimestampUs,
	}, nil
}
