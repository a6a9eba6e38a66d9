package event

import (
	"fmt"

	"github.com/google/uuid"
)

// SubmitOrder is the composite settlement command: collect the premium from
// the user, then reserve the potential payout. Both legs apply or neither.
type SubmitOrder struct {
	CommandID       uuid.UUID
	Caller          string
	Asset           string
	OrderID         string
	User            string
	Premium         int64
	ObligationID    string
	PotentialPayout int64
	Sequence        int64
	Timestamp       int64
}

func (c *SubmitOrder) IdempotencyKey() string {
	return fmt.Sprintf("%s:%s", c.CommandID, c.OrderID)
}

func (c *SubmitOrder) CommandType() CommandType {
	return CommandTypeSubmitOrder
}

func (c *SubmitOrder) PoolAsset() string {
	return c.Asset
}

func (c *SubmitOrder) SourceSequence() int64 {
	return c.Sequence
}

// Liquidate closes an obligation: release its reserved funds, then pay the
// user any realized profit out of treasury.
type Liquidate struct {
	CommandID       uuid.UUID
	Caller          string
	Asset           string
	ObligationID    string
	User            string
	InitialReserved int64
	Payout          int64
	Sequence        int64
	Timestamp       int64
}

func (c *Liquidate) IdempotencyKey() string {
	return fmt.Sprintf("%s:%s", c.CommandID, c.ObligationID)
}

func (c *Liquidate) CommandType() CommandType {
	return CommandTypeLiquidate
}

func (c *Liquidate) PoolAsset() string {
	return c.Asset
}

func (c *Liquidate) SourceSequence() int64 {
	return c.Sequence
}
