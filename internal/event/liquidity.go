package event

import "github.com/google/uuid"

// CreatePool provisions a fresh escrow pool for one asset. The caller
// becomes admin.
type CreatePool struct {
	CommandID uuid.UUID
	Caller    string
	Asset     string
	Sequence  int64
	Timestamp int64 // Microseconds, versioned input
}

func (c *CreatePool) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *CreatePool) CommandType() CommandType {
	return CommandTypeCreatePool
}

func (c *CreatePool) PoolAsset() string {
	return c.Asset
}

func (c *CreatePool) SourceSequence() int64 {
	return c.Sequence
}

// LiquidityDeposit adds treasury funds to a pool.
type LiquidityDeposit struct {
	CommandID uuid.UUID
	Caller    string
	Asset     string
	Amount    int64 // Fixed-point
	Sequence  int64
	Timestamp int64
}

func (c *LiquidityDeposit) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *LiquidityDeposit) CommandType() CommandType {
	return CommandTypeLiquidityDeposit
}

func (c *LiquidityDeposit) PoolAsset() string {
	return c.Asset
}

func (c *LiquidityDeposit) SourceSequence() int64 {
	return c.Sequence
}

// LiquidityWithdraw removes treasury funds, admin only, subject to the
// reserve floor.
type LiquidityWithdraw struct {
	CommandID uuid.UUID
	Caller    string
	Asset     string
	To        string
	Amount    int64
	Sequence  int64
	Timestamp int64
}

func (c *LiquidityWithdraw) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *LiquidityWithdraw) CommandType() CommandType {
	return CommandTypeLiquidityWithdraw
}

func (c *LiquidityWithdraw) PoolAsset() string {
	return c.Asset
}

func (c *LiquidityWithdraw) SourceSequence() int64 {
	return c.Sequence
}

// ReserveFunds moves treasury funds from available to reserved against an
// obligation. Insufficient funds is a soft failure, not an error.
type ReserveFunds struct {
	CommandID    uuid.UUID
	Caller       string
	Asset        string
	ObligationID string
	Amount       int64
	Sequence     int64
	Timestamp    int64
}

func (c *ReserveFunds) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *ReserveFunds) CommandType() CommandType {
	return CommandTypeReserveFunds
}

func (c *ReserveFunds) PoolAsset() string {
	return c.Asset
}

func (c *ReserveFunds) SourceSequence() int64 {
	return c.Sequence
}

// ReleaseReserved returns reserved treasury funds to available.
type ReleaseReserved struct {
	CommandID uuid.UUID
	Caller    string
	Asset     string
	Amount    int64
	Sequence  int64
	Timestamp int64
}

func (c *ReleaseReserved) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *ReleaseReserved) CommandType() CommandType {
	return CommandTypeReleaseReserved
}

func (c *ReleaseReserved) PoolAsset() string {
	return c.Asset
}

func (c *ReleaseReserved) SourceSequence() int64 {
	return c.Sequence
}
