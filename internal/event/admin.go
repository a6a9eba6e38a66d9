package event

import "github.com/google/uuid"

// AddSubmitter enrolls an address in a pool's submitter set.
type AddSubmitter struct {
	CommandID uuid.UUID
	Caller    string
	Asset     string
	Address   string
	Sequence  int64
	Timestamp int64
}

func (c *AddSubmitter) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *AddSubmitter) CommandType() CommandType {
	return CommandTypeAddSubmitter
}

func (c *AddSubmitter) PoolAsset() string {
	return c.Asset
}

func (c *AddSubmitter) SourceSequence() int64 {
	return c.Sequence
}

// RemoveSubmitter removes an address from a pool's submitter set.
type RemoveSubmitter struct {
	CommandID uuid.UUID
	Caller    string
	Asset     string
	Address   string
	Sequence  int64
	Timestamp int64
}

func (c *RemoveSubmitter) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *RemoveSubmitter) CommandType() CommandType {
	return CommandTypeRemoveSubmitter
}

func (c *RemoveSubmitter) PoolAsset() string {
	return c.Asset
}

func (c *RemoveSubmitter) SourceSequence() int64 {
	return c.Sequence
}

// AddLiquidator enrolls an address in a pool's liquidator set.
type AddLiquidator struct {
	CommandID uuid.UUID
	Caller    string
	Asset     string
	Address   string
	Sequence  int64
	Timestamp int64
}

func (c *AddLiquidator) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *AddLiquidator) CommandType() CommandType {
	return CommandTypeAddLiquidator
}

func (c *AddLiquidator) PoolAsset() string {
	return c.Asset
}

func (c *AddLiquidator) SourceSequence() int64 {
	return c.Sequence
}

// RemoveLiquidator removes an address from a pool's liquidator set.
type RemoveLiquidator struct {
	CommandID uuid.UUID
	Caller    string
	Asset     string
	Address   string
	Sequence  int64
	Timestamp int64
}

func (c *RemoveLiquidator) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *RemoveLiquidator) CommandType() CommandType {
	return CommandTypeRemoveLiquidator
}

func (c *RemoveLiquidator) PoolAsset() string {
	return c.Asset
}

func (c *RemoveLiquidator) SourceSequence() int64 {
	return c.Sequence
}

// SetAdmin transfers pool admin rights.
type SetAdmin struct {
	CommandID uuid.UUID
	Caller    string
	Asset     string
	Address   string
	Sequence  int64
	Timestamp int64
}

func (c *SetAdmin) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *SetAdmin) CommandType() CommandType {
	return CommandTypeSetAdmin
}

func (c *SetAdmin) PoolAsset() string {
	return c.Asset
}

func (c *SetAdmin) SourceSequence() int64 {
	return c.Sequence
}

// SetPause flips a pool's pause flag.
type SetPause struct {
	CommandID uuid.UUID
	Caller    string
	Asset     string
	Paused    bool
	Sequence  int64
	Timestamp int64
}

func (c *SetPause) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *SetPause) CommandType() CommandType {
	return CommandTypeSetPause
}

func (c *SetPause) PoolAsset() string {
	return c.Asset
}

func (c *SetPause) SourceSequence() int64 {
	return c.Sequence
}

// SetMinReserveRatio updates a pool's withdrawal cushion (basis points).
type SetMinReserveRatio struct {
	CommandID uuid.UUID
	Caller    string
	Asset     string
	Ratio     int64
	Sequence  int64
	Timestamp int64
}

func (c *SetMinReserveRatio) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *SetMinReserveRatio) CommandType() CommandType {
	return CommandTypeSetMinReserveRatio
}

func (c *SetMinReserveRatio) PoolAsset() string {
	return c.Asset
}

func (c *SetMinReserveRatio) SourceSequence() int64 {
	return c.Sequence
}
