package event

import "github.com/google/uuid"

// UserDeposit credits a user's escrow balance.
type UserDeposit struct {
	CommandID uuid.UUID
	Caller    string
	Asset     string
	Amount    int64 // Fixed-point
	Sequence  int64
	Timestamp int64
}

func (c *UserDeposit) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *UserDeposit) CommandType() CommandType {
	return CommandTypeUserDeposit
}

func (c *UserDeposit) PoolAsset() string {
	return c.Asset
}

func (c *UserDeposit) SourceSequence() int64 {
	return c.Sequence
}

// UserWithdraw debits a user's escrow balance back out of the system.
type UserWithdraw struct {
	CommandID uuid.UUID
	Caller    string
	Asset     string
	Amount    int64
	Sequence  int64
	Timestamp int64
}

func (c *UserWithdraw) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *UserWithdraw) CommandType() CommandType {
	return CommandTypeUserWithdraw
}

func (c *UserWithdraw) PoolAsset() string {
	return c.Asset
}

func (c *UserWithdraw) SourceSequence() int64 {
	return c.Sequence
}

// PayProfit pays a user out of reserved treasury funds.
type PayProfit struct {
	CommandID uuid.UUID
	Caller    string
	Asset     string
	User      string
	Amount    int64
	Sequence  int64
	Timestamp int64
}

func (c *PayProfit) IdempotencyKey() string {
	return c.CommandID.String()
}

func (c *PayProfit) CommandType() CommandType {
	return CommandTypePayProfit
}

func (c *PayProfit) PoolAsset() string {
	return c.Asset
}

func (c *PayProfit) SourceSequence() int64 {
	return c.Sequence
}
