package event

// Notification is an outbound domain event emitted after a successful
// state change. Notifications are published downstream and never consumed
// back by the core.
type Notification interface {
	// EventName returns the wire name used as the outbound subject token
	EventName() string
}

// PoolCreated announces a newly provisioned pool.
type PoolCreated struct {
	Asset string `json:"asset"`
	Admin string `json:"admin"`
}

func (PoolCreated) EventName() string { return "pool_created" }

// LiquidityDeposited announces a treasury deposit.
type LiquidityDeposited struct {
	Depositor      string `json:"depositor"`
	Amount         int64  `json:"amount"`
	TotalAvailable int64  `json:"total_available"`
}

func (LiquidityDeposited) EventName() string { return "liquidity_deposited" }

// LiquidityWithdrawn announces a treasury withdrawal.
type LiquidityWithdrawn struct {
	Admin              string `json:"admin"`
	To                 string `json:"to"`
	Amount             int64  `json:"amount"`
	RemainingAvailable int64  `json:"remaining_available"`
}

func (LiquidityWithdrawn) EventName() string { return "liquidity_withdrawn" }

// FundsReserved announces funds moved from available to reserved.
type FundsReserved struct {
	ObligationID       string `json:"obligation_id"`
	Amount             int64  `json:"amount"`
	RemainingAvailable int64  `json:"remaining_available"`
	TotalReserved      int64  `json:"total_reserved"`
}

func (FundsReserved) EventName() string { return "funds_reserved" }

// PremiumCollected announces a premium debit from a user into treasury.
type PremiumCollected struct {
	User                 string `json:"user"`
	Amount               int64  `json:"amount"`
	UserRemainingBalance int64  `json:"user_remaining_balance"`
	TotalAvailable       int64  `json:"total_available"`
}

func (PremiumCollected) EventName() string { return "premium_collected" }

// UserDeposited announces a user escrow deposit.
type UserDeposited struct {
	User       string `json:"user"`
	Amount     int64  `json:"amount"`
	NewBalance int64  `json:"new_balance"`
}

func (UserDeposited) EventName() string { return "user_deposited" }

// UserWithdrawn announces a user escrow withdrawal.
type UserWithdrawn struct {
	User             string `json:"user"`
	Amount           int64  `json:"amount"`
	RemainingBalance int64  `json:"remaining_balance"`
}

func (UserWithdrawn) EventName() string { return "user_withdrawn" }

// UserProfitPaid announces a payout from reserved treasury to a user.
type UserProfitPaid struct {
	User           string `json:"user"`
	Amount         int64  `json:"amount"`
	NewUserBalance int64  `json:"new_user_balance"`
}

func (UserProfitPaid) EventName() string { return "user_profit_paid" }

// OrderSubmitted announces a completed composite order settlement.
type OrderSubmitted struct {
	OrderID         string `json:"order_id"`
	User            string `json:"user"`
	PremiumAmount   int64  `json:"premium_amount"`
	ObligationID    string `json:"obligation_id"`
	PotentialPayout int64  `json:"potential_payout"`
}

func (OrderSubmitted) EventName() string { return "order_submitted" }

// OrderLiquidated announces a completed obligation close-out.
type OrderLiquidated struct {
	ObligationID   string `json:"obligation_id"`
	User           string `json:"user"`
	Liquidator     string `json:"liquidator"`
	ReleasedAmount int64  `json:"released_amount"`
	PayoutAmount   int64  `json:"payout_amount"`
	NewAvailable   int64  `json:"new_available"`
	NewReserved    int64  `json:"new_reserved"`
}

func (OrderLiquidated) EventName() string { return "order_liquidated" }
