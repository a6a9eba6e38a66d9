package query

import "time"

// PoolStatusResponse is the projected pool status read from Postgres.
// AsOfSequence is the projection watermark at read time; the in-memory
// facade may be ahead of it.
type PoolStatusResponse struct {
	Asset        string `json:"asset"`
	Available    int64  `json:"available"`
	Reserved     int64  `json:"reserved"`
	UserTotal    int64  `json:"user_total"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// BalanceResponse is a projected balance for one account path.
type BalanceResponse struct {
	AccountPath  string `json:"account_path"`
	Asset        string `json:"asset"`
	Balance      int64  `json:"balance"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// JournalHistoryEntry is one row of double-entry history.
type JournalHistoryEntry struct {
	JournalID     string    `json:"journal_id"`
	BatchID       string    `json:"batch_id"`
	CommandRef    string    `json:"command_ref"`
	Sequence      int64     `json:"sequence"`
	DebitAccount  string    `json:"debit_account"`
	CreditAccount string    `json:"credit_account"`
	Asset         string    `json:"asset"`
	Amount        int64     `json:"amount"`
	JournalType   int32     `json:"journal_type"`
	Timestamp     time.Time `json:"timestamp"`
}

// UnbalancedAsset reports a per-asset zero-sum violation.
type UnbalancedAsset struct {
	Asset     string `json:"asset"`
	Imbalance int64  `json:"imbalance"`
}

// IntegrityReport is the result of an integrity verification pass.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	UnbalancedAssets []UnbalancedAsset `json:"unbalanced_assets,omitempty"`
	CheckedAt        time.Time         `json:"checked_at"`
}
