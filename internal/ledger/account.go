package ledger

import (
	"fmt"
	"strings"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeTreasury AccountScope = iota
	AccountScopeUser
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// Treasury sub-types
	SubTypeAvailable AccountSubType = iota
	SubTypeReserved

	// User sub-type
	SubTypeBalance

	// External boundary sub-types
	SubTypeExternalDeposits
	SubTypeExternalWithdrawals
	SubTypeExternalPayouts
)

// AccountKey is the in-memory key for the audit books. One key per
// (scope, entity, sub-type, asset). Entity is the user address for
// user-scope accounts and empty otherwise.
type AccountKey struct {
	Scope   AccountScope
	Entity  string
	SubType AccountSubType
	Asset   string
}

// NewTreasuryAccountKey creates a key for the platform-side accounts.
func NewTreasuryAccountKey(subType AccountSubType, asset string) AccountKey {
	return AccountKey{
		Scope:   AccountScopeTreasury,
		SubType: subType,
		Asset:   asset,
	}
}

// NewUserAccountKey creates a key for a user's custodial account.
func NewUserAccountKey(user string, asset string) AccountKey {
	return AccountKey{
		Scope:   AccountScopeUser,
		Entity:  user,
		SubType: SubTypeBalance,
		Asset:   asset,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts.
// External accounts absorb the counter-leg of value entering or leaving
// custody, keeping the books zero-sum.
func NewExternalAccountKey(subType AccountSubType, asset string) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
		Asset:   asset,
	}
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	switch k.Scope {
	case AccountScopeTreasury:
		return fmt.Sprintf("treasury:%s:%s", k.subTypeName(), k.Asset)
	case AccountScopeUser:
		return fmt.Sprintf("user:%s:%s", k.Entity, k.Asset)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), k.Asset)
	}
	return "unknown"
}

// ParseAccountPath is the inverse of AccountPath, used when restoring books
// from a snapshot. Addresses must not contain ':'.
func ParseAccountPath(path string) (AccountKey, error) {
	parts := strings.SplitN(path, ":", 3)
	if len(parts) != 3 {
		return AccountKey{}, fmt.Errorf("malformed account path: %q", path)
	}

	switch parts[0] {
	case "treasury":
		sub, err := parseSubTypeName(parts[1])
		if err != nil {
			return AccountKey{}, fmt.Errorf("account path %q: %w", path, err)
		}
		return NewTreasuryAccountKey(sub, parts[2]), nil
	case "user":
		return NewUserAccountKey(parts[1], parts[2]), nil
	case "external":
		sub, err := parseSubTypeName(parts[1])
		if err != nil {
			return AccountKey{}, fmt.Errorf("account path %q: %w", path, err)
		}
		return NewExternalAccountKey(sub, parts[2]), nil
	}

	return AccountKey{}, fmt.Errorf("unknown account scope in path: %q", path)
}

func parseSubTypeName(name string) (AccountSubType, error) {
	switch name {
	case "available":
		return SubTypeAvailable, nil
	case "reserved":
		return SubTypeReserved, nil
	case "balance":
		return SubTypeBalance, nil
	case "deposits":
		return SubTypeExternalDeposits, nil
	case "withdrawals":
		return SubTypeExternalWithdrawals, nil
	case "payouts":
		return SubTypeExternalPayouts, nil
	}
	return 0, fmt.Errorf("unknown account sub-type: %q", name)
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeAvailable:
		return "available"
	case SubTypeReserved:
		return "reserved"
	case SubTypeBalance:
		return "balance"
	case SubTypeExternalDeposits:
		return "deposits"
	case SubTypeExternalWithdrawals:
		return "withdrawals"
	case SubTypeExternalPayouts:
		return "payouts"
	default:
		return "unknown"
	}
}
