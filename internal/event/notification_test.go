package event_test

import (
	"encoding/json"
	"sort"
	"testing"

	"OptionLedger/internal/event"
)

// jsonKeys marshals a notification and returns its sorted top-level keys.
func jsonKeys(t *testing.T, n event.Notification) []string {
	t.Helper()
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal %s: %v", n.EventName(), err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal %s: %v", n.EventName(), err)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Downstream indexers depend on these exact wire field sets; a renamed or
// dropped key is a breaking change for existing consumers.
func TestNotificationFieldSets(t *testing.T) {
	cases := []struct {
		notification event.Notification
		name         string
		fields       []string
	}{
		{event.PoolCreated{}, "pool_created",
			[]string{"admin", "asset"}},
		{event.LiquidityDeposited{}, "liquidity_deposited",
			[]string{"amount", "depositor", "total_available"}},
		{event.LiquidityWithdrawn{}, "liquidity_withdrawn",
			[]string{"admin", "amount", "remaining_available", "to"}},
		{event.FundsReserved{}, "funds_reserved",
			[]string{"amount", "obligation_id", "remaining_available", "total_reserved"}},
		{event.PremiumCollected{}, "premium_collected",
			[]string{"amount", "total_available", "user", "user_remaining_balance"}},
		{event.UserDeposited{}, "user_deposited",
			[]string{"amount", "new_balance", "user"}},
		{event.UserWithdrawn{}, "user_withdrawn",
			[]string{"amount", "remaining_balance", "user"}},
		{event.UserProfitPaid{}, "user_profit_paid",
			[]string{"amount", "new_user_balance", "user"}},
		{event.OrderSubmitted{}, "order_submitted",
			[]string{"obligation_id", "order_id", "potential_payout", "premium_amount", "user"}},
		{event.OrderLiquidated{}, "order_liquidated",
			[]string{"liquidator", "new_available", "new_reserved", "obligation_id", "payout_amount", "released_amount", "user"}},
	}

	for _, tc := range cases {
		if got := tc.notification.EventName(); got != tc.name {
			t.Errorf("EventName: got %q, want %q", got, tc.name)
		}
		got := jsonKeys(t, tc.notification)
		if len(got) != len(tc.fields) {
			t.Errorf("%s: got keys %v, want %v", tc.name, got, tc.fields)
			continue
		}
		for i := range got {
			if got[i] != tc.fields[i] {
				t.Errorf("%s: got keys %v, want %v", tc.name, got, tc.fields)
				break
			}
		}
	}
}
