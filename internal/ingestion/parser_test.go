package ingestion_test

import (
	"encoding/json"
	"testing"
	"time"

	"OptionLedger/internal/event"
	"OptionLedger/internal/ingestion"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawCommand {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawCommand{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParseSubmitOrder(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":       "550e8400-e29b-41d4-a716-446655440000",
		"caller":           "settlement-svc",
		"asset":            "USDC",
		"order_id":         "ord-123",
		"user":             "alice",
		"premium":          int64(10),
		"obligation_id":    "obl-123",
		"potential_payout": int64(50),
		"sequence":         int64(42),
		"timestamp_us":     int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "SubmitOrder")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	so, ok := cmd.(*event.SubmitOrder)
	if !ok {
		t.Fatalf("expected *event.SubmitOrder, got %T", cmd)
	}

	if so.Asset != "USDC" {
		t.Errorf("asset: got %s, want USDC", so.Asset)
	}
	if so.OrderID != "ord-123" {
		t.Errorf("order_id: got %s, want ord-123", so.OrderID)
	}
	if so.User != "alice" {
		t.Errorf("user: got %s, want alice", so.User)
	}
	if so.Premium != 10 {
		t.Errorf("premium: got %d, want 10", so.Premium)
	}
	if so.PotentialPayout != 50 {
		t.Errorf("potential_payout: got %d, want 50", so.PotentialPayout)
	}
	if so.SourceSequence() != 42 {
		t.Errorf("sequence: got %d, want 42", so.SourceSequence())
	}
	if so.CommandType() != event.CommandTypeSubmitOrder {
		t.Errorf("command type: got %v, want SubmitOrder", so.CommandType())
	}
	if so.IdempotencyKey() != "550e8400-e29b-41d4-a716-446655440000:ord-123" {
		t.Errorf("idempotency key: got %s", so.IdempotencyKey())
	}
}

func TestParseLiquidate(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":       "550e8400-e29b-41d4-a716-446655440000",
		"caller":           "liquidator-svc",
		"asset":            "USDC",
		"obligation_id":    "obl-123",
		"user":             "alice",
		"initial_reserved": int64(50),
		"payout":           int64(30),
		"sequence":         int64(43),
		"timestamp_us":     int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "Liquidate")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	liq, ok := cmd.(*event.Liquidate)
	if !ok {
		t.Fatalf("expected *event.Liquidate, got %T", cmd)
	}

	if liq.ObligationID != "obl-123" {
		t.Errorf("obligation_id: got %s, want obl-123", liq.ObligationID)
	}
	if liq.InitialReserved != 50 {
		t.Errorf("initial_reserved: got %d, want 50", liq.InitialReserved)
	}
	if liq.Payout != 30 {
		t.Errorf("payout: got %d, want 30", liq.Payout)
	}
}

func TestParseLiquidityCommands(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller":       "lp-admin",
		"asset":        "USDC",
		"amount":       int64(1_000_000),
		"sequence":     int64(1),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "LiquidityDeposit")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	dep, ok := cmd.(*event.LiquidityDeposit)
	if !ok {
		t.Fatalf("expected *event.LiquidityDeposit, got %T", cmd)
	}
	if dep.Amount != 1_000_000 {
		t.Errorf("amount: got %d, want 1_000_000", dep.Amount)
	}

	payload["to"] = "cold-wallet"
	raw = rawFromJSON(t, payload)
	cmd, err = ingestion.ParseRawCommand(raw, "LiquidityWithdraw")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	wd, ok := cmd.(*event.LiquidityWithdraw)
	if !ok {
		t.Fatalf("expected *event.LiquidityWithdraw, got %T", cmd)
	}
	if wd.To != "cold-wallet" {
		t.Errorf("to: got %s, want cold-wallet", wd.To)
	}
}

func TestParseReserveFundsRequiresObligation(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller":       "settlement-svc",
		"asset":        "USDC",
		"amount":       int64(500),
		"sequence":     int64(7),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	if _, err := ingestion.ParseRawCommand(raw, "ReserveFunds"); err == nil {
		t.Fatal("expected error for missing obligation_id")
	}

	payload["obligation_id"] = "obl-7"
	raw = rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "ReserveFunds")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	rf, ok := cmd.(*event.ReserveFunds)
	if !ok {
		t.Fatalf("expected *event.ReserveFunds, got %T", cmd)
	}
	if rf.ObligationID != "obl-7" {
		t.Errorf("obligation_id: got %s, want obl-7", rf.ObligationID)
	}
}

func TestParseMembershipCommands(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller":       "admin",
		"asset":        "USDC",
		"address":      "new-operator",
		"sequence":     int64(9),
		"timestamp_us": int64(1700000000000000),
	}

	cases := []struct {
		commandType string
		want        event.CommandType
	}{
		{"AddSubmitter", event.CommandTypeAddSubmitter},
		{"RemoveSubmitter", event.CommandTypeRemoveSubmitter},
		{"AddLiquidator", event.CommandTypeAddLiquidator},
		{"RemoveLiquidator", event.CommandTypeRemoveLiquidator},
		{"SetAdmin", event.CommandTypeSetAdmin},
	}

	for _, tc := range cases {
		raw := rawFromJSON(t, payload)
		cmd, err := ingestion.ParseRawCommand(raw, tc.commandType)
		if err != nil {
			t.Fatalf("%s: parse failed: %v", tc.commandType, err)
		}
		if cmd.CommandType() != tc.want {
			t.Errorf("%s: got command type %v", tc.commandType, cmd.CommandType())
		}
	}
}

func TestParseSetPause(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller":       "admin",
		"asset":        "USDC",
		"paused":       true,
		"sequence":     int64(10),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "SetPause")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	sp, ok := cmd.(*event.SetPause)
	if !ok {
		t.Fatalf("expected *event.SetPause, got %T", cmd)
	}
	if !sp.Paused {
		t.Error("paused: got false, want true")
	}
}

func TestParseRejectsBadCommandID(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "not-a-uuid",
		"caller":       "admin",
		"asset":        "USDC",
		"amount":       int64(100),
		"sequence":     int64(1),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	if _, err := ingestion.ParseRawCommand(raw, "LiquidityDeposit"); err == nil {
		t.Fatal("expected error for malformed command_id")
	}
}

func TestParseUnknownCommandType(t *testing.T) {
	raw := rawFromJSON(t, map[string]interface{}{})
	if _, err := ingestion.ParseRawCommand(raw, "Nope"); err == nil {
		t.Fatal("expected error for unknown command type")
	}
}
