package domain

import "testing"

func TestRemittanceTransitionGraph(t *testing.T) {
	allowed := []struct{ from, to RemittanceStatus }{
		{RemittancePending, RemittanceProcessing},
		{RemittancePending, RemittanceFailed},
		{RemittancePending, RemittanceCancelled},
		{RemittanceProcessing, RemittanceAwaitingPickup},
		{RemittanceProcessing, RemittanceCompleted},
		{RemittanceProcessing, RemittanceFailed},
		{RemittanceProcessing, RemittanceCancelled},
		{RemittanceAwaitingPickup, RemittanceCompleted},
		{RemittanceAwaitingPickup, RemittanceFailed},
		{RemittanceCompleted, RemittanceRefunded},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	forbidden := []struct{ from, to RemittanceStatus }{
		{RemittancePending, RemittanceCompleted},
		{RemittancePending, RemittanceAwaitingPickup},
		{RemittanceAwaitingPickup, RemittanceCancelled},
		{RemittanceCompleted, RemittancePending},
		{RemittanceCompleted, RemittanceProcessing},
		{RemittanceFailed, RemittanceProcessing},
		{RemittanceCancelled, RemittancePending},
		{RemittanceRefunded, RemittanceCompleted},
	}
	for _, tc := range forbidden {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []RemittanceStatus{RemittanceCompleted, RemittanceFailed, RemittanceCancelled, RemittanceRefunded}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	active := []RemittanceStatus{RemittancePending, RemittanceProcessing, RemittanceAwaitingPickup}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestConvertMinorRounding(t *testing.T) {
	tests := []struct {
		amount int64
		rate   float64
		want   int64
	}{
		{10000, 1.0, 10000},
		{10000, 12.5, 125000},
		{333, 0.5, 167},  // 166.5 rounds half away from zero
		{100, 0.333, 33}, // 33.3 rounds down
		{1, 0.4, 0},
	}
	for _, tc := range tests {
		if got := ConvertMinor(tc.amount, tc.rate); got != tc.want {
			t.Errorf("ConvertMinor(%d, %v) = %d, want %d", tc.amount, tc.rate, got, tc.want)
		}
	}
}

func TestKnownDeliveryMethod(t *testing.T) {
	for _, m := range []DeliveryMethod{DeliveryMobileMoney, DeliveryBankTransfer, DeliveryCashPickup, DeliveryWallet} {
		if !KnownDeliveryMethod(m) {
			t.Errorf("expected %s to be known", m)
		}
	}
	if KnownDeliveryMethod("carrier_pigeon") {
		t.Error("unexpected delivery method accepted")
	}
}
