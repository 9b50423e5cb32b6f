package domain

import (
	"errors"
	"testing"
)

func TestValidateEvent(t *testing.T) {
	base := func() *AllowanceEvent {
		return &AllowanceEvent{
			SubscriptionID:  1,
			CycleID:         2,
			EventType:       EventTypeConsumed,
			AllowanceChange: -1,
			AllowanceBefore: 2,
			AllowanceAfter:  1,
			Reason:          ReasonBookingCovered,
		}
	}

	t.Run("valid consumed event", func(t *testing.T) {
		if err := ValidateEvent(base()); err != nil {
			t.Fatalf("validate: %v", err)
		}
	})

	t.Run("consumed must be negative", func(t *testing.T) {
		event := base()
		event.AllowanceChange = 1
		event.AllowanceAfter = 3
		if err := ValidateEvent(event); !errors.Is(err, ErrInvalidChange) {
			t.Fatalf("expected ErrInvalidChange, got %v", err)
		}
	})

	t.Run("granted must be positive", func(t *testing.T) {
		event := base()
		event.EventType = EventTypeGranted
		if err := ValidateEvent(event); !errors.Is(err, ErrInvalidChange) {
			t.Fatalf("expected ErrInvalidChange, got %v", err)
		}
	})

	t.Run("broken chain rejected", func(t *testing.T) {
		event := base()
		event.AllowanceAfter = 0
		if err := ValidateEvent(event); !errors.Is(err, ErrBalanceDiscontinuity) {
			t.Fatalf("expected ErrBalanceDiscontinuity, got %v", err)
		}
	})

	t.Run("negative balance rejected", func(t *testing.T) {
		event := base()
		event.AllowanceBefore = 0
		event.AllowanceAfter = -1
		if err := ValidateEvent(event); !errors.Is(err, ErrNegativeBalance) {
			t.Fatalf("expected ErrNegativeBalance, got %v", err)
		}
	})

	t.Run("missing reason rejected", func(t *testing.T) {
		event := base()
		event.Reason = "  "
		if err := ValidateEvent(event); !errors.Is(err, ErrInvalidReason) {
			t.Fatalf("expected ErrInvalidReason, got %v", err)
		}
	})

	t.Run("corrected allows either sign", func(t *testing.T) {
		event := base()
		event.EventType = EventTypeCorrected
		event.AllowanceChange = 10
		event.AllowanceBefore = 1
		event.AllowanceAfter = 11
		event.Reason = ReasonAdminAdjustment
		if err := ValidateEvent(event); err != nil {
			t.Fatalf("validate: %v", err)
		}
	})
}

func TestReplayBalance(t *testing.T) {
	events := []AllowanceEvent{
		{EventType: EventTypeGranted, AllowanceChange: 2, AllowanceBefore: 0, AllowanceAfter: 2, Reason: ReasonInitialGrant},
		{EventType: EventTypeConsumed, AllowanceChange: -1, AllowanceBefore: 2, AllowanceAfter: 1, Reason: ReasonBookingCovered},
		{EventType: EventTypeRestored, AllowanceChange: 1, AllowanceBefore: 1, AllowanceAfter: 2, Reason: ReasonDoctorCancelled},
		{EventType: EventTypeConsumed, AllowanceChange: -1, AllowanceBefore: 2, AllowanceAfter: 1, Reason: ReasonBookingCovered},
	}

	balance, err := ReplayBalance(events)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if balance != 1 {
		t.Fatalf("balance = %d, want 1", balance)
	}
}

func TestReplayBalanceEmptyLedger(t *testing.T) {
	balance, err := ReplayBalance(nil)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if balance != 0 {
		t.Fatalf("balance = %d, want 0", balance)
	}
}

func TestReplayBalanceDetectsGap(t *testing.T) {
	events := []AllowanceEvent{
		{EventType: EventTypeGranted, AllowanceChange: 2, AllowanceBefore: 0, AllowanceAfter: 2, Reason: ReasonInitialGrant},
		// A row went missing: before should be 2.
		{EventType: EventTypeConsumed, AllowanceChange: -1, AllowanceBefore: 1, AllowanceAfter: 0, Reason: ReasonBookingCovered},
	}

	if _, err := ReplayBalance(events); !errors.Is(err, ErrBalanceDiscontinuity) {
		t.Fatalf("expected ErrBalanceDiscontinuity, got %v", err)
	}
}

func TestReplayBalanceFirstEventMustStartAtZero(t *testing.T) {
	events := []AllowanceEvent{
		{EventType: EventTypeConsumed, AllowanceChange: -1, AllowanceBefore: 2, AllowanceAfter: 1, Reason: ReasonBookingCovered},
	}

	if _, err := ReplayBalance(events); !errors.Is(err, ErrBalanceDiscontinuity) {
		t.Fatalf("expected ErrBalanceDiscontinuity, got %v", err)
	}
}
