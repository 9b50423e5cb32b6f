package domain

import "strings"

// ValidateEvent checks that a single event is internally consistent
// before it is appended.
func ValidateEvent(event *AllowanceEvent) error {
	if event == nil {
		return ErrInvalidEventType
	}
	if event.SubscriptionID == 0 {
		return ErrInvalidSubscription
	}
	if event.CycleID == 0 {
		return ErrInvalidCycle
	}
	if strings.TrimSpace(event.Reason) == "" {
		return ErrInvalidReason
	}

	switch event.EventType {
	case EventTypeGranted, EventTypeRestored:
		if event.AllowanceChange <= 0 {
			return ErrInvalidChange
		}
	case EventTypeConsumed, EventTypeExpired:
		if event.AllowanceChange >= 0 {
			return ErrInvalidChange
		}
	case EventTypeCorrected:
		if event.AllowanceChange == 0 {
			return ErrInvalidChange
		}
	default:
		return ErrInvalidEventType
	}

	if event.AllowanceBefore+event.AllowanceChange != event.AllowanceAfter {
		return ErrBalanceDiscontinuity
	}
	if event.AllowanceAfter < 0 || event.AllowanceBefore < 0 {
		return ErrNegativeBalance
	}
	return nil
}

// ReplayBalance folds a cycle's events in order and returns the
// reconstructed remaining balance. The before/after chain must be
// contiguous; a gap means rows were lost or written out of band.
func ReplayBalance(events []AllowanceEvent) (int, error) {
	balance := 0
	for i, event := range events {
		if i == 0 && event.AllowanceBefore != 0 {
			return 0, ErrBalanceDiscontinuity
		}
		if event.AllowanceBefore != balance {
			return 0, ErrBalanceDiscontinuity
		}
		if event.AllowanceBefore+event.AllowanceChange != event.AllowanceAfter {
			return 0, ErrBalanceDiscontinuity
		}
		balance = event.AllowanceAfter
		if balance < 0 {
			return 0, ErrNegativeBalance
		}
	}
	return balance, nil
}
