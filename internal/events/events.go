package events

// Notification event types consumed by the external notification service.
const (
	EventAllowanceExhausted   = "allowance.exhausted"
	EventCycleRenewed         = "cycle.renewed"
	EventSubscriptionCanceled = "subscription.canceled"
	EventLedgerDriftDetected  = "ledger.drift_detected"
)

// AllowancePayload identifies the cycle a notification refers to.
type AllowancePayload struct {
	SubscriptionID string `json:"subscription_id"`
	CycleID        string `json:"cycle_id"`
	EventType      string `json:"event_type"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p AllowancePayload) ToMap() map[string]any {
	return map[string]any{
		"subscription_id": p.SubscriptionID,
		"cycle_id":        p.CycleID,
		"event_type":      p.EventType,
	}
}
